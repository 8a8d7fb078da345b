// Package notifier sends room notifications on behalf of an installation.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
	"github.com/bollustrado/mortimmy/internal/metrics"
)

var (
	ErrNotInstalled = errors.New("add-on is not installed for this oauthId")
	ErrNoCredential = errors.New("no credential available for this installation")
)

// Sender posts a notification to the host API.
type Sender interface {
	SendRoomNotification(ctx context.Context, apiURL, accessToken string, roomID int64, n hipchat.Notification) error
}

// Notifier reads installation and credential from the store and never modifies them.
type Notifier struct {
	store  core.InstallationStore
	sender Sender
	now    func() time.Time
}

func New(store core.InstallationStore, sender Sender) *Notifier {
	return &Notifier{
		store:  store,
		sender: sender,
		now:    time.Now,
	}
}

// SendMessage sends a gray, silent message to roomID.
func (n *Notifier) SendMessage(ctx context.Context, oauthID string, roomID int64, message string, isHTML bool) error {
	return n.Send(ctx, oauthID, roomID, hipchat.NewNotification(message, isHTML))
}

// Send posts notification to roomID using the current credential of oauthID.
// It fails with ErrNotInstalled or ErrNoCredential without contacting the host.
func (n *Notifier) Send(ctx context.Context, oauthID string, roomID int64, notification hipchat.Notification) error {
	inst, ok, err := n.store.GetInstallation(ctx, oauthID)
	if err != nil {
		return fmt.Errorf("loading installation: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrNotInstalled, oauthID)
	}

	cred, ok, err := n.store.GetCredential(ctx, oauthID)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}
	if !ok || cred.AccessToken == "" {
		return fmt.Errorf("%w: '%s'", ErrNoCredential, oauthID)
	}
	if !cred.Usable(n.now()) {
		// the refresher may not have caught up yet, the host decides
		log.Ctx(ctx).Warn().
			Str("oauth_id", oauthID).
			Time("expires_at", cred.ExpiresAt).
			Msg("sending notification with a credential past its stored expiry")
	}

	if roomID == 0 {
		roomID = inst.RoomID
	}
	if roomID == 0 {
		return fmt.Errorf("no room given and installation '%s' is not room scoped", oauthID)
	}

	err = n.sender.SendRoomNotification(ctx, inst.APIURL, cred.AccessToken, roomID, notification)
	metrics.IncNotification(err == nil)
	if err != nil {
		return fmt.Errorf("notifying room %d: %w", roomID, err)
	}

	log.Ctx(ctx).Debug().
		Str("oauth_id", oauthID).
		Int64("room_id", roomID).
		Msg("room notification sent")
	return nil
}
