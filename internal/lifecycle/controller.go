// Package lifecycle implements the install, uninstall and capabilities contract
// the host relies on.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/audit"
	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
	"github.com/bollustrado/mortimmy/internal/logging"
	"github.com/bollustrado/mortimmy/internal/metrics"
)

var ErrNoInstallation = errors.New("neither oauthId nor installableUrl given")

// Host is the part of the host API the controller needs.
type Host interface {
	FetchHostCapabilities(ctx context.Context, url string) (*hipchat.HostCapabilities, error)
	FetchInstallable(ctx context.Context, url string) (*hipchat.Installable, error)
}

// CredentialAcquirer fetches and stores a credential for a new installation.
type CredentialAcquirer interface {
	Acquire(ctx context.Context, inst core.Installation) (*core.Credential, error)
}

// RoomMessenger sends the greeting after a room install.
type RoomMessenger interface {
	SendMessage(ctx context.Context, oauthID string, roomID int64, message string, isHTML bool) error
}

type Controller struct {
	descriptor core.Descriptor
	modules    ModuleDescriber
	baseURL    string

	store       core.InstallationStore
	host        Host
	credentials CredentialAcquirer
	messenger   RoomMessenger
	auditor     core.Auditor

	motd string
	now  func() time.Time
}

type Option func(*Controller)

// WithGreeting sends motd to the room after every room-scoped install.
func WithGreeting(motd string, messenger RoomMessenger) Option {
	return func(c *Controller) {
		c.motd = motd
		c.messenger = messenger
	}
}

// WithCredentialAcquirer fetches the first credential right after install.
func WithCredentialAcquirer(acquirer CredentialAcquirer) Option {
	return func(c *Controller) {
		c.credentials = acquirer
	}
}

func WithAuditor(auditor core.Auditor) Option {
	return func(c *Controller) {
		if auditor != nil {
			c.auditor = auditor
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func NewController(
	descriptor core.Descriptor,
	modules ModuleDescriber,
	store core.InstallationStore,
	host Host,
	opts ...Option,
) *Controller {
	c := &Controller{
		descriptor: descriptor,
		modules:    modules,
		baseURL:    baseURLOf(descriptor),
		store:      store,
		host:       host,
		auditor:    audit.NewNoopAuditor(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capabilities returns the descriptor including every registered module.
func (c *Controller) Capabilities() core.Descriptor {
	d := c.descriptor
	d.Capabilities.Webhook = nil
	d.Capabilities.Glance = nil
	d.Capabilities.WebPanel = nil
	if c.modules != nil {
		c.modules.Describe(c.baseURL, &d.Capabilities)
	}
	return d
}

// Install registers a tenant. The host urls are discovered from its capabilities
// document before anything is stored.
func (c *Controller) Install(ctx context.Context, body map[string]any) (*core.Installation, error) {
	logger := log.Ctx(ctx)

	payload, err := DecodeInstallPayload(body)
	if err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		c.record(ctx, core.ActionInstall, payload.OAuthID, err, nil)
		return nil, err
	}

	hostCaps, err := c.host.FetchHostCapabilities(ctx, payload.CapabilitiesURL)
	if err != nil {
		err = core.NewHTTPError(http.StatusBadGateway, fmt.Errorf("discovering host capabilities: %w", err))
		c.record(ctx, core.ActionInstall, payload.OAuthID, err, nil)
		return nil, err
	}

	inst := core.Installation{
		OAuthID:         payload.OAuthID,
		OAuthSecret:     payload.OAuthSecret,
		CapabilitiesURL: payload.CapabilitiesURL,
		RoomID:          payload.RoomID,
		GroupID:         payload.GroupID,
		TokenURL:        hostCaps.TokenURL(),
		APIURL:          hostCaps.APIURL(),
		InstalledAt:     c.now().UTC(),
		Metadata:        payload.Extra,
	}
	if err := c.store.UpsertInstallation(ctx, inst); err != nil {
		err = core.NewHTTPError(http.StatusInternalServerError, fmt.Errorf("storing installation: %w", err))
		c.record(ctx, core.ActionInstall, inst.OAuthID, err, nil)
		return nil, err
	}

	c.record(ctx, core.ActionInstall, inst.OAuthID, nil, map[string]any{
		"room_id":  inst.RoomID,
		"group_id": inst.GroupID,
		"api_url":  inst.APIURL,
	})
	logger.Info().
		Str("oauth_id", inst.OAuthID).
		Int64("room_id", inst.RoomID).
		Int64("group_id", inst.GroupID).
		Msg("add-on installed")

	c.afterInstall(ctx, inst)
	return &inst, nil
}

// afterInstall fetches the first credential and greets the room. Failures are
// only logged, the refresher retries the credential.
func (c *Controller) afterInstall(ctx context.Context, inst core.Installation) {
	logger := log.Ctx(ctx).With().Str("oauth_id", inst.OAuthID).Logger()

	if c.credentials == nil {
		return
	}
	if _, err := c.credentials.Acquire(ctx, inst); err != nil {
		logger.Warn().Err(err).Msg("initial credential acquisition failed")
		return
	}

	if c.motd == "" || c.messenger == nil || !inst.IsRoomScoped() {
		return
	}
	if err := c.messenger.SendMessage(ctx, inst.OAuthID, inst.RoomID, c.motd, true); err != nil {
		logger.Warn().Err(err).Msg("sending install greeting failed")
	}
}

// Uninstall removes the credential and the installation, in that order, and returns
// the url the host wants the user redirected to (may be empty).
func (c *Controller) Uninstall(ctx context.Context, req UninstallRequest) (string, error) {
	oauthID := req.OAuthID
	if oauthID == "" {
		if req.InstallableURL == "" {
			err := core.NewHTTPError(http.StatusBadRequest, ErrNoInstallation)
			c.record(ctx, core.ActionUninstall, "", err, nil)
			return "", err
		}
		installable, err := c.host.FetchInstallable(ctx, req.InstallableURL)
		if err != nil {
			err = core.NewHTTPError(http.StatusBadGateway, fmt.Errorf("resolving installable: %w", err))
			c.record(ctx, core.ActionUninstall, "", err, nil)
			return "", err
		}
		oauthID = installable.OAuthID
	}

	if err := c.store.DeleteCredential(ctx, oauthID); err != nil {
		err = core.NewHTTPError(http.StatusInternalServerError, fmt.Errorf("deleting credential: %w", err))
		c.record(ctx, core.ActionUninstall, oauthID, err, nil)
		return "", err
	}
	if err := c.store.DeleteInstallation(ctx, oauthID); err != nil {
		err = core.NewHTTPError(http.StatusInternalServerError, fmt.Errorf("deleting installation: %w", err))
		c.record(ctx, core.ActionUninstall, oauthID, err, nil)
		return "", err
	}

	c.record(ctx, core.ActionUninstall, oauthID, nil, nil)
	log.Ctx(ctx).Info().Str("oauth_id", oauthID).Msg("add-on uninstalled")
	return req.RedirectURL, nil
}

func (c *Controller) record(ctx context.Context, action, oauthID string, err error, metadata map[string]any) {
	metrics.IncLifecycle(action, err == nil)

	entry := core.AuditEntry{
		ID:       logging.CorrelationID(ctx),
		Time:     c.now(),
		Action:   action,
		OAuthID:  oauthID,
		Success:  err == nil,
		Metadata: metadata,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if auditErr := c.auditor.Log(entry); auditErr != nil {
		log.Ctx(ctx).Warn().Err(auditErr).Str("action", action).Msg("failed to write audit entry")
	}
}

func baseURLOf(d core.Descriptor) string {
	return strings.TrimSuffix(d.Links.Self, CapabilitiesPath)
}
