// Package refresher keeps the OAuth credential of every installation valid.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/audit"
	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
	"github.com/bollustrado/mortimmy/internal/logging"
	"github.com/bollustrado/mortimmy/internal/metrics"
)

const (
	TaskName = "credential-refresh"

	DefaultInterval = 10 * time.Second
	DefaultMargin   = 60 * time.Second
)

// ErrUninstalled is returned when an installation disappeared while its token was fetched.
var ErrUninstalled = errors.New("installation was removed during credential acquisition")

// TokenFetcher performs the token exchange for an installation.
type TokenFetcher interface {
	FetchToken(ctx context.Context, inst core.Installation) (*hipchat.Token, error)
}

type disabledInstallation struct {
	installedAt time.Time
	reason      string
}

// Refresher acquires credentials for installations that have none or whose
// credential is about to expire. A token endpoint answering with an invalid
// response disables that installation until it is installed again.
type Refresher struct {
	store   core.InstallationStore
	fetcher TokenFetcher
	auditor core.Auditor
	margin  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	disabled map[string]disabledInstallation
}

type Option func(*Refresher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) {
		r.now = now
	}
}

func New(store core.InstallationStore, fetcher TokenFetcher, auditor core.Auditor, margin time.Duration, opts ...Option) *Refresher {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if margin < 0 {
		margin = 0
	}
	r := &Refresher{
		store:    store,
		fetcher:  fetcher,
		auditor:  auditor,
		margin:   margin,
		now:      time.Now,
		disabled: make(map[string]disabledInstallation),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Refresher) Margin() time.Duration {
	return r.margin
}

// Run performs one refresh cycle. Failures of single installations don't stop
// the cycle, they are joined into the returned error.
func (r *Refresher) Run(ctx context.Context, logger logging.InternalLogger) error {
	defer metrics.ObserveRefreshCycle().ObserveDeferred()

	ctx, _ = logging.EnsureCorrelationID(ctx)

	// credentials are listed first so a credential acquired by a concurrent
	// install is never mistaken for an orphan.
	credentials, err := r.store.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("listing credentials: %w", err)
	}
	installations, err := r.store.ListInstallations(ctx)
	if err != nil {
		return fmt.Errorf("listing installations: %w", err)
	}
	metrics.SetInstallations(len(installations))

	now := r.now()
	var errs []error
	refreshed := 0

	for _, inst := range installations {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if reason, disabled := r.checkDisabled(inst); disabled {
			logger.Debug("skipping disabled installation '%s': %s", inst.OAuthID, reason)
			continue
		}

		if cred, ok := credentials[inst.OAuthID]; ok && !cred.NeedsRefresh(now, r.margin) {
			continue
		}

		logger.Debug("acquiring credential for installation '%s'", inst.OAuthID)
		if _, err := r.Acquire(ctx, inst); err != nil {
			logger.Warn("credential acquisition for installation '%s' failed: %v", inst.OAuthID, err)
			errs = append(errs, fmt.Errorf("installation '%s': %w", inst.OAuthID, err))
			continue
		}
		refreshed++
	}

	r.pruneDisabled(installations)
	if ctx.Err() == nil {
		if err := r.pruneOrphans(ctx, logger, installations, credentials); err != nil {
			errs = append(errs, err)
		}
	}

	if refreshed > 0 {
		logger.Info("refreshed %d of %d credentials", refreshed, len(installations))
	}
	return errors.Join(errs...)
}

// Acquire fetches a new credential for inst and persists it.
// The stored expiry already has the safety margin subtracted.
func (r *Refresher) Acquire(ctx context.Context, inst core.Installation) (*core.Credential, error) {
	issuedAt := r.now()

	tok, err := r.fetcher.FetchToken(ctx, inst)
	if err != nil {
		if errors.Is(err, hipchat.ErrInvalidTokenResponse) {
			metrics.IncCredentialRefresh("invalid")
			r.disable(ctx, inst, err)
		} else {
			metrics.IncCredentialRefresh("failed")
		}
		r.audit(ctx, inst.OAuthID, err, nil)
		return nil, err
	}

	// the uninstall may have happened while the token was in flight
	current, ok, err := r.store.GetInstallation(ctx, inst.OAuthID)
	if err != nil {
		return nil, fmt.Errorf("re-reading installation: %w", err)
	}
	if !ok || !current.InstalledAt.Equal(inst.InstalledAt) {
		return nil, ErrUninstalled
	}

	cred := core.Credential{
		AccessToken: tok.AccessToken,
		ExpiresAt:   issuedAt.Add(tok.ExpiresIn - r.margin),
		IssuedAt:    issuedAt,
		Claims:      tok.Claims,
	}
	if err := r.store.UpsertCredential(ctx, inst.OAuthID, cred); err != nil {
		metrics.IncCredentialRefresh("failed")
		r.audit(ctx, inst.OAuthID, err, nil)
		return nil, fmt.Errorf("persisting credential: %w", err)
	}

	r.enable(inst.OAuthID)
	metrics.IncCredentialRefresh("ok")
	r.audit(ctx, inst.OAuthID, nil, map[string]any{
		"fingerprint": audit.Fingerprint(cred.AccessToken),
		"expires_at":  cred.ExpiresAt,
	})
	return &cred, nil
}

// Disabled returns the reason per disabled installation.
func (r *Refresher) Disabled() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.disabled))
	for id, d := range r.disabled {
		out[id] = d.reason
	}
	return out
}

// checkDisabled reports whether inst is still disabled. A newer install of the same
// oauthId lifts the block.
func (r *Refresher) checkDisabled(inst core.Installation) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.disabled[inst.OAuthID]
	if !ok {
		return "", false
	}
	if !d.installedAt.Equal(inst.InstalledAt) {
		delete(r.disabled, inst.OAuthID)
		metrics.SetDisabledInstallations(len(r.disabled))
		return "", false
	}
	return d.reason, true
}

func (r *Refresher) disable(ctx context.Context, inst core.Installation, cause error) {
	r.mu.Lock()
	r.disabled[inst.OAuthID] = disabledInstallation{
		installedAt: inst.InstalledAt,
		reason:      cause.Error(),
	}
	metrics.SetDisabledInstallations(len(r.disabled))
	r.mu.Unlock()

	r.log(ctx, core.AuditEntry{
		Action:  core.ActionInstallationDisable,
		OAuthID: inst.OAuthID,
		Success: true,
		Error:   cause.Error(),
	})
}

func (r *Refresher) enable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.disabled, id)
	metrics.SetDisabledInstallations(len(r.disabled))
}

// pruneDisabled forgets installations that are gone from the store.
func (r *Refresher) pruneDisabled(installations []core.Installation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	present := make(map[string]struct{}, len(installations))
	for _, inst := range installations {
		present[inst.OAuthID] = struct{}{}
	}
	maps.DeleteFunc(r.disabled, func(id string, _ disabledInstallation) bool {
		_, ok := present[id]
		return !ok
	})
	metrics.SetDisabledInstallations(len(r.disabled))
}

// pruneOrphans deletes credentials whose installation is gone. They are left
// behind when an uninstall races a credential acquisition.
func (r *Refresher) pruneOrphans(ctx context.Context, logger logging.InternalLogger, installations []core.Installation, credentials map[string]core.Credential) error {
	present := make(map[string]struct{}, len(installations))
	for _, inst := range installations {
		present[inst.OAuthID] = struct{}{}
	}

	var errs []error
	for id := range credentials {
		if _, ok := present[id]; ok {
			continue
		}
		logger.Debug("deleting orphaned credential '%s'", id)
		if err := r.store.DeleteCredential(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("deleting orphaned credential '%s': %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Refresher) audit(ctx context.Context, oauthID string, err error, metadata map[string]any) {
	entry := core.AuditEntry{
		Action:   core.ActionCredentialRefresh,
		OAuthID:  oauthID,
		Success:  err == nil,
		Metadata: metadata,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	r.log(ctx, entry)
}

func (r *Refresher) log(ctx context.Context, entry core.AuditEntry) {
	entry.ID = logging.CorrelationID(ctx)
	entry.Time = r.now()
	if err := r.auditor.Log(entry); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("action", entry.Action).Msg("failed to write audit entry")
	}
}
