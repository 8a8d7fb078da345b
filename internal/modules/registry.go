// Package modules holds the webhook, glance and web panel modules the add-on
// advertises, and dispatches inbound webhook deliveries to their handlers.
package modules

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bollustrado/mortimmy/internal/core"
)

// ReservedNames are first path segments owned by the HTTP layer.
var ReservedNames = []string{
	"capabilities",
	"installer",
	"uninstaller",
	"glances",
	"healthz",
	"about",
	"metrics",
	"v1",
}

var (
	ErrDuplicate = errors.New("already registered")
	ErrReserved  = errors.New("name collides with a reserved route")
	ErrNoHandler = errors.New("no handler given")
)

// RegistrationError is returned when a module is rejected. The registry is left unchanged.
type RegistrationError struct {
	Kind core.ModuleKind
	Key  string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registering %s '%s': %v", e.Kind, e.Key, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// InstallationLookup resolves installations for signed deliveries.
type InstallationLookup interface {
	GetInstallation(ctx context.Context, oauthID string) (*core.Installation, bool, error)
}

type webhook struct {
	core.Webhook
	handler Handler

	when       *vm.Program
	whenSource string
}

type WebhookOption func(*webhook) error

// WithCondition only invokes the handler when the expr-lang expression src is true.
// The expression sees event, message, room, sender, oauth_id and webhook.
func WithCondition(src string) WebhookOption {
	return func(w *webhook) error {
		if strings.TrimSpace(src) == "" {
			return nil
		}
		program, err := expr.Compile(src, expr.Env(conditionEnv(Delivery{}, "")), expr.AsBool())
		if err != nil {
			return fmt.Errorf("compiling condition: %w", err)
		}
		w.when = program
		w.whenSource = src
		return nil
	}
}

func conditionEnv(d Delivery, webhookName string) map[string]any {
	return map[string]any{
		"event":    string(d.Event),
		"message":  d.Text(),
		"room":     d.Item.Room,
		"sender":   d.From(),
		"oauth_id": d.OAuthClientID,
		"webhook":  webhookName,
	}
}

type Registry struct {
	installations InstallationLookup
	leeway        time.Duration

	mu           sync.RWMutex
	webhooks     map[string]*webhook
	webhookOrder []string
	glances      map[string]core.Glance
	glanceOrder  []string
	panels       map[string]core.WebPanel
	panelOrder   []string
}

func NewRegistry(installations InstallationLookup) *Registry {
	return &Registry{
		installations: installations,
		leeway:        DefaultJWTLeeway,
		webhooks:      make(map[string]*webhook),
		glances:       make(map[string]core.Glance),
		panels:        make(map[string]core.WebPanel),
	}
}

// RegisterWebhook validates hook against the event vocabulary and the authentication
// modes and makes it part of the descriptor.
func (r *Registry) RegisterWebhook(hook core.Webhook, handler Handler, opts ...WebhookOption) error {
	fail := func(err error) error {
		return &RegistrationError{Kind: core.KindWebhook, Key: hook.Name, Err: err}
	}

	if err := hook.Validate(); err != nil {
		return fail(err)
	}
	if slices.Contains(ReservedNames, hook.Name) {
		return fail(ErrReserved)
	}
	if handler == nil {
		return fail(ErrNoHandler)
	}
	switch hook.Authentication {
	case "":
		hook.Authentication = core.AuthNone
	case core.AuthSignedToken:
		hook.Authentication = core.AuthJWT
	}

	entry := &webhook{Webhook: hook, handler: handler}
	for _, opt := range opts {
		if err := opt(entry); err != nil {
			return fail(err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.webhooks[hook.Name]; exists {
		return fail(ErrDuplicate)
	}
	r.webhooks[hook.Name] = entry
	r.webhookOrder = append(r.webhookOrder, hook.Name)
	return nil
}

func (r *Registry) RegisterGlance(g core.Glance) error {
	if err := g.Validate(); err != nil {
		return &RegistrationError{Kind: core.KindGlance, Key: g.ID, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.glances[g.ID]; exists {
		return &RegistrationError{Kind: core.KindGlance, Key: g.ID, Err: ErrDuplicate}
	}
	r.glances[g.ID] = g
	r.glanceOrder = append(r.glanceOrder, g.ID)
	return nil
}

func (r *Registry) RegisterWebPanel(p core.WebPanel) error {
	if err := p.Validate(); err != nil {
		return &RegistrationError{Kind: core.KindWebPanel, Key: p.ID, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.panels[p.ID]; exists {
		return &RegistrationError{Kind: core.KindWebPanel, Key: p.ID, Err: ErrDuplicate}
	}
	r.panels[p.ID] = p
	r.panelOrder = append(r.panelOrder, p.ID)
	return nil
}

// Webhooks returns the registered webhooks in registration order.
func (r *Registry) Webhooks() []core.Webhook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Webhook, 0, len(r.webhookOrder))
	for _, name := range r.webhookOrder {
		out = append(out, r.webhooks[name].Webhook)
	}
	return out
}

func (r *Registry) Webhook(name string) (core.Webhook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.webhooks[name]
	if !ok {
		return core.Webhook{}, false
	}
	return w.Webhook, true
}

func (r *Registry) Glance(key string) (core.Glance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.glances[key]
	return g, ok
}

// Modules returns every module: webhooks, then glances, then web panels.
func (r *Registry) Modules() []core.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Module, 0, len(r.webhookOrder)+len(r.glanceOrder)+len(r.panelOrder))
	for _, name := range r.webhookOrder {
		out = append(out, r.webhooks[name].Webhook)
	}
	for _, key := range r.glanceOrder {
		out = append(out, r.glances[key])
	}
	for _, key := range r.panelOrder {
		out = append(out, r.panels[key])
	}
	return out
}

// Describe adds the descriptor fragment of every module to caps.
func (r *Registry) Describe(baseURL string, caps *core.Capabilities) {
	for _, m := range r.Modules() {
		m.Describe(baseURL, caps)
	}
}
