package cmd

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/audit"
	"github.com/bollustrado/mortimmy/internal/config"
	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
	"github.com/bollustrado/mortimmy/internal/lifecycle"
	"github.com/bollustrado/mortimmy/internal/modules"
	"github.com/bollustrado/mortimmy/internal/notifier"
	"github.com/bollustrado/mortimmy/internal/refresher"
	"github.com/bollustrado/mortimmy/internal/store"
	"github.com/bollustrado/mortimmy/internal/tasks"
)

// addon wires every component of a running add-on from its config.
type addon struct {
	cfg *config.Config

	store      core.InstallationStore
	auditor    core.Auditor
	host       *hipchat.Client
	refresher  *refresher.Refresher
	notifier   *notifier.Notifier
	registry   *modules.Registry
	controller *lifecycle.Controller
	tasks      *tasks.Manager
}

// buildAddon wires the add-on. With ephemeral set nothing is written to disk.
func buildAddon(cfg *config.Config, ephemeral bool) (*addon, error) {
	a := &addon{cfg: cfg}

	var err error
	if a.store, err = buildStore(cfg.Store, ephemeral); err != nil {
		return nil, err
	}
	if a.auditor, err = buildAuditor(cfg.Audit, ephemeral); err != nil {
		return nil, err
	}

	a.host = hipchat.New()
	a.refresher = refresher.New(a.store, a.host, a.auditor, cfg.Refresh.Margin)
	a.notifier = notifier.New(a.store, a.host)

	a.registry = modules.NewRegistry(a.store)
	for idx, w := range cfg.Webhooks {
		handler, err := modules.BuildHandler(w.Handler, w.Settings, a.notifier)
		if err != nil {
			return nil, fmt.Errorf("webhook at index %d: %w", idx, err)
		}
		if err := a.registry.RegisterWebhook(w.Webhook, handler, modules.WithCondition(w.When)); err != nil {
			return nil, fmt.Errorf("webhook at index %d: %w", idx, err)
		}
		log.Debug().Str("webhook", w.Name).Str("event", string(w.Event)).Msg("registered webhook")
	}
	for _, g := range cfg.Glances {
		if err := a.registry.RegisterGlance(g); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.WebPanels {
		if err := a.registry.RegisterWebPanel(p); err != nil {
			return nil, err
		}
	}

	a.controller = lifecycle.NewController(lifecycle.BaseDescriptor(cfg), a.registry, a.store, a.host,
		lifecycle.WithAuditor(a.auditor),
		lifecycle.WithCredentialAcquirer(a.refresher),
		lifecycle.WithGreeting(cfg.MOTD, a.notifier),
	)

	a.tasks = tasks.NewManager()
	a.tasks.Register(refresher.TaskName, cfg.Refresh.Interval, a.refresher.Run)

	return a, nil
}

func buildStore(cfg config.StoreConfig, ephemeral bool) (core.InstallationStore, error) {
	if ephemeral || cfg.Type == config.StoreTypeMemory {
		log.Warn().Msg("Using in-memory store, installations are lost on restart")
		return store.NewInMemoryStore(), nil
	}
	log.Info().Str("path", cfg.Path).Msg("Using file store")
	s, err := store.NewFileStore(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening file store: %w", err)
	}
	return s, nil
}

func buildAuditor(cfg config.AuditConfig, ephemeral bool) (core.Auditor, error) {
	if !cfg.Enabled {
		return audit.NewNoopAuditor(), nil
	}
	switch {
	case cfg.Type == config.AuditTypeFile && !ephemeral:
		a, err := audit.NewFileAuditor(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("creating file auditor: %w", err)
		}
		return a, nil
	default:
		return audit.NewInMemoryAuditor(audit.DefaultMemoryCapacity), nil
	}
}

func (a *addon) Close() error {
	var errs []error
	if err := a.auditor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing auditor: %w", err))
	}
	return errors.Join(errs...)
}
