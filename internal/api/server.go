package api

import (
	"net/http"

	"github.com/bollustrado/mortimmy/internal/api/middleware"
	"github.com/bollustrado/mortimmy/internal/audit"
	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/lifecycle"
	"github.com/bollustrado/mortimmy/internal/modules"
	"github.com/bollustrado/mortimmy/internal/notifier"
	"github.com/bollustrado/mortimmy/internal/tasks"
)

// DisabledSource reports installations the refresher gave up on.
type DisabledSource interface {
	Disabled() map[string]string
}

type Server struct {
	controller  *lifecycle.Controller
	registry    *modules.Registry
	store       core.InstallationStore
	notifier    *notifier.Notifier
	taskManager *tasks.Manager
	auditor     core.Auditor
	disabled    DisabledSource
}

func NewServer(
	controller *lifecycle.Controller,
	registry *modules.Registry,
	store core.InstallationStore,
	notifier *notifier.Notifier,
	taskManager *tasks.Manager,
	auditor core.Auditor,
	disabled DisabledSource,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &Server{
		controller:  controller,
		registry:    registry,
		store:       store,
		notifier:    notifier,
		taskManager: taskManager,
		auditor:     auditor,
		disabled:    disabled,
	}
}

// Routes builds the handler. Admin routes are only mounted when adminSigningKey is set.
func (s *Server) Routes(adminSigningKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.HandleFunc("GET "+MetricsRoute, s.handleMetrics)

	// host facing routes
	mux.HandleFunc("GET "+CapabilitiesRoute, s.handleCapabilities)
	mux.HandleFunc("POST "+InstallerRoute, s.handleInstall)
	mux.HandleFunc("GET "+UninstallerRoute, s.handleUninstall)
	mux.HandleFunc("POST "+UninstallerRoute, s.handleUninstall)
	mux.HandleFunc("GET "+GlanceRoute, s.handleGlance)
	mux.HandleFunc("POST "+WebhookRoute, s.handleWebhook)

	// admin routes
	if len(adminSigningKey) > 0 {
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("GET "+ListInstallationsRoute, s.handleAdminInstallations)
		adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
		adminMux.HandleFunc("POST "+SendNotificationRoute, s.handleAdminNotify)
		adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
		adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
		adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
		mux.Handle(AdminParent, middleware.AdminAuth(adminSigningKey)(adminMux))
	}

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
