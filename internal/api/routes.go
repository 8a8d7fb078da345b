package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"
	MetricsRoute     = "/metrics"

	CapabilitiesRoute = "/capabilities"
	InstallerRoute    = "/installer"
	UninstallerRoute  = "/uninstaller"
	GlanceRoute       = "/glances/{key}"
	WebhookRoute      = "/{name}"

	AdminParent            = "/v1/admin/"
	ListInstallationsRoute = AdminParent + "installations"
	ListAuditsRoute        = AdminParent + "audit"
	SendNotificationRoute  = AdminParent + "notify"

	TaskParent       = AdminParent + "tasks"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "/{name}/trigger"
	LogsForTaskRoute = TaskParent + "/{name}/logs"
)
