package core

import "time"

// Audit actions.
const (
	ActionInstall             = "installation.install"
	ActionUninstall           = "installation.uninstall"
	ActionCredentialRefresh   = "credential.refresh"
	ActionInstallationDisable = "installation.disable"
)

type AuditEntry struct {
	// ID is the correlation id of the request (or task run) that caused the event.
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "installation.install")
	Action string `json:"action"`

	// OAuthID identifies the affected installation.
	OAuthID string `json:"oauth_id,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Metadata contains action specific details
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error

	// GetRecent returns up to limit of the newest entries, oldest first.
	GetRecent(limit int) ([]AuditEntry, error)

	// Find returns up to limit of the newest entries matching filter, oldest first.
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)

	Close() error
}
