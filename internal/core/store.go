package core

import "context"

// InstallationStore owns the installations and their credentials.
// All methods are safe for concurrent use. Returned values are copies.
type InstallationStore interface {
	// UpsertInstallation inserts or replaces the installation with the same OAuthID.
	UpsertInstallation(ctx context.Context, inst Installation) error

	// DeleteInstallation removes an installation. Deleting an unknown id is a no-op.
	DeleteInstallation(ctx context.Context, oauthID string) error

	GetInstallation(ctx context.Context, oauthID string) (*Installation, bool, error)

	// ListInstallations returns a point-in-time snapshot ordered by OAuthID.
	ListInstallations(ctx context.Context) ([]Installation, error)

	UpsertCredential(ctx context.Context, oauthID string, cred Credential) error

	// DeleteCredential removes a credential. Deleting an unknown id is a no-op.
	DeleteCredential(ctx context.Context, oauthID string) error

	GetCredential(ctx context.Context, oauthID string) (*Credential, bool, error)

	// ListCredentials returns a point-in-time snapshot keyed by OAuthID.
	ListCredentials(ctx context.Context) (map[string]Credential, error)
}
