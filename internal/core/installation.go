package core

import (
	"maps"
	"time"
)

// Installation is one tenant's registration of the add-on with the host.
// It is keyed by OAuthID; a re-install replaces the whole record.
type Installation struct {
	// OAuthID identifies the installation and is the client id for the token exchange.
	OAuthID string `json:"oauthId"`

	// OAuthSecret is the shared secret used for the token exchange and to verify
	// signed webhook deliveries.
	OAuthSecret string `json:"oauthSecret"`

	// CapabilitiesURL points to the host's own capabilities document.
	CapabilitiesURL string `json:"capabilitiesUrl"`

	// RoomID is set when the add-on was installed into a single room.
	RoomID int64 `json:"roomId,omitempty"`

	// GroupID is the host group (organization) the installation belongs to.
	GroupID int64 `json:"groupId,omitempty"`

	// TokenURL and APIURL are discovered from the host capabilities document.
	TokenURL string `json:"tokenUrl"`
	APIURL   string `json:"apiUrl"`

	InstalledAt time.Time `json:"installedAt"`

	// Metadata keeps every other key the host sent with the install callback.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy that shares no maps with the receiver.
func (i Installation) Clone() Installation {
	if i.Metadata != nil {
		i.Metadata = maps.Clone(i.Metadata)
	}
	return i
}

// IsRoomScoped reports whether the add-on was installed into a single room.
func (i Installation) IsRoomScoped() bool {
	return i.RoomID != 0
}

// InstallationSummary is the secret-free view of an installation used by the admin API.
type InstallationSummary struct {
	OAuthID     string    `json:"oauthId"`
	RoomID      int64     `json:"roomId,omitempty"`
	GroupID     int64     `json:"groupId,omitempty"`
	APIURL      string    `json:"apiUrl"`
	InstalledAt time.Time `json:"installedAt"`

	HasCredential       bool      `json:"hasCredential"`
	CredentialExpiresAt time.Time `json:"credentialExpiresAt,omitempty"`
	Disabled            bool      `json:"disabled,omitempty"`
	DisabledReason      string    `json:"disabledReason,omitempty"`
}

func (i Installation) Summary() InstallationSummary {
	return InstallationSummary{
		OAuthID:     i.OAuthID,
		RoomID:      i.RoomID,
		GroupID:     i.GroupID,
		APIURL:      i.APIURL,
		InstalledAt: i.InstalledAt,
	}
}
