package core

import (
	"maps"
	"time"
)

// Credential is the short-lived access token of one installation.
type Credential struct {
	AccessToken string `json:"access_token"`

	// ExpiresAt already has the safety margin subtracted from the literal expiry
	// reported by the host.
	ExpiresAt time.Time `json:"expires_at"`

	IssuedAt time.Time `json:"issued_at"`

	// Claims holds the additional fields of the token response (scope, group_id, ...).
	Claims map[string]any `json:"claims,omitempty"`
}

func (c Credential) Clone() Credential {
	if c.Claims != nil {
		c.Claims = maps.Clone(c.Claims)
	}
	return c
}

// NeedsRefresh reports whether the credential is due for renewal at now.
// Renewal is due once now reaches ExpiresAt minus margin.
func (c Credential) NeedsRefresh(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt.Add(-margin))
}

// Usable reports whether the token can still be sent to the host at now.
func (c Credential) Usable(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}
