package core

import (
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_NeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	margin := time.Minute

	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{name: "empty", cred: Credential{}, want: true},
		{name: "far from expiry", cred: Credential{AccessToken: "t", ExpiresAt: now.Add(margin + time.Second)}, want: false},
		{name: "exactly at margin", cred: Credential{AccessToken: "t", ExpiresAt: now.Add(margin)}, want: true},
		{name: "within margin", cred: Credential{AccessToken: "t", ExpiresAt: now.Add(30 * time.Second)}, want: true},
		{name: "expired", cred: Credential{AccessToken: "t", ExpiresAt: now.Add(-time.Second)}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.NeedsRefresh(now, margin))
		})
	}
}

func TestCredential_Usable(t *testing.T) {
	now := time.Now()
	assert.True(t, Credential{AccessToken: "t", ExpiresAt: now.Add(time.Second)}.Usable(now))
	assert.False(t, Credential{AccessToken: "t", ExpiresAt: now}.Usable(now))
	assert.False(t, Credential{ExpiresAt: now.Add(time.Hour)}.Usable(now))
}

func TestInstallation_CloneDoesNotShareMetadata(t *testing.T) {
	inst := Installation{OAuthID: "abc", Metadata: map[string]any{"locale": "en_US"}}
	clone := inst.Clone()
	clone.Metadata["locale"] = "nl_NL"

	assert.Equal(t, "en_US", inst.Metadata["locale"])
}

func TestHTTPError_Unwraps(t *testing.T) {
	err := HTTPErrorf(http.StatusBadGateway, "fetching: %w", io.ErrUnexpectedEOF)

	var httpErr HTTPError
	require.True(t, errors.As(error(err), &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWebhook_DescribeOmitsPatternForNonMessageEvents(t *testing.T) {
	var caps Capabilities
	Webhook{Name: "msg", Event: EventRoomMessage, Pattern: "^/hi"}.Describe("https://addon.example.com", &caps)
	Webhook{Name: "enter", Event: EventRoomEnter, Pattern: "^/hi"}.Describe("https://addon.example.com", &caps)

	want := []WebhookDescriptor{
		{Name: "msg", URL: "https://addon.example.com/msg", Event: EventRoomMessage, Pattern: "^/hi", Authentication: AuthNone},
		{Name: "enter", URL: "https://addon.example.com/enter", Event: EventRoomEnter, Authentication: AuthNone},
	}
	if diff := cmp.Diff(want, caps.Webhook); diff != "" {
		t.Errorf("webhook descriptors mismatch (-want +got):\n%s", diff)
	}
}
