package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/modules"
)

const minimal = `
name: morTimmy
key: nl.mortimer.mortimmy
base_url: https://addon.example.com
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, StoreTypeFile, cfg.Store.Type)
	assert.Equal(t, DefaultDataDir, cfg.Store.Path)
	assert.Equal(t, DefaultRefreshInterval, cfg.Refresh.Interval)
	assert.Equal(t, DefaultRefreshMargin, cfg.Refresh.Margin)
	assert.Equal(t, []string{"send_notification"}, cfg.Scopes)
	assert.True(t, cfg.Installable.Global())
	assert.True(t, cfg.Installable.Room())
	assert.False(t, cfg.Server.TLSEnabled())
}

func TestParse_Webhooks(t *testing.T) {
	cfg, err := Parse([]byte(minimal + `
refresh:
  interval: 30s
  margin: 2m
installable:
  allow_global: false
webhooks:
  - name: slashcommands
    event: room_message
    pattern: "^/.*$"
    authentication: jwt
    when: 'message startsWith "/echo"'
    handler: echo
    settings:
      color: green
  - name: welcome
    event: room_enter
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Refresh.Margin)
	assert.False(t, cfg.Installable.Global())

	want := []WebhookConfig{
		{
			Webhook: core.Webhook{
				Name:           "slashcommands",
				Event:          core.EventRoomMessage,
				Pattern:        "^/.*$",
				Authentication: core.AuthJWT,
			},
			When:     `message startsWith "/echo"`,
			Handler:  "echo",
			Settings: map[string]any{"color": "green"},
		},
		{
			Webhook: core.Webhook{
				Name:           "welcome",
				Event:          core.EventRoomEnter,
				Authentication: core.AuthNone,
			},
		},
	}
	if diff := cmp.Diff(want, cfg.Webhooks); diff != "" {
		t.Errorf("webhooks mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		base    string
		wantErr string
	}{
		{name: "missing name", base: "key: k\nbase_url: https://a.example.com\n", wantErr: "name is required"},
		{name: "relative base url", base: "name: n\nkey: k\nbase_url: /addon\n", wantErr: "base_url"},
		{name: "half tls", extra: "server:\n  tls_cert: cert.pem\n", wantErr: "tls_cert and tls_key"},
		{name: "unknown store", extra: "store:\n  type: redis\n", wantErr: "unknown type 'redis'"},
		{name: "file audit without path", extra: "audit:\n  enabled: true\n  type: file\n", wantErr: "path is required"},
		{name: "unknown event", extra: "webhooks:\n  - name: x\n    event: room_dance\n", wantErr: "unknown event"},
		{name: "unknown auth", extra: "webhooks:\n  - name: x\n    event: room_enter\n    authentication: basic\n", wantErr: "unknown authentication"},
		{name: "unknown handler", extra: "webhooks:\n  - name: x\n    event: room_enter\n    handler: shout\n", wantErr: "unknown handler"},
		{name: "duplicate webhook", extra: "webhooks:\n  - name: x\n    event: room_enter\n  - name: x\n    event: room_exit\n", wantErr: "already registered"},
		{name: "reserved name", extra: "webhooks:\n  - name: installer\n    event: room_enter\n", wantErr: "reserved"},
		{name: "bad condition", extra: "webhooks:\n  - name: x\n    event: room_message\n    when: 'message +'\n", wantErr: "compiling condition"},
		{name: "glance without name", extra: "glances:\n  - key: g\n", wantErr: "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := tt.base
			if base == "" {
				base = minimal
			}
			_, err := Parse([]byte(base + tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_RegistrationErrorIsKept(t *testing.T) {
	_, err := Parse([]byte(minimal + "webhooks:\n  - name: installer\n    event: room_enter\n"))
	var regErr *modules.RegistrationError
	assert.True(t, errors.As(err, &regErr))
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "mortimmy.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Webhooks, 2)
	assert.Len(t, cfg.Glances, 1)
	assert.Len(t, cfg.WebPanels, 1)
	assert.True(t, strings.HasPrefix(cfg.MOTD, "morTimmy"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
