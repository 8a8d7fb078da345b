package modules

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
	"github.com/bollustrado/mortimmy/internal/store"
)

const roomMessage = `{
	"event": "room_message",
	"oauth_client_id": "abc",
	"webhook_id": 1,
	"item": {
		"message": {
			"id": "m-1",
			"message": "/echo hello there",
			"type": "message",
			"from": {"id": 9, "name": "Ada", "mention_name": "ada"}
		},
		"room": {"id": 42, "name": "ops"}
	}
}`

func newTestRegistry(t *testing.T) (*Registry, core.InstallationStore) {
	t.Helper()
	s := store.NewInMemoryStore()
	require.NoError(t, s.UpsertInstallation(context.Background(), core.Installation{
		OAuthID:     "abc",
		OAuthSecret: "s3cr3t",
		APIURL:      "https://host/v2/",
	}))
	return NewRegistry(s), s
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
}

func sign(t *testing.T, issuer, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": issuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var httpErr core.HTTPError
	require.True(t, errors.As(err, &httpErr), "expected HTTPError, got %v", err)
	return httpErr.StatusCode
}

type countingHandler struct {
	calls int
	last  *Request
	resp  Response
}

func (h *countingHandler) Handle(_ context.Context, req *Request) (Response, error) {
	h.calls++
	h.last = req
	return h.resp, nil
}

func TestDispatch_MalformedPayload(t *testing.T) {
	r, _ := newTestRegistry(t)
	h := &countingHandler{}
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "hook", Event: core.EventRoomMessage}, h))

	_, err := r.Dispatch(context.Background(), "hook", post(`{"event": `))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Zero(t, h.calls)
}

func TestDispatch_EventMismatch(t *testing.T) {
	r, _ := newTestRegistry(t)
	h := &countingHandler{}
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "hook", Event: core.EventRoomEnter}, h))

	_, err := r.Dispatch(context.Background(), "hook", post(roomMessage))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Zero(t, h.calls)
}

func TestDispatch_UnknownWebhook(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Dispatch(context.Background(), "missing", post(roomMessage))
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestDispatch_ReturnsHandlerResponseVerbatim(t *testing.T) {
	r, _ := newTestRegistry(t)
	h := &countingHandler{resp: Response{Status: http.StatusAccepted, Body: map[string]string{"ok": "yes"}}}
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "hook", Event: core.EventRoomMessage}, h))

	resp, err := r.Dispatch(context.Background(), "hook", post(roomMessage))
	require.NoError(t, err)
	assert.Equal(t, h.resp, resp)
	require.Equal(t, 1, h.calls)

	assert.Equal(t, "/echo hello there", h.last.Delivery.Text())
	assert.Equal(t, "Ada", h.last.Delivery.From().Name)
	require.NotNil(t, h.last.Installation, "unauthenticated deliveries still resolve known installations")
	assert.Equal(t, "abc", h.last.Installation.OAuthID)
}

func TestDispatch_JWTAuthentication(t *testing.T) {
	tests := []struct {
		name       string
		prepare    func(req *http.Request)
		wantStatus int
	}{
		{
			name: "authorization header",
			prepare: func(req *http.Request) {
				req.Header.Set("Authorization", "JWT "+sign(t, "abc", "s3cr3t"))
			},
		},
		{
			name: "signed_request query",
			prepare: func(req *http.Request) {
				req.URL.RawQuery = "signed_request=" + sign(t, "abc", "s3cr3t")
			},
		},
		{
			name:       "missing token",
			prepare:    func(*http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			prepare: func(req *http.Request) {
				req.Header.Set("Authorization", "JWT "+sign(t, "abc", "other"))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown issuer",
			prepare: func(req *http.Request) {
				req.Header.Set("Authorization", "JWT "+sign(t, "zzz", "s3cr3t"))
			},
			wantStatus: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t)
			h := &countingHandler{}
			require.NoError(t, r.RegisterWebhook(core.Webhook{
				Name: "hook", Event: core.EventRoomMessage, Authentication: core.AuthJWT,
			}, h))

			req := post(roomMessage)
			tt.prepare(req)
			resp, err := r.Dispatch(context.Background(), "hook", req)

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				assert.Zero(t, h.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusNoContent, resp.StatusCode())
			assert.Equal(t, 1, h.calls)
		})
	}
}

func TestDispatch_ConditionFalseSkipsHandler(t *testing.T) {
	r, _ := newTestRegistry(t)
	matching := &countingHandler{}
	skipped := &countingHandler{}
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "ops", Event: core.EventRoomMessage}, matching,
		WithCondition(`room.name == "ops" && message startsWith "/echo"`)))
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "dev", Event: core.EventRoomMessage}, skipped,
		WithCondition(`room.name == "dev"`)))

	_, err := r.Dispatch(context.Background(), "ops", post(roomMessage))
	require.NoError(t, err)
	resp, err := r.Dispatch(context.Background(), "dev", post(roomMessage))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, 1, matching.calls)
	assert.Zero(t, skipped.calls)
}

func TestDispatch_HandlerErrorIsServerError(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "hook", Event: core.EventRoomMessage},
		HandlerFunc(func(context.Context, *Request) (Response, error) {
			return Response{}, errors.New("boom")
		})))

	_, err := r.Dispatch(context.Background(), "hook", post(roomMessage))
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
}

func TestEchoHandler(t *testing.T) {
	r, _ := newTestRegistry(t)
	handler, err := BuildHandler(HandlerEcho, map[string]any{"color": "green", "prefix": "> "}, nil)
	require.NoError(t, err)
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "echo", Event: core.EventRoomMessage, Pattern: "^/echo"}, handler))

	resp, err := r.Dispatch(context.Background(), "echo", post(roomMessage))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, Reply{Message: "> hello there", MessageFormat: "text", Color: "green"}, resp.Body)
}

type recordingSender struct {
	oauthID string
	roomID  int64
	n       hipchat.Notification
}

func (s *recordingSender) Send(_ context.Context, oauthID string, roomID int64, n hipchat.Notification) error {
	s.oauthID, s.roomID, s.n = oauthID, roomID, n
	return nil
}

func TestNotifyHandler(t *testing.T) {
	r, _ := newTestRegistry(t)
	sender := &recordingSender{}
	handler, err := BuildHandler(HandlerNotify, map[string]any{"message": "{sender} in {room}: {message}"}, sender)
	require.NoError(t, err)
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "fwd", Event: core.EventRoomMessage}, handler))

	resp, err := r.Dispatch(context.Background(), "fwd", post(roomMessage))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	assert.Equal(t, "abc", sender.oauthID)
	assert.EqualValues(t, 42, sender.roomID)
	assert.Equal(t, "Ada in ops: /echo hello there", sender.n.Message)
	assert.Equal(t, "html", sender.n.MessageFormat)
}

func TestBuildHandler_RejectsUnknown(t *testing.T) {
	_, err := BuildHandler("shout", nil, nil)
	assert.Error(t, err)

	_, err = BuildHandler(HandlerEcho, map[string]any{"colour": "red"}, nil)
	assert.Error(t, err, "unknown settings are rejected")

	_, err = BuildHandler(HandlerNotify, nil, nil)
	assert.Error(t, err)
}

func TestUser_AcceptsPlainStringSender(t *testing.T) {
	r, _ := newTestRegistry(t)
	h := &countingHandler{}
	require.NoError(t, r.RegisterWebhook(core.Webhook{Name: "notif", Event: core.EventRoomNotification}, h))

	_, err := r.Dispatch(context.Background(), "notif", post(`{
		"event": "room_notification",
		"item": {"message": {"message": "build green", "from": "CI"}, "room": {"id": 1}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "CI", h.last.Delivery.From().Name)
}
