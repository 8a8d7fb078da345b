package modules

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
)

// built-in handler kinds
const (
	HandlerNoop   = "noop"
	HandlerEcho   = "echo"
	HandlerNotify = "notify"
)

func HandlerKinds() []string {
	return []string{HandlerNoop, HandlerEcho, HandlerNotify}
}

// MessageSender delivers a notification into a room of an installation.
type MessageSender interface {
	Send(ctx context.Context, oauthID string, roomID int64, n hipchat.Notification) error
}

// EchoSettings configures the echo handler.
type EchoSettings struct {
	Color  string `mapstructure:"color"`
	Format string `mapstructure:"format"`
	// Prefix is put in front of the echoed text.
	Prefix string `mapstructure:"prefix"`
}

// NotifySettings configures the notify handler. Message may contain the
// placeholders {message}, {sender} and {room}.
type NotifySettings struct {
	Message string `mapstructure:"message"`
	Color   string `mapstructure:"color"`
	Format  string `mapstructure:"format"`
	Notify  bool   `mapstructure:"notify"`
}

// Reply is the room message a webhook may answer with.
type Reply struct {
	Message       string `json:"message"`
	MessageFormat string `json:"message_format"`
	Color         string `json:"color"`
	Notify        bool   `json:"notify"`
}

// BuildHandler creates the built-in handler kind configured with settings.
func BuildHandler(kind string, settings map[string]any, sender MessageSender) (Handler, error) {
	switch kind {
	case "", HandlerNoop:
		return NoopHandler(), nil
	case HandlerEcho:
		var s EchoSettings
		if err := decodeSettings(settings, &s); err != nil {
			return nil, fmt.Errorf("echo handler: %w", err)
		}
		return EchoHandler(s), nil
	case HandlerNotify:
		var s NotifySettings
		if err := decodeSettings(settings, &s); err != nil {
			return nil, fmt.Errorf("notify handler: %w", err)
		}
		if sender == nil {
			return nil, errors.New("notify handler: no notifier available")
		}
		return NotifyHandler(s, sender), nil
	default:
		return nil, fmt.Errorf("unknown handler '%s' (known: %s)", kind, strings.Join(HandlerKinds(), ", "))
	}
}

func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(settings)
}

// NoopHandler acknowledges every delivery with 204.
func NoopHandler() Handler {
	return HandlerFunc(func(context.Context, *Request) (Response, error) {
		return Response{Status: http.StatusNoContent}, nil
	})
}

// EchoHandler replies with the text following the command the message starts with.
func EchoHandler(s EchoSettings) Handler {
	color := firstNonEmpty(s.Color, hipchat.DefaultColor)
	format := firstNonEmpty(s.Format, hipchat.FormatText)

	return HandlerFunc(func(_ context.Context, req *Request) (Response, error) {
		text := commandArgument(req.Delivery.Text())
		if text == "" {
			return Response{Status: http.StatusNoContent}, nil
		}
		return Response{
			Status: http.StatusOK,
			Body: Reply{
				Message:       s.Prefix + text,
				MessageFormat: format,
				Color:         color,
			},
		}, nil
	})
}

// NotifyHandler forwards the delivery as a notification into the event's room.
func NotifyHandler(s NotifySettings, sender MessageSender) Handler {
	template := firstNonEmpty(s.Message, "{sender}: {message}")

	return HandlerFunc(func(ctx context.Context, req *Request) (Response, error) {
		if req.Installation == nil {
			return Response{}, core.HTTPErrorf(http.StatusBadRequest,
				"delivery for unknown installation '%s'", req.Delivery.OAuthClientID)
		}

		room := req.Delivery.Item.Room
		message := strings.NewReplacer(
			"{message}", req.Delivery.Text(),
			"{sender}", req.Delivery.From().Name,
			"{room}", firstNonEmpty(room.Name, strconv.FormatInt(room.ID, 10)),
		).Replace(template)

		n := hipchat.NewNotification(message, s.Format != hipchat.FormatText)
		n.Notify = s.Notify
		if s.Color != "" {
			n.Color = s.Color
		}

		if err := sender.Send(ctx, req.Installation.OAuthID, room.ID, n); err != nil {
			return Response{}, fmt.Errorf("forwarding delivery: %w", err)
		}
		return Response{Status: http.StatusNoContent}, nil
	})
}

// commandArgument strips a leading /command from text.
func commandArgument(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	_, rest, _ := strings.Cut(text, " ")
	return strings.TrimSpace(rest)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
