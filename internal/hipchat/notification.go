package hipchat

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const (
	FormatHTML = "html"
	FormatText = "text"

	DefaultColor = "gray"
)

// Notification is the body of a room notification.
type Notification struct {
	Message       string `json:"message"`
	Notify        bool   `json:"notify"`
	Color         string `json:"color"`
	MessageFormat string `json:"message_format"`
}

// NewNotification builds the default notification: gray, silent, html or text.
func NewNotification(message string, isHTML bool) Notification {
	format := FormatText
	if isHTML {
		format = FormatHTML
	}
	return Notification{
		Message:       message,
		Notify:        false,
		Color:         DefaultColor,
		MessageFormat: format,
	}
}

// NotificationURL returns <apiURL>room/<roomID>/notification.
func NotificationURL(apiURL string, roomID int64) (string, error) {
	u, err := url.JoinPath(apiURL, "room", strconv.FormatInt(roomID, 10), "notification")
	if err != nil {
		return "", fmt.Errorf("building notification url from '%s': %w", apiURL, err)
	}
	return u, nil
}

// SendRoomNotification posts n to a room using the bearer accessToken.
func (c *Client) SendRoomNotification(ctx context.Context, apiURL, accessToken string, roomID int64, n Notification) error {
	target, err := NotificationURL(apiURL, roomID)
	if err != nil {
		return err
	}
	if n.Color == "" {
		n.Color = DefaultColor
	}
	if n.MessageFormat == "" {
		n.MessageFormat = FormatHTML
	}
	return c.postJSON(ctx, "sending room notification", target, accessToken, n)
}
