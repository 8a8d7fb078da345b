package modules

import (
	"bytes"
	"encoding/json"

	"github.com/bollustrado/mortimmy/internal/core"
)

// Delivery is the JSON body the host posts to a webhook.
type Delivery struct {
	Event         core.Event `json:"event"`
	OAuthClientID string     `json:"oauth_client_id"`
	WebhookID     int64      `json:"webhook_id"`
	Item          Item       `json:"item"`
}

type Item struct {
	Message *Message `json:"message,omitempty"`
	Room    Room     `json:"room"`
	// Sender is set for room_enter and room_exit.
	Sender *User `json:"sender,omitempty"`
}

type Message struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Message string `json:"message"`
	Type    string `json:"type"`
	From    *User  `json:"from,omitempty"`
}

type Room struct {
	ID   int64  `json:"id" expr:"id"`
	Name string `json:"name" expr:"name"`
}

type User struct {
	ID          int64  `json:"id" expr:"id"`
	Name        string `json:"name" expr:"name"`
	MentionName string `json:"mention_name" expr:"mention_name"`
}

// UnmarshalJSON accepts the plain string the host sends as "from" of room notifications.
func (u *User) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &u.Name)
	}
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = User(p)
	return nil
}

// Text is the message text, empty for events without a message.
func (d Delivery) Text() string {
	if d.Item.Message == nil {
		return ""
	}
	return d.Item.Message.Message
}

// From is the user who caused the event, if the host told us.
func (d Delivery) From() User {
	switch {
	case d.Item.Message != nil && d.Item.Message.From != nil:
		return *d.Item.Message.From
	case d.Item.Sender != nil:
		return *d.Item.Sender
	default:
		return User{}
	}
}
