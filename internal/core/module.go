package core

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Event is a room event the host can deliver to a webhook.
type Event string

const (
	EventRoomArchived     Event = "room_archived"
	EventRoomCreated      Event = "room_created"
	EventRoomDeleted      Event = "room_deleted"
	EventRoomEnter        Event = "room_enter"
	EventRoomExit         Event = "room_exit"
	EventRoomFileUpload   Event = "room_file_upload"
	EventRoomMessage      Event = "room_message"
	EventRoomNotification Event = "room_notification"
	EventRoomTopicChange  Event = "room_topic_change"
	EventRoomUnarchived   Event = "room_unarchived"
)

var knownEvents = []Event{
	EventRoomArchived,
	EventRoomCreated,
	EventRoomDeleted,
	EventRoomEnter,
	EventRoomExit,
	EventRoomFileUpload,
	EventRoomMessage,
	EventRoomNotification,
	EventRoomTopicChange,
	EventRoomUnarchived,
}

// KnownEvents returns the closed event vocabulary.
func KnownEvents() []Event {
	return slices.Clone(knownEvents)
}

func (e Event) IsValid() bool {
	return slices.Contains(knownEvents, e)
}

// SupportsPattern reports whether a message pattern is meaningful for the event.
func (e Event) SupportsPattern() bool {
	return e == EventRoomMessage || e == EventRoomNotification
}

// Authentication is the mode the host uses to authenticate webhook deliveries.
type Authentication string

const (
	AuthNone Authentication = "none"
	// AuthJWT is the host's signed-token mode: deliveries carry a JWT signed with
	// the installation's oauthSecret.
	AuthJWT Authentication = "jwt"
	// AuthSignedToken is the host's own name for AuthJWT.
	AuthSignedToken Authentication = "signed-token"
)

func (a Authentication) IsValid() bool {
	switch a {
	case AuthNone, AuthJWT, AuthSignedToken:
		return true
	default:
		return false
	}
}

// ModuleKind tags the descriptor section a module belongs to.
type ModuleKind string

const (
	KindWebhook  ModuleKind = "webhook"
	KindGlance   ModuleKind = "glance"
	KindWebPanel ModuleKind = "webPanel"
)

// Module is one entry of the capabilities descriptor.
type Module interface {
	Kind() ModuleKind
	// Key is unique among modules of the same kind.
	Key() string
	// Describe appends the module's descriptor fragment to caps.
	Describe(baseURL string, caps *Capabilities)
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Webhook subscribes the add-on to a room event.
type Webhook struct {
	// Name builds the callback path (/<name>).
	Name string `yaml:"name" json:"name"`

	Event Event `yaml:"event" json:"event"`

	// Pattern is a regular expression matched by the host against message text.
	// Only used for room_message and room_notification.
	Pattern string `yaml:"pattern" json:"pattern,omitempty"`

	Authentication Authentication `yaml:"authentication" json:"authentication,omitempty"`
}

var _ Module = Webhook{}

func (w Webhook) Kind() ModuleKind { return KindWebhook }

func (w Webhook) Key() string { return w.Name }

// Path returns the route the host posts deliveries to.
func (w Webhook) Path() string { return "/" + w.Name }

// Validate checks the webhook against the event vocabulary and authentication modes.
func (w Webhook) Validate() error {
	if !namePattern.MatchString(w.Name) {
		return fmt.Errorf("invalid webhook name '%s'", w.Name)
	}
	if !w.Event.IsValid() {
		return fmt.Errorf("webhook '%s': unknown event '%s'", w.Name, w.Event)
	}
	if w.Authentication != "" && !w.Authentication.IsValid() {
		return fmt.Errorf("webhook '%s': unknown authentication '%s'", w.Name, w.Authentication)
	}
	if w.Pattern != "" {
		if _, err := regexp.Compile(w.Pattern); err != nil {
			return fmt.Errorf("webhook '%s': invalid pattern: %w", w.Name, err)
		}
	}
	return nil
}

func (w Webhook) Describe(baseURL string, caps *Capabilities) {
	d := WebhookDescriptor{
		Name:           w.Name,
		URL:            joinURL(baseURL, w.Name),
		Event:          w.Event,
		Authentication: w.Authentication,
	}
	if d.Authentication == "" {
		d.Authentication = AuthNone
	}
	if w.Event.SupportsPattern() {
		d.Pattern = w.Pattern
	}
	caps.Webhook = append(caps.Webhook, d)
}

// Glance is a small status item rendered in the host's sidebar.
type Glance struct {
	ID   string `yaml:"key" json:"key"`
	Name string `yaml:"name" json:"name"`
	// Label is the HTML rendered inside the glance.
	Label   string `yaml:"label" json:"label"`
	Target  string `yaml:"target" json:"target,omitempty"`
	IconURL string `yaml:"icon" json:"icon,omitempty"`
	// IconURL2x is the high resolution icon.
	IconURL2x string `yaml:"icon_2x" json:"icon_2x,omitempty"`
}

var _ Module = Glance{}

func (g Glance) Kind() ModuleKind { return KindGlance }

func (g Glance) Key() string { return g.ID }

func (g Glance) Path() string { return "/glances/" + g.ID }

func (g Glance) Validate() error {
	if !namePattern.MatchString(g.ID) {
		return fmt.Errorf("invalid glance key '%s'", g.ID)
	}
	if g.Name == "" {
		return fmt.Errorf("glance '%s': name is required", g.ID)
	}
	return nil
}

func (g Glance) Describe(baseURL string, caps *Capabilities) {
	d := GlanceDescriptor{
		Key:      g.ID,
		Name:     I18n{Value: g.Name},
		QueryURL: joinURL(baseURL, strings.TrimPrefix(g.Path(), "/")),
		Target:   g.Target,
	}
	if g.IconURL != "" {
		d.Icon = &Icon{URL: g.IconURL, URL2x: firstNonEmpty(g.IconURL2x, g.IconURL)}
	}
	caps.Glance = append(caps.Glance, d)
}

// WebPanel is a sidebar panel served from URL.
type WebPanel struct {
	ID       string `yaml:"key" json:"key"`
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	Location string `yaml:"location" json:"location,omitempty"`
}

var _ Module = WebPanel{}

const DefaultWebPanelLocation = "hipchat.sidebar.right"

func (p WebPanel) Kind() ModuleKind { return KindWebPanel }

func (p WebPanel) Key() string { return p.ID }

func (p WebPanel) Validate() error {
	if !namePattern.MatchString(p.ID) {
		return fmt.Errorf("invalid web panel key '%s'", p.ID)
	}
	if p.Name == "" || p.URL == "" {
		return fmt.Errorf("web panel '%s': name and url are required", p.ID)
	}
	return nil
}

func (p WebPanel) Describe(baseURL string, caps *Capabilities) {
	u := p.URL
	if !strings.Contains(u, "://") {
		u = joinURL(baseURL, strings.TrimPrefix(u, "/"))
	}
	caps.WebPanel = append(caps.WebPanel, WebPanelDescriptor{
		Key:      p.ID,
		Name:     I18n{Value: p.Name},
		URL:      u,
		Location: firstNonEmpty(p.Location, DefaultWebPanelLocation),
	})
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
