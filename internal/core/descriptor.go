package core

// Descriptor is the add-on's capabilities document served at /capabilities.
type Descriptor struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Key          string       `json:"key"`
	Vendor       *Vendor      `json:"vendor,omitempty"`
	Links        Links        `json:"links"`
	Capabilities Capabilities `json:"capabilities"`
}

type Vendor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type Links struct {
	Homepage string `json:"homepage"`
	Self     string `json:"self"`
}

type Capabilities struct {
	HipchatAPIConsumer APIConsumer          `json:"hipchatApiConsumer"`
	Installable        Installable          `json:"installable"`
	Webhook            []WebhookDescriptor  `json:"webhook,omitempty"`
	Glance             []GlanceDescriptor   `json:"glance,omitempty"`
	WebPanel           []WebPanelDescriptor `json:"webPanel,omitempty"`
}

type APIConsumer struct {
	Scopes   []string `json:"scopes"`
	FromName string   `json:"fromName,omitempty"`
	Avatar   *Icon    `json:"avatar,omitempty"`
}

type Installable struct {
	AllowGlobal    bool   `json:"allowGlobal"`
	AllowRoom      bool   `json:"allowRoom"`
	CallbackURL    string `json:"callbackUrl"`
	UninstalledURL string `json:"uninstalledUrl"`
}

type Icon struct {
	URL   string `json:"url"`
	URL2x string `json:"url@2x,omitempty"`
}

type I18n struct {
	Value string `json:"value"`
}

type WebhookDescriptor struct {
	Name           string         `json:"name"`
	URL            string         `json:"url"`
	Event          Event          `json:"event"`
	Pattern        string         `json:"pattern,omitempty"`
	Authentication Authentication `json:"authentication"`
}

type GlanceDescriptor struct {
	Key      string `json:"key"`
	Name     I18n   `json:"name"`
	QueryURL string `json:"queryUrl"`
	Target   string `json:"target,omitempty"`
	Icon     *Icon  `json:"icon,omitempty"`
}

type WebPanelDescriptor struct {
	Key      string `json:"key"`
	Name     I18n   `json:"name"`
	URL      string `json:"url"`
	Location string `json:"location"`
}
