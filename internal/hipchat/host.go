package hipchat

import (
	"context"
	"fmt"
	"strings"

	"github.com/bollustrado/mortimmy/internal/metrics"
)

// HostCapabilities is the part of the host's capabilities document the add-on needs.
type HostCapabilities struct {
	Name         string `json:"name"`
	Capabilities struct {
		OAuth2Provider struct {
			AuthorizationURL string `json:"authorizationUrl"`
			TokenURL         string `json:"tokenUrl"`
		} `json:"oauth2Provider"`
		HipchatAPIProvider struct {
			URL string `json:"url"`
		} `json:"hipchatApiProvider"`
	} `json:"capabilities"`
}

func (h *HostCapabilities) TokenURL() string {
	return h.Capabilities.OAuth2Provider.TokenURL
}

// APIURL is the base url of the host's REST API, always ending with a slash.
func (h *HostCapabilities) APIURL() string {
	u := h.Capabilities.HipchatAPIProvider.URL
	if u != "" && !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// Installable is the host's description of one installation, served at installableUrl.
type Installable struct {
	OAuthID         string `json:"oauthId"`
	CapabilitiesURL string `json:"capabilitiesUrl"`
	RoomID          int64  `json:"roomId,omitempty"`
	GroupID         int64  `json:"groupId,omitempty"`
}

// FetchHostCapabilities downloads and validates the capabilities document at url.
// Successful results are cached per url.
func (c *Client) FetchHostCapabilities(ctx context.Context, url string) (*HostCapabilities, error) {
	if cached, ok := c.capabilities.Get(url); ok {
		metrics.IncHostCapabilitiesCache(true)
		return cached.(*HostCapabilities), nil
	}
	metrics.IncHostCapabilitiesCache(false)

	var doc HostCapabilities
	if err := c.getJSON(ctx, "fetching host capabilities", url, &doc); err != nil {
		return nil, err
	}
	if doc.TokenURL() == "" || doc.APIURL() == "" {
		return nil, fmt.Errorf("%s: %w", url, ErrMissingHostURLs)
	}

	c.capabilities.SetDefault(url, &doc)
	return &doc, nil
}

// FetchInstallable resolves an installableUrl, as sent by the host on uninstall.
func (c *Client) FetchInstallable(ctx context.Context, url string) (*Installable, error) {
	var doc Installable
	if err := c.getJSON(ctx, "fetching installable", url, &doc); err != nil {
		return nil, err
	}
	if doc.OAuthID == "" {
		return nil, fmt.Errorf("installable document at %s has no oauthId", url)
	}
	return &doc, nil
}
