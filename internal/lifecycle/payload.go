package lifecycle

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mitchellh/mapstructure"

	"github.com/bollustrado/mortimmy/internal/core"
)

var ErrMissingField = errors.New("missing required field")

// InstallPayload is the body the host posts to the installer callback.
// Unknown keys end up in Extra and are stored as installation metadata.
type InstallPayload struct {
	OAuthID         string `mapstructure:"oauthId"`
	OAuthSecret     string `mapstructure:"oauthSecret"`
	CapabilitiesURL string `mapstructure:"capabilitiesUrl"`
	RoomID          int64  `mapstructure:"roomId"`
	GroupID         int64  `mapstructure:"groupId"`

	Extra map[string]any `mapstructure:",remain"`
}

// DecodeInstallPayload maps the decoded JSON body onto InstallPayload.
func DecodeInstallPayload(body map[string]any) (*InstallPayload, error) {
	var p InstallPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(body); err != nil {
		return nil, core.HTTPErrorf(http.StatusBadRequest, "decoding install payload: %w", err)
	}
	return &p, nil
}

func (p *InstallPayload) Validate() error {
	var missing []string
	if p.OAuthID == "" {
		missing = append(missing, "oauthId")
	}
	if p.OAuthSecret == "" {
		missing = append(missing, "oauthSecret")
	}
	if p.CapabilitiesURL == "" {
		missing = append(missing, "capabilitiesUrl")
	}
	if len(missing) > 0 {
		return core.NewHTTPError(http.StatusBadRequest, fmt.Errorf("%w: %v", ErrMissingField, missing))
	}
	return nil
}

// UninstallRequest carries what the host sends to the uninstaller callback,
// either as query parameters (GET) or as a JSON body (POST).
type UninstallRequest struct {
	OAuthID        string `json:"oauthId"`
	InstallableURL string `json:"installableUrl"`
	RedirectURL    string `json:"redirectUrl"`
}
