package lifecycle

import (
	"slices"
	"strings"

	"github.com/bollustrado/mortimmy/internal/config"
	"github.com/bollustrado/mortimmy/internal/core"
)

const (
	CapabilitiesPath = "/capabilities"
	InstallerPath    = "/installer"
	UninstallerPath  = "/uninstaller"
)

// ModuleDescriber adds the module sections to a descriptor.
type ModuleDescriber interface {
	Describe(baseURL string, caps *core.Capabilities)
}

// BaseDescriptor builds the static part of the descriptor from cfg.
func BaseDescriptor(cfg *config.Config) core.Descriptor {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	d := core.Descriptor{
		Name:        cfg.Name,
		Description: cfg.Description,
		Key:         cfg.Key,
		Links: core.Links{
			Homepage: firstNonEmpty(cfg.Homepage, base),
			Self:     base + CapabilitiesPath,
		},
		Capabilities: core.Capabilities{
			HipchatAPIConsumer: core.APIConsumer{
				Scopes:   slices.Clone(cfg.Scopes),
				FromName: cfg.FromName,
			},
			Installable: core.Installable{
				AllowGlobal:    cfg.Installable.Global(),
				AllowRoom:      cfg.Installable.Room(),
				CallbackURL:    base + InstallerPath,
				UninstalledURL: base + UninstallerPath,
			},
		},
	}
	if cfg.Vendor != nil {
		d.Vendor = &core.Vendor{Name: cfg.Vendor.Name, URL: cfg.Vendor.URL}
	}
	if cfg.Avatar != nil && cfg.Avatar.URL != "" {
		d.Capabilities.HipchatAPIConsumer.Avatar = &core.Icon{
			URL:   cfg.Avatar.URL,
			URL2x: firstNonEmpty(cfg.Avatar.URL2x, cfg.Avatar.URL),
		}
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
