// Package all registers every supported platform handler in a registry.
// It lives outside the platform package to avoid import cycles with the
// per-platform subpackages.
package all

import (
	"github.com/mockforge/mockforge/internal/platform"
	"github.com/mockforge/mockforge/internal/platform/canva"
	"github.com/mockforge/mockforge/internal/platform/dropbox"
	"github.com/mockforge/mockforge/internal/platform/etsy"
	"github.com/mockforge/mockforge/internal/platform/figma"
	"github.com/mockforge/mockforge/internal/platform/gdrive"
	"github.com/mockforge/mockforge/internal/platform/shopify"
)

// NewRegistry builds a registry with all six platforms registered.
func NewRegistry(cfg platform.HandlerConfig) *platform.Registry {
	r := platform.NewRegistry(cfg)
	r.RegisterFactory("shopify", shopify.Factory)
	r.RegisterFactory("etsy", etsy.Factory)
	r.RegisterFactory("dropbox", dropbox.Factory)
	r.RegisterFactory("gdrive", gdrive.Factory)
	r.RegisterFactory("figma", figma.Factory)
	r.RegisterFactory("canva", canva.Factory)
	return r
}
