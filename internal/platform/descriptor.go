package platform

import (
	"net/url"
	"strings"

	"github.com/mockforge/mockforge/internal/config"
)

// TokenAuthStyle indicates how a platform's token endpoint wants the
// client credentials and grant parameters.
type TokenAuthStyle string

const (
	// AuthStyleForm sends everything form-encoded in the body.
	AuthStyleForm TokenAuthStyle = "form"
	// AuthStyleJSON sends a JSON body (Shopify does this).
	AuthStyleJSON TokenAuthStyle = "json"
	// AuthStyleBasic sends client id/secret as HTTP Basic, grant params as form.
	AuthStyleBasic TokenAuthStyle = "basic"
)

// Descriptor parameterizes the generic token lifecycle for one platform:
// endpoints, scopes and the token endpoint's auth style. One descriptor
// replaces the per-platform copy-pasted exchange/refresh/revoke code.
type Descriptor struct {
	Name      config.Platform
	AuthURL   string
	TokenURL  string
	RevokeURL string // empty when the platform has no revocation endpoint
	Scopes    []string
	AuthStyle TokenAuthStyle

	// ExtraAuthParams are appended to every authorization URL
	// (e.g. access_type=offline for Google refresh tokens).
	ExtraAuthParams map[string]string
}

// HasRevocation reports whether the platform exposes a revoke endpoint.
func (d Descriptor) HasRevocation() bool { return d.RevokeURL != "" }

// descriptors is the closed table of supported platforms.
var descriptors = map[config.Platform]Descriptor{
	config.PlatformShopify: {
		Name:      config.PlatformShopify,
		AuthURL:   "https://{shop}.myshopify.com/admin/oauth/authorize",
		TokenURL:  "https://{shop}.myshopify.com/admin/oauth/access_token",
		Scopes:    []string{"read_products", "write_products"},
		AuthStyle: AuthStyleJSON,
	},
	config.PlatformEtsy: {
		Name:      config.PlatformEtsy,
		AuthURL:   "https://www.etsy.com/oauth/connect",
		TokenURL:  "https://api.etsy.com/v3/public/oauth/token",
		Scopes:    []string{"listings_r", "listings_w"},
		AuthStyle: AuthStyleForm,
	},
	config.PlatformDropbox: {
		Name:      config.PlatformDropbox,
		AuthURL:   "https://www.dropbox.com/oauth2/authorize",
		TokenURL:  "https://api.dropboxapi.com/oauth2/token",
		RevokeURL: "https://api.dropboxapi.com/2/auth/token/revoke",
		Scopes:    []string{"files.content.write", "files.content.read"},
		AuthStyle: AuthStyleForm,
		ExtraAuthParams: map[string]string{
			"token_access_type": "offline",
		},
	},
	config.PlatformGDrive: {
		Name:      config.PlatformGDrive,
		AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:  "https://oauth2.googleapis.com/token",
		RevokeURL: "https://oauth2.googleapis.com/revoke",
		Scopes:    []string{"https://www.googleapis.com/auth/drive.file"},
		AuthStyle: AuthStyleForm,
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	},
	config.PlatformFigma: {
		Name:      config.PlatformFigma,
		AuthURL:   "https://www.figma.com/oauth",
		TokenURL:  "https://api.figma.com/v1/oauth/token",
		Scopes:    []string{"files:read"},
		AuthStyle: AuthStyleBasic,
	},
	config.PlatformCanva: {
		Name:      config.PlatformCanva,
		AuthURL:   "https://www.canva.com/api/oauth/authorize",
		TokenURL:  "https://api.canva.com/rest/v1/oauth/token",
		RevokeURL: "https://api.canva.com/rest/v1/oauth/revoke",
		Scopes:    []string{"design:content:read", "asset:read"},
		AuthStyle: AuthStyleBasic,
	},
}

// DescriptorFor resolves the descriptor for a platform name
// (case-insensitive). Returns ErrUnknownPlatform for anything outside
// the closed enum.
func DescriptorFor(name string) (Descriptor, error) {
	p, ok := config.ParsePlatform(name)
	if !ok {
		return Descriptor{}, ErrUnknownPlatform
	}
	d, ok := descriptors[p]
	if !ok {
		return Descriptor{}, ErrUnknownPlatform
	}
	return d, nil
}

// BuildAuthURL assembles the authorization URL for the descriptor.
// settings supplies per-connection values for URL templates ({shop}).
func (d Descriptor) BuildAuthURL(creds config.PlatformCredentials, state string, settings map[string]string) string {
	base := expandTemplate(d.AuthURL, settings)

	q := url.Values{}
	q.Set("client_id", creds.ClientID)
	q.Set("redirect_uri", creds.RedirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	if len(d.Scopes) > 0 {
		q.Set("scope", strings.Join(d.Scopes, " "))
	}
	for k, v := range d.ExtraAuthParams {
		q.Set(k, v)
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// ResolveTokenURL expands URL templates in the token endpoint.
func (d Descriptor) ResolveTokenURL(settings map[string]string) string {
	return expandTemplate(d.TokenURL, settings)
}

// expandTemplate replaces {shop} style placeholders from settings.
func expandTemplate(u string, settings map[string]string) string {
	if !strings.Contains(u, "{") {
		return u
	}
	for k, v := range settings {
		u = strings.ReplaceAll(u, "{"+k+"}", v)
	}
	return u
}
