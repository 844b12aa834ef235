package platform

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/mockforge/mockforge/internal/config"
)

func TestDescriptorFor_KnownPlatforms(t *testing.T) {
	for _, p := range config.AllPlatforms() {
		d, err := DescriptorFor(string(p))
		if err != nil {
			t.Fatalf("DescriptorFor(%s): %v", p, err)
		}
		if d.AuthURL == "" || d.TokenURL == "" {
			t.Fatalf("%s: descriptor missing endpoints", p)
		}
	}
}

func TestDescriptorFor_CaseInsensitive(t *testing.T) {
	d, err := DescriptorFor("DROPBOX")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != config.PlatformDropbox {
		t.Fatalf("got %s", d.Name)
	}
}

func TestDescriptorFor_Unknown(t *testing.T) {
	if _, err := DescriptorFor("geocities"); !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestBuildAuthURL(t *testing.T) {
	d, err := DescriptorFor("gdrive")
	if err != nil {
		t.Fatal(err)
	}
	creds := config.PlatformCredentials{
		ClientID:    "client-123",
		RedirectURI: "https://app.example.com/oauth/callback",
	}

	raw := d.BuildAuthURL(creds, "state-abc", nil)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("auth url does not parse: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-123" {
		t.Fatalf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("state") != "state-abc" {
		t.Fatalf("state = %q", q.Get("state"))
	}
	if q.Get("response_type") != "code" {
		t.Fatalf("response_type = %q", q.Get("response_type"))
	}
	// Google refresh tokens require the offline params.
	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Fatalf("missing offline params: %s", raw)
	}
	if !strings.Contains(q.Get("scope"), "drive.file") {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
}

func TestBuildAuthURL_ShopTemplate(t *testing.T) {
	d, err := DescriptorFor("shopify")
	if err != nil {
		t.Fatal(err)
	}
	creds := config.PlatformCredentials{ClientID: "id", RedirectURI: "https://x/cb"}

	raw := d.BuildAuthURL(creds, "s", map[string]string{"shop": "acme-store"})
	if !strings.HasPrefix(raw, "https://acme-store.myshopify.com/admin/oauth/authorize?") {
		t.Fatalf("shop template not expanded: %s", raw)
	}

	tok := d.ResolveTokenURL(map[string]string{"shop": "acme-store"})
	if tok != "https://acme-store.myshopify.com/admin/oauth/access_token" {
		t.Fatalf("token url = %s", tok)
	}
}

func TestHasRevocation(t *testing.T) {
	cases := map[string]bool{
		"dropbox": true,
		"gdrive":  true,
		"canva":   true,
		"shopify": false,
		"etsy":    false,
		"figma":   false,
	}
	for name, want := range cases {
		d, err := DescriptorFor(name)
		if err != nil {
			t.Fatal(err)
		}
		if d.HasRevocation() != want {
			t.Fatalf("%s: HasRevocation = %v, want %v", name, d.HasRevocation(), want)
		}
	}
}
