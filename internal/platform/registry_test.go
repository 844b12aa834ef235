package platform

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type fakeHandler struct {
	name string
	ops  []string
}

func (f *fakeHandler) Name() string         { return f.name }
func (f *fakeHandler) Operations() []string { return f.ops }
func (f *fakeHandler) Handle(ctx context.Context, req Request) (*Result, error) {
	return Ok(req.Operation), nil
}

func testConfig() HandlerConfig {
	return HandlerConfig{HTTPClient: &http.Client{Timeout: time.Second}}
}

func TestRegistry_GetCaseInsensitive(t *testing.T) {
	r := NewRegistry(testConfig())
	r.RegisterFactory("Shopify", func(cfg HandlerConfig) (Handler, error) {
		return &fakeHandler{name: "shopify", ops: []string{"list_products"}}, nil
	})

	for _, name := range []string{"shopify", "SHOPIFY", "Shopify", "  shopify  "} {
		h, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if h.Name() != "shopify" {
			t.Fatalf("Get(%q): got handler %q", name, h.Name())
		}
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry(testConfig())
	if _, err := r.Get("myspace"); !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestRegistry_CachesInstance(t *testing.T) {
	calls := 0
	r := NewRegistry(testConfig())
	r.RegisterFactory("etsy", func(cfg HandlerConfig) (Handler, error) {
		calls++
		return &fakeHandler{name: "etsy"}, nil
	})

	a, err := r.Get("etsy")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Get("ETSY")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("expected cached instance on second Get")
	}
	if calls != 1 {
		t.Fatalf("factory called %d times, want 1", calls)
	}
}

func TestRegistry_FactoryErrorNotCached(t *testing.T) {
	boom := errors.New("no client")
	fail := true
	r := NewRegistry(testConfig())
	r.RegisterFactory("figma", func(cfg HandlerConfig) (Handler, error) {
		if fail {
			return nil, boom
		}
		return &fakeHandler{name: "figma"}, nil
	})

	if _, err := r.Get("figma"); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
	fail = false
	if _, err := r.Get("figma"); err != nil {
		t.Fatalf("expected recovery after factory fixed, got %v", err)
	}
}

func TestSupportsOperation(t *testing.T) {
	h := &fakeHandler{name: "canva", ops: []string{"list_designs", "export_design"}}
	if !SupportsOperation(h, "export_design") {
		t.Fatal("expected export_design supported")
	}
	if SupportsOperation(h, "delete_everything") {
		t.Fatal("unexpected operation reported as supported")
	}
}
