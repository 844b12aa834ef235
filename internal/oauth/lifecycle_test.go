package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mockforge/mockforge/internal/config"
	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/platform"
	"github.com/mockforge/mockforge/internal/security/secretbox"
	"github.com/mockforge/mockforge/internal/store/memory"
)

func TestMain(m *testing.M) {
	secretbox.UnsafeResetForTests()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	if err := secretbox.UnsafeSetMasterKeyForTests(key); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testCreds() config.PlatformCredentials {
	return config.PlatformCredentials{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURI:  "https://app.test/oauth/callback",
	}
}

func formDescriptor(tokenURL string) platform.Descriptor {
	return platform.Descriptor{
		Name:      config.PlatformEtsy,
		TokenURL:  tokenURL,
		AuthStyle: platform.AuthStyleForm,
	}
}

func tokenEndpoint(t *testing.T, handler func(t *testing.T, r *http.Request) (int, any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, body := handler(t, r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestExchangeCode_FormStyle(t *testing.T) {
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		b, _ := io.ReadAll(r.Body)
		vals, err := url.ParseQuery(string(b))
		if err != nil {
			t.Fatalf("body is not form-encoded: %v", err)
		}
		if vals.Get("grant_type") != "authorization_code" {
			t.Fatalf("grant_type = %q", vals.Get("grant_type"))
		}
		if vals.Get("code") != "the-code" {
			t.Fatalf("code = %q", vals.Get("code"))
		}
		if vals.Get("client_id") != "cid" || vals.Get("client_secret") != "csecret" {
			t.Fatal("form style must carry credentials in the body")
		}
		return 200, map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    3600,
		}
	})
	defer srv.Close()

	l := NewLifecycle(memory.NewConnectionRepo(), srv.Client())
	set, err := l.ExchangeCode(context.Background(), formDescriptor(srv.URL), testCreds(), "the-code", nil)
	if err != nil {
		t.Fatal(err)
	}
	if set.AccessToken != "at-1" || set.RefreshToken != "rt-1" {
		t.Fatalf("token set: %+v", set)
	}
	if set.ExpiresAt == nil || time.Until(*set.ExpiresAt) < 59*time.Minute {
		t.Fatalf("expiry not derived from expires_in: %v", set.ExpiresAt)
	}
}

func TestExchangeCode_JSONStyle(t *testing.T) {
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("body is not json: %v", err)
		}
		if body["client_id"] != "cid" || body["client_secret"] != "csecret" || body["code"] != "c" {
			t.Fatalf("json body: %+v", body)
		}
		// Tokens sin expiración: sin expires_in.
		return 200, map[string]any{"access_token": "shpat_x"}
	})
	defer srv.Close()

	d := platform.Descriptor{Name: config.PlatformShopify, TokenURL: srv.URL, AuthStyle: platform.AuthStyleJSON}
	l := NewLifecycle(memory.NewConnectionRepo(), srv.Client())
	set, err := l.ExchangeCode(context.Background(), d, testCreds(), "c", nil)
	if err != nil {
		t.Fatal(err)
	}
	if set.AccessToken != "shpat_x" || set.ExpiresAt != nil {
		t.Fatalf("token set: %+v", set)
	}
}

func TestExchangeCode_BasicStyle(t *testing.T) {
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "csecret" {
			t.Fatal("missing basic auth credentials")
		}
		b, _ := io.ReadAll(r.Body)
		vals, _ := url.ParseQuery(string(b))
		if vals.Get("client_secret") != "" {
			t.Fatal("basic style must not leak the secret in the body")
		}
		return 200, map[string]any{"access_token": "at", "expires_in": 600}
	})
	defer srv.Close()

	d := platform.Descriptor{Name: config.PlatformFigma, TokenURL: srv.URL, AuthStyle: platform.AuthStyleBasic}
	l := NewLifecycle(memory.NewConnectionRepo(), srv.Client())
	if _, err := l.ExchangeCode(context.Background(), d, testCreds(), "c", nil); err != nil {
		t.Fatal(err)
	}
}

func TestExchangeCode_NotConfigured(t *testing.T) {
	l := NewLifecycle(memory.NewConnectionRepo(), http.DefaultClient)
	_, err := l.ExchangeCode(context.Background(), formDescriptor("http://unused"), config.PlatformCredentials{}, "c", nil)
	if !errors.Is(err, ErrCredentialsNotConfigured) {
		t.Fatalf("want ErrCredentialsNotConfigured, got %v", err)
	}
}

func TestExchangeCode_UpstreamError(t *testing.T) {
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		return 400, map[string]any{"error": "invalid_request", "error_description": "bad code"}
	})
	defer srv.Close()

	l := NewLifecycle(memory.NewConnectionRepo(), srv.Client())
	_, err := l.ExchangeCode(context.Background(), formDescriptor(srv.URL), testCreds(), "bad", nil)
	if !errors.Is(err, ErrTokenExchangeFailed) {
		t.Fatalf("want ErrTokenExchangeFailed, got %v", err)
	}
}

func TestExchangeCode_MissingAccessToken(t *testing.T) {
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		return 200, map[string]any{"token_type": "bearer"}
	})
	defer srv.Close()

	l := NewLifecycle(memory.NewConnectionRepo(), srv.Client())
	_, err := l.ExchangeCode(context.Background(), formDescriptor(srv.URL), testCreds(), "c", nil)
	if !errors.Is(err, ErrNoAccessToken) {
		t.Fatalf("want ErrNoAccessToken, got %v", err)
	}
}

func seedConnection(t *testing.T, conns *memory.ConnectionRepo, access, refresh string, expiresAt *time.Time) {
	t.Helper()
	accessEnc, err := secretbox.Encrypt(access)
	if err != nil {
		t.Fatal(err)
	}
	refreshEnc := ""
	if refresh != "" {
		if refreshEnc, err = secretbox.Encrypt(refresh); err != nil {
			t.Fatal(err)
		}
	}
	err = conns.Upsert(context.Background(), repository.UpsertConnectionInput{
		UserID:                "u1",
		IntegrationID:         "gdrive",
		AccessTokenEncrypted:  accessEnc,
		RefreshTokenEncrypted: refreshEnc,
		TokenExpiresAt:        expiresAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAccessToken_FreshTokenNoRefresh(t *testing.T) {
	hits := 0
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		hits++
		return 500, map[string]any{}
	})
	defer srv.Close()

	conns := memory.NewConnectionRepo()
	future := time.Now().Add(time.Hour)
	seedConnection(t, conns, "fresh-token", "rt", &future)

	l := NewLifecycle(conns, srv.Client())
	conn, _ := conns.Get(context.Background(), "u1", "gdrive")
	got, err := l.AccessToken(context.Background(), formDescriptor(srv.URL), testCreds(), conn)
	if err != nil {
		t.Fatal(err)
	}
	if got != "fresh-token" {
		t.Fatalf("token = %q", got)
	}
	if hits != 0 {
		t.Fatalf("fresh token must not hit the token endpoint, hits = %d", hits)
	}
}

func TestAccessToken_RefreshOnExpiry(t *testing.T) {
	hits := 0
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		hits++
		b, _ := io.ReadAll(r.Body)
		vals, _ := url.ParseQuery(string(b))
		if vals.Get("grant_type") != "refresh_token" {
			t.Fatalf("grant_type = %q", vals.Get("grant_type"))
		}
		if vals.Get("refresh_token") != "old-refresh" {
			t.Fatalf("refresh_token = %q", vals.Get("refresh_token"))
		}
		// Sin refresh token nuevo: el vigente se conserva.
		return 200, map[string]any{"access_token": "new-access", "expires_in": 3600}
	})
	defer srv.Close()

	conns := memory.NewConnectionRepo()
	past := time.Now().Add(-time.Minute)
	seedConnection(t, conns, "old-access", "old-refresh", &past)

	l := NewLifecycle(conns, srv.Client())
	conn, _ := conns.Get(context.Background(), "u1", "gdrive")
	got, err := l.AccessToken(context.Background(), formDescriptor(srv.URL), testCreds(), conn)
	if err != nil {
		t.Fatal(err)
	}
	if got != "new-access" {
		t.Fatalf("token = %q", got)
	}
	if hits != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}

	// El set nuevo quedó persistido cifrado, con el refresh token anterior.
	stored, err := conns.Get(context.Background(), "u1", "gdrive")
	if err != nil {
		t.Fatal(err)
	}
	access, err := secretbox.Decrypt(stored.AccessTokenEncrypted)
	if err != nil || access != "new-access" {
		t.Fatalf("persisted access = %q, err = %v", access, err)
	}
	refresh, err := secretbox.Decrypt(stored.RefreshTokenEncrypted)
	if err != nil || refresh != "old-refresh" {
		t.Fatalf("persisted refresh = %q, err = %v", refresh, err)
	}
	if stored.TokenExpiresAt == nil || !stored.TokenExpiresAt.After(time.Now()) {
		t.Fatalf("persisted expiry: %v", stored.TokenExpiresAt)
	}
}

func TestAccessToken_ConcurrentRefreshSingleExchange(t *testing.T) {
	var hits atomic.Int32
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		hits.Add(1)
		// Ventana amplia para que las dos llamadas se solapen.
		time.Sleep(50 * time.Millisecond)
		return 200, map[string]any{"access_token": "new-access", "expires_in": 3600}
	})
	defer srv.Close()

	conns := memory.NewConnectionRepo()
	past := time.Now().Add(-time.Minute)
	seedConnection(t, conns, "old-access", "old-refresh", &past)

	l := NewLifecycle(conns, srv.Client())
	conn, _ := conns.Get(context.Background(), "u1", "gdrive")

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = l.AccessToken(context.Background(), formDescriptor(srv.URL), testCreds(), conn)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != "new-access" {
			t.Fatalf("caller %d token = %q", i, results[i])
		}
	}
	// Un solo intercambio upstream para las dos llamadas simultáneas.
	if got := hits.Load(); got != 1 {
		t.Fatalf("token endpoint hits = %d, want 1", got)
	}

	stored, err := conns.Get(context.Background(), "u1", "gdrive")
	if err != nil {
		t.Fatal(err)
	}
	if stored.AccessTokenEncrypted == "" {
		t.Fatal("access token vacío tras el refresh")
	}
	if access, err := secretbox.Decrypt(stored.AccessTokenEncrypted); err != nil || access != "new-access" {
		t.Fatalf("persisted access = %q, err = %v", access, err)
	}

	// Una llamada posterior encuentra el token fresco y no vuelve al upstream.
	later, _ := conns.Get(context.Background(), "u1", "gdrive")
	got, err := l.AccessToken(context.Background(), formDescriptor(srv.URL), testCreds(), later)
	if err != nil || got != "new-access" {
		t.Fatalf("token = %q, err = %v", got, err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("token endpoint hits = %d tras refresh, want 1", got)
	}
}

func TestAccessToken_NoRefreshTokenRequiresReauth(t *testing.T) {
	conns := memory.NewConnectionRepo()
	past := time.Now().Add(-time.Minute)
	seedConnection(t, conns, "old-access", "", &past)

	l := NewLifecycle(conns, http.DefaultClient)
	conn, _ := conns.Get(context.Background(), "u1", "gdrive")
	_, err := l.AccessToken(context.Background(), formDescriptor("http://unused"), testCreds(), conn)
	if !errors.Is(err, ErrReauthorizationRequired) {
		t.Fatalf("want ErrReauthorizationRequired, got %v", err)
	}
}

func TestAccessToken_InvalidGrantRequiresReauth(t *testing.T) {
	srv := tokenEndpoint(t, func(t *testing.T, r *http.Request) (int, any) {
		return 400, map[string]any{"error": "invalid_grant", "error_description": "revoked"}
	})
	defer srv.Close()

	conns := memory.NewConnectionRepo()
	past := time.Now().Add(-time.Minute)
	seedConnection(t, conns, "old-access", "revoked-refresh", &past)

	l := NewLifecycle(conns, srv.Client())
	conn, _ := conns.Get(context.Background(), "u1", "gdrive")
	_, err := l.AccessToken(context.Background(), formDescriptor(srv.URL), testCreds(), conn)
	if !errors.Is(err, ErrReauthorizationRequired) {
		t.Fatalf("want ErrReauthorizationRequired, got %v", err)
	}
}

func TestRevoke_NoEndpointIsNoop(t *testing.T) {
	l := NewLifecycle(memory.NewConnectionRepo(), http.DefaultClient)
	d := platform.Descriptor{Name: config.PlatformShopify, AuthStyle: platform.AuthStyleJSON}
	if err := l.Revoke(context.Background(), d, testCreds(), "tok"); err != nil {
		t.Fatalf("platform without revoke endpoint must be a noop, got %v", err)
	}
}

func TestRevoke_PostsToken(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		vals, _ := url.ParseQuery(string(b))
		gotToken = vals.Get("token")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	l := NewLifecycle(memory.NewConnectionRepo(), srv.Client())
	d := platform.Descriptor{Name: config.PlatformCanva, RevokeURL: srv.URL, AuthStyle: platform.AuthStyleBasic}
	if err := l.Revoke(context.Background(), d, testCreds(), "the-token"); err != nil {
		t.Fatal(err)
	}
	if gotToken != "the-token" {
		t.Fatalf("token = %q", gotToken)
	}
}
