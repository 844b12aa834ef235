package integrations_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mockforge/mockforge/internal/billing"
	"github.com/mockforge/mockforge/internal/config"
	"github.com/mockforge/mockforge/internal/dispatch"
	"github.com/mockforge/mockforge/internal/domain/repository"
	healthctrl "github.com/mockforge/mockforge/internal/http/controllers/health"
	"github.com/mockforge/mockforge/internal/http/controllers/integrations"
	mw "github.com/mockforge/mockforge/internal/http/middlewares"
	"github.com/mockforge/mockforge/internal/http/router"
	svc "github.com/mockforge/mockforge/internal/http/services/integrations"
	"github.com/mockforge/mockforge/internal/oauth"
	"github.com/mockforge/mockforge/internal/platform"
	platformall "github.com/mockforge/mockforge/internal/platform/all"
	"github.com/mockforge/mockforge/internal/security/secretbox"
	"github.com/mockforge/mockforge/internal/store/memory"
)

func TestMain(m *testing.M) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	if err := secretbox.UnsafeSetMasterKeyForTests(key); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var jwtSecret = []byte("test-secret-for-http-layer")

// roundTripFunc permite stubear respuestas upstream sin tocar la red.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type env struct {
	store  *memory.Store
	router http.Handler
}

// newEnv arma el stack completo sobre repositorios en memoria. upstream
// responde todas las llamadas salientes (token endpoints, APIs, revoke).
func newEnv(t *testing.T, upstream roundTripFunc) *env {
	t.Helper()

	store := memory.New()
	seed := []repository.Integration{
		{ID: "gdrive", Name: "Google Drive", Category: "storage", Status: repository.IntegrationActive},
		{ID: "shopify", Name: "Shopify", Category: "ecommerce", Status: repository.IntegrationActive},
		{ID: "etsy", Name: "Etsy", Category: "ecommerce", Status: repository.IntegrationActive},
		{ID: "dropbox", Name: "Dropbox", Category: "storage", Status: repository.IntegrationActive},
		{ID: "figma", Name: "Figma", Category: "design", Status: repository.IntegrationComingSoon},
	}
	for _, it := range seed {
		if err := store.Integrations.Upsert(context.Background(), it); err != nil {
			t.Fatalf("seed %s: %v", it.ID, err)
		}
	}

	if upstream == nil {
		upstream = func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"access_token":"at-new","refresh_token":"rt-new","expires_in":3600}`), nil
		}
	}
	httpClient := &http.Client{Transport: upstream}

	creds := map[config.Platform]config.PlatformCredentials{}
	for _, p := range config.AllPlatforms() {
		creds[p] = config.PlatformCredentials{
			ClientID:     "cid-" + string(p),
			ClientSecret: "secret-" + string(p),
			RedirectURI:  "https://api.example.com/api/v1/oauth/callback",
		}
	}

	states := oauth.NewStateStore(store.States, 10*time.Minute)
	lifecycle := oauth.NewLifecycle(store.Connections, httpClient)
	registry := platformall.NewRegistry(platform.HandlerConfig{HTTPClient: httpClient})
	dispatcher := dispatch.New(store.Integrations, store.Connections, lifecycle, registry, creds, 5*time.Second)
	dispatcher.SetQuotaGuard(billing.NewService(nil, store.Payments, store.Subscriptions))

	service := svc.NewService(store.Integrations, store.Connections, states, lifecycle, dispatcher, creds)
	ctrl := integrations.NewController(service, "https://app.example.com")

	handler := router.New(router.Deps{
		Integrations:       ctrl,
		Offline:            nil,
		Billing:            nil,
		Health:             healthctrl.NewController(nil),
		Auth:               mw.WithAuth(jwtSecret, ""),
		CORSAllowedOrigins: []string{"*"},
	})
	return &env{store: store, router: handler}
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(jwtSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func (e *env) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Code
}

func TestListRequiresAuth(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/v1/integrations", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errCode(t, rec); got != "UNAUTHORIZED" {
		t.Fatalf("code = %q", got)
	}
}

func TestConnectCallbackListFlow(t *testing.T) {
	e := newEnv(t, nil)
	auth := bearer(t, "u1")

	// Catálogo inicial: nada conectado.
	rec := e.do(t, http.MethodGet, "/api/v1/integrations", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}
	var listResp struct {
		Integrations []struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			IsConnected bool   `json:"isConnected"`
		} `json:"integrations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Integrations) != 5 {
		t.Fatalf("len = %d, want 5", len(listResp.Integrations))
	}
	for _, it := range listResp.Integrations {
		if it.IsConnected {
			t.Fatalf("%s conectado antes de conectar", it.ID)
		}
	}

	// Iniciar el flujo.
	rec = e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/connect", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("connect status = %d: %s", rec.Code, rec.Body.String())
	}
	var connectResp struct {
		Success bool   `json:"success"`
		AuthURL string `json:"authUrl"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &connectResp); err != nil {
		t.Fatalf("decode connect: %v", err)
	}
	if !connectResp.Success {
		t.Fatalf("connect body: %s", rec.Body.String())
	}
	authURL, err := url.Parse(connectResp.AuthURL)
	if err != nil {
		t.Fatalf("parse authUrl: %v", err)
	}
	state := authURL.Query().Get("state")
	if state == "" || state != connectResp.State {
		t.Fatalf("state = %q, body state = %q", state, connectResp.State)
	}
	if got := authURL.Query().Get("client_id"); got != "cid-gdrive" {
		t.Fatalf("client_id = %q", got)
	}

	// El state emitido quedó asociado a la integración.
	if st, err := e.store.States.Consume(context.Background(), state); err != nil || st.IntegrationID != "gdrive" {
		t.Fatalf("state lookup: %+v, %v", st, err)
	}
	// Re-crearlo para seguir el flujo (Consume lo borra).
	rec = e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/connect", auth, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &connectResp); err != nil {
		t.Fatalf("decode connect: %v", err)
	}
	state = connectResp.State

	// Redirect del proveedor: sin bearer.
	rec = e.do(t, http.MethodGet, "/api/v1/oauth/callback?code=c1&state="+url.QueryEscape(state), "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("callback status = %d: %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if want := "https://app.example.com/integrations/callback?platform=gdrive&success=true"; loc != want {
		t.Fatalf("Location = %q, want %q", loc, want)
	}

	// La conexión quedó persistida con tokens cifrados.
	conn, err := e.store.Connections.Get(context.Background(), "u1", "gdrive")
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if conn.AccessTokenEncrypted == "" || conn.AccessTokenEncrypted == "at-new" {
		t.Fatalf("access token sin cifrar: %q", conn.AccessTokenEncrypted)
	}
	if plain, err := secretbox.Decrypt(conn.AccessTokenEncrypted); err != nil || plain != "at-new" {
		t.Fatalf("decrypt = %q, %v", plain, err)
	}

	// El catálogo ahora muestra la conexión.
	rec = e.do(t, http.MethodGet, "/api/v1/integrations", auth, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	for _, it := range listResp.Integrations {
		if it.ID == "gdrive" && !it.IsConnected {
			t.Fatal("gdrive debería figurar conectado")
		}
		if it.ID == "etsy" && it.IsConnected {
			t.Fatal("etsy no debería figurar conectado")
		}
	}

	// El state es single-use: el replay vuelve al frontend con el error.
	rec = e.do(t, http.MethodGet, "/api/v1/oauth/callback?code=c1&state="+url.QueryEscape(state), "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("replay status = %d", rec.Code)
	}
	replay, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if replay.Query().Get("success") != "false" || replay.Query().Get("error") != "invalid_state" {
		t.Fatalf("replay Location = %q", rec.Header().Get("Location"))
	}
}

func TestConnectComingSoon(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/v1/integrations/figma/connect", bearer(t, "u1"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := errCode(t, rec); got != "INTEGRATION_UNAVAILABLE" {
		t.Fatalf("code = %q", got)
	}
}

func TestConnectUnknownIntegration(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/v1/integrations/nope/connect", bearer(t, "u1"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestConnectShopifyRequiresShop(t *testing.T) {
	e := newEnv(t, nil)
	auth := bearer(t, "u1")

	rec := e.do(t, http.MethodPost, "/api/v1/integrations/shopify/connect", auth, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/v1/integrations/shopify/connect?shop=acme.myshopify.com", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var connectResp struct {
		AuthURL string `json:"authUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &connectResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(connectResp.AuthURL, "https://acme.myshopify.com/") {
		t.Fatalf("authUrl = %q", connectResp.AuthURL)
	}
}

func TestCallbackExchangeFailureRedirectsWithError(t *testing.T) {
	e := newEnv(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"error":"invalid_request"}`), nil
	})
	auth := bearer(t, "u1")

	rec := e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/connect", auth, nil)
	var connectResp struct {
		AuthURL string `json:"authUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &connectResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	u, _ := url.Parse(connectResp.AuthURL)
	state := u.Query().Get("state")

	rec = e.do(t, http.MethodGet, "/api/v1/oauth/callback?code=bad&state="+url.QueryEscape(state), "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Query().Get("error") != "connection_failed" || loc.Query().Get("success") != "false" {
		t.Fatalf("Location = %q", rec.Header().Get("Location"))
	}
	if loc.Query().Get("platform") != "gdrive" {
		t.Fatalf("Location = %q", rec.Header().Get("Location"))
	}
	if _, getErr := e.store.Connections.Get(context.Background(), "u1", "gdrive"); !repository.IsNotFound(getErr) {
		t.Fatalf("no debería haber conexión: %v", getErr)
	}
}

func TestSyncListFolders(t *testing.T) {
	e := newEnv(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK,
			`{"files":[{"id":"f1","name":"Mockups","mimeType":"application/vnd.google-apps.folder"}]}`), nil
	})
	seedConnection(t, e, "u1", "gdrive", nil)

	rec := e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/sync", bearer(t, "u1"),
		map[string]any{"operation": "list_folders"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Count   int `json:"count"`
			Folders []struct {
				ID string `json:"id"`
			} `json:"folders"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data.Count != 1 || len(resp.Data.Folders) != 1 || resp.Data.Folders[0].ID != "f1" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	// Todo sync exitoso actualiza lastSyncedAt.
	conn, err := e.store.Connections.Get(context.Background(), "u1", "gdrive")
	if err != nil {
		t.Fatal(err)
	}
	if conn.LastSyncedAt == nil {
		t.Fatal("lastSyncedAt sin actualizar")
	}
}

func TestSyncUploadChargesQuota(t *testing.T) {
	e := newEnv(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"id":"up1","name":"mockup.png"}`), nil
	})
	seedConnection(t, e, "u1", "gdrive", nil)
	auth := bearer(t, "u1")
	body := map[string]any{
		"operation": "upload_images",
		"payload":   map[string]any{"urls": []string{"https://cdn.test/a.png", "https://cdn.test/b.png"}},
	}

	// Sin suscripción no hay cuota que descontar.
	rec := e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/sync", auth, body)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := errCode(t, rec); got != "QUOTA_EXHAUSTED" {
		t.Fatalf("code = %q", got)
	}

	// Con plan activo: el lote de 2 descuenta 2 generaciones.
	if err := e.store.Subscriptions.Upsert(context.Background(), repository.Subscription{
		UserID: "u1", PlanID: "starter", Status: "active", RemainingQuota: 5,
	}); err != nil {
		t.Fatal(err)
	}
	rec = e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/sync", auth, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	sub, err := e.store.Subscriptions.Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.RemainingQuota != 3 {
		t.Fatalf("quota = %d, want 3", sub.RemainingQuota)
	}

	// Cuota insuficiente para el lote completo: 402 y sin descuento parcial.
	if err := e.store.Subscriptions.Upsert(context.Background(), repository.Subscription{
		UserID: "u1", PlanID: "starter", Status: "active", RemainingQuota: 1,
	}); err != nil {
		t.Fatal(err)
	}
	rec = e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/sync", auth, body)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	sub, _ = e.store.Subscriptions.Get(context.Background(), "u1")
	if sub.RemainingQuota != 1 {
		t.Fatalf("quota = %d, want 1 (sin descuento parcial)", sub.RemainingQuota)
	}

	// Las operaciones de lectura no descuentan.
	rec = e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/sync", auth,
		map[string]any{"operation": "list_folders"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	sub, _ = e.store.Subscriptions.Get(context.Background(), "u1")
	if sub.RemainingQuota != 1 {
		t.Fatalf("quota = %d, want 1 tras una lectura", sub.RemainingQuota)
	}
}

func TestSyncMalformedBody(t *testing.T) {
	e := newEnv(t, nil)
	seedConnection(t, e, "u1", "gdrive", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/gdrive/sync",
		strings.NewReader(`{"operation":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type = %q", ct)
	}
	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	if body.Success || body.Code != "INVALID_JSON" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	// Content-Type equivocado recibe el mismo sobre de error.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/integrations/gdrive/sync",
		strings.NewReader(`operation=list_folders`))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := errCode(t, rec); got != "INVALID_JSON" {
		t.Fatalf("code = %q", got)
	}
}

func TestSyncNotConnected(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/sync", bearer(t, "u1"),
		map[string]any{"operation": "list_files"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := errCode(t, rec); got != "NOT_CONNECTED" {
		t.Fatalf("code = %q", got)
	}
}

func TestSyncUnsupportedOperation(t *testing.T) {
	e := newEnv(t, nil)
	seedConnection(t, e, "u1", "gdrive", nil)

	rec := e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/sync", bearer(t, "u1"),
		map[string]any{"operation": "teleport"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := errCode(t, rec); got != "UNSUPPORTED_OPERATION" {
		t.Fatalf("code = %q", got)
	}
}

func TestSyncMissingOperation(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/v1/integrations/gdrive/sync", bearer(t, "u1"),
		map[string]any{"payload": map[string]string{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDisconnect(t *testing.T) {
	// Etsy no tiene endpoint de revocación: el borrado local alcanza.
	e := newEnv(t, nil)
	seedConnection(t, e, "u1", "etsy", nil)
	auth := bearer(t, "u1")

	rec := e.do(t, http.MethodDelete, "/api/v1/integrations/etsy", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body.Success || body.Message == "" {
		t.Fatalf("body = %s (%v)", rec.Body.String(), err)
	}
	if _, err := e.store.Connections.Get(context.Background(), "u1", "etsy"); !repository.IsNotFound(err) {
		t.Fatalf("la conexión debería estar borrada: %v", err)
	}

	rec = e.do(t, http.MethodDelete, "/api/v1/integrations/etsy", auth, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("segundo delete status = %d", rec.Code)
	}
}

func TestDisconnectRevocationFailureStillDeletes(t *testing.T) {
	// Dropbox sí revoca; un 500 upstream no impide el borrado local.
	e := newEnv(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `{}`), nil
	})
	seedConnection(t, e, "u1", "dropbox", nil)

	rec := e.do(t, http.MethodDelete, "/api/v1/integrations/dropbox", bearer(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := e.store.Connections.Get(context.Background(), "u1", "dropbox"); !repository.IsNotFound(err) {
		t.Fatalf("la conexión debería estar borrada: %v", err)
	}
}

// seedConnection crea una conexión válida con tokens cifrados.
func seedConnection(t *testing.T, e *env, userID, integrationID string, expiresAt *time.Time) {
	t.Helper()
	accessEnc, err := secretbox.Encrypt("at-" + integrationID)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := e.store.Connections.Upsert(context.Background(), repository.UpsertConnectionInput{
		UserID:               userID,
		IntegrationID:        integrationID,
		AccessTokenEncrypted: accessEnc,
		TokenExpiresAt:       expiresAt,
	}); err != nil {
		t.Fatalf("upsert connection: %v", err)
	}
}
