package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mockforge/mockforge/internal/config"
	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/metrics"
	"github.com/mockforge/mockforge/internal/observability/logger"
	"github.com/mockforge/mockforge/internal/platform"
	"github.com/mockforge/mockforge/internal/security/secretbox"
)

// Errores del ciclo de vida de tokens.
var (
	// ErrCredentialsNotConfigured: la plataforma no tiene client id/secret
	// en la configuración del servicio.
	ErrCredentialsNotConfigured = errors.New("oauth: platform credentials not configured")

	// ErrTokenExchangeFailed: el endpoint de token respondió error.
	ErrTokenExchangeFailed = errors.New("oauth: token exchange failed")

	// ErrNoAccessToken: respuesta 2xx pero sin access_token.
	ErrNoAccessToken = errors.New("oauth: token response missing access_token")

	// ErrReauthorizationRequired: token vencido y sin refresh token utilizable.
	// El usuario debe reconectar la integración.
	ErrReauthorizationRequired = errors.New("oauth: reauthorization required")
)

// refreshSkew: un token que vence dentro de esta ventana se considera
// vencido, para no despachar requests con tokens al borde de expirar.
const refreshSkew = 60 * time.Second

// TokenSet son tokens en claro recién emitidos por una plataforma.
// Nunca se persiste tal cual: se cifra antes de tocar el repositorio.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// Lifecycle ejecuta exchange, refresh-on-expiry y revocación contra los
// endpoints descritos por cada platform.Descriptor.
type Lifecycle struct {
	conns repository.ConnectionRepository
	http  *http.Client
	group singleflight.Group
}

// NewLifecycle crea el manejador de ciclo de vida. httpClient debe tener
// timeout acotado.
func NewLifecycle(conns repository.ConnectionRepository, httpClient *http.Client) *Lifecycle {
	return &Lifecycle{conns: conns, http: httpClient}
}

// ExchangeCode canjea el authorization code por tokens.
func (l *Lifecycle) ExchangeCode(ctx context.Context, d platform.Descriptor, creds config.PlatformCredentials, code string, settings map[string]string) (*TokenSet, error) {
	if !creds.Configured() {
		return nil, ErrCredentialsNotConfigured
	}

	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	params.Set("redirect_uri", creds.RedirectURI)

	resp, err := l.postToken(ctx, d, creds, d.ResolveTokenURL(settings), params)
	if err != nil {
		return nil, err
	}
	return resp.toTokenSet()
}

// AccessToken retorna el access token en claro listo para usar, refrescando
// primero si está vencido (o por vencer dentro de refreshSkew).
//
// Los refresh concurrentes del mismo par (user, integration) se deduplican:
// un solo intercambio upstream, todos los callers reciben el resultado.
func (l *Lifecycle) AccessToken(ctx context.Context, d platform.Descriptor, creds config.PlatformCredentials, conn *repository.UserIntegration) (string, error) {
	if !tokenExpired(conn.TokenExpiresAt) {
		return secretbox.Decrypt(conn.AccessTokenEncrypted)
	}

	key := conn.UserID + "|" + conn.IntegrationID
	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.refresh(ctx, d, creds, conn.UserID, conn.IntegrationID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh corre dentro del singleflight: relee la conexión (otro request
// pudo haberla refrescado), canjea el refresh token y persiste el set
// nuevo en una sola escritura.
func (l *Lifecycle) refresh(ctx context.Context, d platform.Descriptor, creds config.PlatformCredentials, userID, integrationID string) (string, error) {
	conn, err := l.conns.Get(ctx, userID, integrationID)
	if err != nil {
		return "", err
	}
	if !tokenExpired(conn.TokenExpiresAt) {
		return secretbox.Decrypt(conn.AccessTokenEncrypted)
	}

	if conn.RefreshTokenEncrypted == "" {
		return "", ErrReauthorizationRequired
	}
	if !creds.Configured() {
		return "", ErrCredentialsNotConfigured
	}
	refreshPlain, err := secretbox.Decrypt(conn.RefreshTokenEncrypted)
	if err != nil {
		return "", fmt.Errorf("oauth: decrypt refresh token: %w", err)
	}

	params := url.Values{}
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", refreshPlain)

	resp, err := l.postToken(ctx, d, creds, d.ResolveTokenURL(conn.Settings), params)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(integrationID, "error").Inc()
		// invalid_grant: el refresh token fue revocado o venció upstream.
		if errors.Is(err, errInvalidGrant) {
			return "", ErrReauthorizationRequired
		}
		return "", err
	}
	set, err := resp.toTokenSet()
	if err != nil {
		return "", err
	}

	accessEnc, err := secretbox.Encrypt(set.AccessToken)
	if err != nil {
		return "", err
	}
	// Varias plataformas no rotan el refresh token: conservar el vigente.
	refreshEnc := conn.RefreshTokenEncrypted
	if set.RefreshToken != "" {
		if refreshEnc, err = secretbox.Encrypt(set.RefreshToken); err != nil {
			return "", err
		}
	}
	if err := l.conns.UpdateTokens(ctx, userID, integrationID, accessEnc, refreshEnc, set.ExpiresAt); err != nil {
		return "", fmt.Errorf("oauth: persist refreshed tokens: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues(integrationID, "ok").Inc()
	logger.L().Info("token refreshed",
		logger.UserID(userID),
		logger.IntegrationID(integrationID),
	)
	return set.AccessToken, nil
}

// Revoke notifica la revocación al proveedor. Best-effort: plataformas sin
// endpoint de revocación retornan nil y el caller borra la conexión igual.
func (l *Lifecycle) Revoke(ctx context.Context, d platform.Descriptor, creds config.PlatformCredentials, accessPlain string) error {
	if !d.HasRevocation() {
		return nil
	}

	params := url.Values{}
	params.Set("token", accessPlain)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.RevokeURL, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if d.AuthStyle == platform.AuthStyleBasic {
		req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	} else {
		req.Header.Set("Authorization", "Bearer "+accessPlain)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("oauth: revoke status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// errInvalidGrant marca la respuesta error=invalid_grant del proveedor.
var errInvalidGrant = errors.New("oauth: invalid_grant")

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ErrorCode    string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (r *tokenResponse) toTokenSet() (*TokenSet, error) {
	if r.AccessToken == "" {
		return nil, ErrNoAccessToken
	}
	set := &TokenSet{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	if r.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
		set.ExpiresAt = &t
	}
	return set, nil
}

// postToken arma el request al endpoint de token según el AuthStyle del
// descriptor y decodifica la respuesta.
func (l *Lifecycle) postToken(ctx context.Context, d platform.Descriptor, creds config.PlatformCredentials, tokenURL string, params url.Values) (*tokenResponse, error) {
	var body io.Reader
	contentType := "application/x-www-form-urlencoded"

	switch d.AuthStyle {
	case platform.AuthStyleJSON:
		payload := map[string]string{
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
		}
		for k := range params {
			payload[k] = params.Get(k)
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(string(b))
		contentType = "application/json"

	case platform.AuthStyleBasic:
		body = strings.NewReader(params.Encode())

	default: // AuthStyleForm
		params.Set("client_id", creds.ClientID)
		params.Set("client_secret", creds.ClientSecret)
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if d.AuthStyle == platform.AuthStyleBasic {
		req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var tr tokenResponse
	_ = json.Unmarshal(raw, &tr)

	if tr.ErrorCode == "invalid_grant" {
		return nil, fmt.Errorf("%w: %s", errInvalidGrant, tr.ErrorDesc)
	}
	if resp.StatusCode/100 != 2 || tr.ErrorCode != "" {
		detail := tr.ErrorCode
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrTokenExchangeFailed, resp.StatusCode, detail)
	}
	return &tr, nil
}

func tokenExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return false // plataformas con tokens sin expiración (Shopify)
	}
	return time.Now().Add(refreshSkew).After(*expiresAt)
}
