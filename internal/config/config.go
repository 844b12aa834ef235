package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Platform enumera las plataformas soportadas (enum cerrado).
// Agregar una plataforma nueva implica: constante acá, handler en
// internal/platform/<name> y descriptor en internal/platform.
type Platform string

const (
	PlatformShopify Platform = "shopify"
	PlatformEtsy    Platform = "etsy"
	PlatformDropbox Platform = "dropbox"
	PlatformGDrive  Platform = "gdrive"
	PlatformFigma   Platform = "figma"
	PlatformCanva   Platform = "canva"
)

// AllPlatforms lista el enum completo, en orden estable.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformShopify, PlatformEtsy, PlatformDropbox,
		PlatformGDrive, PlatformFigma, PlatformCanva,
	}
}

// ParsePlatform normaliza un nombre (case-insensitive) al enum.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformShopify:
		return PlatformShopify, true
	case PlatformEtsy:
		return PlatformEtsy, true
	case PlatformDropbox:
		return PlatformDropbox, true
	case PlatformGDrive:
		return PlatformGDrive, true
	case PlatformFigma:
		return PlatformFigma, true
	case PlatformCanva:
		return PlatformCanva, true
	}
	return "", false
}

// PlatformCredentials son las credenciales OAuth de una plataforma.
// Se cargan del YAML y se pueden pisar con <PLATFORM>_CLIENT_ID,
// <PLATFORM>_CLIENT_SECRET y <PLATFORM>_REDIRECT_URI.
type PlatformCredentials struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
}

// Configured indica si hay credenciales mínimas.
func (p PlatformCredentials) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
		// Origen del frontend, destino de los redirects del callback OAuth.
		Origin string `yaml:"origin"`
		// URL pública del callback OAuth de este servicio.
		OAuthCallbackURL string `yaml:"oauth_callback_url"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// Timeout para llamadas salientes a plataformas (token exchange,
		// sync, descargas). Default 15s.
		UpstreamTimeout string `yaml:"upstream_timeout"`
		// Requests por minuto por usuario en los endpoints autenticados.
		// 0 desactiva el límite.
		RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		Driver   string `yaml:"driver"` // "postgres" | "memory"
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns int `yaml:"max_open_conns"`
			MaxIdleConns int `yaml:"max_idle_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // "memory" | "redis"
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Auth struct {
		// Secreto HMAC para validar los bearer tokens de la app.
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`

	OAuth struct {
		// TTL de los states CSRF. Fijo en 10m por defecto (documentado).
		StateTTL string `yaml:"state_ttl"`
	} `yaml:"oauth"`

	Offline struct {
		RetryBaseDelay string `yaml:"retry_base_delay"`
		MaxRetries     int    `yaml:"max_retries"`
		// Endpoint del backend de aplicación que recibe los cambios
		// drenados. Vacío: el worker solo loggea cada replay.
		ApplyURL string `yaml:"apply_url"`
	} `yaml:"offline"`

	Queue struct {
		// Redis para asynq (drain de la cola offline).
		RedisAddr   string `yaml:"redis_addr"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"queue"`

	Billing struct {
		StripeSecretKey   string `yaml:"stripe_secret_key"`
		WebhookSigningKey string `yaml:"webhook_signing_key"`
		SuccessURL        string `yaml:"success_url"`
		CancelURL         string `yaml:"cancel_url"`
	} `yaml:"billing"`

	// Credenciales por plataforma, keyed por el enum.
	Platforms map[Platform]PlatformCredentials `yaml:"platforms"`
}

// Load lee el YAML (si path no es vacío), aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Server.UpstreamTimeout == "" {
		c.Server.UpstreamTimeout = "15s"
	}
	if c.Server.RateLimitPerMinute == 0 {
		c.Server.RateLimitPerMinute = 120
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.OAuth.StateTTL == "" {
		c.OAuth.StateTTL = "10m"
	}
	if c.Offline.RetryBaseDelay == "" {
		c.Offline.RetryBaseDelay = "1s"
	}
	if c.Offline.MaxRetries == 0 {
		c.Offline.MaxRetries = 3
	}
	if c.Queue.Concurrency == 0 {
		c.Queue.Concurrency = 4
	}
	if c.Platforms == nil {
		c.Platforms = make(map[Platform]PlatformCredentials)
	}

	c.applyEnvOverrides()
	return &c, nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("APP_ORIGIN"); ok {
		c.App.Origin = v
	}
	if v, ok := getEnvStr("OAUTH_CALLBACK_URL"); ok {
		c.App.OAuthCallbackURL = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvInt("RATE_LIMIT_PER_MINUTE"); ok {
		c.Server.RateLimitPerMinute = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("DATABASE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
		if c.Queue.RedisAddr == "" {
			c.Queue.RedisAddr = v
		}
	}
	if v, ok := getEnvStr("QUEUE_REDIS_ADDR"); ok {
		c.Queue.RedisAddr = v
	}
	if v, ok := getEnvStr("OFFLINE_APPLY_URL"); ok {
		c.Offline.ApplyURL = v
	}
	if v, ok := getEnvInt("QUEUE_CONCURRENCY"); ok {
		c.Queue.Concurrency = v
	}
	if v, ok := getEnvStr("APP_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := getEnvStr("STRIPE_SECRET_KEY"); ok {
		c.Billing.StripeSecretKey = v
	}
	if v, ok := getEnvStr("STRIPE_WEBHOOK_SIGNING_KEY"); ok {
		c.Billing.WebhookSigningKey = v
	}

	// <PLATFORM>_CLIENT_ID / _CLIENT_SECRET / _REDIRECT_URI
	for _, p := range AllPlatforms() {
		prefix := strings.ToUpper(string(p))
		creds := c.Platforms[p]
		if v, ok := getEnvStr(prefix + "_CLIENT_ID"); ok {
			creds.ClientID = v
		}
		if v, ok := getEnvStr(prefix + "_CLIENT_SECRET"); ok {
			creds.ClientSecret = v
		}
		if v, ok := getEnvStr(prefix + "_REDIRECT_URI"); ok {
			creds.RedirectURI = v
		}
		c.Platforms[p] = creds
	}
}

// Validate valida la configuración de forma temprana (fail fast).
// activePlatforms son las plataformas con status=active en el catálogo:
// cada una debe tener credenciales completas al arrancar, en lugar de
// descubrir el faltante por request.
func (c *Config) Validate(activePlatforms []Platform) error {
	if c.App.Origin == "" {
		return fmt.Errorf("config: app.origin / APP_ORIGIN requerido")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret / APP_JWT_SECRET requerido")
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn / DATABASE_DSN requerido para driver postgres")
	}
	if _, err := time.ParseDuration(c.OAuth.StateTTL); err != nil {
		return fmt.Errorf("config: oauth.state_ttl inválido: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.UpstreamTimeout); err != nil {
		return fmt.Errorf("config: server.upstream_timeout inválido: %w", err)
	}
	for _, p := range activePlatforms {
		if !c.Platforms[p].Configured() {
			return fmt.Errorf("config: plataforma activa %q sin credenciales (%s_CLIENT_ID / %s_CLIENT_SECRET)",
				p, strings.ToUpper(string(p)), strings.ToUpper(string(p)))
		}
	}
	return nil
}

// StateTTL devuelve el TTL de states parseado.
func (c *Config) StateTTL() time.Duration {
	d, err := time.ParseDuration(c.OAuth.StateTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// UpstreamTimeout devuelve el timeout de llamadas salientes parseado.
func (c *Config) UpstreamTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.UpstreamTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// RetryBaseDelay devuelve el delay base del retry helper parseado.
func (c *Config) RetryBaseDelay() time.Duration {
	d, err := time.ParseDuration(c.Offline.RetryBaseDelay)
	if err != nil {
		return time.Second
	}
	return d
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func getEnvCSV(key string) ([]string, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, len(out) > 0
}
