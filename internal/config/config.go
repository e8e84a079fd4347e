package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/sirupsen/logrus"
	"github.com/zclconf/go-cty/cty"
)

const (
	AuthModeSupabase = "supabase"
	AuthModeLocal    = "local"

	ProfilesBackendREST     = "rest"
	ProfilesBackendPostgres = "postgres"
	ProfilesBackendMemory   = "memory"

	SessionStorageMemory = "memory"
	SessionStorageRedis  = "redis"
)

// Config представляє повну конфігурацію додатку
type Config struct {
	Server   ServerConfig    `hcl:"server,block" envPrefix:"SERVER_"`
	Auth     AuthConfig      `hcl:"auth,block" envPrefix:"AUTH_"`
	Profiles ProfilesConfig  `hcl:"profiles,block" envPrefix:"PROFILES_"`
	Checkout CheckoutConfig  `hcl:"checkout,block" envPrefix:"CHECKOUT_"`
	Telegram TelegramConfig  `hcl:"telegram,block" envPrefix:"TELEGRAM_"`
	Security SecurityConfig  `hcl:"security,block" envPrefix:"SECURITY_"`
	Database *DatabaseConfig `hcl:"database,block" envPrefix:"DATABASE_"`
	Redis    *RedisConfig    `hcl:"redis,block" envPrefix:"REDIS_"`
	Products []ProductConfig `hcl:"product,block"`
}

// ServerConfig містить налаштування HTTP сервера
type ServerConfig struct {
	Host         string `hcl:"host" env:"HOST" envDefault:"0.0.0.0"`
	Port         int    `hcl:"port" env:"PORT" envDefault:"8080"`
	Environment  string `hcl:"environment" env:"ENVIRONMENT" envDefault:"development"`
	LogLevel     string `hcl:"log_level" env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `hcl:"log_format" env:"LOG_FORMAT" envDefault:"text"`
	ReadTimeout  string `hcl:"read_timeout" env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout string `hcl:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  string `hcl:"idle_timeout" env:"IDLE_TIMEOUT" envDefault:"120s"`
	// PublicURL корінь додатку для success/cancel URL оплати
	PublicURL string `hcl:"public_url,optional" env:"PUBLIC_URL"`
}

// AuthConfig містить налаштування auth провайдера
type AuthConfig struct {
	Mode           string `hcl:"mode" env:"MODE" envDefault:"supabase"`
	SupabaseURL    string `hcl:"supabase_url,optional" env:"SUPABASE_URL"`
	AnonKey        string `hcl:"anon_key,optional" env:"ANON_KEY"`
	JWTSecret      string `hcl:"jwt_secret,optional" env:"JWT_SECRET"`
	RefreshMargin  string `hcl:"refresh_margin,optional" env:"REFRESH_MARGIN" envDefault:"60s"`
	RequestTimeout string `hcl:"request_timeout,optional" env:"REQUEST_TIMEOUT" envDefault:"15s"`
	SessionStorage string `hcl:"session_storage,optional" env:"SESSION_STORAGE" envDefault:"memory"`
	SessionTTL     string `hcl:"session_ttl,optional" env:"SESSION_TTL" envDefault:"720h"`

	// Локальний режим
	LocalAccessTTL   string `hcl:"local_access_ttl,optional" env:"LOCAL_ACCESS_TTL" envDefault:"1h"`
	LocalRefreshTTL  string `hcl:"local_refresh_ttl,optional" env:"LOCAL_REFRESH_TTL" envDefault:"720h"`
	LocalAutoConfirm *bool  `hcl:"local_auto_confirm,optional" env:"LOCAL_AUTO_CONFIRM"`
}

// ProfilesConfig містить налаштування сховища профілів
type ProfilesConfig struct {
	Backend       string `hcl:"backend" env:"BACKEND" envDefault:"rest"`
	Table         string `hcl:"table,optional" env:"TABLE" envDefault:"profiles"`
	FetchTimeout  string `hcl:"fetch_timeout,optional" env:"FETCH_TIMEOUT" envDefault:"10s"`
	DashboardWait string `hcl:"dashboard_wait,optional" env:"DASHBOARD_WAIT" envDefault:"2s"`
}

// CheckoutConfig містить налаштування serverless checkout функції
type CheckoutConfig struct {
	Endpoint string `hcl:"endpoint,optional" env:"ENDPOINT"`
	Timeout  string `hcl:"timeout,optional" env:"TIMEOUT" envDefault:"30s"`
}

// TelegramConfig містить налаштування відображення Telegram бота
type TelegramConfig struct {
	BotName string `hcl:"bot_name,optional" env:"BOT_NAME" envDefault:"@YourBotName"`
}

// SecurityConfig містить налаштування безпеки
type SecurityConfig struct {
	CORS      CORSConfig      `hcl:"cors,block" envPrefix:"CORS_"`
	RateLimit RateLimitConfig `hcl:"rate_limit,block" envPrefix:"RATE_LIMIT_"`
	Session   SessionConfig   `hcl:"session,block" envPrefix:"SESSION_"`
}

// CORSConfig містить налаштування CORS
type CORSConfig struct {
	AllowedOrigins   []string `hcl:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	AllowedMethods   []string `hcl:"allowed_methods" env:"ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `hcl:"allowed_headers" env:"ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,Accept"`
	AllowCredentials bool     `hcl:"allow_credentials" env:"ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `hcl:"max_age" env:"MAX_AGE" envDefault:"300"`
}

// RateLimitConfig містить налаштування rate limiting
type RateLimitConfig struct {
	Enabled           bool `hcl:"enabled" env:"ENABLED" envDefault:"true"`
	RequestsPerMinute int  `hcl:"requests_per_minute" env:"REQUESTS_PER_MINUTE" envDefault:"120"`
	Burst             int  `hcl:"burst" env:"BURST" envDefault:"30"`
}

// SessionConfig містить налаштування cookie відвідувача
type SessionConfig struct {
	Secret     string `hcl:"secret" env:"SECRET"`
	MaxAge     int    `hcl:"max_age" env:"MAX_AGE" envDefault:"86400"`
	Secure     bool   `hcl:"secure" env:"SECURE"`
	HTTPOnly   bool   `hcl:"http_only" env:"HTTP_ONLY" envDefault:"true"`
	CookieName string `hcl:"cookie_name,optional" env:"COOKIE_NAME" envDefault:"videogen_visitor"`
}

// DatabaseConfig містить налаштування бази даних (backend = "postgres")
type DatabaseConfig struct {
	Driver                string `hcl:"driver" env:"DRIVER" envDefault:"postgres"`
	Host                  string `hcl:"host" env:"HOST"`
	Port                  int    `hcl:"port" env:"PORT" envDefault:"5432"`
	Name                  string `hcl:"name" env:"NAME"`
	User                  string `hcl:"user" env:"USER"`
	Password              string `hcl:"password" env:"PASSWORD"`
	SSLMode               string `hcl:"ssl_mode" env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConnections    int    `hcl:"max_open_connections" env:"MAX_OPEN_CONNECTIONS" envDefault:"10"`
	MaxIdleConnections    int    `hcl:"max_idle_connections" env:"MAX_IDLE_CONNECTIONS" envDefault:"5"`
	ConnectionMaxLifetime string `hcl:"connection_max_lifetime" env:"CONNECTION_MAX_LIFETIME" envDefault:"5m"`
}

// RedisConfig містить налаштування Redis (session_storage = "redis")
type RedisConfig struct {
	Host       string `hcl:"host" env:"HOST" envDefault:"localhost"`
	Port       int    `hcl:"port" env:"PORT" envDefault:"6379"`
	Password   string `hcl:"password" env:"PASSWORD"`
	Database   int    `hcl:"database" env:"DB"`
	MaxRetries int    `hcl:"max_retries" env:"MAX_RETRIES" envDefault:"3"`
	PoolSize   int    `hcl:"pool_size" env:"POOL_SIZE" envDefault:"10"`
}

// ProductConfig продукт каталогу: product "VideoGen" { ... }
type ProductConfig struct {
	Name        string  `hcl:"name,label"`
	ID          string  `hcl:"id"`
	PriceID     string  `hcl:"price_id"`
	Description string  `hcl:"description,optional"`
	Price       float64 `hcl:"price"`
	Mode        string  `hcl:"mode,optional"`
	Popular     bool    `hcl:"popular,optional"`
}

// LoadConfig завантажує конфігурацію з HCL файлу.
// Змінні оточення доступні у файлі як env.NAME.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var config Config
	err := hclsimple.DecodeFile(configPath, evalContext(), &config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	// Валідація конфігурації
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// evalContext відкриває змінні оточення як об'єкт env
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !hclIdentifier(name) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	envValue := cty.EmptyObjectVal
	if len(vars) > 0 {
		envValue = cty.ObjectVal(vars)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envValue,
		},
	}
}

func hclIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !letter && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// applyDefaults заповнює необов'язкові поля
func (c *Config) applyDefaults() {
	if c.Auth.SessionStorage == "" {
		c.Auth.SessionStorage = SessionStorageMemory
	}
	if c.Profiles.Table == "" {
		c.Profiles.Table = "profiles"
	}
	if c.Security.Session.CookieName == "" {
		c.Security.Session.CookieName = "videogen_visitor"
	}
	if c.Telegram.BotName == "" {
		c.Telegram.BotName = "@YourBotName"
	}
	if c.Checkout.Endpoint == "" && c.Auth.SupabaseURL != "" {
		c.Checkout.Endpoint = strings.TrimSuffix(c.Auth.SupabaseURL, "/") + "/functions/v1/stripe-checkout"
	}
}

// Validate перевіряє валідність конфігурації
func (c *Config) Validate() error {
	// Перевірка обов'язкових полів сервера
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Auth.Mode {
	case AuthModeSupabase:
		if c.Auth.SupabaseURL == "" {
			return fmt.Errorf("auth supabase_url is required in supabase mode")
		}
		if c.Auth.AnonKey == "" {
			return fmt.Errorf("auth anon_key is required in supabase mode")
		}
	case AuthModeLocal:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth jwt_secret is required in local mode")
		}
	default:
		return fmt.Errorf("unknown auth mode: %q", c.Auth.Mode)
	}

	switch c.Profiles.Backend {
	case ProfilesBackendREST:
		if c.Auth.SupabaseURL == "" {
			return fmt.Errorf("profiles backend %q requires auth supabase_url", c.Profiles.Backend)
		}
	case ProfilesBackendPostgres:
		if c.Database == nil {
			return fmt.Errorf("profiles backend %q requires a database block", c.Profiles.Backend)
		}
		if err := c.Database.Validate(); err != nil {
			return err
		}
	case ProfilesBackendMemory:
	default:
		return fmt.Errorf("unknown profiles backend: %q", c.Profiles.Backend)
	}

	switch c.Auth.SessionStorage {
	case SessionStorageMemory:
	case SessionStorageRedis:
		if c.Redis == nil {
			return fmt.Errorf("session storage %q requires a redis block", c.Auth.SessionStorage)
		}
	default:
		return fmt.Errorf("unknown session storage: %q", c.Auth.SessionStorage)
	}

	if c.Checkout.Endpoint == "" && c.Auth.Mode == AuthModeSupabase {
		return fmt.Errorf("checkout endpoint is required")
	}

	for _, p := range c.Products {
		if p.PriceID == "" {
			return fmt.Errorf("product %q: price_id is required", p.Name)
		}
		if p.Price < 0 {
			return fmt.Errorf("product %q: price must not be negative", p.Name)
		}
		if p.Mode != "" && p.Mode != string(models.CheckoutModePayment) && p.Mode != string(models.CheckoutModeSubscription) {
			return fmt.Errorf("product %q: unknown mode %q", p.Name, p.Mode)
		}
	}

	// Перевірка секрету сесії
	if c.Security.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}

	return nil
}

// Validate перевіряє налаштування бази даних
func (d *DatabaseConfig) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if d.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if d.User == "" {
		return fmt.Errorf("database user is required")
	}
	return nil
}

// GetAddress повертає адресу для прослуховування сервера
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabaseDSN повертає DSN для підключення до бази даних
func (c *Config) GetDatabaseDSN() string {
	if c.Database == nil {
		return ""
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddress повертає host:port Redis
func (c *Config) GetRedisAddress() string {
	if c.Redis == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// IsDevelopment перевіряє чи додаток працює в режимі розробки
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction перевіряє чи додаток працює в продакшн режимі
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// CatalogProducts повертає продукти з конфігурації (порожньо - каталог за замовчуванням)
func (c *Config) CatalogProducts() []models.Product {
	products := make([]models.Product, 0, len(c.Products))
	for _, p := range c.Products {
		products = append(products, models.Product{
			ID:          p.ID,
			PriceID:     p.PriceID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Mode:        models.CheckoutMode(p.Mode),
			Popular:     p.Popular,
		})
	}
	return products
}

// LocalAutoConfirm повертає чи локальний режим видає сесію одразу після реєстрації
func (c *Config) LocalAutoConfirm() bool {
	return c.Auth.LocalAutoConfirm == nil || *c.Auth.LocalAutoConfirm
}

// duration розбирає тривалість з конфігурації з fallback на значення за замовчуванням
func duration(name, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := ParseDuration(value)
	if err != nil {
		logrus.Warnf("Invalid %s, using default %v: %v", name, fallback, err)
		return fallback
	}
	return parsed.Duration()
}
