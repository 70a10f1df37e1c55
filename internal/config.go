package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	PayPal        PayPalConfig        `mapstructure:"paypal"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Sandbox       SandboxConfig       `mapstructure:"sandbox"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" validate:"required"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" validate:"required"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
	SessionSecret        string        `mapstructure:"session_secret" validate:"required,min=32"`
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	CookieSecure         bool          `mapstructure:"cookie_secure"`
}

// PayPalConfig holds processor credentials and the checkout defaults.
type PayPalConfig struct {
	Mode           string         `mapstructure:"mode" validate:"oneof=sandbox live"`
	APIBaseURL     string         `mapstructure:"api_base_url" validate:"required,url"`
	ClientID       string         `mapstructure:"client_id"`
	ClientSecret   string         `mapstructure:"client_secret"`
	IPNVerifyURL   string         `mapstructure:"ipn_verify_url" validate:"required,url"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	SuccessPath    string         `mapstructure:"success_path"`
	ErrorPath      string         `mapstructure:"error_path"`
	ErrorCodes     []string       `mapstructure:"error_codes"`
	PaymentOptions PaymentOptions `mapstructure:"payment_options"`
}

// PaymentOptions mirrors the recognized checkout option keys. Every field is optional;
// empty values fall back to the builder defaults.
type PaymentOptions struct {
	Item struct {
		SKU      string `mapstructure:"sku"`
		Name     string `mapstructure:"name"`
		Quantity string `mapstructure:"quantity"`
		Price    string `mapstructure:"price"`
		Currency string `mapstructure:"currency"`
	} `mapstructure:"item"`
	Amount struct {
		Currency string `mapstructure:"currency"`
		Total    string `mapstructure:"total"`
	} `mapstructure:"amount"`
	Transaction struct {
		Description string `mapstructure:"description"`
	} `mapstructure:"transaction"`
	Payer struct {
		PaymentMethod string `mapstructure:"payment_method"`
	} `mapstructure:"payer"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enabled true"`
}

// SandboxConfig drives the local stand-in for the processor.
type SandboxConfig struct {
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	IPNURL       string        `mapstructure:"ipn_url"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	JobQueueSize int           `mapstructure:"job_queue_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	IPNDelay     time.Duration `mapstructure:"ipn_delay"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration from plain environment variables, used
// for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("HTTP_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("HTTP_ALLOWED_ORIGINS", ""),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			AccessTokenSecret:    getEnv("ACCESS_TOKEN_SECRET", ""),
			RefreshTokenSecret:   getEnv("REFRESH_TOKEN_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
			SessionSecret:        getEnv("SESSION_SECRET", ""),
			SessionTTL:           getEnvAsDuration("SESSION_TTL", 2*time.Hour),
			CookieSecure:         getEnvAsBool("COOKIE_SECURE", true),
		},
		PayPal: PayPalConfig{
			Mode:           getEnv("PAYPAL_MODE", "sandbox"),
			APIBaseURL:     getEnv("PAYPAL_API_BASE_URL", "https://api.sandbox.paypal.com"),
			ClientID:       getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret:   getEnv("PAYPAL_CLIENT_SECRET", ""),
			IPNVerifyURL:   getEnv("PAYPAL_IPN_VERIFY_URL", "https://www.paypal.com/cgi-bin/webscr"),
			RequestTimeout: getEnvAsDuration("PAYPAL_REQUEST_TIMEOUT", 30*time.Second),
			SuccessPath:    getEnv("PAYPAL_SUCCESS_PATH", "/"),
			ErrorPath:      getEnv("PAYPAL_ERROR_PATH", "/paypal/error"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "account-activations"),
		},
		Sandbox: SandboxConfig{
			Port:         getEnvAsInt("SANDBOX_PORT", 8090),
			BaseURL:      getEnv("SANDBOX_BASE_URL", "http://localhost:8090"),
			ClientID:     getEnv("SANDBOX_CLIENT_ID", "sandbox-client"),
			ClientSecret: getEnv("SANDBOX_CLIENT_SECRET", "sandbox-secret"),
			IPNURL:       getEnv("SANDBOX_IPN_URL", "http://localhost:8080/api/v1/paypal/ipn"),
			MaxWorkers:   getEnvAsInt("SANDBOX_MAX_WORKERS", 4),
			JobQueueSize: getEnvAsInt("SANDBOX_JOB_QUEUE_SIZE", 100),
			MaxAttempts:  getEnvAsInt("SANDBOX_MAX_ATTEMPTS", 5),
			RetryDelay:   getEnvAsDuration("SANDBOX_RETRY_DELAY", 2*time.Second),
			IPNDelay:     getEnvAsDuration("SANDBOX_IPN_DELAY", time.Second),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnvAsBool("METRICS_ENABLED", true),
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.PayPal.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("paypal config: %v", err))
	}

	if err := c.Kafka.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("kafka config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required to build processor redirect urls")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
	}
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return errors.New("access and refresh token secrets are required")
	}
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	return nil
}

func (c *PayPalConfig) Validate() error {
	if c.Mode != "sandbox" && c.Mode != "live" {
		return fmt.Errorf("mode must be sandbox or live, got %q", c.Mode)
	}
	if c.APIBaseURL == "" {
		return errors.New("api_base_url is required")
	}
	if c.IPNVerifyURL == "" {
		return errors.New("ipn_verify_url is required")
	}
	if _, err := url.ParseRequestURI(c.IPNVerifyURL); err != nil {
		return fmt.Errorf("invalid ipn_verify_url: %w", err)
	}
	return nil
}

func (c *KafkaConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return errors.New("brokers are required when kafka is enabled")
	}
	if c.Topic == "" {
		return errors.New("topic is required when kafka is enabled")
	}
	return nil
}
