// Package config builds the process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Server    Server
	Postgres  PostgresConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Mail      MailConfig
	CDN       CDNConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Chatbot   ChatbotConfig
	Seed      SeedAdmin
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	BaseURL         string
	SecureCookies   bool
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	LogLevel        string
}

// IsProduction reports whether the service runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// PostgresConfig selects the SQL backend. An empty DSN means in-memory stores.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds token, OTP and lockout settings.
type AuthConfig struct {
	JWTSigningKey     string
	Issuer            string
	Audience          string
	TokenTTL          time.Duration
	CookieName        string
	OTPTTL            time.Duration
	OTPMaxAttempts    int
	OTPResendCooldown time.Duration
	OTPHourlyLimit    int
	LockoutThreshold  int
	LockoutWindow     time.Duration
	LockoutDuration   time.Duration
}

// MailConfig holds SMTP settings. An empty Host selects the log-only sender.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	StartTLS   bool
	QueueSize  int
	MaxRetries int
}

// CDNConfig holds the third-party media CDN settings.
type CDNConfig struct {
	UploadURL string
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	MaxBytes  int64
	Timeout   time.Duration
}

// Enabled reports whether uploads can be forwarded to the CDN.
func (c CDNConfig) Enabled() bool {
	return c.UploadURL != "" && c.APIKey != "" && c.APISecret != ""
}

// KafkaConfig enables forwarding audit events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// RateLimitConfig holds per-IP request limits for sensitive routes.
type RateLimitConfig struct {
	LoginPerMinute int
	OTPPerMinute   int
	ChatPerMinute  int
}

// ChatbotConfig tunes FAQ matching.
type ChatbotConfig struct {
	MinScore       int
	MaxSuggestions int
	Timezone       string
}

// SeedAdmin bootstraps the first administrator on an empty user store.
type SeedAdmin struct {
	Email    string
	Name     string
	Password string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	env := getEnv("APP_ENV", "development")
	return Config{
		Server: Server{
			Addr:            getEnv("INTRANET_ADDR", ":8080"),
			Environment:     env,
			BaseURL:         strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
			SecureCookies:   getBool("SECURE_COOKIES", env == "production"),
			CORSOrigins:     getList("CORS_ORIGINS"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			JWTSigningKey:     getEnv("JWT_SIGNING_KEY", defaultJWTSigningKey),
			Issuer:            getEnv("JWT_ISSUER", "intranet"),
			Audience:          getEnv("JWT_AUDIENCE", "intranet"),
			TokenTTL:          getDuration("TOKEN_TTL", 12*time.Hour),
			CookieName:        getEnv("SESSION_COOKIE", "intranet_session"),
			OTPTTL:            getDuration("OTP_TTL", 10*time.Minute),
			OTPMaxAttempts:    getInt("OTP_MAX_ATTEMPTS", 5),
			OTPResendCooldown: getDuration("OTP_RESEND_COOLDOWN", 60*time.Second),
			OTPHourlyLimit:    getInt("OTP_HOURLY_LIMIT", 5),
			LockoutThreshold:  getInt("LOCKOUT_THRESHOLD", 5),
			LockoutWindow:     getDuration("LOCKOUT_WINDOW", 15*time.Minute),
			LockoutDuration:   getDuration("LOCKOUT_DURATION", 15*time.Minute),
		},
		Mail: MailConfig{
			Host:       os.Getenv("SMTP_HOST"),
			Port:       getInt("SMTP_PORT", 587),
			Username:   os.Getenv("SMTP_USERNAME"),
			Password:   os.Getenv("SMTP_PASSWORD"),
			From:       getEnv("MAIL_FROM", "Intranet <no-reply@intranet.local>"),
			StartTLS:   getBool("SMTP_STARTTLS", true),
			QueueSize:  getInt("MAIL_QUEUE_SIZE", 256),
			MaxRetries: getInt("MAIL_MAX_RETRIES", 3),
		},
		CDN: CDNConfig{
			UploadURL: os.Getenv("CDN_UPLOAD_URL"),
			CloudName: os.Getenv("CDN_CLOUD_NAME"),
			APIKey:    os.Getenv("CDN_API_KEY"),
			APISecret: os.Getenv("CDN_API_SECRET"),
			Folder:    getEnv("CDN_FOLDER", "intranet"),
			MaxBytes:  int64(getInt("UPLOAD_MAX_BYTES", 10<<20)),
			Timeout:   getDuration("CDN_TIMEOUT", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    getList("KAFKA_BROKERS"),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "intranet.audit"),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: getInt("RATE_LIMIT_LOGIN", 10),
			OTPPerMinute:   getInt("RATE_LIMIT_OTP", 5),
			ChatPerMinute:  getInt("RATE_LIMIT_CHAT", 30),
		},
		Chatbot: ChatbotConfig{
			MinScore:       getInt("CHATBOT_MIN_SCORE", 2),
			MaxSuggestions: getInt("CHATBOT_MAX_SUGGESTIONS", 3),
			Timezone:       getEnv("CHATBOT_TIMEZONE", "UTC"),
		},
		Seed: SeedAdmin{
			Email:    os.Getenv("SEED_ADMIN_EMAIL"),
			Name:     getEnv("SEED_ADMIN_NAME", "Administrator"),
			Password: os.Getenv("SEED_ADMIN_PASSWORD"),
		},
	}
}

// Validate rejects configurations that are unsafe to run.
func (c Config) Validate() error {
	var errs []error
	if c.Server.IsProduction() {
		if c.Auth.JWTSigningKey == defaultJWTSigningKey {
			errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
		}
		if !c.Server.SecureCookies {
			errs = append(errs, errors.New("SECURE_COOKIES must be enabled in production"))
		}
	}
	if len(c.Auth.JWTSigningKey) < 16 {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be at least 16 bytes"))
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.OTPTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL and OTP_TTL must be positive"))
	}
	if c.Auth.OTPMaxAttempts < 1 || c.Auth.LockoutThreshold < 1 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS and LOCKOUT_THRESHOLD must be at least 1"))
	}
	if c.CDN.MaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if _, err := time.LoadLocation(c.Chatbot.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("CHATBOT_TIMEZONE: %w", err))
	}
	if c.Seed.Email != "" && c.Seed.Password == "" {
		errs = append(errs, errors.New("SEED_ADMIN_PASSWORD is required with SEED_ADMIN_EMAIL"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
