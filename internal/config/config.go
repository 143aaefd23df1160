package config

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the CallGreet server.
// Precedence: CLI flags > env vars > defaults. Settings that the owner
// edits at runtime (pickup mode, ring count, retention days, recipient
// address) live in the database instead.
type Config struct {
	DataDir          string
	HTTPPort         int
	LogLevel         string
	LogFormat        string // "text" or "json"
	PublicBaseURL    string // scheme+host the carrier posts webhooks to
	CarrierAuthToken string // shared secret for webhook signature validation
	JWTSecret        string // secret for admin API JWT signing
	CompletionURL    string // base URL of the completion service
	CompletionAPIKey string
	CompletionModel  string
	KnowledgeURL     string // base URL of the knowledge retrieval service
	KnowledgeAPIKey  string
	SMTPHost         string
	SMTPPort         string
	SMTPFrom         string
	SMTPUsername     string
	SMTPPassword     string
	SMTPTLS          string // "none", "starttls", "tls"
	BusinessName     string
	BusinessGreeting string
	BusinessFacts    string // semicolon-separated facts fed to the intake prompt
	MaxEmptyTurns    int
	TurnTimeoutSecs  int
	PurgeIntervalMin int
}

// defaults
const (
	defaultDataDir          = "./data"
	defaultHTTPPort         = 8080
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultCompletionModel  = "gpt-4o-mini"
	defaultSMTPTLS          = "starttls"
	defaultBusinessName     = "our office"
	defaultMaxEmptyTurns    = 3
	defaultTurnTimeoutSecs  = 8
	defaultPurgeIntervalMin = 60
)

// envPrefix is the prefix for all CallGreet environment variables.
const envPrefix = "CALLGREET_"

// Load parses configuration from CLI flags and environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("callgreet", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the database")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.PublicBaseURL, "public-base-url", "", "public base URL the carrier posts webhooks to (e.g. https://calls.example.com)")
	fs.StringVar(&cfg.CarrierAuthToken, "carrier-auth-token", "", "shared secret for carrier webhook signature validation")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "secret for admin API JWT signing (auto-generated if empty)")
	fs.StringVar(&cfg.CompletionURL, "completion-url", "", "base URL of the completion service")
	fs.StringVar(&cfg.CompletionAPIKey, "completion-api-key", "", "API key for the completion service")
	fs.StringVar(&cfg.CompletionModel, "completion-model", defaultCompletionModel, "model name for completion requests")
	fs.StringVar(&cfg.KnowledgeURL, "knowledge-url", "", "base URL of the knowledge retrieval service")
	fs.StringVar(&cfg.KnowledgeAPIKey, "knowledge-api-key", "", "API key for the knowledge retrieval service")
	fs.StringVar(&cfg.SMTPHost, "smtp-host", "", "SMTP server hostname for notification email")
	fs.StringVar(&cfg.SMTPPort, "smtp-port", "587", "SMTP server port")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", "", "From address for notification email")
	fs.StringVar(&cfg.SMTPUsername, "smtp-username", "", "SMTP auth username")
	fs.StringVar(&cfg.SMTPPassword, "smtp-password", "", "SMTP auth password")
	fs.StringVar(&cfg.SMTPTLS, "smtp-tls", defaultSMTPTLS, "SMTP TLS mode (none, starttls, tls)")
	fs.StringVar(&cfg.BusinessName, "business-name", defaultBusinessName, "business name spoken in prompts and notifications")
	fs.StringVar(&cfg.BusinessGreeting, "business-greeting", "", "custom assistant greeting (optional)")
	fs.StringVar(&cfg.BusinessFacts, "business-facts", "", "semicolon-separated business facts for the intake assistant")
	fs.IntVar(&cfg.MaxEmptyTurns, "max-empty-turns", defaultMaxEmptyTurns, "unproductive intake turns before forced escalation")
	fs.IntVar(&cfg.TurnTimeoutSecs, "turn-timeout", defaultTurnTimeoutSecs, "hard per-turn budget for completion calls, seconds")
	fs.IntVar(&cfg.PurgeIntervalMin, "purge-interval", defaultPurgeIntervalMin, "retention purge interval, minutes")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides fills in env values for flags not set on the command
// line, preserving flags > env > defaults precedence.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	str := func(flagName, envSuffix string, dst *string) {
		if set[flagName] {
			return
		}
		if val, ok := os.LookupEnv(envPrefix + envSuffix); ok && val != "" {
			*dst = val
		}
	}
	num := func(flagName, envSuffix string, dst *int) {
		if set[flagName] {
			return
		}
		if val, ok := os.LookupEnv(envPrefix + envSuffix); ok && val != "" {
			if v, err := strconv.Atoi(val); err == nil {
				*dst = v
			}
		}
	}

	str("data-dir", "DATA_DIR", &cfg.DataDir)
	num("http-port", "HTTP_PORT", &cfg.HTTPPort)
	str("log-level", "LOG_LEVEL", &cfg.LogLevel)
	str("log-format", "LOG_FORMAT", &cfg.LogFormat)
	str("public-base-url", "PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	str("carrier-auth-token", "CARRIER_AUTH_TOKEN", &cfg.CarrierAuthToken)
	str("jwt-secret", "JWT_SECRET", &cfg.JWTSecret)
	str("completion-url", "COMPLETION_URL", &cfg.CompletionURL)
	str("completion-api-key", "COMPLETION_API_KEY", &cfg.CompletionAPIKey)
	str("completion-model", "COMPLETION_MODEL", &cfg.CompletionModel)
	str("knowledge-url", "KNOWLEDGE_URL", &cfg.KnowledgeURL)
	str("knowledge-api-key", "KNOWLEDGE_API_KEY", &cfg.KnowledgeAPIKey)
	str("smtp-host", "SMTP_HOST", &cfg.SMTPHost)
	str("smtp-port", "SMTP_PORT", &cfg.SMTPPort)
	str("smtp-from", "SMTP_FROM", &cfg.SMTPFrom)
	str("smtp-username", "SMTP_USERNAME", &cfg.SMTPUsername)
	str("smtp-password", "SMTP_PASSWORD", &cfg.SMTPPassword)
	str("smtp-tls", "SMTP_TLS", &cfg.SMTPTLS)
	str("business-name", "BUSINESS_NAME", &cfg.BusinessName)
	str("business-greeting", "BUSINESS_GREETING", &cfg.BusinessGreeting)
	str("business-facts", "BUSINESS_FACTS", &cfg.BusinessFacts)
	num("max-empty-turns", "MAX_EMPTY_TURNS", &cfg.MaxEmptyTurns)
	num("turn-timeout", "TURN_TIMEOUT", &cfg.TurnTimeoutSecs)
	num("purge-interval", "PURGE_INTERVAL", &cfg.PurgeIntervalMin)
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if c.CarrierAuthToken == "" {
		return fmt.Errorf("carrier-auth-token is required: webhooks cannot be validated without it")
	}
	if c.PublicBaseURL == "" {
		return fmt.Errorf("public-base-url is required for webhook signature validation")
	}
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("public-base-url must be an absolute URL, got %q", c.PublicBaseURL)
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	validTLS := map[string]bool{"none": true, "starttls": true, "tls": true}
	if !validTLS[strings.ToLower(c.SMTPTLS)] {
		return fmt.Errorf("smtp-tls must be one of none, starttls, tls; got %q", c.SMTPTLS)
	}
	c.SMTPTLS = strings.ToLower(c.SMTPTLS)

	if c.MaxEmptyTurns < 1 {
		return fmt.Errorf("max-empty-turns must be at least 1, got %d", c.MaxEmptyTurns)
	}
	if c.TurnTimeoutSecs < 1 {
		return fmt.Errorf("turn-timeout must be at least 1 second, got %d", c.TurnTimeoutSecs)
	}
	if c.PurgeIntervalMin < 1 {
		return fmt.Errorf("purge-interval must be at least 1 minute, got %d", c.PurgeIntervalMin)
	}
	return nil
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SlogHandler builds the configured slog handler writing to w.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// JWTSecretBytes returns the JWT signing secret. If none is configured a
// random one is generated for the process lifetime; issued tokens then
// stop validating across restarts.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	if c.JWTSecret != "" {
		return []byte(c.JWTSecret), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating jwt secret: %w", err)
	}
	return key, nil
}

// Facts splits the configured business facts on semicolons.
func (c *Config) Facts() []string {
	if c.BusinessFacts == "" {
		return nil
	}
	var facts []string
	for _, f := range strings.Split(c.BusinessFacts, ";") {
		if f = strings.TrimSpace(f); f != "" {
			facts = append(facts, f)
		}
	}
	return facts
}

// TurnTimeout is the per-turn completion budget as a duration.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSecs) * time.Second
}

// PurgeInterval is the retention purge cadence as a duration.
func (c *Config) PurgeInterval() time.Duration {
	return time.Duration(c.PurgeIntervalMin) * time.Minute
}
