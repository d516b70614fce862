package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds the runtime configuration for the workflow engine.
type Config struct {
	Environment string
	Port        string

	// Database
	PostgresDSN string

	// Object storage (attachment blobs live in a Supabase-style bucket;
	// the engine only needs delete-by-key during hard deletes)
	StorageURL    string
	StorageKey    string
	StorageBucket string

	// JWT
	JWTSecret string

	// Notification channel ticks
	StreamPollInterval      time.Duration
	StreamHeartbeatInterval time.Duration

	// Invitation lifetime (also the resend extension window)
	InvitationTTL time.Duration

	// Rate limiting for mutating endpoints (requests per minute per user)
	RateLimitPerMinute int

	// CORS
	AllowedOrigins []string

	Debug bool
}

// LoadConfig loads configuration from the environment, with .env file
// support for local development.
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment:             getEnvWithDefault("ENVIRONMENT", "development"),
		Port:                    getEnvWithDefault("PORT", "3000"),
		JWTSecret:               getEnvWithDefault("JWT_SECRET", "your-secret-key-change-in-production"),
		StreamPollInterval:      getEnvDuration("STREAM_POLL_INTERVAL", 15*time.Second),
		StreamHeartbeatInterval: getEnvDuration("STREAM_HEARTBEAT_INTERVAL", 45*time.Second),
		InvitationTTL:           getEnvDuration("INVITATION_TTL", 7*24*time.Hour),
		RateLimitPerMinute:      getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		Debug:                   getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.StorageURL = strings.TrimSpace(os.Getenv("STORAGE_URL"))
	config.StorageKey = strings.TrimSpace(os.Getenv("STORAGE_SERVICE_KEY"))
	config.StorageBucket = getEnvWithDefault("STORAGE_BUCKET", "workflow-attachments")

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	if config.Environment == "production" {
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless platforms it initializes once per cold start and reuses
// it across warm invocations, avoiding per-request parsing.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == "your-secret-key-change-in-production" {
		if c.Environment == "production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	if c.PostgresDSN == "" && c.Environment == "production" {
		return fmt.Errorf("POSTGRES_DSN must be set in production")
	}

	if c.StreamPollInterval <= 0 || c.StreamHeartbeatInterval <= 0 {
		return fmt.Errorf("stream intervals must be positive")
	}

	return nil
}

// IsProduction checks whether this is the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment checks whether this is the development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// getEnvWithDefault returns the env value, or defaultValue when unset
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool parses a boolean env value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt parses an integer env value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration parses a duration env value ("15s", "7h", ...)
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// loadEnvFile loads KEY=VALUE pairs from a .env file into the environment.
// Missing files are ignored; existing env vars are never overwritten.
func loadEnvFile(filename string) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return
	}

	file, err := os.Open(filename)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
