package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every runtime setting of the relay.
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Persist  PersistConfig
	LogLevel string
}

// ServerConfig describes the websocket listener.
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	ShutdownTimeout time.Duration
}

// AuthConfig describes the external token verification endpoint.
type AuthConfig struct {
	VerifyURL string
	Timeout   time.Duration
}

// PersistConfig describes the external message persistence endpoint
// and its retry policy.
type PersistConfig struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Load reads the configuration from environment variables, applying
// the defaults of the original deployment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	persist, err := loadPersistConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Auth:     auth,
		Persist:  persist,
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8082"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	maxSize, err := parseOptionalInt64Env("MAX_MESSAGE_SIZE")
	if err != nil {
		return ServerConfig{}, err
	}
	size := int64(64 * 1024)
	if maxSize != nil && *maxSize > 0 {
		size = *maxSize
	}

	shutdown, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Addr:            addr,
		AllowedOrigins:  parseOrigins(os.Getenv("ALLOWED_ORIGINS")),
		MaxMessageSize:  size,
		ShutdownTimeout: shutdown,
	}, nil
}

func loadAuthConfig() (AuthConfig, error) {
	timeout, err := parseDurationEnv("AUTH_TIMEOUT", 15*time.Second)
	if err != nil {
		return AuthConfig{}, err
	}

	return AuthConfig{
		VerifyURL: getEnvOrDefault("AUTH_VERIFY_URL", "https://2upra.com/wp-json/galle/v2/verificartoken"),
		Timeout:   timeout,
	}, nil
}

func loadPersistConfig() (PersistConfig, error) {
	timeout, err := parseDurationEnv("PERSIST_TIMEOUT", 15*time.Second)
	if err != nil {
		return PersistConfig{}, err
	}

	delay, err := parseDurationEnv("PERSIST_RETRY_DELAY", time.Second)
	if err != nil {
		return PersistConfig{}, err
	}

	attempts := 5
	if override, err := parseOptionalIntEnv("PERSIST_MAX_ATTEMPTS"); err != nil {
		return PersistConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return PersistConfig{}, fmt.Errorf("PERSIST_MAX_ATTEMPTS must be at least 1, got %d", *override)
		}
		attempts = *override
	}

	return PersistConfig{
		URL:         getEnvOrDefault("PERSIST_URL", "https://2upra.com/wp-json/galle/v2/procesarmensaje"),
		Timeout:     timeout,
		MaxAttempts: attempts,
		RetryDelay:  delay,
	}, nil
}

func parseOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalInt64Env(key string) (*int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, value)
	}
	return val, nil
}
