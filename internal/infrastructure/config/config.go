// internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MongoDB
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// PostgreSQL (notification audit log)
	PostgresURI string

	// Upstream MOT history API
	MotAPIBaseURL   string
	MotTokenURL     string
	MotClientID     string
	MotClientSecret string
	MotAPIKey       string
	MotScope        string
	RequestTimeout  time.Duration

	// Push relay
	PushServiceURL string
	PushToken      string
	PushTTL        time.Duration

	// Scheduler
	CheckInterval time.Duration
	BatchSize     int
	BatchDelay    time.Duration
}

// LoadConfig loads configuration from environment variables. All upstream
// credentials and connection strings are required; a missing one fails
// startup before any traffic is served.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		MongoURI:      getEnv("MONGODB_DSN", ""),
		MongoDB:       getEnv("MONGO_DB", "motwatch"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		PostgresURI: getEnv("POSTGRES_DSN", ""),

		MotAPIBaseURL:   getEnv("MOT_API_BASE_URL", ""),
		MotTokenURL:     getEnv("MOT_TOKEN_URL", ""),
		MotClientID:     getEnv("MOT_CLIENT_ID", ""),
		MotClientSecret: getEnv("MOT_CLIENT_SECRET", ""),
		MotAPIKey:       getEnv("MOT_API_KEY", ""),
		MotScope:        getEnv("MOT_SCOPE", ""),
		RequestTimeout:  time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 10)) * time.Second,

		PushServiceURL: getEnv("PUSH_SERVICE_URL", ""),
		PushToken:      getEnv("PUSH_TOKEN", ""),
		PushTTL:        time.Duration(getEnvAsInt("PUSH_TTL", 3600)) * time.Second,

		CheckInterval: time.Duration(getEnvAsInt("CHECK_INTERVAL", 3600)) * time.Second,
		BatchSize:     getEnvAsInt("BATCH_SIZE", 3),
		BatchDelay:    time.Duration(getEnvAsInt("BATCH_DELAY", 3)) * time.Second,
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"MONGODB_DSN":       c.MongoURI,
		"POSTGRES_DSN":      c.PostgresURI,
		"MOT_API_BASE_URL":  c.MotAPIBaseURL,
		"MOT_TOKEN_URL":     c.MotTokenURL,
		"MOT_CLIENT_ID":     c.MotClientID,
		"MOT_CLIENT_SECRET": c.MotClientSecret,
		"MOT_API_KEY":       c.MotAPIKey,
		"MOT_SCOPE":         c.MotScope,
		"PUSH_SERVICE_URL":  c.PushServiceURL,
		"PUSH_TOKEN":        c.PushToken,
	}

	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}

	return nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
