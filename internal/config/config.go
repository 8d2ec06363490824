package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the dispatch API and its jobs
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBDriver string // mongo, sqlite, postgres or mysql
	MongoURI string
	MongoDB  string
	SQLDSN   string

	// Auth
	JWTSecret string
	JWTExpiry time.Duration

	// Compliance
	Timezone              string
	Location              *time.Location
	InspectionCheckItems  string
	ComplianceCron        string
	ComplianceConcurrency int

	// Uploads
	StorageDriver       string // local or firebase
	StorageDir          string
	StorageBucket       string
	FirebaseCredentials string
	UploadURLTTL        time.Duration

	// Events
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present, then the environment, and applies defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "mongo")),
		MongoURI: getEnv("MONGO_URI", ""),
		MongoDB:  getEnv("MONGO_DB", "fleet_dispatch"),
		SQLDSN:   getEnv("SQL_DSN", "fleet_dispatch.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getDurationEnv("JWT_EXPIRY", 24*time.Hour),

		Timezone:              getEnv("TIMEZONE", "Local"),
		InspectionCheckItems:  getEnv("INSPECTION_CHECK_ITEMS", ""),
		ComplianceCron:        getEnv("COMPLIANCE_CRON", "0 0 20 * * *"),
		ComplianceConcurrency: getIntEnv("COMPLIANCE_CONCURRENCY", 8),

		StorageDriver:       strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		StorageDir:          getEnv("STORAGE_DIR", "uploads"),
		StorageBucket:       getEnv("STORAGE_BUCKET", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		UploadURLTTL:        getDurationEnv("UPLOAD_URL_TTL", 15*time.Minute),

		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "fleet-dispatch"),
		MQTTTopicPrefix: strings.TrimSuffix(getEnv("MQTT_TOPIC_PREFIX", "fleet"), "/"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", config.Timezone, err)
	}
	config.Location = loc

	switch config.DBDriver {
	case "mongo", "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.DBDriver)
	}
	switch config.StorageDriver {
	case "local":
	case "firebase":
		if config.StorageBucket == "" {
			return nil, errors.New("STORAGE_BUCKET is required for the firebase storage driver")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", config.StorageDriver)
	}

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
