package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string
	Port               string
	GoEnv              string
	LogLevel           string
	LogFormat          string
	Auth0Domain        string
	Auth0Audience      string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSOrigins        []string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	UploadDir          string
	MQTTBrokerURL      string
	MQTTClientID       string
	MQTTTopicPrefix    string

	// Domain defaults
	DefaultPhoneRegion     string
	DefaultTaxRate         decimal.Decimal
	EnableScheduler        bool
	ReminderCheckHour      int
	ReminderLookaheadDays  int
	MinVisitsForPrediction int
}

var current *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Environment-specific file wins, plain .env is the fallback.
	// On a PaaS neither exists and the process environment is used as is.
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Debug("No .env file found, using system environment variables")
		}
	} else {
		log.WithField("file", envFile).Info("Loaded configuration")
	}

	taxRate, err := decimal.NewFromString(getEnv("DEFAULT_TAX_RATE", "0.20"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TAX_RATE is not a decimal: %w", err)
	}

	cfg := &Config{
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		Port:                   getEnv("PORT", "8080"),
		GoEnv:                  getEnv("GO_ENV", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "text"),
		Auth0Domain:            getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:          getEnv("AUTH0_AUDIENCE", ""),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		JWTIssuer:              getEnv("JWT_ISSUER", "autoshop-crm"),
		JWTAudience:            getEnv("JWT_AUDIENCE", "autoshop-crm-api"),
		CORSOrigins:            splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		AWSRegion:              getEnv("AWS_REGION", "eu-central-1"),
		AWSS3Bucket:            getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:         getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		UploadDir:              getEnv("UPLOAD_DIR", "./uploads"),
		MQTTBrokerURL:          getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:           getEnv("MQTT_CLIENT_ID", "autoshop-crm-api"),
		MQTTTopicPrefix:        getEnv("MQTT_TOPIC_PREFIX", "autoshop"),
		DefaultPhoneRegion:     getEnv("DEFAULT_PHONE_REGION", "BG"),
		DefaultTaxRate:         taxRate,
		EnableScheduler:        getEnvBool("ENABLE_SCHEDULER", false),
		ReminderCheckHour:      getEnvInt("REMINDER_CHECK_HOUR", 9),
		ReminderLookaheadDays:  getEnvInt("REMINDER_LOOKAHEAD_DAYS", 14),
		MinVisitsForPrediction: getEnvInt("MIN_VISITS_FOR_PREDICTION", 2),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	current = cfg
	return cfg, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" && c.Auth0Domain == "" {
		return fmt.Errorf("either JWT_SECRET or AUTH0_DOMAIN is required")
	}
	if c.DefaultTaxRate.IsNegative() || c.DefaultTaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("DEFAULT_TAX_RATE must be between 0 and 1")
	}
	if c.ReminderCheckHour < 0 || c.ReminderCheckHour > 23 {
		return fmt.Errorf("REMINDER_CHECK_HOUR must be between 0 and 23")
	}
	if c.MinVisitsForPrediction < 2 {
		return fmt.Errorf("MIN_VISITS_FOR_PREDICTION must be at least 2")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// UsesSharedSecret reports whether tokens are HS256-signed with JWT_SECRET
// rather than verified against the Auth0 JWKS.
func (c *Config) UsesSharedSecret() bool {
	return c.JWTSecret != ""
}

// GetConfig returns the configuration loaded last
func GetConfig() *Config {
	return current
}

// SetConfig replaces the process configuration (primarily for testing)
func SetConfig(cfg *Config) {
	current = cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.WithField("key", key).Warnf("Invalid integer %q, using default %d", value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
