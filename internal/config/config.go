package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var AppEnv Config

type Config struct {
	Env             string
	Port            string
	LogLevel        string
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RequestTimeout  time.Duration

	// ReturnWindow is measured from actual delivery.
	ReturnWindow    time.Duration
	RestockOnReturn bool

	KafkaBrokers []string
	KafkaTopic   string
}

// IsProduction reports whether internal error messages must be hidden from clients.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv reads the configuration without touching .env files.
func FromEnv() Config {
	return Config{
		Env:             getEnvOrDefault("APP_ENV", EnvDevelopment),
		Port:            getEnvOrDefault("PORT", "8080"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "storefront"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),
		RequestTimeout:  getDurationEnv("REQUEST_TIMEOUT", 5, time.Second),
		ReturnWindow:    getDurationEnv("RETURN_WINDOW_DAYS", 7, 24*time.Hour),
		RestockOnReturn: getBoolEnv("RESTOCK_ON_RETURN", false),
		KafkaBrokers:    getListEnv("KAFKA_BROKERS"),
		KafkaTopic:      getEnvOrDefault("KAFKA_TOPIC", "order-events"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
