package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is used when JWT_SECRET is not provided. Tokens signed with it
// can be forged by anyone who has read this file.
const DefaultJWTSecret = "your_jwt_secret_key"

type Config struct {
	PORT string

	// MongoDB is the primary store. When MONGO_URI is empty the Postgres
	// settings below are used instead.
	MONGO_URI      string
	MONGO_DATABASE string

	DB_USERNAME string
	DB_PASSWORD string
	DB_HOST     string
	DB_PORT     string
	DB_NAME     string
	DISABLE_TLS string

	JWT_SECRET       string
	JWT_ISSUER       string
	LOGIN_TOKEN_TTL  time.Duration
	GOOGLE_TOKEN_TTL time.Duration

	jwtSecretDefaulted bool

	ALLOWED_ORIGINS []string

	REDIS_URL           string
	MATERIAL_CACHE_TTL  time.Duration
	MATERIAL_CACHE_SIZE int

	GOOGLE_CLIENT_ID        string
	GOOGLE_CLIENT_SECRET    string
	GOOGLE_CALLBACK_URL     string
	GOOGLE_REQUIRE_ID_TOKEN bool
	STATE_SECRET            string

	OTEL_EXPORTER_OTLP_ENDPOINT string
	OTEL_SERVICE_NAME           string
	OTEL_TRACES_FILE            string
}

func ReadConfig() *Config {
	conf := &Config{
		PORT: getEnvOrDefault("PORT", "5000"),

		MONGO_URI:      os.Getenv("MONGO_URI"),
		MONGO_DATABASE: getEnvOrDefault("MONGO_DATABASE", "fabricqr"),

		DB_USERNAME: os.Getenv("DB_USERNAME"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     getEnvOrDefault("DB_PORT", "5432"),
		DB_NAME:     os.Getenv("DB_NAME"),
		DISABLE_TLS: os.Getenv("DISABLE_TLS"),

		JWT_SECRET:       os.Getenv("JWT_SECRET"),
		JWT_ISSUER:       getEnvOrDefault("JWT_ISSUER", "fabricqr"),
		LOGIN_TOKEN_TTL:  getDurationOrDefault("LOGIN_TOKEN_TTL", time.Hour),
		GOOGLE_TOKEN_TTL: getDurationOrDefault("GOOGLE_TOKEN_TTL", 7*24*time.Hour),

		ALLOWED_ORIGINS: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "*")),

		REDIS_URL:           os.Getenv("REDIS_URL"),
		MATERIAL_CACHE_TTL:  getDurationOrDefault("MATERIAL_CACHE_TTL", 5*time.Minute),
		MATERIAL_CACHE_SIZE: getIntOrDefault("MATERIAL_CACHE_SIZE", 1024),

		GOOGLE_CLIENT_ID:        os.Getenv("GOOGLE_CLIENT_ID"),
		GOOGLE_CLIENT_SECRET:    os.Getenv("GOOGLE_CLIENT_SECRET"),
		GOOGLE_CALLBACK_URL:     os.Getenv("GOOGLE_CALLBACK_URL"),
		GOOGLE_REQUIRE_ID_TOKEN: os.Getenv("GOOGLE_REQUIRE_ID_TOKEN") == "true",
		STATE_SECRET:            os.Getenv("STATE_SECRET"),

		OTEL_EXPORTER_OTLP_ENDPOINT: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTEL_SERVICE_NAME:           getEnvOrDefault("OTEL_SERVICE_NAME", "fabricqr"),
		OTEL_TRACES_FILE:            os.Getenv("OTEL_TRACES_FILE"),
	}

	if conf.JWT_SECRET == "" {
		conf.JWT_SECRET = DefaultJWTSecret
		conf.jwtSecretDefaulted = true
	}

	if conf.STATE_SECRET == "" {
		conf.STATE_SECRET = conf.JWT_SECRET
	}

	return conf
}

// InsecureSecret reports whether the signing secret fell back to DefaultJWTSecret.
func (c *Config) InsecureSecret() bool {
	return c.jwtSecretDefaulted || c.JWT_SECRET == DefaultJWTSecret
}

// HasMongo reports whether a MongoDB connection string was provided.
func (c *Config) HasMongo() bool {
	return c.MONGO_URI != ""
}

// HasPostgres reports whether the Postgres connection settings were provided.
func (c *Config) HasPostgres() bool {
	return c.DB_HOST != "" && c.DB_NAME != ""
}

// PostgresDSN builds the connection string used by sqlx.
func (c *Config) PostgresDSN() string {
	str := fmt.Sprintf("postgresql://%v:%v@%v:%v/%v", c.DB_USERNAME, c.DB_PASSWORD, c.DB_HOST, c.DB_PORT, c.DB_NAME)
	if c.DISABLE_TLS == "true" {
		str = str + "?sslmode=disable"
	}
	return str
}

func (c *Config) GoogleEnabled() bool {
	return c.GOOGLE_CLIENT_ID != ""
}

// String masks secrets so the config can be logged at startup.
func (c *Config) String() string {
	store := "none"
	switch {
	case c.HasMongo():
		store = "mongodb/" + c.MONGO_DATABASE
	case c.HasPostgres():
		store = "postgres/" + c.DB_NAME
	}
	return fmt.Sprintf("Config{port: %s, store: %s, redis: %t, google: %t, jwt: ***}", c.PORT, store, c.REDIS_URL != "", c.GoogleEnabled())
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
