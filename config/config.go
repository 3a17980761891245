// Package config loads settings from the environment, after reading an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	Env     string
	GinMode string

	DBDriver   string // mysql or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	StoreDriver   string // sql or mongo
	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL string
	EventsQueue string

	JWTSecret string
	JWTIssuer string

	TableServiceURL     string
	TableServiceTimeout time.Duration
	EnableTableService  bool

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	Timezone       string
}

// Load reads .env when present and builds the Config. It reports whether a
// .env file was loaded.
func Load() (*Config, bool) {
	loaded := godotenv.Load() == nil

	port := envStr("PORT", "8080")
	cfg := &Config{
		Port:    port,
		Env:     envStr("APP_ENV", "development"),
		GinMode: envStr("GIN_MODE", "debug"),

		DBDriver:   strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBHost:     envStr("DB_HOST", "127.0.0.1"),
		DBPort:     envStr("DB_PORT", "3306"),
		DBUser:     envStr("DB_USER", "root"),
		DBPassword: envStr("DB_PASSWORD", ""),
		DBName:     envStr("DB_NAME", "restaurant_reservation"),
		SQLitePath: envStr("SQLITE_PATH", "reservations.db"),

		StoreDriver:   strings.ToLower(envStr("STORE_DRIVER", "sql")),
		MongoURI:      envStr("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: envStr("MONGODB_DATABASE", "restaurant"),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		RabbitMQURL: envStr("RABBITMQ_URL", ""),
		EventsQueue: envStr("RESERVATION_EVENTS_QUEUE", "reservation.events"),

		JWTSecret: envStr("JWT_SECRET", "default_jwt_secret"),
		JWTIssuer: envStr("JWT_ISSUER", "restaurant-auth"),

		TableServiceURL:     envStr("TABLE_SERVICE_URL", "http://localhost:"+port),
		TableServiceTimeout: envDur("TABLE_SERVICE_TIMEOUT", 3*time.Second),
		EnableTableService:  envBool("ENABLE_TABLE_SERVICE", true),

		CORSOrigins:    envList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),
		Timezone:       envStr("TIMEZONE", "Local"),
	}
	return cfg, loaded
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Location resolves Timezone, falling back to the process zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func envList(key string, def []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
