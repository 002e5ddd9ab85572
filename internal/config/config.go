package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process settings read from the environment.
type Config struct {
	Port            string
	AppEnv          string
	ServiceName     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	StoreDriver     string
	JWTSecret       string
	AMQPURL         string
	AMQPExchange    string
	OTLPEndpoint    string
	GRPCHealthAddr  string
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	return Config{
		Port:            getEnv("PORT", "8083"),
		AppEnv:          getEnv("APP_ENV", "production"),
		ServiceName:     getEnv("SERVICE_NAME", "chat-service"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", "redis")),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "chat.events"),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		GRPCHealthAddr:  getEnv("GRPC_HEALTH_ADDR", ""),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

// IsDev reports whether development-only operations are allowed.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development":
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return val
	}
	return fallback
}
