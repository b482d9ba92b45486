package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob. Values come from the environment
// with sensible defaults; a .env file is loaded when present.
type Config struct {
	APIBaseURL     string
	WSURL          string
	AuthToken      string
	SelfID         string
	SelfName       string
	RequestTimeout time.Duration

	TypingTTL      time.Duration
	TypingDebounce time.Duration

	HeartbeatInterval  time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	MaxReconnects      int

	StatusPort string

	AMQPURL      string
	AMQPExchange string

	OTLPEndpoint string
	Environment  string
}

// Load reads configuration from the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	return Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080"),
		WSURL:          getEnv("WS_URL", "ws://localhost:8080/ws"),
		AuthToken:      getEnv("AUTH_TOKEN", ""),
		SelfID:         getEnv("SELF_USER_ID", ""),
		SelfName:       getEnv("SELF_USER_NAME", ""),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),

		TypingTTL:      getDuration("TYPING_TTL", 3*time.Second),
		TypingDebounce: getDuration("TYPING_DEBOUNCE", 2*time.Second),

		HeartbeatInterval:  getDuration("HEARTBEAT_INTERVAL", 25*time.Second),
		ReconnectBaseDelay: getDuration("RECONNECT_BASE_DELAY", time.Second),
		ReconnectMaxDelay:  getDuration("RECONNECT_MAX_DELAY", 30*time.Second),
		MaxReconnects:      getInt("MAX_RECONNECTS", 5),

		StatusPort: getEnv("STATUS_PORT", "8090"),

		AMQPURL:      getEnv("RABBITMQ_URL", ""),
		AMQPExchange: getEnv("RABBITMQ_EXCHANGE", "studenthub.audit"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Environment:  getEnv("ENVIRONMENT", "development"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}
