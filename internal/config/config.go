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

	"github.com/fjod/cartsync/pkg/circuitbreaker"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	DefaultJWTSecret = "dev-secret"
)

type ServerConfig struct {
	HTTPPort           string
	Store              string
	MongoURI           string
	MongoDBName        string
	RedisAddr          string
	RedisPassword      string
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	JWTSecret          string
	JWTTTL             time.Duration
	Users              string
	OTLPEndpoint       string
	LogLevel           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

type ClientConfig struct {
	APIURL         string
	LoginURL       string
	Token          string
	RequestTimeout time.Duration
	LogLevel       string
	OTLPEndpoint   string
	Breaker        circuitbreaker.Config
}

// LoadDotEnv reads the given .env files (".env" when none are named) into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		Store:              strings.ToLower(getEnv("CART_STORE", StoreMemory)),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "cart"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "order-placed"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "cart-server-consumer"),
		JWTSecret:          getEnv("JWT_SECRET", DefaultJWTSecret),
		Users:              getEnv("CART_USERS", ""),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxRequestBodySize: 1 << 20, // 1MB
	}

	var errs []error
	cfg.JWTTTL, errs = getDuration("JWT_TTL", 24*time.Hour, errs)
	cfg.RequestTimeout, errs = getDuration("REQUEST_TIMEOUT", 30*time.Second, errs)
	cfg.ShutdownTimeout, errs = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, errs)

	if cfg.Store != StoreMemory && cfg.Store != StoreMongo {
		errs = append(errs, fmt.Errorf("CART_STORE must be %q or %q, got %q", StoreMemory, StoreMongo, cfg.Store))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		APIURL:       strings.TrimRight(getEnv("CART_API_URL", "http://localhost:8080/api"), "/"),
		LoginURL:     getEnv("CART_LOGIN_URL", "/login"),
		Token:        getEnv("CART_TOKEN", ""),
		LogLevel:     getEnv("LOG_LEVEL", "warn"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Breaker:      circuitbreaker.DefaultConfig(),
	}

	var errs []error
	cfg.RequestTimeout, errs = getDuration("CART_REQUEST_TIMEOUT", 10*time.Second, errs)
	cfg.Breaker.Timeout, errs = getDuration("CART_BREAKER_TIMEOUT", cfg.Breaker.Timeout, errs)

	if v := os.Getenv("CART_BREAKER_FAILURES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			errs = append(errs, fmt.Errorf("CART_BREAKER_FAILURES must be a positive integer, got %q", v))
		} else {
			cfg.Breaker.ConsecutiveFailures = uint32(n)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs []error) (time.Duration, []error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultValue, append(errs, fmt.Errorf("%s must be a positive duration, got %q", key, v))
	}
	return d, errs
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
