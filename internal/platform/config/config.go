package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the process. Every field has
// a development default; production overrides come from AFFINET_* env vars.
type Config struct {
	Addr    string
	BaseURL string

	// ReferralSigningKey signs affiliate tokens; ReferralTokenTTL bounds
	// their lifetime.
	ReferralSigningKey string
	ReferralTokenTTL   time.Duration

	// PostgresDSN empty means in-memory stores (dev mode).
	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig

	// Root operator contact, used once at bootstrap to seed the tree root.
	RootEmail string
	RootPhone string

	// Rates maps currency code to its exchange rate against the native
	// unit, as decimal strings. Empty means the built-in table.
	Rates map[string]string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the audit-stream brokers. Empty Brokers disables the
// Kafka sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("AFFINET_ADDR", ":8080"),
		BaseURL:            envOr("AFFINET_BASE_URL", "http://localhost:8080"),
		ReferralSigningKey: envOr("AFFINET_REFERRAL_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ReferralTokenTTL:   envDurationOr("AFFINET_REFERRAL_TOKEN_TTL", 30*24*time.Hour),
		PostgresDSN:        os.Getenv("AFFINET_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("AFFINET_REDIS_URL"),
			PoolSize:     envIntOr("AFFINET_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("AFFINET_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("AFFINET_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("AFFINET_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("AFFINET_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("AFFINET_KAFKA_BROKERS")),
			Topic:   envOr("AFFINET_KAFKA_AUDIT_TOPIC", "affinet.audit.events"),
		},
		RootEmail: envOr("AFFINET_ROOT_EMAIL", "operator@affinet.local"),
		RootPhone: envOr("AFFINET_ROOT_PHONE", "+10000000001"),
		Rates:     parseRates(os.Getenv("AFFINET_RATES")),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseRates reads "USD=10,EUR=11" into a code-to-rate map. Malformed pairs
// are skipped; validation happens where the rate table is built.
func parseRates(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	rates := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		code, rate, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || code == "" || rate == "" {
			continue
		}
		rates[strings.ToUpper(code)] = rate
	}
	return rates
}
