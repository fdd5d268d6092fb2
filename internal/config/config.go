package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the marketplace.
type Config struct {
	Port     int
	LogLevel string

	// Commission is the fixed fee credited to the broker per
	// confirmed deal.
	Commission int64

	// MinRounds is the number of rounds an automated buyer probes for
	// a better price before accepting an affordable counter-offer.
	MinRounds int

	// BrokerContactTimeout bounds a buyer's wait for the broker's
	// best-match reply.
	BrokerContactTimeout time.Duration

	// ResponseTimeout bounds a negotiator's per-round wait for the
	// counterpart's answer.
	ResponseTimeout time.Duration

	// ManualQueryTimeout bounds a manual buyer's wait for the
	// candidate list.
	ManualQueryTimeout time.Duration

	// BrokerPollInterval is the broker loop's receive timeout; it only
	// bounds how quickly the loop notices shutdown.
	BrokerPollInterval time.Duration

	// AMQPURL selects the AMQP-backed bus when non-empty; the default
	// is the in-process bus.
	AMQPURL string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, after loading a local
// .env file if one exists. Defaults are applied and values validated;
// any invalid value is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	commission, err := getInt64("COMMISSION", 500)
	if err != nil {
		return nil, fmt.Errorf("invalid COMMISSION: %w", err)
	}
	if commission <= 0 {
		return nil, fmt.Errorf("invalid COMMISSION: must be positive, got %d", commission)
	}

	minRounds, err := getInt("MIN_ROUNDS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_ROUNDS: %w", err)
	}
	if minRounds < 1 {
		return nil, fmt.Errorf("invalid MIN_ROUNDS: must be at least 1, got %d", minRounds)
	}

	contactTimeout, err := getDuration("BROKER_CONTACT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid BROKER_CONTACT_TIMEOUT: %w", err)
	}

	responseTimeout, err := getDuration("RESPONSE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RESPONSE_TIMEOUT: %w", err)
	}

	manualQueryTimeout, err := getDuration("MANUAL_QUERY_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid MANUAL_QUERY_TIMEOUT: %w", err)
	}

	pollInterval, err := getDuration("BROKER_POLL_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid BROKER_POLL_INTERVAL: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                 port,
		LogLevel:             logLevel,
		Commission:           commission,
		MinRounds:            minRounds,
		BrokerContactTimeout: contactTimeout,
		ResponseTimeout:      responseTimeout,
		ManualQueryTimeout:   manualQueryTimeout,
		BrokerPollInterval:   pollInterval,
		AMQPURL:              getStr("AMQP_URL", ""),
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		ShutdownTimeout:      shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
