package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "spliteth"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultSessionDuration = 720 * time.Hour
	defaultCodeTTL         = 10 * time.Minute
	defaultTxWaitTimeout   = 2 * time.Minute
	defaultRequestRate     = 3
	defaultIPFSURL         = "https://ipfs.io/ipfs"
	defaultKafkaTopic      = "spliteth.events"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// SMS providers.
const (
	SMSProviderLog = "log"
	SMSProviderSNS = "sns"
)

// Chain holds what the service needs to sign and submit transactions.
type Chain struct {
	ProviderKey           string
	RPCURL                string
	SessionManagerAddress string
	// ChainID is nil when the RPC should be asked.
	ChainID *big.Int
}

// Complete reports whether every required chain setting is present.
func (c Chain) Complete() bool {
	return c.ProviderKey != "" && c.RPCURL != "" && c.SessionManagerAddress != ""
}

// Missing lists the unset chain variables.
func (c Chain) Missing() []string {
	var out []string
	if c.ProviderKey == "" {
		out = append(out, "PROVIDER_KEY")
	}
	if c.RPCURL == "" {
		out = append(out, "RPC_URL")
	}
	if c.SessionManagerAddress == "" {
		out = append(out, "SESSION_MANAGER_CONTRACT_ADDRESS")
	}
	return out
}

// SMS selects and configures code delivery.
type SMS struct {
	Provider       string
	SenderID       string
	AWSRegion      string
	AWSAccessKeyID string
	AWSSecretKey   string
}

// Kafka configures event publishing. Empty Brokers means events are logged.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	Chain             Chain
	SessionDuration   time.Duration
	CodeTTL           time.Duration
	WaitForActivation bool
	WaitForSplit      bool
	TxWaitTimeout     time.Duration
	RequestRate       int

	SMS     SMS
	IPFSURL string
	Kafka   Kafka
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		Chain: Chain{
			ProviderKey:           strings.TrimSpace(os.Getenv("PROVIDER_KEY")),
			RPCURL:                os.Getenv("RPC_URL"),
			SessionManagerAddress: os.Getenv("SESSION_MANAGER_CONTRACT_ADDRESS"),
		},
		SMS: SMS{
			Provider:       strings.ToLower(getEnv("SMS_PROVIDER", SMSProviderLog)),
			SenderID:       os.Getenv("SMS_SENDER_ID"),
			AWSRegion:      os.Getenv("AWS_REGION"),
			AWSAccessKeyID: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
		IPFSURL: getEnv("IPFS_URL", defaultIPFSURL),
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", defaultKafkaTopic),
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionDuration, err = duration("SESSION_DURATION", defaultSessionDuration); err != nil {
		return Config{}, err
	}
	if cfg.CodeTTL, err = duration("CODE_TTL", defaultCodeTTL); err != nil {
		return Config{}, err
	}
	if cfg.TxWaitTimeout, err = duration("TX_WAIT_TIMEOUT", defaultTxWaitTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WaitForActivation, err = boolean("WAIT_FOR_ACTIVATION", true); err != nil {
		return Config{}, err
	}
	if cfg.WaitForSplit, err = boolean("WAIT_FOR_SPLIT", true); err != nil {
		return Config{}, err
	}

	cfg.RequestRate = defaultRequestRate
	if v := os.Getenv("REQUEST_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REQUEST_RATE_PER_MINUTE: %w", err)
		}
		cfg.RequestRate = n
	}

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, ok := new(big.Int).SetString(v, 10)
		if !ok || id.Sign() <= 0 {
			return Config{}, fmt.Errorf("invalid CHAIN_ID: %q", v)
		}
		cfg.Chain.ChainID = id
	}

	if cfg.SessionDuration < time.Second {
		return Config{}, fmt.Errorf("SESSION_DURATION must be at least 1s")
	}
	if cfg.CodeTTL < 0 {
		return Config{}, fmt.Errorf("CODE_TTL must not be negative")
	}

	switch cfg.SMS.Provider {
	case SMSProviderLog:
	case SMSProviderSNS:
		if cfg.SMS.AWSRegion == "" {
			return Config{}, fmt.Errorf("AWS_REGION must be set when SMS_PROVIDER=sns")
		}
	default:
		return Config{}, fmt.Errorf("unknown SMS_PROVIDER %q", cfg.SMS.Provider)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return duration(durationKey, fallback)
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func boolean(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
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
