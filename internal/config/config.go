package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// API holds the order service connection settings.
type API struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Gateway bounds the retrying order gateway.
type Gateway struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Storage selects and configures the device-local persistence backend.
type Storage struct {
	Backend    string // memory | sqlite | redis
	SQLitePath string
	RedisAddr  string
	QueueKey   string
}

// Notify configures the push channels.
type Notify struct {
	SocketURL    string
	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopic   string
}

// Workflow tunes the transition engine.
type Workflow struct {
	SettleDelay time.Duration
	// PingAcceptEnable exposes the accept/decline affordance for adhoc
	// ping orders. Off by default.
	PingAcceptEnable bool
	// AutoConfirm answers confirmation prompts without asking, for
	// headless runs.
	AutoConfirm bool
}

// Config stores the application settings.
type Config struct {
	Port      int
	PprofAddr string
	LogLevel  string
	API       API
	Gateway   Gateway
	Storage   Storage
	Notify    Notify
	Workflow  Workflow
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:     DefaultPort(),
		LogLevel: defaultLogLevel,
		API:      DefaultAPI(),
		Gateway:  DefaultGateway(),
		Storage:  DefaultStorage(),
		Workflow: DefaultWorkflow(),
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid API_TIMEOUT: %q", v)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("QUEUE_KEY"); v != "" {
		cfg.Storage.QueueKey = v
	}
	if v := os.Getenv("SOCKET_URL"); v != "" {
		cfg.Notify.SocketURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Notify.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_GROUP_ID"); v != "" {
		cfg.Notify.KafkaGroupID = v
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Notify.KafkaTopic = v
	}
	if v := os.Getenv("SETTLE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SETTLE_DELAY: %q", v)
		}
		cfg.Workflow.SettleDelay = d
	}
	if v := os.Getenv("PING_ACCEPT_ENABLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PING_ACCEPT_ENABLE: %q", v)
		}
		cfg.Workflow.PingAcceptEnable = b
	}
	if v := os.Getenv("AUTO_CONFIRM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTO_CONFIRM: %q", v)
		}
		cfg.Workflow.AutoConfirm = b
	}
	if v := os.Getenv("PPROF_ADDR"); v != "" {
		cfg.PprofAddr = v
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	pflag.StringVar(&cfg.API.BaseURL, "api-base-url", cfg.API.BaseURL, "order service base URL")
	pflag.StringVar(&cfg.API.Token, "api-token", cfg.API.Token, "driver bearer token")
	pflag.StringVar(&cfg.Storage.Backend, "storage", cfg.Storage.Backend, "storage backend (memory, sqlite, redis)")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	switch cfg.Storage.Backend {
	case "memory", "sqlite", "redis":
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
