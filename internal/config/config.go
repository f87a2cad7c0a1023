package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Logging    LoggingConfig    `json:"logging"`
	Redis      RedisConfig      `json:"redis"`
	Prometheus PrometheusConfig `json:"prometheus"`
	Notify     NotifyConfig     `json:"notify"`
	Proxy      ProxyConfig      `json:"proxy"`
	Site       SiteConfig       `json:"site"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
	Token    string `json:"token"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// PrometheusConfig covers the render/write/reload pipeline: where generated
// artifacts land, how rules are validated, and how the fleet is told to
// reload them.
type PrometheusConfig struct {
	ConfigPath string `json:"configPath"`
	RulesPath  string `json:"rulesPath"`
	URLsPath   string `json:"urlsPath"`
	FileMode   uint32 `json:"fileMode"`

	Promtool        string `json:"promtool"`
	PromtoolTimeout string `json:"promtoolTimeout"`

	// NATSAddr enables queued reloads addressed by server host. When empty,
	// reloads POST directly to each shard's /-/reload endpoint.
	NATSAddr      string `json:"natsAddr"`
	ReloadSubject string `json:"reloadSubject"`
}

type NotifyConfig struct {
	Workers     int    `json:"workers"`
	QueueSize   int    `json:"queueSize"`
	MaxAttempts int    `json:"maxAttempts"`
	Backoff     string `json:"backoff"`

	// Blacklist drops alerts whose common labels match before any sender
	// is considered. Used for heartbeat/synthetic health-check alerts.
	Blacklist map[string][]string `json:"blacklist"`

	SMTP      SMTPConfig      `json:"smtp"`
	PagerDuty PagerDutyConfig `json:"pagerduty"`
	Telegram  TelegramConfig  `json:"telegram"`
}

type SMTPConfig struct {
	Addr     string `json:"addr"`
	Sender   string `json:"sender"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type PagerDutyConfig struct {
	URL         string            `json:"url"`
	SeverityMap map[string]string `json:"severityMap"`
}

type TelegramConfig struct {
	BotToken string `json:"botToken"`
}

type ProxyConfig struct {
	BindAddr string `json:"bindAddr"`
	Workers  int    `json:"workers"`
	Timeout  string `json:"timeout"`
}

// SiteConfig holds the externally visible base URL used for deep links in
// rule annotations and routed alert annotations.
type SiteConfig struct {
	URL string `json:"url"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()
	return LoadFile(*configFile)
}

// LoadFile builds the config from env defaults and optionally merges the
// given JSON file on top. An empty path skips the file step.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
			Token:    getEnv("SERVER_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "promfleet"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "debug"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Prometheus: PrometheusConfig{
			ConfigPath:      getEnv("PROM_CONFIG_PATH", "/etc/prometheus/promfleet.json"),
			RulesPath:       getEnv("PROM_RULES_PATH", "/etc/prometheus/promfleet.rule.yml"),
			URLsPath:        getEnv("PROM_URLS_PATH", "/etc/prometheus/promfleet.urls.json"),
			FileMode:        uint32(getEnvInt("PROM_FILE_MODE", 0o644)),
			Promtool:        getEnv("PROMTOOL_PATH", "promtool"),
			PromtoolTimeout: getEnv("PROMTOOL_TIMEOUT", "30s"),
			NATSAddr:        getEnv("RELOAD_NATS_ADDR", ""),
			ReloadSubject:   getEnv("RELOAD_SUBJECT", "promfleet.reload"),
		},
		Notify: NotifyConfig{
			Workers:     getEnvInt("NOTIFY_WORKERS", 4),
			QueueSize:   getEnvInt("NOTIFY_QUEUE_SIZE", 1024),
			MaxAttempts: getEnvInt("NOTIFY_MAX_ATTEMPTS", 3),
			Backoff:     getEnv("NOTIFY_BACKOFF", "5s"),
			SMTP: SMTPConfig{
				Addr:     getEnv("SMTP_ADDR", "localhost:25"),
				Sender:   getEnv("SMTP_SENDER", "promfleet@localhost"),
				User:     getEnv("SMTP_USER", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
			},
			PagerDuty: PagerDutyConfig{
				URL: getEnv("PAGERDUTY_URL", "https://events.pagerduty.com/v2/enqueue"),
			},
			Telegram: TelegramConfig{
				BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			},
		},
		Proxy: ProxyConfig{
			BindAddr: getEnv("PROXY_BIND_ADDR", "0.0.0.0:9099"),
			Workers:  getEnvInt("PROXY_WORKERS", 20),
			Timeout:  getEnv("PROXY_TIMEOUT", "30s"),
		},
		Site: SiteConfig{
			URL: getEnv("SITE_URL", "http://localhost:8080"),
		},
	}

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Prometheus.FileMode == 0 {
		cfg.Prometheus.FileMode = 0o644
	}
	if cfg.Prometheus.Promtool == "" {
		cfg.Prometheus.Promtool = "promtool"
	}
	if cfg.Prometheus.PromtoolTimeout == "" {
		cfg.Prometheus.PromtoolTimeout = "30s"
	}
	if cfg.Prometheus.ReloadSubject == "" {
		cfg.Prometheus.ReloadSubject = "promfleet.reload"
	}
	if cfg.Notify.Workers == 0 {
		cfg.Notify.Workers = 4
	}
	if cfg.Notify.QueueSize == 0 {
		cfg.Notify.QueueSize = 1024
	}
	if cfg.Notify.MaxAttempts == 0 {
		cfg.Notify.MaxAttempts = 3
	}
	if cfg.Notify.Backoff == "" {
		cfg.Notify.Backoff = "5s"
	}
	if cfg.Notify.Blacklist == nil {
		cfg.Notify.Blacklist = map[string][]string{"heartbeat": {"true"}}
	}
	if cfg.Proxy.Workers == 0 {
		cfg.Proxy.Workers = 20
	}
	if cfg.Proxy.Timeout == "" {
		cfg.Proxy.Timeout = "30s"
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
