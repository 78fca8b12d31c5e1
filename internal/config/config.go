package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/quicklink/core/config"
	coredatabase "github.com/m3rciful/quicklink/core/database"
)

// Storage drivers accepted by storage.driver.
const (
	DriverAuto     = "auto"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverFile     = "file"
)

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is one of auto, postgres, redis, file. Auto picks postgres when
	// configured, then redis, then the local file.
	Driver    string              `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	Postgres  coredatabase.Config `yaml:"postgres"`
	RedisURL  string              `yaml:"redis_url" envconfig:"REDIS_URL"`
	KeyPrefix string              `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
	FilePath  string              `yaml:"file_path" envconfig:"STORAGE_FILE"`
}

// ShortenerConfig configures the QuickLink shortening API.
type ShortenerConfig struct {
	Endpoint string        `yaml:"endpoint" envconfig:"QUICKLINK_ENDPOINT"`
	APIKey   string        `yaml:"api_key" envconfig:"QUICKLINK_API_KEY"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"QUICKLINK_TIMEOUT"`
}

// QRConfig configures QR rendering and the remote decoder.
type QRConfig struct {
	Size          int           `yaml:"size" envconfig:"QR_SIZE"`
	DecodeAPI     string        `yaml:"decode_api" envconfig:"QR_DECODE_API"`
	DecodeTimeout time.Duration `yaml:"decode_timeout" envconfig:"QR_DECODE_TIMEOUT"`
}

// ChatbaseConfig configures the support chat relay.
type ChatbaseConfig struct {
	Endpoint string        `yaml:"endpoint" envconfig:"CHATBASE_ENDPOINT"`
	APIKey   string        `yaml:"api_key" envconfig:"CHATBASE_API_KEY"`
	BotID    string        `yaml:"bot_id" envconfig:"CHATBASE_BOT_ID"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"CHATBASE_TIMEOUT"`
}

// StatusConfig configures the read-only status page.
type StatusConfig struct {
	Disabled bool   `yaml:"disabled" envconfig:"STATUS_DISABLED"`
	Listen   string `yaml:"listen" envconfig:"STATUS_LISTEN"`
	// Port is honoured when Listen is empty, matching PaaS style PORT variables.
	Port         int           `yaml:"port" envconfig:"PORT"`
	ContactName  string        `yaml:"contact_name" envconfig:"CONTACT_NAME"`
	ContactURL   string        `yaml:"contact_url" envconfig:"CONTACT_URL"`
	OwnerName    string        `yaml:"owner_name" envconfig:"OWNER_NAME"`
	OwnerURL     string        `yaml:"owner_url" envconfig:"OWNER_URL"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// BroadcastConfig tunes the owner broadcast pacing.
type BroadcastConfig struct {
	Budget     time.Duration `yaml:"budget" envconfig:"BROADCAST_BUDGET"`
	MinDelay   time.Duration `yaml:"min_delay" envconfig:"BROADCAST_MIN_DELAY"`
	MaxDelay   time.Duration `yaml:"max_delay" envconfig:"BROADCAST_MAX_DELAY"`
	MaxBackoff time.Duration `yaml:"max_backoff" envconfig:"BROADCAST_MAX_BACKOFF"`
	FloodPad   time.Duration `yaml:"flood_pad" envconfig:"BROADCAST_FLOOD_PAD"`
}

// FlowsConfig holds per-wait bounds of the conversation flows.
type FlowsConfig struct {
	ScanTimeout    time.Duration `yaml:"scan_timeout" envconfig:"FLOW_SCAN_TIMEOUT"`
	ContentTimeout time.Duration `yaml:"content_timeout" envconfig:"FLOW_CONTENT_TIMEOUT"`
	Retention      time.Duration `yaml:"retention" envconfig:"FLOW_RETENTION"`
}

// Config is the application configuration; the core part is inlined at the YAML root.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage   StorageConfig   `yaml:"storage"`
	Shortener ShortenerConfig `yaml:"shortener"`
	QR        QRConfig        `yaml:"qr"`
	Chatbase  ChatbaseConfig  `yaml:"chatbase"`
	Status    StatusConfig    `yaml:"status"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Flows     FlowsConfig     `yaml:"flows"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads .env, the optional YAML file at path and the environment, then validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required settings and fills defaults.
// A missing token or owner id is the only fatal misconfiguration.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if cfg.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id (owner id) is required")
	}

	drv := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch drv {
	case "":
		drv = DriverAuto
	case DriverAuto, DriverPostgres, DriverRedis, DriverFile:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: auto, postgres, redis, file", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = drv
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "quicklink:"
	}
	if cfg.Storage.FilePath == "" {
		cfg.Storage.FilePath = "data/quicklink_bot_storage.json"
	}

	setString(&cfg.Shortener.Endpoint, "https://quick-link-url-shortener.vercel.app/api/v1/st")
	setDuration(&cfg.Shortener.Timeout, 15*time.Second)

	if cfg.QR.Size <= 0 {
		cfg.QR.Size = 1000
	}
	setString(&cfg.QR.DecodeAPI, "https://api.qrserver.com/v1/read-qr-code/")
	setDuration(&cfg.QR.DecodeTimeout, 30*time.Second)

	setString(&cfg.Chatbase.Endpoint, "https://www.chatbase.co/api/v1/chat")
	setDuration(&cfg.Chatbase.Timeout, 20*time.Second)

	if cfg.Status.Listen == "" {
		port := cfg.Status.Port
		if port <= 0 {
			port = 8080
		}
		cfg.Status.Listen = fmt.Sprintf(":%d", port)
	}
	setDuration(&cfg.Status.ReadTimeout, 10*time.Second)
	setDuration(&cfg.Status.WriteTimeout, 10*time.Second)

	setDuration(&cfg.Broadcast.Budget, 300*time.Second)
	setDuration(&cfg.Broadcast.MinDelay, 50*time.Millisecond)
	setDuration(&cfg.Broadcast.MaxDelay, 2*time.Second)
	setDuration(&cfg.Broadcast.MaxBackoff, 300*time.Second)
	setDuration(&cfg.Broadcast.FloodPad, 2*time.Second)
	if cfg.Broadcast.MinDelay > cfg.Broadcast.MaxDelay {
		return fmt.Errorf("broadcast.min_delay must not exceed broadcast.max_delay")
	}

	setDuration(&cfg.Flows.ScanTimeout, 60*time.Second)
	setDuration(&cfg.Flows.ContentTimeout, 300*time.Second)
	setDuration(&cfg.Flows.Retention, 5*time.Minute)
	return nil
}

func setString(v *string, def string) {
	if strings.TrimSpace(*v) == "" {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}
