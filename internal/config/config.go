package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config/local.yaml"

// Config структура конфига
type Config struct {
	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
		Secure    bool   `yaml:"secure" env:"MINIO_SECURE"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		CommandTopic string   `yaml:"command_topic" env:"COMMAND_TOPIC"`
		AlertTopic   string   `yaml:"alert_topic" env:"ALERT_TOPIC"`
	} `yaml:"kafka"`

	Detection struct {
		Endpoint string        `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
		Timeout  time.Duration `yaml:"timeout" env:"DETECTION_TIMEOUT"`
	} `yaml:"detection"`

	HTTP struct {
		Addr string `yaml:"addr" env:"HTTP_ADDR"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	} `yaml:"log"`

	Processing Processing `yaml:"processing"`
}

// Processing holds the per-source loop tuning.
type Processing struct {
	FrameDelay      time.Duration `yaml:"frame_delay" env:"FRAME_DELAY"`
	SummaryInterval int           `yaml:"summary_interval" env:"SUMMARY_INTERVAL"`
	ReopenDelay     time.Duration `yaml:"reopen_delay" env:"REOPEN_DELAY"`
	AlertCooldown   time.Duration `yaml:"alert_cooldown" env:"ALERT_COOLDOWN"`
	ProximityPx     float64       `yaml:"proximity_threshold" env:"PROXIMITY_THRESHOLD"`
	AwayPx          float64       `yaml:"away_threshold" env:"AWAY_THRESHOLD"`
	SyncInterval    time.Duration `yaml:"sync_interval" env:"SYNC_INTERVAL"`
	AlertBuffer     int           `yaml:"alert_buffer" env:"ALERT_BUFFER"`
}

// Default returns the configuration used for every key the file and the
// environment leave unset.
func Default() *Config {
	cfg := &Config{}
	cfg.Kafka.GroupID = "crowdflow"
	cfg.Kafka.CommandTopic = "source-commands"
	cfg.Kafka.AlertTopic = "crowd-alerts"
	cfg.Detection.Timeout = 5 * time.Second
	cfg.HTTP.Addr = ":8002"
	cfg.Log.Level = "info"
	cfg.Processing = Processing{
		FrameDelay:      30 * time.Millisecond,
		SummaryInterval: 30,
		ReopenDelay:     time.Second,
		AlertCooldown:   60 * time.Second,
		ProximityPx:     10,
		AwayPx:          20,
		SyncInterval:    30 * time.Second,
		AlertBuffer:     64,
	}
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = defaultPath
	}

	// Читаем YAML
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Парсим YAML в структуру
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Парсим переменные окружения с приоритетом
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	p := c.Processing
	var errs []error

	if p.SummaryInterval <= 0 {
		errs = append(errs, fmt.Errorf("processing.summary_interval must be positive, got %d", p.SummaryInterval))
	}
	if p.ProximityPx <= 0 {
		errs = append(errs, fmt.Errorf("processing.proximity_threshold must be positive, got %v", p.ProximityPx))
	}
	if p.AwayPx <= p.ProximityPx {
		errs = append(errs, fmt.Errorf("processing.away_threshold (%v) must exceed proximity_threshold (%v)", p.AwayPx, p.ProximityPx))
	}
	if p.AlertCooldown < 0 {
		errs = append(errs, fmt.Errorf("processing.alert_cooldown must not be negative, got %s", p.AlertCooldown))
	}
	if p.FrameDelay < 0 || p.ReopenDelay < 0 {
		errs = append(errs, errors.New("processing delays must not be negative"))
	}
	if p.SyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("processing.sync_interval must be positive, got %s", p.SyncInterval))
	}
	if p.AlertBuffer <= 0 {
		errs = append(errs, fmt.Errorf("processing.alert_buffer must be positive, got %d", p.AlertBuffer))
	}

	return errors.Join(errs...)
}
