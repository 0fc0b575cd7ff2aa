package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`
	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`
	Redis struct {
		Addr        string        `yaml:"addr"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
	} `yaml:"redis"`
	Services struct {
		TrackerServicePort int      `yaml:"tracker_service"`
		AllowedOrigins     []string `yaml:"allowed_origins"`
	} `yaml:"services"`
	JWT struct {
		SecretKey string        `yaml:"secret_key"`
		AccessTTL time.Duration `yaml:"access_ttl"`
	} `yaml:"jwt"`
	Backend struct {
		BaseURL string        `yaml:"base_url"` // empty disables forwarding SOS to the REST backend
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`
	Location struct {
		Enabled    *bool         `yaml:"enabled"`
		MaxFixAge  time.Duration `yaml:"max_fix_age"`
		FixTimeout time.Duration `yaml:"fix_timeout"`
	} `yaml:"location"`
	Tracking struct {
		StartDelay   time.Duration `yaml:"start_delay"`
		TickInterval time.Duration `yaml:"tick_interval"`
		DwellDelay   time.Duration `yaml:"dwell_delay"`
		HandoffDelay time.Duration `yaml:"handoff_delay"`
		SOSCooldown  time.Duration `yaml:"sos_cooldown"`
		SinkTimeout  time.Duration `yaml:"sink_timeout"`
		Step         float64       `yaml:"step"`
		HandoffRoute string        `yaml:"handoff_route"`
	} `yaml:"tracking"`
}

// LocationEnabled reports whether device geolocation is available to SOS.
func (c *Config) LocationEnabled() bool {
	return c.Location.Enabled == nil || *c.Location.Enabled
}

// LoadFromFile loads config from a YAML file to a Config struct, applies env overrides and defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// Load decodes YAML from r; see LoadFromFile.
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func applyEnv(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"DB_PASSWORD", &cfg.Database.Password},
		{"RABBITMQ_PASSWORD", &cfg.RabbitMQ.Password},
		{"REDIS_PASSWORD", &cfg.Redis.Password},
		{"JWT_SECRET", &cfg.JWT.SecretKey},
		{"BACKEND_TOKEN", &cfg.Backend.Token},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.SnapshotTTL == 0 {
		cfg.Redis.SnapshotTTL = 24 * time.Hour
	}

	// Services
	if cfg.Services.TrackerServicePort == 0 {
		cfg.Services.TrackerServicePort = 3002
	}
	if len(cfg.Services.AllowedOrigins) == 0 {
		cfg.Services.AllowedOrigins = []string{"*"}
	}

	// JWT
	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = 2 * time.Hour
	}
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	// Backend
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}

	// Location
	if cfg.Location.MaxFixAge == 0 {
		cfg.Location.MaxFixAge = 30 * time.Second
	}
	if cfg.Location.FixTimeout == 0 {
		cfg.Location.FixTimeout = 10 * time.Second
	}

	// Tracking
	if cfg.Tracking.StartDelay == 0 {
		cfg.Tracking.StartDelay = 5 * time.Second
	}
	if cfg.Tracking.TickInterval == 0 {
		cfg.Tracking.TickInterval = 2 * time.Second
	}
	if cfg.Tracking.DwellDelay == 0 {
		cfg.Tracking.DwellDelay = 5 * time.Second
	}
	if cfg.Tracking.HandoffDelay == 0 {
		cfg.Tracking.HandoffDelay = 2 * time.Second
	}
	if cfg.Tracking.SOSCooldown == 0 {
		cfg.Tracking.SOSCooldown = 10 * time.Second
	}
	if cfg.Tracking.SinkTimeout == 0 {
		cfg.Tracking.SinkTimeout = 5 * time.Second
	}
	if cfg.Tracking.Step == 0 {
		cfg.Tracking.Step = 5
	}
	if cfg.Tracking.HandoffRoute == "" {
		cfg.Tracking.HandoffRoute = "/rating"
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// Redis
	if c.Redis.DB < 0 {
		problems = append(problems, "redis.db must be >= 0")
	}

	// Services
	if c.Services.TrackerServicePort <= 0 || c.Services.TrackerServicePort > 65535 {
		problems = append(problems, "services.tracker_service must be in 1..65535")
	}

	// Backend
	if c.Backend.BaseURL != "" && !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		problems = append(problems, "backend.base_url must be an http(s) URL")
	}

	// Tracking
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"tracking.start_delay", c.Tracking.StartDelay},
		{"tracking.tick_interval", c.Tracking.TickInterval},
		{"tracking.dwell_delay", c.Tracking.DwellDelay},
		{"tracking.handoff_delay", c.Tracking.HandoffDelay},
		{"tracking.sos_cooldown", c.Tracking.SOSCooldown},
		{"tracking.sink_timeout", c.Tracking.SinkTimeout},
		{"location.max_fix_age", c.Location.MaxFixAge},
		{"location.fix_timeout", c.Location.FixTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			problems = append(problems, d.name+" must not be negative")
		}
	}
	if c.Tracking.Step <= 0 || c.Tracking.Step > 100 {
		problems = append(problems, "tracking.step must be in (0, 100]")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
