package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "interestsync.yaml"

type ProjectConfig struct {
	Project      string            `yaml:"project"`
	Version      int               `yaml:"version"`
	Database     DatabaseConfig    `yaml:"database"`
	Collections  Collections       `yaml:"collections"`
	Fields       FieldSet          `yaml:"fields"`
	Placeholders Placeholders      `yaml:"placeholders"`
	Lock         LockConfig        `yaml:"lock"`
	Normalize    NormalizeSettings `yaml:"normalize"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type Collections struct {
	Events      string `yaml:"events"`
	Proposals   string `yaml:"proposals"`
	Owners      string `yaml:"owners"`
	Acceptances string `yaml:"acceptances"`
	Interests   string `yaml:"interests"`
}

type Placeholders struct {
	Title       string `yaml:"title"`
	DisplayName string `yaml:"display_name"`
}

// LockConfig configures the advisory lock that serialises reconciliation
// runs. An empty RedisAddr disables locking.
type LockConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Key           string        `yaml:"key"`
	TTL           time.Duration `yaml:"ttl"`
}

type NormalizeSettings struct {
	BatchSize    int    `yaml:"batch_size"`
	EmployerType string `yaml:"employer_type"`
}

type envOverrides struct {
	DatabaseDSN   string `env:"INTERESTSYNC_DATABASE_DSN"`
	RedisAddr     string `env:"INTERESTSYNC_LOCK_REDIS_ADDR"`
	RedisPassword string `env:"INTERESTSYNC_LOCK_REDIS_PASSWORD"`
}

// NewProjectConfig returns a config with every default applied, for callers
// that do not read a file.
func NewProjectConfig(project, dsn string) *ProjectConfig {
	cfg := &ProjectConfig{
		Project:  project,
		Version:  1,
		Database: DatabaseConfig{DSN: dsn},
	}
	applyDefaults(cfg)
	return cfg
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *ProjectConfig) error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if overrides.DatabaseDSN != "" {
		cfg.Database.DSN = overrides.DatabaseDSN
	}
	if overrides.RedisAddr != "" {
		cfg.Lock.RedisAddr = overrides.RedisAddr
	}
	if overrides.RedisPassword != "" {
		cfg.Lock.RedisPassword = overrides.RedisPassword
	}
	return nil
}

func applyDefaults(cfg *ProjectConfig) {
	setDefault(&cfg.Collections.Events, "likes")
	setDefault(&cfg.Collections.Proposals, "propuestas")
	setDefault(&cfg.Collections.Owners, "usuarios")
	setDefault(&cfg.Collections.Acceptances, "matches")
	setDefault(&cfg.Collections.Interests, "intereses")

	setDefault(&cfg.Placeholders.Title, "Propuesta")
	setDefault(&cfg.Placeholders.DisplayName, "Empresa")

	setDefault(&cfg.Lock.Key, "interestsync:reconcile:"+cfg.Project)
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 10 * time.Minute
	}

	if cfg.Normalize.BatchSize == 0 {
		cfg.Normalize.BatchSize = 500
	}
	setDefault(&cfg.Normalize.EmployerType, "empleador")

	cfg.Fields.applyDefaults()
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Lock.TTL < 0 {
		return fmt.Errorf("lock ttl must be positive")
	}
	if cfg.Normalize.BatchSize < 0 || cfg.Normalize.BatchSize > 500 {
		return fmt.Errorf("normalize batch_size must be between 1 and 500")
	}

	seen := make(map[string]string)
	for role, name := range map[string]string{
		"events":      cfg.Collections.Events,
		"proposals":   cfg.Collections.Proposals,
		"owners":      cfg.Collections.Owners,
		"acceptances": cfg.Collections.Acceptances,
		"interests":   cfg.Collections.Interests,
	} {
		if other, exists := seen[name]; exists {
			return fmt.Errorf("collections %s and %s share the name %q", other, role, name)
		}
		seen[name] = role
	}

	return cfg.Fields.validate()
}
