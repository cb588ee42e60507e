package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultFeedURL is the ADS-B Exchange basic aircraft database.
const DefaultFeedURL = "https://downloads.adsbexchange.com/downloads/basic-ac-db.json.gz"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds all service settings. Keys match the environment variable
// names lowercased, e.g. FEED_URL -> feed_url.
type Config struct {
	FeedURL       string        `koanf:"feed_url" validate:"required,url"`
	OutputDir     string        `koanf:"output_dir" validate:"required"`
	WorkDir       string        `koanf:"work_dir" validate:"required"`
	FetchTimeout  time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	StrictParsing bool          `koanf:"strict_parsing"`

	BuildInterval   time.Duration `koanf:"build_interval" validate:"gt=0"`
	RetryMaxBackoff time.Duration `koanf:"retry_max_backoff" validate:"gt=0"`

	HTTPAddr        string        `koanf:"http_addr" validate:"required"`
	LogLevel        string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string        `koanf:"log_format" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	KafkaBrokers  []string `koanf:"kafka_brokers"`
	KafkaTopic    string   `koanf:"kafka_topic"`
	NotifyEnabled bool     `koanf:"notify_enabled,omitempty"`
}

func defaultConfig() *Config {
	return &Config{
		FeedURL:         DefaultFeedURL,
		OutputDir:       "aircraft",
		WorkDir:         ".",
		FetchTimeout:    5 * time.Minute,
		StrictParsing:   true,
		BuildInterval:   24 * time.Hour,
		RetryMaxBackoff: 5 * time.Minute,
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
		KafkaBrokers:    []string{},
		KafkaTopic:      "aircraft-db-builds",
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitBrokers(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Brokers imply notifications unless NOTIFY_ENABLED says otherwise.
	if !k.Exists("notify_enabled") {
		cfg.NotifyEnabled = len(cfg.KafkaBrokers) > 0
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules. Errors name the
// offending environment variable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("invalid %s (%s)", fe.Field(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	if c.NotifyEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("NOTIFY_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.NotifyEnabled && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when notifications are enabled")
	}
	return nil
}

var validate = newValidator()

// newValidator reports field names as their environment variable names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		return strings.ToUpper(name)
	})
	return v
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitBrokers turns a comma-separated KAFKA_BROKERS string into a slice.
// YAML lists are left alone.
func splitBrokers(k *koanf.Koanf) error {
	raw, ok := k.Get("kafka_brokers").(string)
	if !ok {
		return nil
	}
	brokers := make([]string, 0)
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if err := k.Set("kafka_brokers", brokers); err != nil {
		return fmt.Errorf("set kafka_brokers: %w", err)
	}
	return nil
}
