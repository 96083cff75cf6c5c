package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "REMINDERS"

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	Platform    PlatformConfig    `mapstructure:"platform"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	RabbitMQ    RabbitMQConfig    `mapstructure:"rabbitmq"`
	Email       EmailConfig       `mapstructure:"email"`
	Otel        OtelConfig        `mapstructure:"otel"`
	Log         LogConfig         `mapstructure:"log"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type PreferencesConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	JWTSecret string `mapstructure:"jwt_secret"`
	UserID    string `mapstructure:"user_id"`
}

// PlatformConfig describes the local notification facility. Permission is
// what the facility reports before anyone asks; OnRequest is what a request
// resolves to.
type PlatformConfig struct {
	Native     bool   `mapstructure:"native"`
	Permission string `mapstructure:"permission"`
	OnRequest  string `mapstructure:"on_request"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type RabbitMQConfig struct {
	URL         string `mapstructure:"url"`
	EventsQueue string `mapstructure:"events_queue"`
	AdHocQueue  string `mapstructure:"adhoc_queue"`
}

type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
}

type OtelConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Environment string  `mapstructure:"environment"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type SecretsConfig struct {
	AWSSecretID string `mapstructure:"aws_secret_id"`
	AWSRegion   string `mapstructure:"aws_region"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("preferences.base_url", "http://localhost:8080")
	v.SetDefault("preferences.jwt_secret", "")
	v.SetDefault("preferences.user_id", "")
	v.SetDefault("platform.native", true)
	v.SetDefault("platform.permission", "unknown")
	v.SetDefault("platform.on_request", "granted")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "notification-preferences.updated")
	v.SetDefault("kafka.group_id", "reminder-engine")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.events_queue", "reminders.events")
	v.SetDefault("rabbitmq.adhoc_queue", "reminders.adhoc")
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("email.from", "onboarding@resend.dev")
	v.SetDefault("email.to", "")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.environment", "development")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("secrets.aws_secret_id", "")
	v.SetDefault("secrets.aws_region", "")
}

// Load reads path (optional, any format viper understands), then
// REMINDERS_* environment variables, then defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Preferences.BaseURL == "" {
		errs = append(errs, errors.New("preferences.base_url is required"))
	}
	for key, val := range map[string]string{"platform.permission": c.Platform.Permission, "platform.on_request": c.Platform.OnRequest} {
		switch val {
		case "granted", "denied", "unknown":
		default:
			errs = append(errs, fmt.Errorf("%s must be granted, denied or unknown, got %q", key, val))
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when kafka.brokers is set"))
	}
	return errors.Join(errs...)
}

// splitList accepts both YAML lists and a single comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
