package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// SessionTTL is fixed: the session cookie max age is always one hour.
const SessionTTL = time.Hour

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvDockerDev   = "dockerdev"

	VerificationStorePostgres = "postgres"
	VerificationStoreRedis    = "redis"
)

type Config struct {
	Environment string `toml:"-"`

	Host string `toml:"host"`
	Port int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// admin auth
	VerificationStore           string   `toml:"verification_store"`
	VerificationCodeTTL         Duration `toml:"verification_code_ttl"`
	SessionTTL                  Duration `toml:"session_ttl"`
	SweepInterval               Duration `toml:"sweep_interval"`
	LoginRateLimitAllowedPerMin int      `toml:"login_rate_limit_allowed_per_min"`
	AllowedOrigins              []string `toml:"allowed_origins"`
	// only set when the service is reachable solely through the reverse proxy
	TrustProxyHeaders bool `toml:"trust_proxy_headers"`

	// mail transport, credentials come from env vars
	MailHost        string   `toml:"mail_host"`
	MailPort        int      `toml:"mail_port"`
	MailFrom        string   `toml:"mail_from"`
	MailSendTimeout Duration `toml:"mail_send_timeout"`
	MailDevLogOnly  bool     `toml:"mail_dev_log_only"`
}

// Duration lets durations be written as "10m" in the TOML file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment || c.Environment == EnvDockerDev
}

// Validate checks the values the service cannot start without and fills in defaults.
func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.VerificationStore {
	case "":
		c.VerificationStore = VerificationStorePostgres
	case VerificationStorePostgres, VerificationStoreRedis:
	default:
		return fmt.Errorf("unknown verification store: %s", c.VerificationStore)
	}

	if err := positiveOrDefault("verification_code_ttl", &c.VerificationCodeTTL, 10*time.Minute); err != nil {
		return err
	}
	if err := positiveOrDefault("session_ttl", &c.SessionTTL, SessionTTL); err != nil {
		return err
	}
	if c.SessionTTL.Duration != SessionTTL {
		return fmt.Errorf("session_ttl must be %s, got %s", SessionTTL, c.SessionTTL)
	}
	if err := positiveOrDefault("sweep_interval", &c.SweepInterval, 15*time.Minute); err != nil {
		return err
	}
	if err := positiveOrDefault("mail_send_timeout", &c.MailSendTimeout, 15*time.Second); err != nil {
		return err
	}
	if c.LoginRateLimitAllowedPerMin <= 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}

	if !c.MailDevLogOnly {
		if c.MailHost == "" || c.MailPort == 0 {
			return errors.New("mail host and port must be set when mail_dev_log_only is false")
		}
		if c.MailFrom == "" {
			return errors.New("mail_from must be set when mail_dev_log_only is false")
		}
	}
	if c.MailDevLogOnly && !c.IsDevelopment() {
		return fmt.Errorf("mail_dev_log_only is not allowed in [%s] environment", c.Environment)
	}

	return nil
}

func positiveOrDefault(key string, d *Duration, def time.Duration) error {
	switch {
	case d.Duration == 0:
		d.Duration = def
	case d.Duration < 0:
		return fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return nil
}

type Toml struct {
	Development *Config
	Production  *Config
	DockerDev   *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg, env = t.Development, EnvDevelopment
	case "prod", "production":
		cfg, env = t.Production, EnvProduction
	case "ddev", "dockerdev":
		cfg, env = t.DockerDev, EnvDockerDev
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("config section for env [%s] missing", env)
	}
	cfg.Environment = env
	return cfg, nil
}

func Load(env, path string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", path, err)
	}

	cfg, err := tomlConfig.Get(env)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
