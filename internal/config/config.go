package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "SCHOOLHOUSE"

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpen         int           `mapstructure:"max_open_conns"`
	MaxIdle         int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StorageConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	BucketMedia string `mapstructure:"bucket_media"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	Region      string `mapstructure:"region"`
}

type SecurityConfig struct {
	JWTAccessSecret  string        `mapstructure:"jwt_access_secret"`
	JWTAccessTTL     time.Duration `mapstructure:"jwt_access_ttl"`
	JWTRefreshTTL    time.Duration `mapstructure:"jwt_refresh_ttl"`
	JWTIssuer        string        `mapstructure:"jwt_issuer"`
	MediaURLSecret   string        `mapstructure:"media_url_secret"`
	MediaURLTTL      time.Duration `mapstructure:"media_url_ttl"`
	MaxSessions      int           `mapstructure:"max_sessions"`
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
	LoginLockout     time.Duration `mapstructure:"login_lockout"`
}

type MediaConfig struct {
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	CleanupStream  string `mapstructure:"cleanup_stream"`
}

type WorkerConfig struct {
	Stream            string        `mapstructure:"stream"`
	Group             string        `mapstructure:"group"`
	Consumer          string        `mapstructure:"consumer"`
	Block             time.Duration `mapstructure:"block"`
	ClaimInterval     time.Duration `mapstructure:"claim_interval"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
}

type JobsConfig struct {
	SessionPruneSpec string `mapstructure:"session_prune_spec"`
}

type BootstrapConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

type AppConfig struct {
	Environment      string          `mapstructure:"environment"`
	LogLevel         string          `mapstructure:"log_level"`
	HTTP             HTTPConfig      `mapstructure:"http"`
	Postgres         PostgresConfig  `mapstructure:"postgres"`
	Redis            RedisConfig     `mapstructure:"redis"`
	Storage          StorageConfig   `mapstructure:"storage"`
	Security         SecurityConfig  `mapstructure:"security"`
	Media            MediaConfig     `mapstructure:"media"`
	Worker           WorkerConfig    `mapstructure:"worker"`
	Jobs             JobsConfig      `mapstructure:"jobs"`
	Bootstrap        BootstrapConfig `mapstructure:"bootstrap"`
	AllowCORSOrigins []string        `mapstructure:"allow_cors_origins"`
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if len(c.Security.JWTAccessSecret) < 32 {
		errs = append(errs, errors.New("security.jwt_access_secret must be at least 32 bytes"))
	}
	if c.Security.JWTAccessTTL <= 0 {
		errs = append(errs, errors.New("security.jwt_access_ttl must be positive"))
	}
	if c.Media.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("media.max_upload_bytes must be positive"))
	}
	return errors.Join(errs...)
}

func (c *AppConfig) ValidateWorker() error {
	var errs []error
	if c.Worker.Stream == "" || c.Worker.Group == "" || c.Worker.Consumer == "" {
		errs = append(errs, errors.New("worker.stream, worker.group and worker.consumer are required"))
	}
	if c.Storage.BucketMedia == "" {
		errs = append(errs, errors.New("storage.bucket_media is required"))
	}
	return errors.Join(errs...)
}

// Load reads config.yaml (if present), then the environment. Values from a
// local .env file are exported before the environment is consulted. Callers
// validate the sections their process needs.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Security.MediaURLSecret == "" {
		cfg.Security.MediaURLSecret = cfg.Security.JWTAccessSecret
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime", "30m")
	v.SetDefault("postgres.log_queries", false)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket_media", "schoolhouse-media")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwt_access_secret", "")
	v.SetDefault("security.jwt_access_ttl", "1h")
	v.SetDefault("security.jwt_refresh_ttl", "720h")
	v.SetDefault("security.jwt_issuer", "schoolhouse")
	v.SetDefault("security.media_url_secret", "")
	v.SetDefault("security.media_url_ttl", "15m")
	v.SetDefault("security.max_sessions", 10)
	v.SetDefault("security.login_max_attempts", 5)
	v.SetDefault("security.login_lockout", "15m")

	v.SetDefault("media.max_upload_bytes", 25<<20)
	v.SetDefault("media.cleanup_stream", "media:cleanup")

	v.SetDefault("worker.stream", "media:cleanup")
	v.SetDefault("worker.group", "media-cleanup")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.block", "5s")
	v.SetDefault("worker.claim_interval", "30s")
	v.SetDefault("worker.visibility_timeout", "2m")

	v.SetDefault("jobs.session_prune_spec", "0 0 * * * *")

	v.SetDefault("bootstrap.admin_username", "")
	v.SetDefault("bootstrap.admin_email", "")
	v.SetDefault("bootstrap.admin_password", "")

	v.SetDefault("allow_cors_origins", []string{})
}
