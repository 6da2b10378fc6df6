package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type LogConfig struct {
	Level string
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	ConnectAttempts uint64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Argon2Config struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

type SecurityConfig struct {
	JWTSecret        string
	SessionTTL       time.Duration
	VerifyTokenTTL   time.Duration
	ResetTokenTTL    time.Duration
	MaxLoginFailures int
	LoginLockout     time.Duration
	Argon2           Argon2Config
}

type MailConfig struct {
	// Mode is "direct" (SMTP inside the request) or "queue" (Redis stream + worker).
	Mode          string
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	UseSSL        bool
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxDeliveries int
}

type JobsConfig struct {
	TokenPurgeSchedule string
}

type AppConfig struct {
	Environment      string
	Log              LogConfig
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Mail             MailConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

const (
	MailModeDirect = "direct"
	MailModeQueue  = "queue"
)

func Load() (*AppConfig, error) {
	// .env is optional; real environment variables take precedence over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("SMARTCAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Security.JWTSecret) == "" {
		return errors.New("config: security.jwtsecret is required")
	}
	if c.Security.SessionTTL <= 0 || c.Security.VerifyTokenTTL <= 0 || c.Security.ResetTokenTTL <= 0 {
		return errors.New("config: token ttls must be positive")
	}
	switch c.Mail.Mode {
	case MailModeDirect, MailModeQueue:
	default:
		return fmt.Errorf("config: unknown mail.mode %q", c.Mail.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 20)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.connectattempts", 5)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.sessionttl", "1h")
	v.SetDefault("security.verifytokenttl", "24h")
	v.SetDefault("security.resettokenttl", "1h")
	v.SetDefault("security.maxloginfailures", 5)
	v.SetDefault("security.loginlockout", "15m")
	v.SetDefault("security.argon2.time", 3)
	v.SetDefault("security.argon2.memory", 64*1024)
	v.SetDefault("security.argon2.threads", 2)
	v.SetDefault("security.argon2.keylen", 32)
	v.SetDefault("security.argon2.saltlen", 16)

	v.SetDefault("mail.mode", MailModeDirect)
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.usessl", true)
	v.SetDefault("mail.stream", "mail:outbound")
	v.SetDefault("mail.group", "mail-workers")
	v.SetDefault("mail.consumer", "worker-1")
	v.SetDefault("mail.claiminterval", "30s")
	v.SetDefault("mail.maxdeliveries", 5)

	v.SetDefault("jobs.tokenpurgeschedule", "0 */15 * * * *")

	v.SetDefault("allowcorsorigins", []string{})
}
