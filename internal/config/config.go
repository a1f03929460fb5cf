package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

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
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	BcryptCost       int
	MinPasswordLen   int
	MaxLoginAttempts int
	RateLimitWindow  time.Duration
	CookieName       string
	CookieSecure     bool
}

type AdminSeedConfig struct {
	Email    string
	Password string
}

type JobsConfig struct {
	SessionCleanupSpec string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Auth             AuthConfig
	AdminSeed        AdminSeedConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("VORBEREITUNG")
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

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("auth.minpasswordlen", 8)
	v.SetDefault("auth.maxloginattempts", 5)
	v.SetDefault("auth.ratelimitwindow", "300s")
	v.SetDefault("auth.cookiename", "session_token")
	v.SetDefault("auth.cookiesecure", false)

	v.SetDefault("adminseed.email", "admin@vorbereitung.local")

	// every 10 minutes, with seconds field
	v.SetDefault("jobs.sessioncleanupspec", "0 */10 * * * *")
}
