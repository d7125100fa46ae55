package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress  string        `mapstructure:"SERVER_ADDRESS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	PostgresConn string `mapstructure:"POSTGRES_CONN"`
	PostgresUser string `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost string `mapstructure:"POSTGRES_HOST"`
	PostgresPort string `mapstructure:"POSTGRES_PORT"`
	PostgresDB   string `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL string `mapstructure:"MIGRATION_URL"`

	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	NatsURL string `mapstructure:"NATS_URL"`

	GatewayBaseURL       string        `mapstructure:"GATEWAY_BASE_URL"`
	GatewayKeyID         string        `mapstructure:"GATEWAY_KEY_ID"`
	GatewayKeySecret     string        `mapstructure:"GATEWAY_KEY_SECRET"`
	GatewayWebhookSecret string        `mapstructure:"GATEWAY_WEBHOOK_SECRET"`
	GatewayTimeout       time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	GatewayCurrency      string        `mapstructure:"GATEWAY_CURRENCY"`

	PayoutHold          time.Duration `mapstructure:"PAYOUT_HOLD"`
	PayoutSweepInterval time.Duration `mapstructure:"PAYOUT_SWEEP_INTERVAL"`
}

// LoadConfig загружает конфигурацию из файла и переменных окружения
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}
	if err = v.Unmarshal(&cfg); err != nil {
		return
	}
	err = cfg.validate()
	return
}

func (c Config) validate() error {
	if c.PayoutSweepInterval <= 0 {
		return fmt.Errorf("PAYOUT_SWEEP_INTERVAL must be positive, got %s", c.PayoutSweepInterval)
	}
	if c.PayoutHold < 0 {
		return fmt.Errorf("PAYOUT_HOLD must not be negative, got %s", c.PayoutHold)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"SERVER_ADDRESS":         "0.0.0.0:8080",
		"REQUEST_TIMEOUT":        5 * time.Second,
		"POSTGRES_CONN":          "",
		"POSTGRES_USERNAME":      "",
		"POSTGRES_PASSWORD":      "",
		"POSTGRES_HOST":          "",
		"POSTGRES_PORT":          "",
		"POSTGRES_DATABASE":      "",
		"MIGRATION_URL":          "file://db/migration",
		"REDIS_ADDR":             "localhost:6379",
		"REDIS_PASSWORD":         "",
		"REDIS_DB":               0,
		"IDEMPOTENCY_TTL":        24 * time.Hour,
		"NATS_URL":               "nats://localhost:4222",
		"GATEWAY_BASE_URL":       "https://api.razorpay.com",
		"GATEWAY_KEY_ID":         "",
		"GATEWAY_KEY_SECRET":     "",
		"GATEWAY_WEBHOOK_SECRET": "",
		"GATEWAY_TIMEOUT":        10 * time.Second,
		"GATEWAY_CURRENCY":       "INR",
		"PAYOUT_HOLD":            48 * time.Hour,
		"PAYOUT_SWEEP_INTERVAL":  15 * time.Minute,
	}
	// AutomaticEnv учитывается при Unmarshal только для ключей, о которых viper знает.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
