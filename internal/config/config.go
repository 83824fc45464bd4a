// Package config собирает настройки сервиса из флагов, окружения, .env и файла конфигурации.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Ключи конфигурации. Для окружения точки и дефисы заменяются на "_".
const (
	KeyPort        = "port"
	KeyStorage     = "storage"
	KeyDatabaseURL = "database_url"
	KeySitesFile   = "sites_file"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
	KeySeed        = "seed"
	KeyPublishWait = "publish_wait"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
)

// Config - настройки сервиса.
type Config struct {
	Port        string
	Storage     string
	DatabaseURL string
	SitesFile   string
	LogLevel    string
	LogFormat   string
	Seed        bool
	// PublishWait - сколько ждать, пока патч станет видимым перед автопубликацией.
	PublishWait time.Duration
}

// SetDefaults регистрирует значения по умолчанию.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyStorage, StorageInMemory)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeySeed, true)
	v.SetDefault(KeyPublishWait, 2*time.Second)
}

// Load читает конфигурацию. Порядок приоритета: флаги, окружение, .env, файл, значения по умолчанию.
func Load(v *viper.Viper, file string) (*Config, error) {
	loadEnvFiles()

	SetDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(".syndication")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		// Файл необязателен
		_ = v.ReadInConfig()
	}

	cfg := &Config{
		Port:        v.GetString(KeyPort),
		Storage:     v.GetString(KeyStorage),
		DatabaseURL: v.GetString(KeyDatabaseURL),
		SitesFile:   v.GetString(KeySitesFile),
		LogLevel:    v.GetString(KeyLogLevel),
		LogFormat:   v.GetString(KeyLogFormat),
		Seed:        v.GetBool(KeySeed),
		PublishWait: v.GetDuration(KeyPublishWait),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageInMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s must be set for postgres storage", strings.ToUpper(KeyDatabaseURL))
		}
	default:
		return fmt.Errorf("unknown storage type %q (in-memory or postgres)", c.Storage)
	}
	if c.PublishWait <= 0 {
		return fmt.Errorf("%s must be positive", KeyPublishWait)
	}
	return nil
}

// loadEnvFiles подгружает .env и .env.local, если они есть.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}
