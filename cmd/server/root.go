package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/UkralStul/syndication-service/internal/config"
	"github.com/UkralStul/syndication-service/internal/logging"
	"github.com/UkralStul/syndication-service/internal/sites"
	"github.com/UkralStul/syndication-service/internal/storage"
	"github.com/UkralStul/syndication-service/internal/storage/inmemory"
	"github.com/UkralStul/syndication-service/internal/storage/postgres"
)

// app - общее состояние команд: конфигурация и логгер.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "syndication",
		Short:         "Master post syndication service",
		Long:          "Rolls master posts out to per-site copies and keeps inherited fields in sync.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cmd.ErrOrStderr()})
			logging.SetDefault(a.logger)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./.syndication.yaml)")
	pf.String("storage", config.StorageInMemory, "storage type (in-memory or postgres)")
	pf.String("database-url", "", "postgres DSN, required for postgres storage")
	pf.String("sites-file", "", "YAML site registry (default: built-in list)")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error, disabled)")
	pf.String("log-format", "auto", "log format (json, console, auto)")
	bindFlags(a.v, pf.Lookup, map[string]string{
		config.KeyStorage:     "storage",
		config.KeyDatabaseURL: "database-url",
		config.KeySitesFile:   "sites-file",
		config.KeyLogLevel:    "log-level",
		config.KeyLogFormat:   "log-format",
	})

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newSitesCommand(a))
	cmd.AddCommand(newRolloutCommand(a))
	return cmd
}

// openStorage открывает хранилище по конфигурации. close освобождает ресурсы.
func (a *app) openStorage() (store storage.Storage, closeFn func(), err error) {
	switch a.cfg.Storage {
	case config.StoragePostgres:
		pg, err := postgres.New(a.cfg.DatabaseURL, logging.GormLevel(a.cfg.LogLevel))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return pg, func() {
			if err := pg.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("failed to close postgres connection")
			}
		}, nil
	default:
		return inmemory.New(), func() {}, nil
	}
}

// registry загружает реестр сайтов из файла или берет встроенный.
func (a *app) registry() (*sites.Registry, error) {
	if a.cfg.SitesFile == "" {
		return sites.Default(), nil
	}
	return sites.Load(a.cfg.SitesFile)
}
