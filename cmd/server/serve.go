package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/UkralStul/syndication-service/internal/config"
	"github.com/UkralStul/syndication-service/internal/editor"
	"github.com/UkralStul/syndication-service/internal/events"
	"github.com/UkralStul/syndication-service/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Example: `  syndication serve
  syndication serve --port 3000 --seed=false
  syndication serve --storage postgres --database-url postgres://localhost/syndication`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}

	cmd.Flags().String("port", "8080", "HTTP port")
	cmd.Flags().Bool("seed", true, "fill in-memory storage with demo posts")
	cmd.Flags().Duration("publish-wait", 2*time.Second, "how long to wait for a patch before auto-publish")
	bindFlags(a.v, cmd.Flags().Lookup, map[string]string{
		config.KeyPort:        "port",
		config.KeySeed:        "seed",
		config.KeyPublishWait: "publish-wait",
	})
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	log := a.logger
	log.Info().Str("storage", a.cfg.Storage).Msg("starting server")

	store, closeStore, err := a.openStorage()
	if err != nil {
		return err
	}
	defer closeStore()

	reg, err := a.registry()
	if err != nil {
		return err
	}
	if _, err := reg.Sync(ctx, store); err != nil {
		return err
	}

	observer := events.NewObserver()
	if a.cfg.Seed && a.cfg.Storage == config.StorageInMemory {
		if err := fillWithMockData(ctx, store, observer); err != nil {
			return err
		}
	}

	srv := server.New(server.Deps{
		Storage:  store,
		Registry: reg,
		Observer: observer,
		Editor:   editor.Options{PublishWait: a.cfg.PublishWait},
		Logger:   &log,
	})

	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
