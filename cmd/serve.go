package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/middle-housing/internal/api"
	"github.com/sells-group/middle-housing/internal/fetcher"
	"github.com/sells-group/middle-housing/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the classification API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initEnv(ctx, "serve", envOptions{store: true, scope: pipeline.ParseGeocodeScope(cfg.Geocode.Scope)})
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Server.LoadOnStartup {
			loadDefaultDataset(ctx, env)
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.New(env.Classifier, env.Pipeline, env.Store, api.Options{
				CORSOrigins:    cfg.Server.CORSOrigins,
				MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			}).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSecs)*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// loadDefaultDataset classifies the configured default export into the store
// when the store is still empty. A missing file only logs.
func loadDefaultDataset(ctx context.Context, env *appEnv) {
	existing, err := env.Store.ListDatasets(ctx)
	if err != nil {
		zap.L().Warn("list datasets failed, skipping default load", zap.Error(err))
		return
	}
	if len(existing) > 0 {
		return
	}

	t, err := env.Loader.LoadDefault(ctx, cfg.Ingest.DefaultFile)
	if errors.Is(err, fetcher.ErrNoDefault) {
		zap.L().Debug("no default permit file", zap.String("path", cfg.Ingest.DefaultFile))
		return
	}
	if err != nil {
		zap.L().Warn("load default permit file failed", zap.Error(err))
		return
	}

	res, err := env.Pipeline.Run(ctx, pipeline.Input{Name: t.Source, Header: t.Header, Rows: t.Rows})
	if err != nil {
		zap.L().Warn("classify default permit file failed", zap.Error(err))
		return
	}
	zap.L().Info("loaded default permit file",
		zap.String("id", res.Dataset.ID),
		zap.Int("records", res.Summary.Total),
		zap.Int("middle_housing", res.Summary.MiddleHousing),
	)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
