package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/lattice"
	httpAdapter "github.com/aretw0/lattice/pkg/adapters/http"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Starts the workflow API: streaming execution, saved workflows, examples and knowledge base documents. Metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, logger, metrics.Hooks())
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(context.Background()); err != nil {
				logger.Warn("Failed to release resources", "err", err)
			}
		}()

		eng := a.engine
		p := eng.Provider()
		imageProvider := cfg.LLM.ImageProvider
		if imageProvider == "" {
			imageProvider = p.Name
		}
		handler := httpAdapter.NewHandler(eng,
			httpAdapter.WithWorkflows(eng.Workflows()),
			httpAdapter.WithExamples(eng.Examples()),
			httpAdapter.WithDocuments(eng.Retrieval()),
			httpAdapter.WithKnowledgeBases(cfg.Retrieval.KnowledgeBases...),
			httpAdapter.WithProvider(httpAdapter.ProviderInfo{
				Provider:      p.Name,
				SmallModel:    p.Models.Small,
				LargeModel:    p.Models.Large,
				ImageProvider: imageProvider,
			}),
			httpAdapter.WithVersion(strings.TrimSpace(lattice.Version)),
			httpAdapter.WithGatherer(prometheus.DefaultGatherer),
			httpAdapter.WithLogger(logger),
		)

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting lattice server", "addr", srv.Addr, "provider", p.Name)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			// Streams in flight get the shutdown timeout to finish.
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", cfg.Server.ShutdownTimeout, "err", err)
				return srv.Close()
			}
			logger.Info("Lattice server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8000, "Port to listen on (overrides server.port)")
}
