package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/app"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/handlers"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/storage"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the book analysis API",
		Long: `Starts the book analysis HTTP API.

Upload page photographs to /api/analyze-book/ or /api/analyze-cover/, search
and validate Library of Congress subject headings under /api/subjects/, and
browse recent analyses under /api/analyses. Interactive documentation is
served at /docs.

Changes to the config file are picked up without a restart.`,
		Example: `  # Start server on the configured port (default 8888)
  bookanalyzer serve

  # Start server on custom port
  bookanalyzer serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := opts.configManager()
			if err != nil {
				return err
			}
			cfg := cm.Get()
			if port != "" {
				cfg.Server.Port = port
			}

			components, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer components.Close()

			handler := handlers.New(
				components.Orchestrator(cfg),
				components.LOC,
				components.Retriever(cfg),
				storage.NewAnalysisStore(cfg.Server.HistorySize),
				handlers.Options{
					Version:        cmd.Root().Version,
					MaxUploadBytes: cfg.Server.MaxUploadBytes,
				},
			)

			// Pipeline settings reload in place; connections and ports need a restart
			cm.OnChange(func(next *config.Config) {
				handler.Reconfigure(components.Orchestrator(next), components.Retriever(next))
				slog.Info("Analysis pipeline reconfigured", "authorities", next.Analysis.Authorities)
			})
			cm.WatchConfig()

			addr := ":" + cfg.Server.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           otelhttp.NewHandler(handler.Router(), "api"),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Book analyzer API available",
					"addr", addr,
					"url", "http://localhost"+addr,
					"docs", "http://localhost"+addr+"/docs",
					"ocr_provider", components.OCR.Name())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides server.port)")

	return cmd
}
