package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jmcleod/sessiongate/api"
	"github.com/jmcleod/sessiongate/internal/profile"
	"github.com/jmcleod/sessiongate/internal/util"
	"github.com/jmcleod/sessiongate/internal/xdg"
	bboltstorage "github.com/jmcleod/sessiongate/storage/bbolt"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run the reference backend locally",
	Long: `Serves POST /signup, POST /login, GET /protected and GET /database-info
backed by a bbolt file, with API docs at /docs and Prometheus metrics at
/metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := cfg.DevServer.DataDir
		if dataDir == "" {
			dataDir = filepath.Join(xdg.DataDir(), "devserver")
		}
		if err := xdg.EnsureDir(dataDir); err != nil {
			return err
		}

		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dataDir, "users.db"), nil)
		if err != nil {
			return fmt.Errorf("failed to open user storage: %w", err)
		}
		defer repo.Close()

		dataKey, err := profile.LoadOrCreateKey(filepath.Join(dataDir, "data.key"))
		if err != nil {
			return err
		}
		defer util.WipeBytes(dataKey)
		signingKey, err := profile.LoadOrCreateKey(filepath.Join(dataDir, "signing.key"))
		if err != nil {
			return err
		}
		defer util.WipeBytes(signingKey)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts := []api.Option{
			api.WithLogger(logger),
			api.WithRegisterer(reg),
			api.WithSigningKey(signingKey),
			api.WithAlertFunc(func(e api.AlertEvent) {
				logger.Warn("security alert", "type", e.Type, "count", e.Count, "threshold", e.Threshold)
			}),
		}
		if cfg.DevServer.NoTokens {
			opts = append(opts, api.WithoutTokens())
		}
		a, err := api.New(repo, dataKey, opts...)
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		r.Mount("/", a.Router())

		ln, err := net.Listen("tcp", cfg.DevServer.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.DevServer.Addr, err)
		}
		server := &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		out := cmd.OutOrStdout()
		printBanner(out)
		fmt.Fprintf(out, "Listening on http://%s (data: %s)\n", ln.Addr(), dataDir)
		if cfg.DevServer.NoTokens {
			fmt.Fprintln(out, "Token issuing is disabled; logins succeed without an access token.")
		}

		select {
		case <-cmd.Context().Done():
			fmt.Fprintln(out, "\nShutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return <-done
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(devserverCmd)
	devserverCmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8000)")
	devserverCmd.Flags().String("data-dir", "", "Directory for the user database and keys")
	devserverCmd.Flags().Bool("no-tokens", false, "Answer logins without an access token")
}
