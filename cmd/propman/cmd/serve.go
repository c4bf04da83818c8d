package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/younoch/property-manegment-frontend-sub000/devserver"
)

var (
	servePort    int
	crossOrigin  string
	accessTTLStr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the development API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []devserver.Option{}
		if crossOrigin != "" {
			opts = append(opts, devserver.WithCookiePolicy(devserver.CrossOriginCookies(crossOrigin)))
		}
		if accessTTLStr != "" {
			ttl, err := time.ParseDuration(accessTTLStr)
			if err != nil {
				return fmt.Errorf("invalid access TTL: %w", err)
			}
			opts = append(opts, devserver.WithAccessTTL(ttl))
		}

		srv, err := devserver.New(opts...)
		if err != nil {
			return fmt.Errorf("creating dev server: %w", err)
		}

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Handle("/metrics", promhttp.Handler())
		r.Mount("/", srv.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", servePort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("Development API listening on port %d...\n", servePort)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&crossOrigin, "cross-origin-domain", "", "Serve cookies for a cross-origin deployment on this domain")
	serveCmd.Flags().StringVar(&accessTTLStr, "access-ttl", "", "Access token lifetime (e.g. 15m)")
}
