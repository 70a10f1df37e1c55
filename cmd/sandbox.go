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

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/paypal-activation/internal/sandbox"
	"github.com/frahmantamala/paypal-activation/internal/transport/middleware"
	"github.com/frahmantamala/paypal-activation/pkg/logger"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Start a local PayPal stand-in",
	Long:  `Serve the PayPal REST payment endpoints, an approval page redirect and IPN verification locally, and deliver IPNs to the server through a worker pool`,
	Run: func(cmd *cobra.Command, args []string) {
		startSandbox()
	},
}

var (
	sandboxPort   int
	maxWorkers    int
	jobQueueSize  int
	maxAttempts   int
	ipnURL        string
	sandboxPublic string
)

func startSandbox() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg := logger.LoggerWrapper().With("component", "sandbox")
	sc := config.Sandbox

	// Use command line flags if provided, otherwise use config values
	delivererConfig := sandbox.DelivererConfig{
		IPNURL:       getStringFlag(ipnURL, sc.IPNURL),
		MaxWorkers:   getIntFlag(maxWorkers, sc.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, sc.JobQueueSize),
		MaxAttempts:  getIntFlag(maxAttempts, sc.MaxAttempts),
		RetryDelay:   sc.RetryDelay,
		Delay:        sc.IPNDelay,
	}
	port := getIntFlag(sandboxPort, sc.Port)
	baseURL := getStringFlag(sandboxPublic, sc.BaseURL)

	lg.Info("starting paypal sandbox",
		"port", port,
		"base_url", baseURL,
		"ipn_url", delivererConfig.IPNURL,
		"max_workers", delivererConfig.MaxWorkers,
		"job_queue_size", delivererConfig.JobQueueSize)

	deliverer := sandbox.NewDeliverer(delivererConfig, lg)

	srv, err := sandbox.NewServer(sandbox.ServerConfig{
		BaseURL:      baseURL,
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
	}, deliverer, deliverer, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create sandbox: %v\n", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(lg))
	router.Mount("/", srv.Routes())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("paypal sandbox is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down paypal sandbox", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("sandbox server failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		lg.Error("sandbox server shutdown error", "error", err)
	}

	shutdownDone := make(chan struct{})
	go func() {
		deliverer.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		lg.Info("ipn delivery worker pool shutdown complete")
	case <-ctx.Done():
		lg.Warn("shutdown timeout reached, forcing exit")
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	sandboxCmd.Flags().IntVar(&sandboxPort, "port", 0, "Listen port (overrides config)")
	sandboxCmd.Flags().StringVar(&sandboxPublic, "base-url", "", "Public base url used in approval links (overrides config)")
	sandboxCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of IPN delivery workers (overrides config)")
	sandboxCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "IPN job queue buffer size (overrides config)")
	sandboxCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "IPN delivery attempts before giving up (overrides config)")
	sandboxCmd.Flags().StringVar(&ipnURL, "ipn-url", "", "Listener url IPNs are posted to (overrides config)")

	rootCmd.AddCommand(sandboxCmd)
}
