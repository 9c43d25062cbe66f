package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-signin/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sign-in HTTP API",
	Long: `Start the Face Sign-in HTTP API used by the kiosk.

Detector calls are throttled to one per CAPTURE_MIN_INTERVAL for each
kiosk, identified by the X-Kiosk-ID header or the client address. Without
DATABASE_URL and STORAGE_ENDPOINT the server keeps everything in memory,
which is only useful for trying the kiosk out.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, appOptions{
		inMemory: true,
		throttle: true,
		metrics:  prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	a.initIndex(ctx)

	webCfg := a.cfg.Web
	if port := mustGetInt(cmd, "port"); port != 0 {
		webCfg.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		webCfg.Host = host
	}

	deps := web.Deps{
		Service:   a.service,
		Directory: a.store,
		Tasks:     a.store,
		Photos:    a.photos,
		Tokens:    a.tokens,
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    a.log,
	}
	if a.pool != nil {
		deps.Ping = a.pool.Ping
	}
	server := web.NewServer(webCfg, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		a.saveIndex()

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Sign-in API on http://%s\n", webCfg.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
