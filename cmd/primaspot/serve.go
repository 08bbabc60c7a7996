package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adwaitkp/primaspot/internal/api"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveHeadless bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scraping HTTP API",
	Long: `Run the scraping HTTP API.

Routes:
  GET  /api/health
  POST /api/scraping/profile/:username?forceUpdate=true
  POST /api/scraping/posts/:username?limit=12
  POST /api/scraping/reels/:username?limit=5
  POST /api/scraping/complete/:username?postsLimit=12&reelsLimit=5
  GET  /api/scraping/status

The server stops on SIGINT or SIGTERM, letting in-flight scrapes finish
within the configured shutdown timeout.`,
	Example: `  # Serve on the default address
  primaspot serve

  # Serve on port 8080 with a visible browser
  primaspot serve --addr :8080 --headless=false`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :5000)")
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", true, "run the browser headless")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if serveAddr != "" {
		flags["addr"] = serveAddr
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = serveHeadless
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.WithError(err).Error("Shutdown incomplete")
		}
	}()

	opts := api.OptionsFromConfig(cfg.Server, cfg.Scrape)
	opts.Logger = a.logger.WithField("component", "http")
	srv := api.NewServer(a.coordinator, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	ui.PrintInfo("Listening on", cfg.Server.Address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.LogComponentStop(a.logger, "primaspot", "signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
