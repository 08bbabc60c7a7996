package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/Adwaitkp/primaspot/pkg/config"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dbPath     string
	driver     string
	remoteURL  string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "primaspot",
	Short: "Instagram influencer scraping service",
	Long: `Primaspot scrapes public Instagram profiles, posts and reels through a
headless browser, scores their engagement and keeps the results in SQLite.

Run 'primaspot serve' to expose the HTTP API, or use the scrape and status
commands to drive the same pipeline from the terminal.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.primaspot.yaml or $HOME/.config/primaspot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "browser driver (rod, chromedp)")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote-url", "", "DevTools URL of an already running browser")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`Primaspot {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags the user actually set
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if dbPath != "" {
		flags["db"] = dbPath
	}
	if driver != "" {
		flags["driver"] = driver
	}
	if remoteURL != "" {
		flags["remote-url"] = remoteURL
	}
	return flags
}

// loadConfig loads configuration and initialises the global logger
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialise logger: %w", err)
	}
	return cfg, nil
}
