package main

import (
	"fmt"
	"os"

	"github.com/Adwaitkp/primaspot/pkg/config"
	"github.com/Adwaitkp/primaspot/pkg/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Primaspot configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables prefixed with PRIMASPOT_
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the defaults",
	Long: `Create a configuration file holding every option at its default value.

The file is written to .primaspot.yaml unless a different path is given
with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after every source has been applied.

The API key is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".primaspot.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration written to " + path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return err
	}

	if cfg.Server.APIKey != "" {
		cfg.Server.APIKey = maskSecret(cfg.Server.APIKey)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(configFile, globalFlags()); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}

// maskSecret keeps the first and last two characters of long secrets
func maskSecret(s string) string {
	if len(s) <= 6 {
		return "******"
	}
	return s[:2] + "******" + s[len(s)-2:]
}
