package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/bepaste/internal/logging"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and BEPASTE_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → BEPASTE_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("bepaste")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/bepaste/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "bepaste"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("BEPASTE")
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addClientFlags adds the flags every command that talks to the daemon needs.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "", "daemon TCP address (default: the local IPC socket)")
	cmd.Flags().String("token", "", "shared secret (must match the daemon)")
	addConfigFlag(cmd)
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	logging.Setup(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// defaultDBPath follows the XDG base directory layout.
func defaultDBPath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "bepaste.db"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "bepaste", "bepaste.db")
}
