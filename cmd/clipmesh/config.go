package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clipmesh/clipmesh/internal/logging"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPMESH_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPMESH_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("clipmesh")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/clipmesh/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/clipmesh", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CLIPMESH")
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

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// defaultOrigin names this node: hostname plus a short random suffix, so two
// machines with the same hostname stay distinguishable in logs and status.
// The origin is diagnostic only — loop prevention is hash-based.
func defaultOrigin() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	suffix := strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
	return fmt.Sprintf("%s-%s", host, suffix[len(suffix)-6:])
}
