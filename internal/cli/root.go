// Package cli contains the door-studio commands.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ironsheep/door-ai-studio/internal/config"
	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/logger"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
	provider string
	cfg      *config.Config
	log      *slog.Logger
	version  = "dev"
)

// rootCmd starts the HTTP server when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "door-studio",
	Short: "Door photo compositor and image-edit relay",
	Long: `door-studio prepares door photos for AI background replacement.

It letterboxes a photo onto a square canvas, builds a mask that protects a
centered box around the door and relays both to an image-editing provider.

Example usage:
  door-studio serve                         # HTTP API on :8080
  door-studio mcp                           # MCP tools over stdio
  door-studio prepare door.jpg --out ./out  # write image.png and mask.png
  door-studio version --short`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by the CLI and the MCP
// handshake.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./door-studio.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "image-editing provider: openai or gemini")
}

// initConfig loads .env, then configuration, then sets up logging.
func initConfig(cmd *cobra.Command) error {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load(cfgFile, flagOverrides(cmd))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logger.Init(cfg.Logging.Level)
	imaging.SetMaxSourcePixels(cfg.Canvas.MaxSourcePixels)
	log.Debug("configuration loaded",
		"provider", cfg.Provider.Name,
		"model", cfg.Provider.Model,
		"canvas_size", cfg.Canvas.Size,
	)
	return nil
}

// flagOverrides maps explicitly set flags to their config keys. Flags left
// at their zero value do not mask the file or environment.
func flagOverrides(cmd *cobra.Command) map[string]any {
	keys := map[string]string{
		"log-level": "logging.level",
		"provider":  "provider.name",
		"addr":      "server.addr",
	}

	overrides := make(map[string]any)
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		overrides[key] = f.Value.String()
	}
	return overrides
}
