package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/door-ai-studio/internal/server"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the door tools over MCP stdio",
	Long: `Serve the door tools over the Model Context Protocol on stdin/stdout.

Configure it in your MCP client (e.g., Claude Desktop). Logs go to stderr.
Without a provider API key the local tools still work and door_compose
reports that no provider is configured.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	composer, err := mcpComposer(ctx)
	if err != nil {
		return err
	}

	log.Debug("starting MCP server", "version", version, "compose", composer != nil)

	srv := server.New(composer, server.Settings{
		CanvasSize:  cfg.Canvas.Size,
		Fill:        cfg.FillColor(),
		Bounds:      cfg.BoxBounds(),
		Version:     version,
		EditTimeout: cfg.Provider.Timeout,
	}, log)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// mcpComposer returns the relay, or nil when no provider key is set.
func mcpComposer(ctx context.Context) (server.Composer, error) {
	if cfg.RequireProviderKey() != nil {
		log.Warn("provider API key not set, door_compose is disabled", "provider", cfg.Provider.Name)
		return nil, nil
	}
	r, err := newRelay(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}
