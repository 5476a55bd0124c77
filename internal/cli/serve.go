package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/door-ai-studio/internal/api"
	"github.com/ironsheep/door-ai-studio/internal/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API: /api/compose relays to the image-editing provider and
/api/prepare, /api/preview and /api/suggest run the compositor locally.

The provider API key must be set, for example with OPENAI_API_KEY.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireProviderKey(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	r, err := newRelay(ctx)
	if err != nil {
		return err
	}

	srv := api.NewServer(r, api.Settings{
		CanvasSize:  cfg.Canvas.Size,
		Fill:        cfg.FillColor(),
		Bounds:      cfg.BoxBounds(),
		BodyLimit:   cfg.Server.BodyLimit,
		EditTimeout: cfg.Provider.Timeout,
	}, log)

	log.InfoContext(ctx, "starting door-studio server",
		"address", cfg.Server.Addr,
		"provider", cfg.Provider.Name,
		"version", version,
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(cfg.Server.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newRelay builds the relay for the configured provider.
func newRelay(ctx context.Context) (*relay.Relay, error) {
	editor, err := relay.NewEditor(ctx, cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating %s editor: %w", cfg.Provider.Name, err)
	}
	return relay.New(editor, cfg.RelayOptions(), log), nil
}
