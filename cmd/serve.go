package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"facturabot/internal/config"
	"facturabot/internal/logger"
	"facturabot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat webhook server",
	Long: `Start the HTTP server that receives chat updates and runs the issuance
pipeline for each invoicing command.

The webhook endpoint acknowledges the transport immediately; pipeline
progress is reported back to the chat as notifications.

Required environment variables:
  TELEGRAM_TOKEN   - Bot API token
  GOOGLE_SHEET_URL - Ledger spreadsheet URL
  AFIP_BASE_URL    - Authorization bridge endpoint
  ISSUER_CUIT      - Merchant tax identifier
plus Google service-account credentials via
GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Listen port (default: HTTP_PORT or 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = cfg.HTTPPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	orchestrator, err := buildOrchestrator(ctx, cfg, notifier)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Addr:          fmt.Sprintf(":%d", port),
		WebhookSecret: cfg.WebhookSecret,
		Pipeline:      orchestrator,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	log.Info().Int("port", port).Msg("Starting webhook server")
	return srv.Run(ctx)
}
