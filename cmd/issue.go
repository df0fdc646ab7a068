package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"facturabot/internal/config"
	"facturabot/internal/logger"
)

var issueCmd = &cobra.Command{
	Use:   "issue \"<command text>\"",
	Short: "Run one issuance pipeline from the terminal",
	Long: `Run the full pipeline for a single invoicing command without going
through the chat webhook: register the ledger row, request authorization,
render the PDF, archive it and reconcile the row.

Milestone notifications go to the chat given with --chat (or
TELEGRAM_DEFAULT_CHAT_ID).`,
	Example: `  facturabot issue "Juan Perez | DNI 12345678 | Servicio de diseño | 5000"
  facturabot issue --chat 123456789 "dni 12345678 cantidad 2 precio 1500,50 detalle sesion"`,
	Args: cobra.ExactArgs(1),
	RunE: runIssue,
}

func init() {
	rootCmd.AddCommand(issueCmd)

	issueCmd.Flags().Int64("chat", 0, "Chat ID to notify (default: TELEGRAM_DEFAULT_CHAT_ID)")
}

func runIssue(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("issue")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	chatID, _ := cmd.Flags().GetInt64("chat")
	if chatID == 0 {
		chatID = cfg.DefaultChatID
	}
	if chatID == 0 {
		return fmt.Errorf("no chat to notify: pass --chat or set TELEGRAM_DEFAULT_CHAT_ID")
	}

	ctx := context.Background()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	orchestrator, err := buildOrchestrator(ctx, cfg, notifier)
	if err != nil {
		return err
	}

	log.Info().Int64("chat_id", chatID).Msg("Running issuance pipeline")

	if err := orchestrator.Issue(ctx, chatID, args[0]); err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	fmt.Println("Invoice issued and reconciled.")
	return nil
}
