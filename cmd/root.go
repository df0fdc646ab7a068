package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"facturabot/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "facturabot",
	Short: "facturabot - chat-driven electronic invoicing relay",
	Long: `facturabot receives invoicing commands from a chat, registers them in a
spreadsheet ledger, requests electronic authorization (CAE) from the tax
authority, renders a compliant PDF with the verification QR code and
archives a copy to Drive.

Run "facturabot serve" to start the webhook server, or use "issue" and
"check" to drive the pipeline from the terminal.`,
	Version: version,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
