package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"facturabot/internal/command"
	"facturabot/internal/normalize"
	"facturabot/pkg/models"
)

var checkCmd = &cobra.Command{
	Use:   "check \"<command text>\"",
	Short: "Parse and validate an invoicing command without side effects",
	Long: `Dry-run the parser and receptor normalization over a command and print
the resulting request as JSON. Nothing is written to the ledger and the
authority is never contacted.`,
	Example: `  facturabot check "Juan Perez | DNI 12345678 | Servicio de diseño | 5000"
  facturabot check "cuit 20-40937847-2 precio 800 cantidad 3 detalle honorarios"`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// checkOutput is the JSON shape printed by the check command.
type checkOutput struct {
	PayerName   string `json:"payer_name,omitempty"`
	DocCategory string `json:"doc_category"`
	DocNumber   string `json:"doc_number"`
	Description string `json:"description,omitempty"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
	IssueDate   string `json:"issue_date,omitempty"`
	ServiceFrom string `json:"service_from,omitempty"`
	ServiceTo   string `json:"service_to,omitempty"`
	Downgraded  bool   `json:"downgraded"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	req, err := command.Parse(args[0])
	if err != nil {
		if errors.Is(err, command.ErrMalformed) {
			fmt.Fprintf(os.Stderr, "malformed command: %v\n", err)
			os.Exit(2)
		}
		return err
	}

	parsed := req
	req = normalize.NormalizeReceptor(req)

	out := checkOutput{
		PayerName:   req.PayerName,
		DocCategory: string(req.DocCategory),
		DocNumber:   req.DocNumber,
		Description: req.Description,
		Quantity:    req.Quantity.String(),
		UnitPrice:   req.UnitPrice.StringFixed(2),
		Total:       req.Total.StringFixed(2),
		Downgraded:  req.DocCategory == models.DocConsumidorFinal && parsed.DocCategory != models.DocConsumidorFinal,
	}
	if !req.IssueDate.IsZero() {
		out.IssueDate = req.IssueDate.Format("2006-01-02")
	}
	if !req.ServiceFrom.IsZero() {
		out.ServiceFrom = req.ServiceFrom.Format("2006-01-02")
	}
	if !req.ServiceTo.IsZero() {
		out.ServiceTo = req.ServiceTo.Format("2006-01-02")
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(encoded))
	return nil
}
