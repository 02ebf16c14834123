package main

import (
	"fmt"

	"billing/internal/service"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [invoice-id]",
	Short: "Print the derived payment status of an invoice",
	Example: `  billingctl status 3f1c2d8e-6b0a-4c39-9d3e-1f2a3b4c5d6e
  billingctl status --number INV-20240105-00012`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, _ := cmd.Flags().GetString("number")
		if (len(args) == 0) == (number == "") {
			return fmt.Errorf("pass either an invoice id or --number")
		}

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		var status service.InvoiceStatusResponse
		if number != "" {
			status, err = svc.invoices.GetInvoiceStatusByNumber(cmd.Context(), number)
		} else {
			status, err = svc.invoices.GetInvoiceStatus(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), status)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("number", "", "Look the invoice up by invoice number")
}
