package main

import (
	"billing/internal/logger"
	"billing/internal/service"

	"github.com/spf13/cobra"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate <customer-id> <amount>",
	Short: "Apply a customer payment to open invoices, oldest first",
	Long: `Allocate distributes a lump sum over the customer's collectible invoices
ordered by invoice date and then invoice number. Settled invoices are skipped.
Money left over is reported as unapplied and is not stored.`,
	Example: `  # See what would happen
  billingctl allocate 8a6e0804-2bd0-4672-b79d-d97027f9071a 700 --dry-run

  # Record it
  billingctl allocate 8a6e0804-2bd0-4672-b79d-d97027f9071a 700 --method upi --reference UTR123`,
	Args: cobra.ExactArgs(2),
	RunE: runAllocate,
}

func init() {
	rootCmd.AddCommand(allocateCmd)

	allocateCmd.Flags().Bool("dry-run", false, "Show the allocation without recording it")
	allocateCmd.Flags().String("method", "cash", "Payment method: cash, card, upi, other, razorpay")
	allocateCmd.Flags().String("reference", "", "External reference such as a cheque or UTR number")
	allocateCmd.Flags().String("received-at", "", "Date received (YYYY-MM-DD, default: today)")
}

func runAllocate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("allocate")

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	method, _ := cmd.Flags().GetString("method")
	reference, _ := cmd.Flags().GetString("reference")
	receivedAt, _ := cmd.Flags().GetString("received-at")

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	req := service.CustomerPaymentRequest{
		Amount:     args[1],
		Method:     method,
		Reference:  reference,
		ReceivedAt: receivedAt,
	}

	var result service.AllocationResponse
	if dryRun {
		result, err = svc.payments.PreviewAllocation(cmd.Context(), args[0], req)
	} else {
		result, err = svc.payments.AllocateCustomerPayment(cmd.Context(), args[0], "", req)
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("customer_id", args[0]).
		Bool("dry_run", dryRun).
		Str("allocated", result.TotalAllocated).
		Str("unapplied", result.Unapplied).
		Msg("allocation complete")

	return printJSON(cmd.OutOrStdout(), result)
}
