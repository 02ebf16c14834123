package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"billing/internal/config"
	"billing/internal/database"
	"billing/internal/lock"
	"billing/internal/logger"
	"billing/internal/repository"
	"billing/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "billingctl",
	Short: "Operator tooling for the billing ledger",
	Long: `billingctl runs schema migrations, inspects derived invoice status and
allocates customer payments from the command line. It reads the same
configuration as the API server (configs/.env, then the environment).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		loaded = cfg
		return logger.Setup(cfg.GetLoggerConfig())
	},
}

var (
	envFile string
	loaded  *config.Config
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "configs/.env", "dotenv file loaded before the environment")
}

// services wires the same repository and service graph the API uses.
// Events are not published from the CLI.
type services struct {
	invoices service.InvoiceService
	payments service.PaymentService
	close    func()
}

func openServices() (*services, error) {
	db, err := database.NewConnection(loaded.DSN())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	closeFn := func() {}
	var locker lock.Locker = lock.NewMemoryLocker()
	if loaded.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: loaded.RedisAddr})
		locker = lock.NewRedisLocker(rdb, loaded.LockTTL)
		closeFn = func() { _ = rdb.Close() }
	}

	customerRepo := repository.NewCustomerRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)
	ledgerService := service.NewLedgerService(invoiceRepo, paymentRepo)

	return &services{
		invoices: service.NewInvoiceService(invoiceRepo, customerRepo, auditRepo, ledgerService, txManager, nil),
		payments: service.NewPaymentService(customerRepo, paymentRepo, repository.NewCustomerPaymentRepository(db), auditRepo, ledgerService, txManager, locker, loaded.LockWait, nil),
		close:    closeFn,
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
