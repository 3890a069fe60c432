package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ericksa/contractai/internal/audit"
	"github.com/ericksa/contractai/internal/config"
	"github.com/ericksa/contractai/internal/ledger"
)

type options struct {
	backend string
	dsn     string
	dataDir string
	audit   string
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "creditctl",
		Short: "Operate the contract service credit ledger",
		Long: `creditctl reads and adjusts credit balances, checks which webhook
events were already applied, and prints the audit log.

The ledger backend and paths come from the same config.yaml and environment
as the gateway; flags override them.

Example:
  creditctl get user@example.com
  creditctl add user@example.com 10
  creditctl processed evt_123 --mark
  creditctl audit --limit 50 --json`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "ledger backend: file, sqlite or postgres")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "ledger DSN for sqlite/postgres")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory for the file backend")
	root.PersistentFlags().StringVar(&opts.audit, "audit-db", "", "audit database path")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON")

	root.AddCommand(
		newGetCmd(opts),
		newAddCmd(opts),
		newSetCmd(opts),
		newProcessedCmd(opts),
		newAuditCmd(opts),
		newSignCmd(opts),
	)
	return root
}

// loadConfig reads the shared configuration and applies flag overrides.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.backend != "" {
		cfg.Ledger.Backend = o.backend
	}
	if o.dsn != "" {
		cfg.Ledger.DSN = o.dsn
	}
	if o.dataDir != "" {
		cfg.Storage.DataDir = o.dataDir
	}
	if o.audit != "" {
		cfg.Audit.Path = o.audit
	}
	return cfg, nil
}

func (o *options) openLedger() (ledger.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(ledger.Options{
		Backend: cfg.Ledger.Backend,
		DataDir: cfg.Storage.DataDir,
		DSN:     cfg.Ledger.DSN,
	})
}

func (o *options) openAudit() (*audit.Auditor, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return audit.Open(cfg.Audit.Path)
}

// print writes v as JSON with --json, otherwise the text line.
func (o *options) print(w io.Writer, v any, text string) error {
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
