package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ericksa/contractai/internal/billing"
	"github.com/ericksa/contractai/internal/ledger"
)

type balance struct {
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <email>",
		Short: "Print the credit balance for an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			email := ledger.NormalizeEmail(args[0])
			n, err := store.Get(cmd.Context(), email)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), balance{email, n}, fmt.Sprintf("%s: %d", email, n))
		},
	}
}

func newAddCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <email> <amount>",
		Short: "Add (or with a negative amount, remove) credits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			email := ledger.NormalizeEmail(args[0])
			n, err := store.Add(cmd.Context(), email, amount)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), balance{email, n}, fmt.Sprintf("%s: %d", email, n))
		},
	}
}

func newSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <email> <amount>",
		Short: "Overwrite the credit balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			email := ledger.NormalizeEmail(args[0])
			if err := store.Set(cmd.Context(), email, amount); err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), balance{email, amount}, fmt.Sprintf("%s: %d", email, amount))
		},
	}
}

func newProcessedCmd(opts *options) *cobra.Command {
	var mark bool
	cmd := &cobra.Command{
		Use:   "processed <event-id>",
		Short: "Report whether a webhook event was already applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			id := args[0]
			if mark {
				if err := store.Mark(cmd.Context(), id); err != nil {
					return err
				}
			}
			seen, err := store.Has(cmd.Context(), id)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(),
				map[string]any{"event_id": id, "processed": seen},
				fmt.Sprintf("%s: processed=%t", id, seen))
		},
	}
	cmd.Flags().BoolVar(&mark, "mark", false, "mark the event as processed first")
	return cmd
}

func newAuditCmd(opts *options) *cobra.Command {
	var (
		limit int
		kind  string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recent audit log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auditor, err := opts.openAudit()
			if err != nil {
				return err
			}
			defer auditor.Close()

			entries, err := auditor.Recent(kind, limit)
			if err != nil {
				return err
			}
			if opts.json {
				return opts.print(cmd.OutOrStdout(), entries, "")
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tKIND\tSUBJECT\tERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Timestamp.Format(time.RFC3339), e.Kind, e.Subject, e.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	cmd.Flags().StringVar(&kind, "kind", "", "only show entries of this kind (analyze, email, question, webhook)")
	return cmd
}

// newSignCmd signs a payload with the configured webhook secret, for
// replaying deliveries against a local gateway.
func newSignCmd(opts *options) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "sign <payload.json|->",
		Short: "Print Standard Webhooks headers for a payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Billing.WebhookSecret == "" {
				return fmt.Errorf("webhook secret %w", billing.ErrNotConfigured)
			}
			body, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if id == "" {
				id = "msg_" + uuid.NewString()
			}
			h := billing.NewVerifier(cfg.Billing.WebhookSecret, 0).Sign(id, time.Now(), body)
			headers := map[string]string{
				billing.HeaderID:        h.Get(billing.HeaderID),
				billing.HeaderTimestamp: h.Get(billing.HeaderTimestamp),
				billing.HeaderSignature: h.Get(billing.HeaderSignature),
			}
			text := fmt.Sprintf("%s: %s\n%s: %s\n%s: %s",
				billing.HeaderID, headers[billing.HeaderID],
				billing.HeaderTimestamp, headers[billing.HeaderTimestamp],
				billing.HeaderSignature, headers[billing.HeaderSignature])
			return opts.print(cmd.OutOrStdout(), headers, text)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "webhook-id to sign with (default random)")
	return cmd
}

func readPayload(stdin io.Reader, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(arg)
}
