package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmerrifield20/chainledger/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const remoteTimeout = 30 * time.Second

func newClient() (*client.Client, error) {
	var opts []client.Option
	if tok := viper.GetString("token"); tok != "" {
		opts = append(opts, client.WithBearerToken(tok))
	}
	return client.New(serverURL, opts...)
}

func remoteContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), remoteTimeout)
}

// ── append ───────────────────────────────────────────────────────────────────

var appendCmd = &cobra.Command{
	Use:   "append <payload>",
	Short: "Append a record to the remote ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := remoteContext()
		defer cancel()

		r, err := c.Append(ctx, args[0])
		if err != nil {
			return fmt.Errorf("append: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Record %d appended\n\n", r.Index)
		printRecord(out, viewOfRemote(*r))
		return nil
	},
}

// ── list ─────────────────────────────────────────────────────────────────────

var (
	listFrom   int
	listLimit  int
	listFormat string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records of the remote ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := remoteContext()
		defer cancel()

		records, err := c.Records(ctx, listFrom, listLimit)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		if listFormat == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		views := make([]recordView, len(records))
		for i, r := range records {
			views[i] = viewOfRemote(r)
		}
		return printRecordTable(cmd.OutOrStdout(), views)
	},
}

func init() {
	listCmd.Flags().IntVar(&listFrom, "from", 0, "First index to list")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum records to list (0 = server default)")
	listCmd.Flags().StringVar(&listFormat, "format", "text", "Output format: text or json")
}

// ── show ─────────────────────────────────────────────────────────────────────

var showCmd = &cobra.Command{
	Use:   "show <index>",
	Short: "Show one record of the remote ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 0 {
			return fmt.Errorf("index must be a non-negative integer, got %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := remoteContext()
		defer cancel()

		r, err := c.Record(ctx, idx)
		if err != nil {
			return fmt.Errorf("show %d: %w", idx, err)
		}
		printRecord(cmd.OutOrStdout(), viewOfRemote(*r))
		return nil
	},
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of the remote ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := remoteContext()
		defer cancel()

		res, err := c.Verify(ctx)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Is the chain valid? %s\n", yesNo(res.Valid))
		if res.Index != nil {
			fmt.Fprintf(out, "First failure at record %d: %s\n", *res.Index, res.Reason)
		}
		if !res.Valid {
			return errors.New("ledger integrity check failed")
		}
		return nil
	},
}

// ── analyze ──────────────────────────────────────────────────────────────────

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize the remote ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := remoteContext()
		defer cancel()

		a, err := c.Analyze(ctx)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		printReport(cmd.OutOrStdout(), reportOfRemote(a))
		return nil
	},
}

// ── search ───────────────────────────────────────────────────────────────────

var searchCmd = &cobra.Command{
	Use:   "search <payload>",
	Short: "Find the first record with an exact payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := remoteContext()
		defer cancel()

		out := cmd.OutOrStdout()
		r, err := c.Search(ctx, args[0])
		if errors.Is(err, client.ErrNotFound) {
			fmt.Fprintf(out, "No record found with payload: %s\n", args[0])
			return nil
		}
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		fmt.Fprintln(out, "Record found:")
		printRecord(out, viewOfRemote(*r))
		return nil
	},
}
