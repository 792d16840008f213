package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/model-collapse/maskcoco/internal/quarantine"
)

func newQuarantineCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect quarantined files",
	}
	cmd.AddCommand(newQuarantineListCommand(ctx))
	return cmd
}

func newQuarantineListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <root>",
		Short: "List files moved to quarantine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := ctx.layout(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := quarantine.LedgerPath(layout.QuarantineDir)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "No quarantined files")
				return nil
			}

			ledger, err := quarantine.OpenLedger(path)
			if err != nil {
				return err
			}
			defer ledger.Close()
			entries, err := ledger.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No quarantined files")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				source := e.Source
				if rel, err := filepath.Rel(layout.Root, e.Source); err == nil {
					source = rel
				}
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					shortRunID(e.RunID),
					e.MovedAt.Local().Format(time.DateTime),
					e.Reason,
					source,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Run", "Moved", "Reason", "Source"}, rows, 0))
			return nil
		},
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
