package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List the most recent AI calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := a.logs.Latest(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "WHEN\tCALL\tPROVIDER\tMODEL\tSTATUS\tDURATION\tTOKENS")
			for _, e := range entries {
				status := "ok"
				if !e.Success {
					status = string(e.ErrorKind)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%dms\t%s\n",
					humanize.Time(e.Timestamp), e.CallType, e.Provider, e.Model, status,
					e.DurationMs, humanize.Comma(int64(e.EstimatedTokens)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}
