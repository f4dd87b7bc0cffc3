package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vbonduro/nutriai/internal/domain"
)

func newTextCmd(opts *rootOptions) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "text <prompt>",
		Short: "Send a free-form prompt and print the raw answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			text, err := a.gateway.CallText(cmd.Context(), domain.TextRequest{System: system, User: strings.Join(args, " ")}, a.provider)
			if err != nil {
				return fmt.Errorf("text call failed: %w", err)
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"text": text})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "system prompt")
	return cmd
}
