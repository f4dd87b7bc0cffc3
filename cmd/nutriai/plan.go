package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbonduro/nutriai/internal/domain"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var req domain.PlanRequest
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Write a training plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			plan, err := a.gateway.GeneratePlan(cmd.Context(), req, a.provider)
			if err != nil {
				return fmt.Errorf("plan failed: %w", err)
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), plan.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Goal, "goal", "", "training goal (required)")
	cmd.Flags().IntVar(&req.Weeks, "weeks", 4, "plan length in weeks")
	cmd.Flags().IntVar(&req.SessionsPerWeek, "sessions", 3, "sessions per week")
	cmd.Flags().IntVar(&req.MinutesPerSession, "minutes", 45, "minutes per session")
	cmd.Flags().StringSliceVar(&req.Equipment, "equipment", nil, "available equipment, comma separated")
	return cmd
}
