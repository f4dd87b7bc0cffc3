package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vbonduro/nutriai/internal/domain"
)

func newCaloriesCmd(opts *rootOptions) *cobra.Command {
	var (
		note string
		text string
	)
	cmd := &cobra.Command{
		Use:   "calories [image]",
		Short: "Estimate the calories of a meal photo, or of a description with --text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (text == "") == (len(args) == 0) {
				return errors.New("give either an image path or --text")
			}

			var image []byte
			if len(args) == 1 {
				var err error
				image, err = os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read image: %w", err)
				}
			}

			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			var estimate domain.CalorieEstimate
			if image != nil {
				estimate, err = a.gateway.EstimateCaloriesFromPhoto(cmd.Context(), image, note, a.provider)
			} else {
				estimate, err = a.gateway.EstimateCaloriesFromText(cmd.Context(), text, a.provider)
			}
			if err != nil {
				return fmt.Errorf("calorie estimate failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, estimate)
			}
			_, _ = fmt.Fprintf(out, "%d kcal (%s confidence)\n", estimate.Kcal, estimate.Confidence)
			if len(estimate.Breakdown) > 0 {
				_, _ = fmt.Fprintf(out, "  %s\n", strings.Join(estimate.Breakdown, "\n  "))
			}
			if estimate.Details != "" {
				_, _ = fmt.Fprintf(out, "%s\n", estimate.Details)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "extra context for a photo, such as portion size")
	cmd.Flags().StringVar(&text, "text", "", "describe the meal instead of sending a photo")
	return cmd
}
