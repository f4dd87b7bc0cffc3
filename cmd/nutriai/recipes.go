package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRecipesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recipes <prompt>",
		Short: "Suggest recipes for a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			recipes, err := a.gateway.GenerateRecipes(cmd.Context(), strings.Join(args, " "), a.provider)
			if err != nil {
				return fmt.Errorf("recipes failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, recipes)
			}
			for i, r := range recipes {
				if i > 0 {
					_, _ = fmt.Fprintln(out)
				}
				_, _ = fmt.Fprintf(out, "%s\n", r.Title)
				if r.Calories != nil {
					_, _ = fmt.Fprintf(out, "  %d kcal\n", *r.Calories)
				}
				_, _ = fmt.Fprintln(out, "  Ingredients:")
				for _, ing := range r.Ingredients {
					_, _ = fmt.Fprintf(out, "    - %s\n", ing)
				}
				_, _ = fmt.Fprintln(out, "  Steps:")
				for n, step := range r.Steps {
					_, _ = fmt.Fprintf(out, "    %d. %s\n", n+1, step)
				}
			}
			return nil
		},
	}
}
