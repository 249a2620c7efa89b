package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/query"
)

func newProgressCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "progress <student-id>",
		Short: "Print a student's progress card as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if target != "" {
				res, err := a.TargetDifficulty.Handle(cmd.Context(), query.TargetDifficultyQuery{StudentID: args[0], Topic: target})
				if err != nil {
					return err
				}
				return enc.Encode(res)
			}

			view, err := a.Progress.Handle(cmd.Context(), query.GetProgressQuery{StudentID: args[0], SkipCache: true})
			if err != nil {
				return err
			}
			return enc.Encode(view)
		},
	}
	cmd.Flags().StringVar(&target, "target-difficulty", "", "print the recommended difficulty for this topic instead")
	return cmd
}
