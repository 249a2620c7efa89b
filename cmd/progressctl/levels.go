package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
)

func newLevelsCommand() *cobra.Command {
	var (
		upTo int
		xp   int64
	)

	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the XP required for each level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if upTo < 1 || upTo > student.MaxLevel {
				return fmt.Errorf("--up-to must be between 1 and %d", student.MaxLevel)
			}
			if cmd.Flags().Changed("xp") {
				p := student.LevelFor(xp)
				fmt.Fprintf(cmd.OutOrStdout(), "xp=%d level=%d next_level_at=%d\n", xp, p.Level, p.XPForNext)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "LEVEL\tTOTAL XP\tSTEP\t")
			prev := int64(0)
			for l := 1; l <= upTo; l++ {
				req := student.XPRequired(l)
				fmt.Fprintf(w, "%d\t%d\t%d\t\n", l, req, req-prev)
				prev = req
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&upTo, "up-to", 20, "last level to print")
	cmd.Flags().Int64Var(&xp, "xp", 0, "print the level reached with this XP total instead")
	return cmd
}
