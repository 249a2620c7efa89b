// Command progressctl administers the progression store: schema migrations,
// on-demand batch jobs and inspection of the level curve and student progress.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "progressctl",
		Short:         "Administer the adaptive progression engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./blaystorm.yaml if present)")

	root.AddCommand(
		newMigrateCommand(),
		newJobsCommand(),
		newLevelsCommand(),
		newProgressCommand(),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
