package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KaripeHS/BlayStorm-sub001/config"
	"github.com/KaripeHS/BlayStorm-sub001/internal/app"
)

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run the batch jobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, j := range a.Scheduler.ListJobs() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %-40s %s\n", j.Name, j.Schedule, j.Description)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run one job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.RunJob(cmd.Context(), args[0])
			if res != nil {
				keys := make([]string, 0, len(res.Report))
				for k := range res.Report {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%d\n", k, res.Report[k])
				}
				if res.Success {
					color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "ok in %s\n", res.Duration)
				} else {
					color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "failed in %s\n", res.Duration)
				}
			}
			return err
		},
	})
	return cmd
}

func buildApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.New(cmd.Context(), cfg, app.NewSlogLogger(cfg.Log), app.Options{})
}
