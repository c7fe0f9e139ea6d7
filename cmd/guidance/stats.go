package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jxzhangjhu/guidance/pkg/tracker"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		model string
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Tracker.DBPath == "" {
				return errors.New("usage tracking is disabled: set tracker.db_path")
			}
			tr, err := tracker.New(a.cfg.Tracker.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			summaries, err := tr.Summary(ctx, model)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tREQUESTS\tCACHED\tATTEMPTS\tPROMPT\tCOMPLETION\tTOTAL")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
					s.Model, s.RequestCount, s.CachedCount, s.TotalAttempts, s.TotalPrompt, s.TotalCompletion, s.TotalTokens)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			total, err := tr.TotalTokens(ctx, time.Now().UTC().Add(-since))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTokens billed in the last %s: %d\n", since, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "filter by model")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "window for the billed token total")
	return cmd
}
