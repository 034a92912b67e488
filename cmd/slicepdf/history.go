package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soamn/slicepdf/history"
)

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.History.Enabled {
				return errors.New("history is disabled in the configuration")
			}
			store, err := history.Open(a.cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if a.jsonOutput {
				type row struct {
					ID          string    `json:"id"`
					Kind        string    `json:"kind"`
					Destination string    `json:"destination"`
					Pages       int       `json:"pages"`
					Status      string    `json:"status"`
					Error       string    `json:"error,omitempty"`
					StartedAt   time.Time `json:"started_at"`
					DurationMS  int64     `json:"duration_ms"`
				}
				rows := make([]row, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, row{e.ID, e.Kind, e.Destination, e.Pages, string(e.Status), e.Error, e.StartedAt, e.Duration.Milliseconds()})
				}
				printJSON(a.stdout, rows)
				return nil
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.stdout, "No jobs recorded")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tKIND\tSTATUS\tPAGES\tDESTINATION")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.StartedAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Status, e.Pages, e.Destination)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to show")
	return cmd
}
