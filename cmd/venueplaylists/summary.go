package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mattmock/venue-playlists/internal/pipeline"
)

// printSummary renders the per-unit results of a run as a table, followed by
// the aggregate counts.
func printSummary(summary *pipeline.Summary) {
	if len(summary.Units) == 0 && len(summary.CityErrors) == 0 {
		fmt.Println("Nothing to do.")
		return
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"City", "Venue", "Month", "State", "Outcome", "Detail"})
	for _, u := range summary.Units {
		detail := u.PlaylistURL
		if u.Err != nil {
			detail = u.Err.Error()
		}
		tw.AppendRow(table.Row{u.City, u.VenueKey, u.Month.Display(), u.State, u.Outcome, detail})
	}
	fmt.Println(tw.Render())

	for _, ce := range summary.CityErrors {
		fmt.Printf("City %s skipped: %v\n", ce.City, ce.Err)
	}

	updated, skipped, failed := summary.Counts()
	fmt.Printf("\n%d updated, %d skipped, %d failed in %s\n",
		updated, skipped, failed, summary.Finished.Sub(summary.Started).Round(time.Millisecond))
}
