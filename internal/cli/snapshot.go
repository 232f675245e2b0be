package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/folio/internal/resources"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Summarize every content collection",
	Long: `Summarize every allowed content collection: record counts, recent
records, publish state, stale records and records missing required fields.
Collections that cannot be read are reported empty.`,
	Args: cobra.NoArgs,
	Run:  runSnapshot,
}

var snapshotJSON bool

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print the snapshot as JSON")
}

func runSnapshot(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	snap, err := c.Engine.Snapshot(ctx)
	if err != nil {
		exitError("%v", err)
	}

	if snapshotJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			exitError("%v", err)
		}
		return
	}

	bold := color.New(color.Bold)
	for _, name := range resources.All() {
		summary, ok := snap[name]
		if !ok {
			continue
		}
		bold.Printf("%s", name)
		fmt.Printf(" (%d)\n", summary.Total)
		if summary.Published+summary.Drafts > 0 {
			fmt.Printf("  published %d, drafts %d\n", summary.Published, summary.Drafts)
		}
		if summary.Stale > 0 {
			color.Yellow("  %d stale", summary.Stale)
		}
		if summary.MissingFields > 0 {
			color.Red("  %d missing required fields", summary.MissingFields)
		}
		for _, rec := range summary.Recent {
			fmt.Printf("  - %s  %s\n", rec.ID, rec.Preview)
		}
	}
}
