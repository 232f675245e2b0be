package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/folio/internal/resources"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <resource> <record-id>",
	Short: "Show the change history of a record",
	Long:  `Show every recorded change to one content record across all plans, oldest first.`,
	Args:  cobra.ExactArgs(2),
	Run:   runHistory,
}

func runHistory(cmd *cobra.Command, args []string) {
	resource, err := resources.Parse(args[0])
	if err != nil {
		exitError("%v", err)
	}

	c := initContext()
	defer c.Close()

	changes, err := c.Store.GetChangesByRecord(resource, args[1])
	if err != nil {
		exitError("failed to get history: %v", err)
	}

	if len(changes) == 0 {
		fmt.Printf("No changes recorded for %s/%s\n", resource, args[1])
		return
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for _, rec := range changes {
		fmt.Printf("%s  plan %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), shortID(rec.PlanID))
		printChange(rec, green, yellow, red)
	}
}
