package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/folio/internal/core"
	"github.com/spf13/cobra"
)

var revertCmd = &cobra.Command{
	Use:   "revert [plan]",
	Short: "Revert a plan or a single change",
	Long: `Revert every pending change of a plan, most recent first, restoring
the content to its state before the plan ran. With --change, revert one
change record only.

Changes that cannot be reverted are left pending; run the command again to
retry them.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRevert,
}

var revertChange string

func init() {
	revertCmd.Flags().StringVar(&revertChange, "change", "", "Revert a single change by ID")
}

func runRevert(cmd *cobra.Command, args []string) {
	if revertChange == "" && len(args) == 0 {
		exitError("specify a plan or --change <id>")
	}
	if revertChange != "" && len(args) > 0 {
		exitError("specify either a plan or --change, not both")
	}

	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	events, cancel := c.Bus.Subscribe(1)
	defer cancel()

	var (
		result *core.RevertResult
		err    error
	)
	if revertChange != "" {
		result, err = c.Engine.RevertChange(ctx, revertChange)
	} else {
		result, err = c.Engine.RevertPlan(ctx, args[0])
	}
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	switch {
	case result.AlreadyReverted:
		yellow.Printf("Change %s is already reverted\n", shortID(result.ChangeID))
		return
	case result.ChangeID != "" && result.Success():
		green.Printf("Reverted change %s\n", shortID(result.ChangeID))
	case result.ChangeID != "":
		red.Printf("Failed to revert change %s\n", shortID(result.ChangeID))
	case result.Success():
		green.Printf("Reverted %d change(s) of plan %s\n", result.Reverted, shortID(result.PlanID))
	default:
		red.Printf("Reverted %d change(s) of plan %s, %d failed\n", result.Reverted, shortID(result.PlanID), result.Failed)
		yellow.Printf("Plan is %s; run 'folio revert %s' again to retry\n", result.Status, shortID(result.PlanID))
	}

	if touched := invalidatedSummary(events); touched != "" {
		fmt.Printf("Invalidated: %s\n", touched)
	}
	if !result.Success() {
		c.Close()
		os.Exit(1)
	}
}
