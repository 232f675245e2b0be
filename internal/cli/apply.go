package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/folio/internal/core"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/planfile"
	"github.com/kilupskalvis/folio/internal/store"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <plan-file|plan-id>",
	Short: "Execute a content plan",
	Long: `Execute a content plan against the content collections.

The argument is either a YAML/JSON plan file or the ID (or short ID) of a
plan previously stored with 'folio save'. Every applied action is recorded
in the ledger so the plan can be reverted later.`,
	Args: cobra.ExactArgs(1),
	Run:  runApply,
}

func runApply(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	plan, err := loadPlanArg(c.Store, args[0])
	if err != nil {
		exitError("%v", err)
	}
	events, cancel := c.Bus.Subscribe(1)
	defer cancel()

	result, err := c.Engine.ExecutePlan(ctx, plan)
	if err != nil {
		exitError("%v", err)
	}

	printExecuteResult(plan, result)
	if touched := invalidatedSummary(events); touched != "" {
		fmt.Printf("Invalidated: %s\n", touched)
	}
	if !result.Success {
		c.Close()
		os.Exit(1)
	}
}

// loadPlanArg reads a plan from a file when arg names one, and from the
// ledger otherwise
func loadPlanArg(st *store.Store, arg string) (*models.ContentPlan, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return planfile.Load(arg)
	}
	plan, err := core.ResolvePlan(st, arg)
	if err != nil {
		if errors.Is(err, core.ErrPlanNotFound) {
			return nil, fmt.Errorf("no plan file or stored plan named %s", arg)
		}
		return nil, err
	}
	return plan, nil
}

func printExecuteResult(plan *models.ContentPlan, result *core.ExecuteResult) {
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	yellow.Printf("plan %s", result.PlanID)
	fmt.Printf(" %s\n\n", plan.Title)

	for _, rec := range result.Changes {
		printChange(rec, green, yellow, red)
	}
	if len(result.Changes) > 0 {
		fmt.Println()
	}

	if result.Success {
		green.Printf("Applied %d action(s)\n", result.Applied)
		return
	}
	red.Printf("Applied %d action(s), %d failed", result.Applied, result.Failed)
	if result.Rejected > 0 {
		red.Printf(" (%d rejected)", result.Rejected)
	}
	fmt.Println()
}

// printChange prints a single ledger line, color coded by action kind
func printChange(rec *models.ChangeRecord, green, yellow, red *color.Color) {
	c := yellow
	sym := "~ UPDATE"
	switch rec.ActionKind {
	case models.ActionCreate:
		c, sym = green, "+ CREATE"
	case models.ActionDelete:
		c, sym = red, "- DELETE"
	}

	c.Printf("  %s %s/%s", sym, rec.Resource, rec.RecordID)
	fmt.Printf("  [%s]", rec.ShortID())
	if rec.Reverted {
		fmt.Print(" (reverted)")
	}
	if rec.Description != "" {
		fmt.Printf("  %s", rec.Description)
	}
	fmt.Println()
}
