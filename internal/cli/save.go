package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/planfile"
	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save <plan-file>",
	Short: "Store a plan for later execution",
	Long: `Store a plan in the ledger without executing it. The plan can be
executed later with 'folio apply <plan-id>'. A copy of the plan is archived
under .folio/plans/.`,
	Args: cobra.ExactArgs(1),
	Run:  runSave,
}

func runSave(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	plan, err := planfile.Load(args[0])
	if err != nil {
		exitError("%v", err)
	}

	id, err := c.Engine.SavePlanForLater(ctx, plan)
	if err != nil {
		exitError("%v", err)
	}

	archive := filepath.Join(c.Config.PlansPath(), id+".yaml")
	if err := writePlanArchive(archive, plan); err != nil {
		fmt.Printf("Warning: Could not archive plan file: %v\n", err)
	}

	color.New(color.FgGreen).Printf("Saved plan %s", shortID(id))
	fmt.Printf(" %s (%d action(s))\n", plan.Title, len(plan.Actions))
}

// writePlanArchive writes plan as YAML to path
func writePlanArchive(path string, plan *models.ContentPlan) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := planfile.Encode(f, plan); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
