package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/spf13/cobra"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List content plans",
	Long:  `List stored content plans, newest first.`,
	Run:   runPlans,
}

var plansLimit int

func init() {
	plansCmd.Flags().IntVarP(&plansLimit, "number", "n", 0, "Limit number of plans to show")
}

func runPlans(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	plans, err := c.Store.ListPlans(plansLimit)
	if err != nil {
		exitError("failed to list plans: %v", err)
	}

	if len(plans) == 0 {
		fmt.Println("No plans yet")
		return
	}

	yellow := color.New(color.FgYellow)
	for _, plan := range plans {
		yellow.Printf("%s", plan.ShortID())
		fmt.Printf(" %-18s %s  %s\n",
			statusLabel(plan.Status),
			plan.CreatedAt.Local().Format("2006-01-02 15:04"),
			plan.Title)
	}
}

// statusLabel renders a plan status, colored by outcome
func statusLabel(status models.PlanStatus) string {
	label := fmt.Sprintf("[%s]", status)
	switch status {
	case models.PlanExecuted:
		return color.GreenString(label)
	case models.PlanReverted:
		return color.CyanString(label)
	case models.PlanPartiallyReverted:
		return color.RedString(label)
	default:
		return label
	}
}
