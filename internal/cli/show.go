package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/folio/internal/core"
	"github.com/kilupskalvis/folio/internal/planfile"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <plan>",
	Short: "Show plan details",
	Long:  `Show details about a plan including every recorded change.`,
	Args:  cobra.ExactArgs(1),
	Run:   runShow,
}

var showYAML bool

func init() {
	showCmd.Flags().BoolVar(&showYAML, "yaml", false, "Print the plan as a YAML plan file")
}

func runShow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	plan, err := core.ResolvePlan(c.Store, args[0])
	if err != nil {
		exitError("plan not found: %s", args[0])
	}

	if showYAML {
		if err := planfile.Encode(os.Stdout, plan); err != nil {
			exitError("%v", err)
		}
		return
	}

	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	yellow.Printf("plan %s\n", plan.ID)
	fmt.Printf("Status: %s\n", statusLabel(plan.Status))
	fmt.Printf("Date:   %s\n", plan.CreatedAt.Local().Format("Mon Jan 2 15:04:05 2006"))
	if plan.ExecutedAt != nil {
		fmt.Printf("Run:    %s\n", plan.ExecutedAt.Local().Format("Mon Jan 2 15:04:05 2006"))
	}
	if plan.ConversationID != "" {
		fmt.Printf("Conversation: %s\n", plan.ConversationID)
	}
	fmt.Printf("\n    %s\n", plan.Title)
	if plan.Summary != "" {
		fmt.Printf("    %s\n", plan.Summary)
	}
	fmt.Println()

	changes, err := c.Store.GetChangesByPlan(plan.ID)
	if err != nil {
		exitError("failed to get changes: %v", err)
	}

	if len(changes) == 0 {
		fmt.Printf("Actions (%d), none applied:\n", len(plan.Actions))
		for _, action := range plan.Actions {
			target := string(action.Resource)
			if action.RecordID != "" {
				target += "/" + action.RecordID
			}
			fmt.Printf("  %s %s\n", action.Kind, target)
		}
		return
	}

	fmt.Printf("Changes (%d):\n", len(changes))
	for _, rec := range changes {
		printChange(rec, green, yellow, red)
	}
}
