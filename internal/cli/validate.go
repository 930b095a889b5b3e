package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/restackio/restack/internal/config"
	"github.com/restackio/restack/internal/fsutil"
	"github.com/restackio/restack/internal/model"
	"github.com/restackio/restack/internal/resolve"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Check a conversion plan for feasibility and print its execution order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		var plan model.ConversionPlan
		if err := fsutil.ReadYAML(args[0], &plan); err != nil {
			return err
		}

		if !plan.Feasible {
			return fmt.Errorf("plan %s is marked infeasible", plan.ID)
		}

		res, appErr := resolve.Resolve(plan.Tasks, resolve.Options{
			MaxConcurrent:         cfg.Orchestrator.MaxConcurrentFiles,
			RejectOutputConflicts: cfg.Orchestrator.RejectOutputConflicts,
		})
		if appErr != nil {
			return fmt.Errorf("plan is infeasible: %s", appErr.Message)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "plan ok: %d tasks in %d batches\n", len(plan.Tasks), len(res.Batches))
		for i, batch := range res.Batches {
			fmt.Fprintf(out, "batch %d:\n", i+1)
			for _, task := range batch {
				fmt.Fprintf(out, "  %s (%s -> %s)\n", task.ID,
					strings.Join(task.InputFiles, ", "), strings.Join(task.OutputFiles, ", "))
			}
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
