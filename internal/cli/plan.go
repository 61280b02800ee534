package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print every command the pipeline would run, without executing",
	Long: `Expand each stage's factor matrix and print the resolved command lines
and destination paths in execution order. Nothing is staged or executed, so
this also validates the pipeline definition end to end.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	stages, overlay, err := loadPipeline()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, stage := range stages {
		seq := 0
		fmt.Fprintf(out, "# %s\n", stage.Matrix.Name)
		for rc, err := range stage.Matrix.Expand(overlay) {
			if err != nil {
				return err
			}
			seq++
			fmt.Fprintf(out, "[%d] %s -> %s\n", seq, strings.Join(rc.Argv(), " "), rc.Path)
		}
	}
	return nil
}
