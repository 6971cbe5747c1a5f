package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"pricepipe/internal/operations"
)

// writeSummary prints one row per executed stage followed by the outcome.
func writeSummary(w io.Writer, result *operations.RunResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Stage", "Status", "Duration", "Error"})
	for _, step := range result.Steps {
		errText := ""
		if step.Error != nil {
			errText = step.Error.Error()
		}
		tw.AppendRow(table.Row{step.Stage, step.Status, step.Duration().Round(time.Millisecond), errText})
	}
	tw.AppendFooter(table.Row{"Run " + result.ID, result.State, result.Duration.Round(time.Millisecond),
		fmt.Sprintf("%d rows loaded", result.RowsLoaded)})
	tw.Render()
}

// runError turns a failed result into the command error.
func runError(result *operations.RunResult) error {
	if result.Success {
		return nil
	}
	return fmt.Errorf("run %s failed in %s: %w", result.ID, result.FailedStage, result.Err)
}
