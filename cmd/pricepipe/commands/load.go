package commands

import (
	"github.com/spf13/cobra"
)

func newLoadCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "load [--file <export.xlsx>]",
		Short: "Transforms an existing export and appends it to the price table.",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			annotationDatabase: "true",
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "export to load (default: newest .xlsx in the download directory)")

	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		pipeline, err := a.newPipeline(nil, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return a.withRunLock(cmd.Context(), func() error {
			result := pipeline.RunFromFile(cmd.Context(), file)
			writeSummary(cmd.OutOrStdout(), result)
			return runError(result)
		})
	})
	return cmd
}
