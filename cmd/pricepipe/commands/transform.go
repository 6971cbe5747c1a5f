package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"pricepipe/internal/dataprocessing"
	"pricepipe/internal/files"
)

// newTransformCmd is a dry run: nothing is written to the database.
func newTransformCmd(a *app) *cobra.Command {
	var (
		file string
		rows int
	)

	cmd := &cobra.Command{
		Use:   "transform [--file <export.xlsx>] [--rows <n>]",
		Short: "Transforms an export and prints a preview without loading it.",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&file, "file", "", "export to transform (default: newest .xlsx in the download directory)")
	cmd.Flags().IntVar(&rows, "rows", previewRows, "number of rows to preview")

	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		if file == "" {
			latest, err := files.NewDiscovery("").LatestExcelFile(a.cfg.Crawl.DownloadDir)
			if err != nil {
				return err
			}
			file = latest.Path
		}

		raw, err := dataprocessing.NewReader(a.logger).ReadTable(file)
		if err != nil {
			return err
		}
		table, err := dataprocessing.NewTransformer(a.logger).Transform(raw)
		if err != nil {
			return err
		}
		a.logger.InfoContext(cmd.Context(), "Transformed export",
			slog.String("file", file),
			slog.Int("rows", table.Len()),
			slog.Int("missing_numbers", table.MissingNumbers()))

		dataprocessing.WritePreview(cmd.OutOrStdout(), table, rows)
		return nil
	})
	return cmd
}
