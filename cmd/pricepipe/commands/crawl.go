package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCrawlCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs only the browser stage and prints the downloaded export path.",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		c, err := a.newCrawler()
		if err != nil {
			return err
		}
		return a.withRunLock(cmd.Context(), func() error {
			res, err := c.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Artifact.Path)
			return nil
		})
	})
	return cmd
}
