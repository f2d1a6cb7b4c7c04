package cmd

import (
	"fmt"

	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report every missing input file at once",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		src := c.Source(appFs)
		out := cmd.OutOrStdout()
		errs := multierr.Errors(dataset.Check(src))
		if len(errs) == 0 {
			for _, s := range src.Schools {
				fmt.Fprintf(out, "✓ %s\n", src.EnvFileName(s.Name))
			}
			wb, _ := dataset.ResolveWorkbook(src)
			fmt.Fprintf(out, "✓ %s\n", wb)
			return nil
		}
		for _, e := range errs {
			fmt.Fprintf(out, "✗ %v\n", e)
		}
		return fmt.Errorf("%d input problem(s) in %s", len(errs), c.DataDir)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
