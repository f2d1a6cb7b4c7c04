package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/hydrodash/internal/catalog"
	"github.com/spf13/cobra"
)

var (
	listSchools bool
	listFiles   bool
	listSheets  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured schools, input files or workbook sheets",
	RunE: func(cmd *cobra.Command, args []string) error {
		n := 0
		for _, b := range []bool{listSchools, listFiles, listSheets} {
			if b {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("specify exactly one of --schools, --files or --sheets")
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		src := c.Source(appFs)
		switch {
		case listSchools:
			for _, s := range src.Schools {
				fmt.Fprintf(out, "- %s: EC %.1f\n", s.Name, s.EC)
			}
		case listFiles:
			for _, s := range src.Schools {
				path, err := catalog.Find(appFs, src.Dir, src.EnvFileName(s.Name))
				if err != nil {
					fmt.Fprintf(out, "- %s: (missing %s)\n", s.Name, src.EnvFileName(s.Name))
					continue
				}
				fmt.Fprintf(out, "- %s: %s\n", s.Name, filepath.Base(path))
			}
			books, err := catalog.Workbooks(appFs, src.Dir)
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Fprintln(out, "(no workbooks)")
			}
			for _, b := range books {
				fmt.Fprintf(out, "- workbook: %s\n", filepath.Base(b))
			}
		case listSheets:
			g, err := newLoader(c).Growth()
			if err != nil {
				return err
			}
			for _, sheet := range g.Sheets {
				ec := "no EC configured"
				if v, ok := src.Schools.Lookup(sheet); ok {
					ec = fmt.Sprintf("EC %.1f", v)
				}
				fmt.Fprintf(out, "- %s: %d plants, %s\n", sheet, len(g.Records[sheet]), ec)
			}
			if len(g.Sheets) == 0 {
				fmt.Fprintf(out, "(no sheets in %s)\n", g.Path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listSchools, "schools", false, "list configured schools and EC levels")
	listCmd.Flags().BoolVar(&listFiles, "files", false, "list resolved input files in the data dir")
	listCmd.Flags().BoolVar(&listSheets, "sheets", false, "list growth workbook sheets")
}
