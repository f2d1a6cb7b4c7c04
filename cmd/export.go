package cmd

import (
	"fmt"

	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/KaramelBytes/hydrodash/internal/export"
	"github.com/KaramelBytes/hydrodash/internal/utils"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportSchool string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the EC growth summary workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		school, err := resolveSchool(c, exportSchool)
		if err != nil {
			return err
		}
		growth, err := newLoader(c).Growth()
		if err != nil {
			return err
		}
		rows := dataset.Summarize(growth.Filter(school).All())
		buf, err := export.SummaryWorkbook(rows)
		if err != nil {
			return err
		}
		out := exportOutput
		if out == "" {
			out = c.ExportFilename
		}
		if err := utils.SafeWriteFile(appFs, out, buf.Bytes()); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d summary rows to %s\n", len(rows), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (default is export_filename)")
	exportCmd.Flags().StringVar(&exportSchool, "school", dataset.AllSchools, "school to include, or 전체")
}
