package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/hydrodash/internal/analysis"
	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/KaramelBytes/hydrodash/internal/utils"
	"github.com/spf13/cobra"
)

const schoolColumn = "학교"

var (
	anaDataset    string
	anaSchool     string
	anaOutputPath string
	anaFormat     string
	anaSampleRows int
	anaMaxRows    int
	anaCorr       bool
	anaOutliers   bool
	anaOutlierThr float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Profile the loaded datasets and print a concise summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		school, err := resolveSchool(c, anaSchool)
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		if anaSampleRows > 0 {
			opt.SampleRows = anaSampleRows
		}
		opt.MaxRows = anaMaxRows
		opt.GroupBy = []string{schoolColumn}
		opt.Correlations = anaCorr
		opt.Outliers = anaOutliers
		if anaOutlierThr > 0 {
			opt.OutlierThreshold = anaOutlierThr
		}

		loader := newLoader(c)
		var reports []*analysis.Report
		switch strings.ToLower(strings.TrimSpace(anaDataset)) {
		case "environment", "env":
			t, err := environmentTable(loader, school)
			if err != nil {
				return err
			}
			reports = append(reports, analysis.Profile(t, opt))
		case "growth":
			t, err := growthTable(loader, school)
			if err != nil {
				return err
			}
			reports = append(reports, analysis.Profile(t, opt))
		case "all", "":
			et, err := environmentTable(loader, school)
			if err != nil {
				return err
			}
			gt, err := growthTable(loader, school)
			if err != nil {
				return err
			}
			reports = append(reports, analysis.Profile(et, opt), analysis.Profile(gt, opt))
		default:
			return fmt.Errorf("unsupported --dataset: %s (use environment|growth|all)", anaDataset)
		}

		var out []byte
		switch strings.ToLower(anaFormat) {
		case "markdown", "md", "":
			parts := make([]string, len(reports))
			for i, r := range reports {
				parts[i] = r.Markdown()
			}
			out = []byte(strings.Join(parts, "\n"))
		case "json":
			if out, err = utils.PrettyJSON(reports); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown|json)", anaFormat)
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(appFs, anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func environmentTable(l *dataset.Loader, school string) (*dataset.Table, error) {
	env, err := l.Environment()
	if err != nil {
		return nil, err
	}
	t := dataset.Concat(schoolColumn, env.Filter(school).Tagged()...)
	t.Name = "환경 데이터"
	return t, nil
}

func growthTable(l *dataset.Loader, school string) (*dataset.Table, error) {
	g, err := l.Growth()
	if err != nil {
		return nil, err
	}
	t := dataset.Concat(schoolColumn, g.Filter(school).Tagged()...)
	t.Name = "생육 결과"
	return t, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaDataset, "dataset", "all", "dataset to profile: environment|growth|all")
	analyzeCmd.Flags().StringVar(&anaSchool, "school", dataset.AllSchools, "school to include, or 전체")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "markdown", "output format: markdown|json")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of sample rows to include")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 0, "maximum rows to process (0 = unlimited)")
	analyzeCmd.Flags().BoolVar(&anaCorr, "correlations", true, "compute Pearson correlations among numeric columns")
	analyzeCmd.Flags().BoolVar(&anaOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	analyzeCmd.Flags().Float64Var(&anaOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}
