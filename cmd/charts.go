package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/hydrodash/internal/chart"
	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/KaramelBytes/hydrodash/internal/render"
	"github.com/KaramelBytes/hydrodash/internal/utils"
	"github.com/spf13/cobra"
)

var (
	chartsOutDir string
	chartsSchool string
	chartsWidth  int
	chartsHeight int
	chartsJSON   bool
)

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Render the dashboard figures to PNG files",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		school, err := resolveSchool(c, chartsSchool)
		if err != nil {
			return err
		}
		loader := newLoader(c)
		env, err := loader.Environment()
		if err != nil {
			return err
		}
		growth, err := loader.Growth()
		if err != nil {
			return err
		}
		fnt, err := chartFont(c, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		opt := render.Options{Width: c.ChartWidthPx, Height: c.ChartHeightPx, Font: fnt}
		if chartsWidth > 0 {
			opt.Width = chartsWidth
		}
		if chartsHeight > 0 {
			opt.Height = chartsHeight
		}
		if err := utils.EnsureDir(appFs, chartsOutDir); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, fig := range chart.Build(env.Filter(school), growth.Filter(school), c.ChartOptions()) {
			if fig.Empty() {
				fmt.Fprintf(out, "⚠ Warning: %s has no data for %s\n", fig.ID, school)
			}
			var buf bytes.Buffer
			if err := render.PNG(&buf, fig, opt); err != nil {
				return err
			}
			path := filepath.Join(chartsOutDir, fig.ID+".png")
			if err := utils.SafeWriteFile(appFs, path, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ %s → %s\n", fig.Tab, path)
			if chartsJSON {
				b, err := utils.PrettyJSON(fig)
				if err != nil {
					return err
				}
				if err := utils.SafeWriteFile(appFs, filepath.Join(chartsOutDir, fig.ID+".json"), b); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartsCmd)
	chartsCmd.Flags().StringVarP(&chartsOutDir, "output", "o", "charts", "directory for the PNG files")
	chartsCmd.Flags().StringVar(&chartsSchool, "school", dataset.AllSchools, "school to plot, or 전체")
	chartsCmd.Flags().IntVar(&chartsWidth, "width", 0, "image width in pixels (overrides chart_width_px)")
	chartsCmd.Flags().IntVar(&chartsHeight, "height", 0, "image height in pixels (overrides chart_height_px)")
	chartsCmd.Flags().BoolVar(&chartsJSON, "json", false, "also write each figure definition as JSON")
}
