package cmd

import (
	"fmt"
	"io"
	"os"

	cfgpkg "github.com/KaramelBytes/hydrodash/internal/config"
	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/KaramelBytes/hydrodash/internal/render"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/font"
)

var (
	// Global flags
	cfgFile      string
	flagDataDir  string
	flagWorkbook string

	// Loaded configuration
	cfg *cfgpkg.Global
	// cfgErr keeps the load failure for commands that need a config
	cfgErr error

	// appFs is the filesystem every command reads and writes through.
	appFs afero.Fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "hydrodash",
	Short: "Hydroponics growth dashboard for the school EC experiment",
	Long: `hydrodash loads per-school environment CSVs and the growth workbook, derives
relative pH/EC change and growth rate, and serves the comparison dashboard.
The same figures and the EC summary workbook can be written from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.hydrodash/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding the CSV and xlsx inputs (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagWorkbook, "workbook", "", "growth workbook path, relative to the data dir (overrides config)")
}

func loadConfig() {
	cfg, cfgErr = nil, nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config commands still run
		cfgErr = err
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") && flagDataDir != "" {
		c.DataDir = flagDataDir
	}
	if f.Changed("workbook") {
		c.Workbook = flagWorkbook
	}
	cfg = c
}

// requireConfig returns the loaded configuration or the reason it is missing.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, cfgErr
		}
		return nil, fmt.Errorf("no configuration loaded")
	}
	return cfg, nil
}

func newLoader(c *cfgpkg.Global) *dataset.Loader {
	return dataset.NewLoader(c.Source(appFs), nil)
}

// chartFont loads the configured chart font, or the first Hangul font found
// in the usual locations. Without one, charts fall back to the plot default
// and a warning goes to w.
func chartFont(c *cfgpkg.Global, w io.Writer) (font.Font, error) {
	path := c.ChartFont
	if path == "" {
		found, ok := render.DiscoverFont(appFs)
		if !ok {
			fmt.Fprintln(w, "⚠ Warning: no Hangul font found; set chart_font so chart labels render")
			return font.Font{}, nil
		}
		path = found
	}
	fnt, err := render.LoadFont(appFs, path)
	if err != nil {
		return font.Font{}, fmt.Errorf("chart_font: %w", err)
	}
	if !render.Covers(fnt, c.Title) {
		fmt.Fprintf(w, "⚠ Warning: font %s lacks glyphs for chart labels\n", path)
	}
	return fnt, nil
}

// resolveSchool maps a --school flag to a configured school or 전체.
func resolveSchool(c *cfgpkg.Global, name string) (string, error) {
	schools := c.DatasetSchools()
	s, ok := schools.Resolve(name)
	if !ok {
		return "", fmt.Errorf("unknown school %q (choose %s or one of %v)", name, dataset.AllSchools, schools.Names())
	}
	return s, nil
}
