package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/hydrodash/internal/chart"
	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// School maps a school identifier to its nutrient-solution EC setting.
type School struct {
	Name string  `mapstructure:"name" yaml:"name"`
	EC   float64 `mapstructure:"ec" yaml:"ec"`
}

// Global configuration structure.
type Global struct {
	DataDir        string   `mapstructure:"data_dir" yaml:"data_dir"`
	Workbook       string   `mapstructure:"workbook" yaml:"workbook"`
	EnvFilePattern string   `mapstructure:"env_file_pattern" yaml:"env_file_pattern"`
	Schools        []School `mapstructure:"schools" yaml:"schools"`

	// Growth panel reference marker
	OptimalEC    float64 `mapstructure:"optimal_ec" yaml:"optimal_ec"`
	OptimalLabel string  `mapstructure:"optimal_label" yaml:"optimal_label"`

	Title          string `mapstructure:"title" yaml:"title"`
	ExportFilename string `mapstructure:"export_filename" yaml:"export_filename"`

	// HTTP dashboard
	ListenAddr    string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	CORSOrigins   []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	ChartWidthPx  int      `mapstructure:"chart_width_px" yaml:"chart_width_px"`
	ChartHeightPx int      `mapstructure:"chart_height_px" yaml:"chart_height_px"`
	// ChartFont is a TTF/OTF/TTC file with Hangul glyphs; empty tries the
	// usual system locations.
	ChartFont string `mapstructure:"chart_font" yaml:"chart_font"`
}

// DefaultSchools is the experiment's school to EC assignment.
func DefaultSchools() []School {
	return []School{
		{Name: "송도고", EC: 1.0},
		{Name: "하늘고", EC: 2.0},
		{Name: "아라고", EC: 4.0},
		{Name: "동산고", EC: 8.0},
	}
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Global {
	return &Global{
		DataDir:        "data",
		EnvFilePattern: "%s_환경데이터.csv",
		Schools:        DefaultSchools(),
		OptimalEC:      2.0,
		OptimalLabel:   "하늘고 EC 2.0 (최적)",
		Title:          "나도수영을 pH, EC, 광주기를 이용한 생장률 비교",
		ExportFilename: "EC별_생장률_분석.xlsx",
		ListenAddr:     ":8501",
		CORSOrigins:    []string{},
		ChartWidthPx:   960,
		ChartHeightPx:  540,
	}
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.hydrodash/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) (string, error) {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// Load loads configuration from .env, environment, config file and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory only seeds the environment and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	// optional; a missing .env is the common case
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HYDRODASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("workbook", d.Workbook)
	v.SetDefault("env_file_pattern", d.EnvFilePattern)
	schools := make([]map[string]any, 0, len(d.Schools))
	for _, s := range d.Schools {
		schools = append(schools, map[string]any{"name": s.Name, "ec": s.EC})
	}
	v.SetDefault("schools", schools)
	v.SetDefault("optimal_ec", d.OptimalEC)
	v.SetDefault("optimal_label", d.OptimalLabel)
	v.SetDefault("title", d.Title)
	v.SetDefault("export_filename", d.ExportFilename)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("cors_origins", d.CORSOrigins)
	v.SetDefault("chart_width_px", d.ChartWidthPx)
	v.SetDefault("chart_height_px", d.ChartHeightPx)
	v.SetDefault("chart_font", d.ChartFont)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		if dir, err := defaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for i := range c.Schools {
		c.Schools[i].Name = norm.NFC.String(strings.TrimSpace(c.Schools[i].Name))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports configuration that would make every dashboard render fail.
func (c *Global) Validate() error {
	if len(c.Schools) == 0 {
		return errors.New("config: no schools configured")
	}
	seen := make(map[string]bool, len(c.Schools))
	for i, s := range c.Schools {
		name := norm.NFC.String(strings.TrimSpace(s.Name))
		if name == "" {
			return fmt.Errorf("config: school #%d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("config: school %q listed twice", name)
		}
		seen[name] = true
	}
	if strings.Count(c.EnvFilePattern, "%s") != 1 {
		return fmt.Errorf("config: env_file_pattern %q must contain exactly one %%s", c.EnvFilePattern)
	}
	if c.DataDir == "" {
		return errors.New("config: data_dir is empty")
	}
	return nil
}

// DatasetSchools returns the configured schools in loader form.
func (c *Global) DatasetSchools() dataset.Schools {
	out := make(dataset.Schools, len(c.Schools))
	for i, s := range c.Schools {
		out[i] = dataset.School{Name: s.Name, EC: s.EC}
	}
	return out
}

// Source describes the configured inputs on fsys; nil means the OS filesystem.
func (c *Global) Source(fsys afero.Fs) dataset.Source {
	return dataset.Source{
		FS:         fsys,
		Dir:        c.DataDir,
		Workbook:   c.Workbook,
		EnvPattern: c.EnvFilePattern,
		Schools:    c.DatasetSchools(),
	}
}

// ChartOptions returns the figure settings.
func (c *Global) ChartOptions() chart.Options {
	names := make([]string, len(c.Schools))
	for i, s := range c.Schools {
		names[i] = s.Name
	}
	return chart.Options{Schools: names, OptimalEC: c.OptimalEC, OptimalLabel: c.OptimalLabel}
}

// DefaultPath is where Save writes when no config file is given.
func DefaultPath() (string, error) {
	dir, err := defaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".hydrodash"), nil
}
