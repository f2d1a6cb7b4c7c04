package dataset

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/hydrodash/internal/catalog"
	"github.com/spf13/afero"
)

// Source describes where the datasets live.
type Source struct {
	FS  afero.Fs
	Dir string
	// Workbook is an explicit growth workbook; relative paths are taken from
	// Dir. Empty means discover the single workbook in Dir.
	Workbook string
	// EnvPattern is a fmt pattern with one %s for the school name.
	EnvPattern string
	Schools    Schools
}

func (s Source) fs() afero.Fs {
	if s.FS == nil {
		return afero.NewOsFs()
	}
	return s.FS
}

// EnvFileName returns the environment file name for school.
func (s Source) EnvFileName(school string) string {
	return fmt.Sprintf(s.EnvPattern, school)
}

// Environment holds per-school sensor tables in configured school order.
type Environment struct {
	Schools []string
	Tables  map[string]*Table
	Records map[string][]EnvRecord
}

// All concatenates every school's records in school order.
func (e *Environment) All() []EnvRecord {
	var out []EnvRecord
	for _, s := range e.Schools {
		out = append(out, e.Records[s]...)
	}
	return out
}

// Filter returns a view restricted to school; AllSchools or "" returns e.
func (e *Environment) Filter(school string) *Environment {
	if school == "" || school == AllSchools {
		return e
	}
	out := &Environment{Tables: map[string]*Table{}, Records: map[string][]EnvRecord{}}
	for _, s := range e.Schools {
		if canonical(s) == canonical(school) {
			out.Schools = []string{s}
			out.Tables[s] = e.Tables[s]
			out.Records[s] = e.Records[s]
		}
	}
	return out
}

// Growth holds per-sheet measurement tables in workbook tab order.
type Growth struct {
	Path    string
	Sheets  []string
	Tables  map[string]*Table
	Records map[string][]GrowthRecord
}

// All concatenates every sheet's records in tab order.
func (g *Growth) All() []GrowthRecord {
	var out []GrowthRecord
	for _, s := range g.Sheets {
		out = append(out, g.Records[s]...)
	}
	return out
}

// Filter returns a view restricted to school; AllSchools or "" returns g.
func (g *Growth) Filter(school string) *Growth {
	if school == "" || school == AllSchools {
		return g
	}
	out := &Growth{Path: g.Path, Tables: map[string]*Table{}, Records: map[string][]GrowthRecord{}}
	for _, s := range g.Sheets {
		if canonical(s) == canonical(school) {
			out.Sheets = append(out.Sheets, s)
			out.Tables[s] = g.Tables[s]
			out.Records[s] = g.Records[s]
		}
	}
	return out
}

// LoadEnvironment reads one CSV per configured school. It stops at the first
// school without a resolvable file and returns a *MissingFileError; no partial
// result is ever returned.
func LoadEnvironment(src Source) (*Environment, error) {
	fsys := src.fs()
	env := &Environment{Tables: map[string]*Table{}, Records: map[string][]EnvRecord{}}
	for _, school := range src.Schools {
		path, err := resolveEnvFile(fsys, src, school.Name)
		if err != nil {
			return nil, err
		}
		t, err := readCSVFile(fsys, path)
		if err != nil {
			return nil, err
		}
		recs, err := envRecords(t, school.Name)
		if err != nil {
			return nil, err
		}
		DeriveChanges(recs)
		env.Schools = append(env.Schools, school.Name)
		env.Tables[school.Name] = t
		env.Records[school.Name] = recs
	}
	return env, nil
}

// LoadGrowth reads every sheet of the growth workbook. Each sheet name is the
// school; its EC comes from the configured schools and is nil when the sheet
// names an unconfigured school. Sheets without length columns, such as blank
// or notes tabs, are kept with no records. Tabs whose names differ only in
// normalization or surrounding space are merged into one school.
func LoadGrowth(src Source) (*Growth, error) {
	fsys := src.fs()
	path, err := ResolveWorkbook(src)
	if err != nil {
		return nil, err
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	tables, err := ReadWorkbook(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	g := &Growth{Path: path, Tables: map[string]*Table{}, Records: map[string][]GrowthRecord{}}
	var hasShoot, hasRoot bool
	for _, t := range tables {
		hasShoot = hasShoot || t.Column(ColShoot) >= 0
		hasRoot = hasRoot || t.Column(ColRoot) >= 0
		school := canonical(t.Name)
		var ec *float64
		if v, ok := src.Schools.Lookup(school); ok {
			ec = &v
		}
		recs, err := growthRecords(t, school, ec)
		if err != nil {
			return nil, err
		}
		if prev, ok := g.Tables[school]; ok {
			g.Tables[school] = appendTable(prev, t)
			g.Records[school] = append(g.Records[school], recs...)
			continue
		}
		g.Sheets = append(g.Sheets, school)
		g.Tables[school] = t
		g.Records[school] = recs
	}
	for _, c := range []struct {
		name  string
		found bool
	}{{ColShoot, hasShoot}, {ColRoot, hasRoot}} {
		if !c.found {
			return nil, fmt.Errorf("%w %q in any sheet of %s", ErrMissingColumn, c.name, filepath.Base(path))
		}
	}
	return g, nil
}

// ResolveWorkbook returns the growth workbook path. An explicit Workbook must
// exist; otherwise Dir must hold exactly one workbook.
func ResolveWorkbook(src Source) (string, error) {
	fsys := src.fs()
	if src.Workbook != "" {
		p := src.Workbook
		if !filepath.IsAbs(p) {
			p = filepath.Join(src.Dir, p)
		}
		found, err := catalog.Find(fsys, filepath.Dir(p), filepath.Base(p))
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrMissingWorkbook, p)
		}
		return found, nil
	}
	candidates, err := catalog.Workbooks(fsys, src.Dir)
	if err != nil {
		return "", err
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrMissingWorkbook, src.Dir)
	case 1:
		return candidates[0], nil
	default:
		return "", &AmbiguousWorkbookError{Dir: src.Dir, Candidates: candidates}
	}
}

func resolveEnvFile(fsys afero.Fs, src Source, school string) (string, error) {
	name := src.EnvFileName(school)
	path, err := catalog.Find(fsys, src.Dir, name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return "", &MissingFileError{School: school, Name: name, Dir: src.Dir}
		}
		return "", err
	}
	return path, nil
}

func readCSVFile(fsys afero.Fs, path string) (*Table, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(filepath.Base(path), f)
}
