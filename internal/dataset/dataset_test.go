package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/KaramelBytes/hydrodash/internal/catalog"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
	"golang.org/x/text/unicode/norm"
)

var testSchools = Schools{
	{Name: "송도고", EC: 1.0},
	{Name: "하늘고", EC: 2.0},
}

const envPattern = "%s_환경데이터.csv"

// countingFs counts every file or directory open.
type countingFs struct {
	afero.Fs
	opens atomic.Int64
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.opens.Add(1)
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	c.opens.Add(1)
	return c.Fs.OpenFile(name, flag, perm)
}

func writeFile(t *testing.T, fsys afero.Fs, path string, data []byte) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func workbookBytes(t *testing.T, order []string, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			row := row
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// fixture lays out a complete data directory. The 하늘고 CSV is stored with a
// decomposed file name, the way macOS keeps it.
func fixture(t *testing.T, fsys afero.Fs) Source {
	t.Helper()
	writeFile(t, fsys, filepath.Join("data", "송도고_환경데이터.csv"), []byte(
		"\ufefftime,ph,ec,temperature\n"+
			"2025-05-01 09:00:00,10,1.0,20.5\n"+
			"2025-05-01 10:00:00,12,1.5,21.0\n"+
			"2025-05-01 11:00:00,9,1.2,21.5\n"))
	writeFile(t, fsys, filepath.Join("data", norm.NFD.String("하늘고_환경데이터.csv")), []byte(
		"time,ph,ec,temperature,humidity\n"+
			"2025-05-01 09:00:00,6.0,2.0,19.0,40\n"+
			"2025-05-01 10:00:00,6.6,,19.5,41\n"))
	wb := workbookBytes(t, []string{"송도고", "하늘고", "미정고"}, map[string][][]any{
		"송도고": {{"개체번호", ColShoot, ColRoot}, {1, 10, 20}, {2, 30, 40}},
		"하늘고": {{"개체번호", ColShoot, ColRoot}, {1, 5, 15}, {2, 15, 25}},
		"미정고": {{"개체번호", ColShoot, ColRoot}, {1, 1, 3}},
	})
	writeFile(t, fsys, filepath.Join("data", "생육결과.xlsx"), wb)
	return Source{FS: fsys, Dir: "data", EnvPattern: envPattern, Schools: testSchools}
}

func ptr(v float64) *float64 { return &v }

func TestLoadEnvironment(t *testing.T) {
	src := fixture(t, afero.NewMemMapFs())
	env, err := LoadEnvironment(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(env.Schools, ","); got != "송도고,하늘고" {
		t.Fatalf("schools = %s", got)
	}
	all := env.All()
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	first := env.Records["송도고"]
	if first[0].School != "송도고" || first[0].PH != 10 || first[0].Time.Hour() != 9 {
		t.Fatalf("unexpected first record: %+v", first[0])
	}
	// BOM stripped: header "time" resolved.
	if env.Tables["송도고"].Column("time") != 0 {
		t.Fatalf("BOM not stripped from header: %q", env.Tables["송도고"].Header[0])
	}
	if env.Tables["하늘고"].Column("humidity") != 4 {
		t.Fatalf("extra columns must be kept")
	}
	sky := env.Records["하늘고"]
	if !math.IsNaN(sky[1].EC) {
		t.Fatalf("empty cell should be NaN, got %v", sky[1].EC)
	}
	if sky[0].PHChange != nil || sky[1].PHChange == nil || math.Abs(*sky[1].PHChange-0.1) > 1e-9 {
		t.Fatalf("ph change per school wrong: %v %v", sky[0].PHChange, sky[1].PHChange)
	}
	if sky[1].ECChange != nil {
		t.Fatalf("change into a missing value must be nil")
	}
}

func TestLoadEnvironmentMissingFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	src := fixture(t, fsys)
	src.Schools = append(Schools{}, src.Schools...)
	src.Schools = append(src.Schools, School{Name: "아라고", EC: 4})

	env, err := LoadEnvironment(src)
	if env != nil {
		t.Fatal("no partial result may be returned")
	}
	var mf *MissingFileError
	if !errors.As(err, &mf) {
		t.Fatalf("expected MissingFileError, got %v", err)
	}
	if mf.School != "아라고" || mf.Name != "아라고_환경데이터.csv" {
		t.Fatalf("wrong school in error: %+v", mf)
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatal("MissingFileError should unwrap to catalog.ErrNotFound")
	}
}

func TestLoadEnvironmentMissingColumn(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, filepath.Join("data", "송도고_환경데이터.csv"), []byte("time,ph,temperature\n1,2,3\n"))
	src := Source{FS: fsys, Dir: "data", EnvPattern: envPattern, Schools: testSchools[:1]}
	if _, err := LoadEnvironment(src); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestLoadEnvironmentMalformedNumber(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, filepath.Join("data", "송도고_환경데이터.csv"), []byte("time,ph,ec,temperature\nt,abc,1,2\n"))
	src := Source{FS: fsys, Dir: "data", EnvPattern: envPattern, Schools: testSchools[:1]}
	_, err := LoadEnvironment(src)
	if err == nil || !strings.Contains(err.Error(), "row 2 column ph") {
		t.Fatalf("expected parse error with location, got %v", err)
	}
}

func TestLoadGrowth(t *testing.T) {
	src := fixture(t, afero.NewMemMapFs())
	g, err := LoadGrowth(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(g.Sheets, ","); got != "송도고,하늘고,미정고" {
		t.Fatalf("sheets = %s", got)
	}
	sky := g.Records["하늘고"]
	if len(sky) != 2 || sky[0].EC == nil || *sky[0].EC != 2.0 || sky[0].School != "하늘고" {
		t.Fatalf("unexpected 하늘고 records: %+v", sky)
	}
	if got := g.Records["미정고"][0].EC; got != nil {
		t.Fatalf("unconfigured school must have nil EC, got %v", *got)
	}
	if len(g.All()) != 5 {
		t.Fatalf("expected 5 growth records, got %d", len(g.All()))
	}
	if g.Tables["송도고"].Column("개체번호") != 0 {
		t.Fatal("extra sheet columns must be kept")
	}
}

func TestLoadGrowthSkipsSheetsWithoutLengths(t *testing.T) {
	fsys := afero.NewMemMapFs()
	wb := workbookBytes(t, []string{"하늘고", "Sheet2", "메모"}, map[string][][]any{
		"하늘고": {{"개체번호", ColShoot, ColRoot}, {1, 5, 15}, {2, 15, 25}},
		"메모":   {{"비고"}, {"3주차 측정"}},
	})
	writeFile(t, fsys, filepath.Join("data", "생육결과.xlsx"), wb)
	g, err := LoadGrowth(Source{FS: fsys, Dir: "data", Schools: testSchools})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(g.Sheets, ","); got != "하늘고,Sheet2,메모" {
		t.Fatalf("sheets = %s", got)
	}
	if len(g.Records["Sheet2"]) != 0 || len(g.Records["메모"]) != 0 {
		t.Fatalf("blank and notes sheets must have no records: %+v", g.Records)
	}
	if len(g.All()) != 2 {
		t.Fatalf("expected 2 growth records, got %d", len(g.All()))
	}
	rows := Summarize(g.All())
	if len(rows) != 1 || rows[0].School != "하늘고" || rows[0].GrowthRate != 15 {
		t.Fatalf("summary = %+v", rows)
	}
}

func TestLoadGrowthPartialColumns(t *testing.T) {
	t.Run("one length column reads as NaN", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		wb := workbookBytes(t, []string{"송도고", "하늘고"}, map[string][][]any{
			"송도고": {{ColShoot, ColRoot}, {10, 20}},
			"하늘고": {{ColShoot}, {7}},
		})
		writeFile(t, fsys, filepath.Join("data", "생육결과.xlsx"), wb)
		g, err := LoadGrowth(Source{FS: fsys, Dir: "data", Schools: testSchools})
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		sky := g.Records["하늘고"]
		if len(sky) != 1 || sky[0].Shoot != 7 || !math.IsNaN(sky[0].Root) {
			t.Fatalf("하늘고 records = %+v", sky)
		}
		if rows := Summarize(g.All()); len(rows) != 1 || rows[0].School != "송도고" {
			t.Fatalf("summary = %+v", rows)
		}
	})
	t.Run("no sheet has the column", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		wb := workbookBytes(t, []string{"메모"}, map[string][][]any{
			"메모": {{"비고"}, {"x"}},
		})
		writeFile(t, fsys, filepath.Join("data", "생육결과.xlsx"), wb)
		if _, err := LoadGrowth(Source{FS: fsys, Dir: "data", Schools: testSchools}); !errors.Is(err, ErrMissingColumn) {
			t.Fatalf("expected ErrMissingColumn, got %v", err)
		}
	})
}

func TestLoadGrowthMergesEquivalentSheetNames(t *testing.T) {
	fsys := afero.NewMemMapFs()
	nfd := norm.NFD.String("하늘고")
	wb := workbookBytes(t, []string{"하늘고", nfd}, map[string][][]any{
		"하늘고": {{"개체번호", ColShoot, ColRoot}, {1, 5, 15}},
		nfd:    {{"개체번호", ColShoot, ColRoot, "비고"}, {2, 15, 25, "재측정"}},
	})
	writeFile(t, fsys, filepath.Join("data", "생육결과.xlsx"), wb)
	g, err := LoadGrowth(Source{FS: fsys, Dir: "data", Schools: testSchools})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(g.Sheets) != 1 || g.Sheets[0] != "하늘고" {
		t.Fatalf("sheets = %q", g.Sheets)
	}
	if n := len(g.All()); n != 2 {
		t.Fatalf("expected 2 records after merge, got %d", n)
	}
	tbl := g.Tables["하늘고"]
	if tbl.Len() != 2 || tbl.Column("비고") < 0 {
		t.Fatalf("merged table = %+v", tbl)
	}
	if rows := Summarize(g.All()); len(rows) != 1 || rows[0].Count != 2 || rows[0].GrowthRate != 15 {
		t.Fatalf("summary = %+v", rows)
	}
}

func TestLoadGrowthWorkbookResolution(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, filepath.Join("data", "notes.txt"), []byte("x"))
		_, err := LoadGrowth(Source{FS: fsys, Dir: "data", Schools: testSchools})
		if !errors.Is(err, ErrMissingWorkbook) {
			t.Fatalf("expected ErrMissingWorkbook, got %v", err)
		}
	})
	t.Run("ambiguous", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		src := fixture(t, fsys)
		writeFile(t, fsys, filepath.Join("data", "사본.xlsx"), []byte("x"))
		var amb *AmbiguousWorkbookError
		if _, err := LoadGrowth(src); !errors.As(err, &amb) || len(amb.Candidates) != 2 {
			t.Fatalf("expected AmbiguousWorkbookError with 2 candidates, got %v", err)
		}
	})
	t.Run("explicit wins", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		src := fixture(t, fsys)
		writeFile(t, fsys, filepath.Join("data", "사본.xlsx"), []byte("x"))
		src.Workbook = norm.NFD.String("생육결과.xlsx")
		g, err := LoadGrowth(src)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if g.Path != filepath.Join("data", "생육결과.xlsx") {
			t.Fatalf("path = %q", g.Path)
		}
	})
	t.Run("explicit missing", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		src := fixture(t, fsys)
		src.Workbook = "없음.xlsx"
		if _, err := LoadGrowth(src); !errors.Is(err, ErrMissingWorkbook) {
			t.Fatalf("expected ErrMissingWorkbook, got %v", err)
		}
	})
}

func TestLoaderMemoizes(t *testing.T) {
	cfs := &countingFs{Fs: afero.NewMemMapFs()}
	src := fixture(t, cfs)
	l := NewLoader(src, NewCache())

	env1, err := l.Environment()
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	g1, err := l.Growth()
	if err != nil {
		t.Fatalf("growth: %v", err)
	}
	opens := cfs.opens.Load()
	if opens == 0 {
		t.Fatal("expected the first loads to touch the filesystem")
	}
	env2, _ := l.Environment()
	g2, _ := l.Growth()
	if cfs.opens.Load() != opens {
		t.Fatalf("second calls re-read disk: %d -> %d opens", opens, cfs.opens.Load())
	}
	if env1 != env2 || g1 != g2 {
		t.Fatal("second calls must return the cached datasets")
	}
}

func TestLoaderCacheResetAndFailuresNotCached(t *testing.T) {
	fsys := afero.NewMemMapFs()
	src := fixture(t, fsys)
	missing := append(Schools{}, src.Schools...)
	missing = append(missing, School{Name: "동산고", EC: 8})
	src.Schools = missing
	cache := NewCache()
	l := NewLoader(src, cache)

	if _, err := l.Environment(); err == nil {
		t.Fatal("expected missing file")
	}
	writeFile(t, fsys, filepath.Join("data", "동산고_환경데이터.csv"), []byte("time,ph,ec,temperature\nt,7,8,20\n"))
	env, err := l.Environment()
	if err != nil {
		t.Fatalf("failed load must not be cached: %v", err)
	}
	cache.Reset()
	env2, err := l.Environment()
	if err != nil {
		t.Fatal(err)
	}
	if env == env2 {
		t.Fatal("Reset must force a reload")
	}
}

func TestLoaderPreload(t *testing.T) {
	src := fixture(t, afero.NewMemMapFs())
	if err := NewLoader(src, nil).Preload(); err != nil {
		t.Fatalf("preload: %v", err)
	}
	src.Dir = "nowhere"
	if err := NewLoader(src, nil).Preload(); err == nil {
		t.Fatal("expected preload failure")
	}
}

func TestCheckCollectsEveryProblem(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, filepath.Join("data", "송도고_환경데이터.csv"), []byte("time,ph,ec,temperature\n"))
	src := Source{FS: fsys, Dir: "data", EnvPattern: envPattern, Schools: Schools{
		{Name: "송도고", EC: 1}, {Name: "하늘고", EC: 2}, {Name: "아라고", EC: 4},
	}}
	errs := multierr.Errors(Check(src))
	if len(errs) != 3 {
		t.Fatalf("expected 2 missing files + missing workbook, got %v", errs)
	}
	if !errors.Is(errs[2], ErrMissingWorkbook) {
		t.Fatalf("last error should be the workbook: %v", errs[2])
	}
	if err := Check(fixture(t, afero.NewMemMapFs())); err != nil {
		t.Fatalf("complete fixture should pass: %v", err)
	}
}

func TestFilter(t *testing.T) {
	src := fixture(t, afero.NewMemMapFs())
	env, err := LoadEnvironment(src)
	if err != nil {
		t.Fatal(err)
	}
	if env.Filter(AllSchools) != env {
		t.Fatal("전체 must select everything")
	}
	one := env.Filter(norm.NFD.String("하늘고"))
	if len(one.Schools) != 1 || len(one.All()) != 2 {
		t.Fatalf("filter by school failed: %+v", one.Schools)
	}
	if got := env.Filter("없는학교").All(); len(got) != 0 {
		t.Fatalf("unknown school should select nothing, got %d", len(got))
	}
}

func TestSchoolsLookup(t *testing.T) {
	if ec, ok := testSchools.Lookup(norm.NFD.String("하늘고")); !ok || ec != 2.0 {
		t.Fatalf("lookup = %v %v", ec, ok)
	}
	if _, ok := testSchools.Lookup("아라고"); ok {
		t.Fatal("unexpected hit")
	}
}

func TestSchoolsResolve(t *testing.T) {
	s := Schools{{Name: "송도고", EC: 1}, {Name: "하늘고", EC: 2}}
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", AllSchools, true},
		{AllSchools, AllSchools, true},
		{norm.NFD.String("하늘고"), "하늘고", true},
		{" 송도고 ", "송도고", true},
		{"미정고", "", false},
	}
	for _, tc := range cases {
		got, ok := s.Resolve(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Resolve(%q) = %q %v, want %q %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
