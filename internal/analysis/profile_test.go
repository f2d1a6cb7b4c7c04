package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/hydrodash/internal/dataset"
)

func envTable() *dataset.Table {
	return &dataset.Table{
		Name:   "환경",
		Header: []string{"학교", "time", "ph", "ec", "temperature"},
		Rows: [][]string{
			{"송도고", "2025-05-01 09:00:00", "6.0", "1.0", "20"},
			{"송도고", "2025-05-01 10:00:00", "6.2", "1.2", "21"},
			{"송도고", "2025-05-01 11:00:00", "6.4", "1.4", "22"},
			{"하늘고", "2025-05-01 09:00:00", "5.8", "2.0", "19"},
			{"하늘고", "2025-05-01 10:00:00", "", "2.2", "20"},
			{"하늘고", "2025-05-01 11:00:00", "5.4", "2.4", "21"},
			{"하늘고", "2025-05-01 12:00:00", "5.2", "2.6", "22"},
			{"하늘고", "2025-05-01 13:00:00", "5.0", "2.8", "23"},
			{"하늘고", "2025-05-01 14:00:00", "4.8", "3.0", "24"},
		},
	}
}

func TestProfileInfersKindsAndStats(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = []string{"학교"}
	opt.Correlations = true
	rep := Profile(envTable(), opt)

	if rep.Rows != 9 || rep.Processed != 9 {
		t.Fatalf("rows = %d processed = %d", rep.Rows, rep.Processed)
	}
	kinds := map[string]string{}
	for _, c := range rep.Cols {
		kinds[c.Name] = c.Kind
	}
	want := map[string]string{"학교": "categorical", "time": "datetime", "ph": "numeric", "ec": "numeric", "temperature": "numeric"}
	for k, v := range want {
		if kinds[k] != v {
			t.Errorf("%s kind = %q, want %q", k, kinds[k], v)
		}
	}
	ph := rep.Cols[2]
	if ph.Missing != 1 || ph.NonNull != 8 || ph.Min != 4.8 || ph.Max != 6.4 {
		t.Fatalf("ph summary = %+v", ph)
	}
	if len(rep.Groups) != 2 || rep.Groups[0].Key != "학교=송도고" || rep.Groups[0].Size != 3 {
		t.Fatalf("groups = %+v", rep.Groups)
	}
	if got := rep.Groups[0].Metrics["ec"].Mean; math.Abs(got-1.2) > 1e-9 {
		t.Fatalf("송도고 ec mean = %v", got)
	}
	if rep.Corr == nil || len(rep.Corr.Columns) != 3 {
		t.Fatalf("expected 3x3 correlation matrix, got %+v", rep.Corr)
	}
	// ec and temperature trend upward together (r ≈ 0.57)
	if r := rep.Corr.Values[1][2]; r < 0.5 || r > 0.65 {
		t.Fatalf("ec~temperature r = %v, expected ≈0.57", r)
	}
}

func TestProfileUnitsAndMaxRows(t *testing.T) {
	tbl := &dataset.Table{
		Name:   "하늘고",
		Header: []string{"개체번호", dataset.ColShoot, dataset.ColRoot},
		Rows:   [][]string{{"1", "10", "20"}, {"2", "12", "22"}, {"3", "14", "24"}},
	}
	opt := DefaultOptions()
	opt.MaxRows = 2
	rep := Profile(tbl, opt)
	if rep.Cols[1].Name != "지상부 길이" || rep.Cols[1].Unit != "mm" {
		t.Fatalf("unit split failed: %+v", rep.Cols[1])
	}
	md := rep.Markdown()
	for _, s := range []string{
		"[DATASET SUMMARY]",
		"Table: 하늘고",
		"Rows: ~3 (processed 2)",
		"지상부 길이 [mm]: numeric",
		"[HEAD AND SAMPLE ROWS]",
		"processed only 2/3 rows",
	} {
		if !strings.Contains(md, s) {
			t.Errorf("markdown missing %q:\n%s", s, md)
		}
	}
}

func TestOutliers(t *testing.T) {
	tbl := &dataset.Table{Name: "t", Header: []string{"ec"}}
	for _, v := range []string{"1.0", "1.1", "0.9", "1.0", "1.05", "0.95", "1.0", "1.1", "9.0"} {
		tbl.Rows = append(tbl.Rows, []string{v})
	}
	rep := Profile(tbl, DefaultOptions())
	if rep.Cols[0].OutliersCount != 1 {
		t.Fatalf("outliers = %d, want 1", rep.Cols[0].OutliersCount)
	}
}

func TestParseNumeric(t *testing.T) {
	cases := map[string]float64{"12.5": 12.5, "12,5": 12.5, "1.000,5": 1000.5, "1,000.5": 1000.5, "40%": 40}
	for in, want := range cases {
		got, ok := parseNumeric(in)
		if !ok || math.Abs(got-want) > 1e-9 {
			t.Errorf("parseNumeric(%q) = %v %v, want %v", in, got, ok, want)
		}
	}
	for _, bad := range []string{"abc", "2025-05-01 09:00:00", "NaN"} {
		if _, ok := parseNumeric(bad); ok {
			t.Errorf("parseNumeric(%q) should fail", bad)
		}
	}
}
