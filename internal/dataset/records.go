package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Environment CSV columns.
const (
	ColTime        = "time"
	ColPH          = "ph"
	ColEC          = "ec"
	ColTemperature = "temperature"
)

// Growth sheet columns.
const (
	ColShoot = "지상부 길이(mm)"
	ColRoot  = "지하부길이(mm)"
)

// EnvRecord is one sensor sample. Missing readings are NaN; the relative
// changes are nil where undefined (first sample of a school, missing or zero
// previous value).
type EnvRecord struct {
	School      string
	Time        time.Time
	RawTime     string
	PH          float64
	EC          float64
	Temperature float64
	PHChange    *float64
	ECChange    *float64
}

// MarshalJSON writes NaN readings as null.
func (r EnvRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		School      string   `json:"school"`
		Time        string   `json:"time"`
		PH          *float64 `json:"ph"`
		EC          *float64 `json:"ec"`
		Temperature *float64 `json:"temperature"`
		PHChange    *float64 `json:"ph_change"`
		ECChange    *float64 `json:"ec_change"`
	}{r.School, r.RawTime, finite(r.PH), finite(r.EC), finite(r.Temperature), r.PHChange, r.ECChange})
}

// GrowthRecord is one plant measurement. EC is nil when the sheet's school is
// not in the configured mapping.
type GrowthRecord struct {
	School string
	EC     *float64
	Shoot  float64
	Root   float64
}

// GrowthRate is the mean of above-ground and below-ground length.
func (g GrowthRecord) GrowthRate() float64 {
	return (g.Shoot + g.Root) / 2
}

// MarshalJSON writes NaN lengths as null and includes the growth rate.
func (g GrowthRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		School     string   `json:"school"`
		EC         *float64 `json:"ec"`
		Shoot      *float64 `json:"shoot_mm"`
		Root       *float64 `json:"root_mm"`
		GrowthRate *float64 `json:"growth_rate"`
	}{g.School, g.EC, finite(g.Shoot), finite(g.Root), finite(g.GrowthRate())})
}

func envRecords(t *Table, school string) ([]EnvRecord, error) {
	idx, err := t.require(ColTime, ColPH, ColEC, ColTemperature)
	if err != nil {
		return nil, err
	}
	out := make([]EnvRecord, 0, t.Len())
	for i := range t.Rows {
		rec := EnvRecord{School: school, RawTime: t.Cell(i, idx[0])}
		rec.Time, _ = parseTime(rec.RawTime)
		vals := []*float64{&rec.PH, &rec.EC, &rec.Temperature}
		for k, dst := range vals {
			v, err := parseFloat(t.Cell(i, idx[k+1]))
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %s: %w", t.Name, i+2, t.Header[idx[k+1]], err)
			}
			*dst = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// growthRecords reads the length columns of one sheet. A missing length
// column reads as NaN; a sheet with neither column has no plant rows.
func growthRecords(t *Table, school string, ec *float64) ([]GrowthRecord, error) {
	shoot, root := t.Column(ColShoot), t.Column(ColRoot)
	if shoot < 0 && root < 0 {
		return nil, nil
	}
	out := make([]GrowthRecord, 0, t.Len())
	for i := range t.Rows {
		rec := GrowthRecord{School: school, EC: ec}
		var err error
		if rec.Shoot, err = parseFloat(t.Cell(i, shoot)); err != nil {
			return nil, fmt.Errorf("%s row %d column %s: %w", t.Name, i+2, ColShoot, err)
		}
		if rec.Root, err = parseFloat(t.Cell(i, root)); err != nil {
			return nil, fmt.Errorf("%s row %d column %s: %w", t.Name, i+2, ColRoot, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseFloat treats an empty cell as missing (NaN).
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05",
	"2006/01/02 15:04:05", "2006/01/02 15:04", "2006-01-02", "2006/01/02",
	"1/2/2006 15:04:05", "1/2/2006 15:04",
}

func parseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
