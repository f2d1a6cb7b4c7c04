// Package chart builds declarative figure configurations for the dashboard
// panels. Figures carry data and styling only; internal/render draws them and
// the HTTP API serves them as JSON.
package chart

import (
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/hydrodash/internal/dataset"
)

// Figure identifiers, also used in URLs.
const (
	RelativeChangeID = "ec-ph"
	PhotoperiodID    = "photoperiod"
	GrowthID         = "growth"
)

// Series styles.
const (
	StylePoints      = "points"
	StyleLines       = "lines"
	StyleLinesPoints = "linespoints"
)

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Figure is one dashboard tab. Plots stack vertically and share the x axis.
type Figure struct {
	ID    string `json:"id"`
	Tab   string `json:"tab"`
	Title string `json:"title"`
	Plots []Plot `json:"plots"`
}

// Plot is one set of axes.
type Plot struct {
	Title   string   `json:"title"`
	XLabel  string   `json:"x_label"`
	YLabel  string   `json:"y_label"`
	TimeX   bool     `json:"time_x,omitempty"` // X holds unix seconds
	Series  []Series `json:"series"`
	Markers []Marker `json:"markers,omitempty"`
}

// Series is one named, colored line or point set.
type Series struct {
	Name   string  `json:"name"`
	Style  string  `json:"style"`
	Color  string  `json:"color"`
	Points []Point `json:"points"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Marker is a dashed vertical reference line at X.
type Marker struct {
	X     float64 `json:"x"`
	Label string  `json:"label"`
}

// Options are the figure inputs that come from configuration.
type Options struct {
	// Schools fixes color assignment so a school keeps its color across
	// filters and figures.
	Schools      []string
	OptimalEC    float64
	OptimalLabel string
}

// Empty reports whether no series in the figure has data.
func (f Figure) Empty() bool {
	for _, p := range f.Plots {
		for _, s := range p.Series {
			if len(s.Points) > 0 {
				return false
			}
		}
	}
	return true
}

// Build returns the three dashboard figures in tab order.
func Build(env *dataset.Environment, growth *dataset.Growth, opt Options) []Figure {
	return []Figure{
		RelativeChangeScatter(env, opt),
		PhotoperiodSeries(env, opt),
		GrowthByEC(dataset.Summarize(growth.All()), opt),
	}
}

// Find returns the figure with id.
func Find(figs []Figure, id string) (Figure, bool) {
	for _, f := range figs {
		if f.ID == id {
			return f, true
		}
	}
	return Figure{}, false
}

// RelativeChangeScatter plots EC relative change against pH relative change,
// one series per school. Samples with an undefined change are skipped.
func RelativeChangeScatter(env *dataset.Environment, opt Options) Figure {
	p := Plot{Title: "EC와 pH의 상대변화율 산점도", XLabel: "EC_상대변화율", YLabel: "pH_상대변화율"}
	for _, school := range env.Schools {
		s := Series{Name: school, Style: StylePoints, Color: colorFor(opt.Schools, school)}
		for _, r := range env.Records[school] {
			if r.ECChange == nil || r.PHChange == nil {
				continue
			}
			s.Points = append(s.Points, Point{X: *r.ECChange, Y: *r.PHChange})
		}
		p.Series = append(p.Series, s)
	}
	return Figure{ID: RelativeChangeID, Tab: "EC–pH 상관관계", Title: "pH와 EC 상대변화율 상관관계", Plots: []Plot{p}}
}

// PhotoperiodSeries plots EC and temperature over time in two stacked plots.
// Samples without a parseable timestamp or with a missing reading are skipped.
func PhotoperiodSeries(env *dataset.Environment, opt Options) Figure {
	ec := Plot{Title: "광주기 추정 (시간 변화)", XLabel: "time", YLabel: "EC", TimeX: true}
	temp := Plot{Title: "온도 변화", XLabel: "time", YLabel: "temperature", TimeX: true}
	for _, school := range env.Schools {
		color := colorFor(opt.Schools, school)
		es := Series{Name: school + " EC", Style: StyleLines, Color: color}
		ts := Series{Name: school + " 온도", Style: StyleLines, Color: color}
		for _, r := range env.Records[school] {
			if r.Time.IsZero() {
				continue
			}
			x := float64(r.Time.Unix())
			if finite(r.EC) {
				es.Points = append(es.Points, Point{X: x, Y: r.EC})
			}
			if finite(r.Temperature) {
				ts.Points = append(ts.Points, Point{X: x, Y: r.Temperature})
			}
		}
		sortByX(es.Points)
		sortByX(ts.Points)
		ec.Series = append(ec.Series, es)
		temp.Series = append(temp.Series, ts)
	}
	return Figure{ID: PhotoperiodID, Tab: "광주기 영향 분석", Title: "광주기가 생육 환경에 미치는 영향", Plots: []Plot{ec, temp}}
}

// GrowthByEC plots mean growth rate against EC, one series per school, with a
// reference marker at the optimal EC.
func GrowthByEC(summary []dataset.SummaryRow, opt Options) Figure {
	p := Plot{Title: "EC 농도별 평균 생장률", XLabel: "EC", YLabel: "생장률"}
	bySchool := map[string]*Series{}
	var order []string
	for _, row := range summary {
		s := bySchool[row.School]
		if s == nil {
			s = &Series{Name: row.School, Style: StyleLinesPoints, Color: colorFor(opt.Schools, row.School)}
			bySchool[row.School] = s
			order = append(order, row.School)
		}
		s.Points = append(s.Points, Point{X: row.EC, Y: row.GrowthRate})
	}
	for _, name := range order {
		sortByX(bySchool[name].Points)
		p.Series = append(p.Series, *bySchool[name])
	}
	p.Markers = []Marker{{X: opt.OptimalEC, Label: opt.OptimalLabel}}
	return Figure{ID: GrowthID, Tab: "EC별 생장률 비교", Title: "EC 농도에 따른 생장률 변화", Plots: []Plot{p}}
}

// TimeOf converts a TimeX coordinate back to a time.
func TimeOf(x float64) time.Time {
	return time.Unix(int64(x), 0).UTC()
}

func colorFor(schools []string, name string) string {
	for i, s := range schools {
		if s == name {
			return defaultColors[i%len(defaultColors)]
		}
	}
	// unconfigured sheets get colors after the configured schools
	h := 0
	for _, r := range name {
		h += int(r)
	}
	return defaultColors[(len(schools)+h)%len(defaultColors)]
}

func sortByX(pts []Point) {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
