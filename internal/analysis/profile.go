package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/hydrodash/internal/dataset"
)

// Options controls profiling of a loaded table.
type Options struct {
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for sensor and growth tables.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// Report is a markdown-friendly profile of a tabular dataset.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Warnings  []string
	Groups    []GroupResult
	Corr      *CorrMatrix
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text|unknown
	Unit    string
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutlierThreshold float64
	// Categorical top values
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by column name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64
}

// colAcc accumulates one column. Numeric moments use Welford's update.
type colAcc struct {
	name, unit string
	present    int
	missing    int
	numeric    int
	datetime   int
	text       int
	n          int
	mean, m2   float64
	lo, hi     float64
	cats       map[string]int
	vals       []float64
}

const maxCategories = 10000

func newColAcc(header string) *colAcc {
	name, unit := splitUnits(header)
	return &colAcc{name: name, unit: unit, lo: math.Inf(1), hi: math.Inf(-1), cats: map[string]int{}}
}

// observe classifies v and reports its numeric value when it has one.
func (c *colAcc) observe(v string) (float64, bool) {
	if v == "" {
		c.missing++
		return 0, false
	}
	c.present++
	if x, ok := parseNumeric(v); ok {
		c.numeric++
		c.n++
		c.lo, c.hi = math.Min(c.lo, x), math.Max(c.hi, x)
		d := x - c.mean
		c.mean += d / float64(c.n)
		c.m2 += d * (x - c.mean)
		c.vals = append(c.vals, x)
		return x, true
	}
	if looksLikeTime(v) {
		c.datetime++
		return 0, false
	}
	c.text++
	if len(c.cats) <= maxCategories && len(v) <= 64 {
		c.cats[v]++
	}
	return 0, false
}

func (c *colAcc) summary(opt Options) ColumnSummary {
	s := ColumnSummary{Name: c.name, Unit: c.unit, NonNull: c.present, Missing: c.missing, Kind: "unknown"}
	switch {
	case c.numeric > 0 && c.numeric >= c.datetime && c.numeric >= c.text:
		s.Kind = "numeric"
		s.Min, s.Max, s.Mean = c.lo, c.hi, c.mean
		if c.n > 1 {
			s.Std = math.Sqrt(c.m2 / float64(c.n-1))
		}
		if opt.Outliers && len(c.vals) >= 8 {
			s.OutlierThreshold = opt.OutlierThreshold
			if s.OutlierThreshold <= 0 {
				s.OutlierThreshold = 3.5
			}
			s.OutliersCount = countOutliers(c.vals, s.OutlierThreshold)
		}
	case c.datetime > 0 && c.datetime >= c.text:
		s.Kind = "datetime"
	case len(c.cats) > 0:
		s.Kind = "categorical"
		s.Unique = len(c.cats)
		s.TopValues = topValues(c.cats, 8)
	case c.text > 0:
		s.Kind = "text"
	}
	return s
}

type pairAcc struct {
	n, sumX, sumY, sumXX, sumYY, sumXY float64
}

func (p *pairAcc) add(x, y float64) {
	p.n++
	p.sumX += x
	p.sumY += y
	p.sumXX += x * x
	p.sumYY += y * y
	p.sumXY += x * y
}

type groupAcc struct {
	size int
	sums map[int]NumSummary
}

func (g *groupAcc) add(col int, x float64) {
	s, ok := g.sums[col]
	if !ok || x < s.Min {
		s.Min = x
	}
	if !ok || x > s.Max {
		s.Max = x
	}
	s.Count++
	s.Mean += x // running sum until result()
	g.sums[col] = s
}

func (g *groupAcc) result(key string, cols []*colAcc, numCols []int) GroupResult {
	gr := GroupResult{Key: key, Size: g.size, Metrics: map[string]NumSummary{}}
	for _, idx := range numCols {
		s, ok := g.sums[idx]
		if !ok || s.Count == 0 {
			continue
		}
		s.Mean /= float64(s.Count)
		gr.Metrics[cols[idx].name] = s
	}
	return gr
}

// Profile walks t once and returns its Report.
func Profile(t *dataset.Table, opt Options) *Report {
	rep := &Report{Name: t.Name}
	ncol := len(t.Header)
	if ncol == 0 {
		return rep
	}
	cols := make([]*colAcc, ncol)
	for i, h := range t.Header {
		cols[i] = newColAcc(h)
	}
	var groupIdx []int
	for _, name := range opt.GroupBy {
		if i := t.Column(name); i >= 0 {
			groupIdx = append(groupIdx, i)
		}
	}
	limit := opt.MaxRows
	if limit <= 0 {
		limit = math.MaxInt
	}
	pairs := map[[2]int]*pairAcc{}
	groups := map[string]*groupAcc{}

	for ri, row := range t.Rows {
		rep.Rows++
		if rep.Processed >= limit {
			continue
		}
		rep.Processed++
		if len(rep.Samples) < opt.SampleRows {
			rep.Samples = append(rep.Samples, append(make([]string, 0, ncol), padTo(row, ncol)...))
		}
		group := groupFor(groups, groupKey(t, ri, cols, groupIdx))

		nums := map[int]float64{}
		for j, c := range cols {
			x, ok := c.observe(t.Cell(ri, j))
			if !ok {
				continue
			}
			nums[j] = x
			if group != nil {
				group.add(j, x)
			}
		}
		if opt.Correlations {
			for j, x := range nums {
				for k, y := range nums {
					if k >= j {
						continue
					}
					pa := pairs[[2]int{j, k}]
					if pa == nil {
						pa = &pairAcc{}
						pairs[[2]int{j, k}] = pa
					}
					pa.add(x, y)
				}
			}
		}
	}

	var numCols []int
	for i, c := range cols {
		s := c.summary(opt)
		if s.Kind == "numeric" {
			numCols = append(numCols, i)
		}
		c.vals = nil
		rep.Cols = append(rep.Cols, s)
	}
	for key, g := range groups {
		rep.Groups = append(rep.Groups, g.result(key, cols, numCols))
	}
	sort.Slice(rep.Groups, func(i, j int) bool { return rep.Groups[i].Key < rep.Groups[j].Key })

	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = corrMatrix(cols, numCols, pairs)
	}
	return rep
}

// groupKey joins the group-by cells of row ri, or returns "" without grouping.
func groupKey(t *dataset.Table, ri int, cols []*colAcc, idx []int) string {
	if len(idx) == 0 {
		return ""
	}
	parts := make([]string, len(idx))
	for i, gi := range idx {
		parts[i] = cols[gi].name + "=" + cellText(t.Cell(ri, gi), "")
	}
	return strings.Join(parts, " | ")
}

func groupFor(groups map[string]*groupAcc, key string) *groupAcc {
	if key == "" {
		return nil
	}
	g := groups[key]
	if g == nil {
		g = &groupAcc{sums: map[int]NumSummary{}}
		groups[key] = g
	}
	g.size++
	return g
}

func padTo(row []string, n int) []string {
	if len(row) >= n {
		return row[:n]
	}
	return append(append([]string(nil), row...), make([]string, n-len(row))...)
}

func corrMatrix(cols []*colAcc, numCols []int, pairs map[[2]int]*pairAcc) *CorrMatrix {
	n := len(numCols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for a, ia := range numCols {
		m.Columns[a] = cols[ia].name
		m.Values[a] = make([]float64, n)
		for b, ib := range numCols {
			if a == b {
				m.Values[a][b] = 1
				continue
			}
			m.Values[a][b] = pearson(pairs[[2]int{max(ia, ib), min(ia, ib)}])
		}
	}
	return m
}

func pearson(pa *pairAcc) float64 {
	if pa == nil || pa.n < 2 {
		return 0
	}
	denom := math.Sqrt((pa.n*pa.sumXX - pa.sumX*pa.sumX) * (pa.n*pa.sumYY - pa.sumY*pa.sumY))
	if denom == 0 {
		return 0
	}
	r := (pa.n*pa.sumXY - pa.sumX*pa.sumY) / denom
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}

func topValues(cats map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

func countOutliers(vals []float64, thr float64) int {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0
	}
	var cnt int
	for _, v := range vals {
		if math.Abs(0.6745*(v-median)/mad) > thr {
			cnt++
		}
	}
	return cnt
}
