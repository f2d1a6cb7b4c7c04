package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	maxCorrPairs = 10
	maxCellRunes = 80
)

// Markdown renders the report as plain sections for a terminal or a file.
func (r *Report) Markdown() string {
	var b strings.Builder
	r.writeHeader(&b)
	r.writeSchema(&b)
	r.writeGroups(&b)
	r.writeCorrelations(&b)
	r.writeSamples(&b)
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func (r *Report) writeHeader(b *strings.Builder) {
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		fmt.Fprintf(b, "Table: %s\n", r.Name)
	}
	rows := fmt.Sprintf("%d", r.Rows)
	if r.Processed > 0 && r.Processed < r.Rows {
		rows = fmt.Sprintf("~%d (processed %d)", r.Rows, r.Processed)
	}
	fmt.Fprintf(b, "Rows: %s\nColumns: %d\n\n", rows, len(r.Cols))
}

func (r *Report) writeSchema(b *strings.Builder) {
	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		label := cellText(c.Name, "(unnamed)")
		if c.Unit != "" {
			label += " [" + c.Unit + "]"
		}
		fmt.Fprintf(b, "- %s: %s (non-null %d, missing %.1f%%)%s\n",
			label, c.Kind, c.NonNull, c.missingPct(), c.detail())
	}
}

func (c ColumnSummary) missingPct() float64 {
	total := c.NonNull + c.Missing
	if total == 0 {
		return 0
	}
	return float64(c.Missing) * 100 / float64(total)
}

// detail is the kind-specific tail of a schema line.
func (c ColumnSummary) detail() string {
	switch c.Kind {
	case "numeric":
		s := fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std)
		if c.OutlierThreshold > 0 {
			s += fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold)
		}
		return s
	case "categorical":
		if len(c.TopValues) == 0 {
			return ""
		}
		top := make([]string, len(c.TopValues))
		for i, kv := range c.TopValues {
			top[i] = fmt.Sprintf("%s(%d)", cellText(kv.Value, ""), kv.Count)
		}
		s := "; top: " + strings.Join(top, ", ")
		if c.Unique > len(c.TopValues) {
			s += fmt.Sprintf("; unique=%d", c.Unique)
		}
		return s
	}
	return ""
}

func (r *Report) writeGroups(b *strings.Builder) {
	if len(r.Groups) == 0 {
		return
	}
	b.WriteString("\n[GROUP-BY SUMMARY]\n")
	for _, g := range r.Groups {
		fmt.Fprintf(b, "- %s (n=%d)\n", g.Key, g.Size)
		metrics := make([]string, 0, len(g.Metrics))
		for name := range g.Metrics {
			metrics = append(metrics, name)
		}
		sort.Strings(metrics)
		for _, name := range metrics {
			m := g.Metrics[name]
			fmt.Fprintf(b, "  • %s: mean %.4g (min %.4g, max %.4g)\n", name, m.Mean, m.Min, m.Max)
		}
	}
}

type corrPair struct {
	a, b string
	r    float64
}

// strongest returns the column pairs ordered by |r|, at most limit of them.
func (m *CorrMatrix) strongest(limit int) []corrPair {
	var pairs []corrPair
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			pairs = append(pairs, corrPair{a: m.Columns[i], b: m.Columns[j], r: m.Values[i][j]})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		ri, rj := math.Abs(pairs[i].r), math.Abs(pairs[j].r)
		if ri != rj {
			return ri > rj
		}
		return pairs[i].a+pairs[i].b < pairs[j].a+pairs[j].b
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func (r *Report) writeCorrelations(b *strings.Builder) {
	if r.Corr == nil || len(r.Corr.Columns) < 2 {
		return
	}
	b.WriteString("\n[CORRELATIONS]\n")
	for _, p := range r.Corr.strongest(maxCorrPairs) {
		fmt.Fprintf(b, "- %s ~ %s: r=%.3f\n", p.a, p.b, p.r)
	}
}

func (r *Report) writeSamples(b *strings.Builder) {
	if len(r.Samples) == 0 {
		return
	}
	head := make([]string, len(r.Cols))
	rule := make([]string, len(r.Cols))
	for i, c := range r.Cols {
		head[i] = cellText(c.Name, "(unnamed)")
		rule[i] = "---"
	}
	b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
	writeRow(b, head)
	writeRow(b, rule)
	for _, row := range r.Samples {
		cells := make([]string, len(r.Cols))
		for i := range cells {
			if i < len(row) {
				cells[i] = truncate(cellText(row[i], ""), maxCellRunes)
			}
		}
		writeRow(b, cells)
	}
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

// cellText flattens s for a single table cell, substituting empty when blank.
func cellText(s, empty string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return empty
	}
	return strings.NewReplacer("\n", " ", "|", "/").Replace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
