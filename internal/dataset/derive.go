package dataset

import (
	"math"
	"sort"
)

// RelativeChange returns (v[i]-v[i-1])/v[i-1] for each sample. The first
// element is always nil, as is any step whose result is not finite.
func RelativeChange(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1], values[i]
		out[i] = finite((cur - prev) / prev)
	}
	return out
}

// DeriveChanges fills PHChange and ECChange for consecutive samples of the
// same school, in slice order.
func DeriveChanges(records []EnvRecord) {
	bySchool := map[string][]int{}
	var order []string
	for i, r := range records {
		if _, ok := bySchool[r.School]; !ok {
			order = append(order, r.School)
		}
		bySchool[r.School] = append(bySchool[r.School], i)
	}
	for _, school := range order {
		idx := bySchool[school]
		ph := make([]float64, len(idx))
		ec := make([]float64, len(idx))
		for k, i := range idx {
			ph[k] = records[i].PH
			ec[k] = records[i].EC
		}
		phc, ecc := RelativeChange(ph), RelativeChange(ec)
		for k, i := range idx {
			records[i].PHChange = phc[k]
			records[i].ECChange = ecc[k]
		}
	}
}

// SummaryRow is the mean growth rate of one (school, EC) group.
type SummaryRow struct {
	School     string  `json:"school"`
	EC         float64 `json:"ec"`
	GrowthRate float64 `json:"growth_rate"`
	Count      int     `json:"count"`
}

// Summarize groups records by (school, EC) and averages their growth rates.
// Records without a configured EC and missing growth rates are left out;
// rows are sorted by school, then EC.
func Summarize(records []GrowthRecord) []SummaryRow {
	type key struct {
		school string
		ec     float64
	}
	type acc struct {
		sum float64
		n   int
	}
	groups := map[key]*acc{}
	var keys []key
	for _, r := range records {
		if r.EC == nil {
			continue
		}
		gr := r.GrowthRate()
		if math.IsNaN(gr) {
			continue
		}
		k := key{r.School, *r.EC}
		a := groups[k]
		if a == nil {
			a = &acc{}
			groups[k] = a
			keys = append(keys, k)
		}
		a.sum += gr
		a.n++
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].school == keys[j].school {
			return keys[i].ec < keys[j].ec
		}
		return keys[i].school < keys[j].school
	})
	out := make([]SummaryRow, 0, len(keys))
	for _, k := range keys {
		a := groups[k]
		out = append(out, SummaryRow{School: k.school, EC: k.ec, GrowthRate: a.sum / float64(a.n), Count: a.n})
	}
	return out
}
