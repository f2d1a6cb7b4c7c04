package dataset

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AllSchools is the filter value that selects every school.
const AllSchools = "전체"

// School is one experiment site and its configured EC level.
type School struct {
	Name string  `json:"name"`
	EC   float64 `json:"ec"`
}

// Schools is the configured, ordered school list.
type Schools []School

// Lookup returns the EC configured for name. Names are compared in NFC so a
// sheet tab typed on a decomposing system still resolves.
func (s Schools) Lookup(name string) (float64, bool) {
	key := canonical(name)
	for _, sc := range s {
		if canonical(sc.Name) == key {
			return sc.EC, true
		}
	}
	return 0, false
}

// Names returns school names in configured order.
func (s Schools) Names() []string {
	out := make([]string, len(s))
	for i, sc := range s {
		out[i] = sc.Name
	}
	return out
}

// Has reports whether name is a configured school.
func (s Schools) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

func canonical(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Resolve maps a filter value to the configured school name. Empty and
// AllSchools select everything; unknown names report false.
func (s Schools) Resolve(name string) (string, bool) {
	key := canonical(name)
	if key == "" || key == AllSchools {
		return AllSchools, true
	}
	for _, sc := range s {
		if canonical(sc.Name) == key {
			return sc.Name, true
		}
	}
	return "", false
}
