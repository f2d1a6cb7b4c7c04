package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/hydrodash/internal/catalog"
)

var (
	// ErrMissingWorkbook is returned when no growth workbook can be found.
	ErrMissingWorkbook = errors.New("missing growth data: no .xlsx workbook found")
	// ErrMissingColumn is returned when a table lacks a column the records need.
	ErrMissingColumn = errors.New("missing column")
)

// MissingFileError reports a configured school without an environment file.
type MissingFileError struct {
	School string
	Name   string
	Dir    string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("missing environment data for %s: %s not found in %s", e.School, e.Name, e.Dir)
}

// Unwrap lets errors.Is(err, catalog.ErrNotFound) match.
func (e *MissingFileError) Unwrap() error { return catalog.ErrNotFound }

// AmbiguousWorkbookError reports more than one workbook candidate when no
// explicit workbook is configured.
type AmbiguousWorkbookError struct {
	Dir        string
	Candidates []string
}

func (e *AmbiguousWorkbookError) Error() string {
	return fmt.Sprintf("ambiguous growth data: %d workbooks in %s (%s); set workbook explicitly",
		len(e.Candidates), e.Dir, strings.Join(e.Candidates, ", "))
}
