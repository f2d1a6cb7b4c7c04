// Package catalog resolves logical dataset names to files on disk.
//
// File names typed on one system and stored by another frequently disagree on
// Unicode normalization: macOS stores Hangul syllables decomposed into jamo
// (NFD) while most editors and configuration files produce composed syllables
// (NFC). Byte comparison of the two spellings fails even though the names
// render identically, so every comparison here goes through both forms.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
)

// ErrNotFound is returned when no directory entry matches the requested name.
var ErrNotFound = errors.New("catalog: no matching file")

// WorkbookExt is the extension that marks a multi-sheet workbook.
const WorkbookExt = ".xlsx"

// Forms returns the composed and decomposed spellings of name, deduplicated.
func Forms(name string) []string {
	nfc := norm.NFC.String(name)
	nfd := norm.NFD.String(name)
	if nfc == nfd {
		return []string{nfc}
	}
	return []string{nfc, nfd}
}

// Equivalent reports whether a and b share a normalized form.
func Equivalent(a, b string) bool {
	for _, fa := range Forms(a) {
		for _, fb := range Forms(b) {
			if fa == fb {
				return true
			}
		}
	}
	return false
}

// Find returns the path of the first regular file in dir whose name is
// Unicode-equivalent to target. Entries are scanned in name order.
func Find(fsys afero.Fs, dir, target string) (string, error) {
	if strings.TrimSpace(target) == "" {
		return "", errors.New("catalog: empty target name")
	}
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if Equivalent(e.Name(), target) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNotFound, target, dir)
}

// Workbooks lists workbook files in dir in name order. Office lock files
// (~$name.xlsx) and hidden or AppleDouble files (.name.xlsx, ._name.xlsx) are
// skipped.
func Workbooks(fsys afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsWorkbook(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// IsWorkbook reports whether name looks like a user workbook.
func IsWorkbook(name string) bool {
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), WorkbookExt)
}
