package render

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/afero"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"gonum.org/v1/plot/font"
)

// HangulFontPaths are tried in order when no chart font is configured.
var HangulFontPaths = []string{
	"/usr/share/fonts/truetype/nanum/NanumGothic.ttf",
	"/usr/share/fonts/nanum/NanumGothic.ttf",
	"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/noto-cjk/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/google-noto-cjk/NotoSansCJK-Regular.ttc",
	"/System/Library/Fonts/AppleSDGothicNeo.ttc",
	"/System/Library/Fonts/Supplemental/AppleGothic.ttf",
	"/Library/Fonts/AppleGothic.ttf",
	`C:\Windows\Fonts\malgun.ttf`,
}

// LoadFont parses the TrueType or OpenType font at path (the first face of a
// .ttc collection), adds it to the gonum font cache and returns a descriptor
// for it.
func LoadFont(fsys afero.Fs, path string) (font.Font, error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return font.Font{}, fmt.Errorf("read font: %w", err)
	}
	var face *opentype.Font
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		coll, err := opentype.ParseCollection(b)
		if err != nil {
			return font.Font{}, fmt.Errorf("parse font %s: %w", path, err)
		}
		if face, err = coll.Font(0); err != nil {
			return font.Font{}, fmt.Errorf("parse font %s: %w", path, err)
		}
	} else if face, err = opentype.Parse(b); err != nil {
		return font.Font{}, fmt.Errorf("parse font %s: %w", path, err)
	}

	name, err := face.Name(nil, sfnt.NameIDFamily)
	if err != nil || strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	fnt := font.Font{Typeface: font.Typeface(name)}
	font.DefaultCache.Add(font.Collection{{Font: fnt, Face: face}})
	return fnt, nil
}

// DiscoverFont returns the first of HangulFontPaths present on fsys.
func DiscoverFont(fsys afero.Fs) (string, bool) {
	for _, p := range HangulFontPaths {
		if ok, _ := afero.Exists(fsys, p); ok {
			return p, true
		}
	}
	return "", false
}

// Covers reports whether fnt, as resolved by the font cache, has a glyph for
// every letter in s.
func Covers(fnt font.Font, s string) bool {
	face := font.DefaultCache.Lookup(fnt, 12)
	if face.Face == nil {
		return false
	}
	var buf sfnt.Buffer
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		idx, err := face.Face.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			return false
		}
	}
	return true
}
