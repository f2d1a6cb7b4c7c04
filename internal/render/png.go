// Package render draws chart figures to PNG with gonum/plot.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/hydrodash/internal/chart"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const dpi = 96

// Options sizes the image and picks its font. A zero Font keeps
// plot.DefaultFont, which has no Hangul glyphs.
type Options struct {
	Width, Height int
	Font          font.Font
}

// PNG draws fig at opt.Width x opt.Height pixels and writes the image to w.
// Plots of the figure are stacked vertically.
func PNG(w io.Writer, fig chart.Figure, opt Options) error {
	width, height := opt.Width, opt.Height
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if len(fig.Plots) == 0 {
		return fmt.Errorf("figure %q has no plots", fig.ID)
	}
	rows := make([][]*plot.Plot, 0, len(fig.Plots))
	for _, pl := range fig.Plots {
		p, err := build(pl, opt.Font)
		if err != nil {
			return fmt.Errorf("figure %q: %w", fig.ID, err)
		}
		rows = append(rows, []*plot.Plot{p})
	}

	px := func(n int) vg.Length { return vg.Length(n) * vg.Inch / dpi }
	img := vgimg.NewWith(vgimg.UseWH(px(width), px(height)), vgimg.UseDPI(dpi))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(rows),
		Cols:      1,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(8),
		PadY:      vg.Points(12),
	}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func build(pl chart.Plot, fnt font.Font) (*plot.Plot, error) {
	p := plot.New()
	if fnt.Typeface != "" {
		useFont(p, fnt)
	}
	p.Title.Text = pl.Title
	p.Title.TextStyle.Font.Size = vg.Points(13)
	p.X.Label.Text = pl.XLabel
	p.Y.Label.Text = pl.YLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	if pl.TimeX {
		p.X.Tick.Marker = plot.TimeTicks{Format: "01-02\n15:04", Time: chart.TimeOf}
	}

	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, s := range pl.Series {
		if len(s.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Points))
		for i, pt := range s.Points {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
			ymin, ymax = math.Min(ymin, pt.Y), math.Max(ymax, pt.Y)
		}
		c, err := parseColor(s.Color)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		switch s.Style {
		case chart.StyleLines:
			l, err := plotter.NewLine(xys)
			if err != nil {
				return nil, err
			}
			l.Color = c
			l.Width = vg.Points(1.5)
			p.Add(l)
			p.Legend.Add(s.Name, l)
		case chart.StyleLinesPoints:
			l, sc, err := plotter.NewLinePoints(xys)
			if err != nil {
				return nil, err
			}
			l.Color = c
			l.Width = vg.Points(2)
			sc.GlyphStyle.Color = c
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(3.5)
			p.Add(l, sc)
			p.Legend.Add(s.Name, l, sc)
		default:
			sc, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, err
			}
			sc.GlyphStyle.Color = c
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(3)
			p.Add(sc)
			p.Legend.Add(s.Name, sc)
		}
	}

	if len(pl.Markers) > 0 {
		if math.IsInf(ymin, 0) {
			ymin, ymax = 0, 1
		}
		for _, m := range pl.Markers {
			l, err := plotter.NewLine(plotter.XYs{{X: m.X, Y: ymin}, {X: m.X, Y: ymax}})
			if err != nil {
				return nil, err
			}
			l.Color = color.RGBA{R: 0x6B, G: 0x72, B: 0x80, A: 0xFF}
			l.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
			p.Add(l)
			if m.Label != "" {
				p.Legend.Add(m.Label, l)
			}
		}
	}
	return p, nil
}

// useFont switches every text style of p to fnt, keeping the sizes.
func useFont(p *plot.Plot, fnt font.Font) {
	for _, f := range []*font.Font{
		&p.Title.TextStyle.Font,
		&p.X.Label.TextStyle.Font, &p.X.Tick.Label.Font,
		&p.Y.Label.TextStyle.Font, &p.Y.Tick.Label.Font,
		&p.Legend.TextStyle.Font,
	} {
		*f = font.From(fnt, f.Size)
	}
}

// parseColor accepts #RRGGBB.
func parseColor(hex string) (color.Color, error) {
	s := strings.TrimPrefix(hex, "#")
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid color %q", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}
