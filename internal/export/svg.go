// Package export renders finished runs as standalone SVG documents.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/fgmsim/internal/blend"
	"github.com/san-kum/fgmsim/internal/viz"
)

const legendHeight = 24

// FieldSliceToSVG draws the middle layer of the field across axis, one
// rectangle per cell filled with the dominant material's color and faded
// by its concentration.
func FieldSliceToSVG(f *blend.Field, axis int, cell float64, theme viz.Theme) string {
	if f == nil || axis < 0 || axis > 2 || len(theme.Palette) == 0 {
		return ""
	}
	layer := f.Slice(axis, f.Resolution[axis]/2)
	rows, cols := len(layer), len(layer[0])
	width := float64(cols) * cell
	height := float64(rows)*cell + legendHeight

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for r := range layer {
		// row 0 at the bottom
		y := float64(rows-1-r) * cell
		for c, sample := range layer[r] {
			if sample.Empty() {
				continue
			}
			color := string(theme.Palette[sample.Dominant%len(theme.Palette)])
			sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" fill-opacity="%.2f"/>
`, float64(c)*cell, y, cell, cell, color, sample.Concentration[sample.Dominant]))
		}
	}

	x := 4.0
	for k, name := range f.Materials {
		color := string(theme.Palette[k%len(theme.Palette)])
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="10" height="10" fill="%s"/>
<text x="%.1f" y="%.1f" fill="#cccccc" font-family="monospace" font-size="11">%s</text>
`, x, height-17, color, x+14, height-8, name))
		x += 14 + 8*float64(len(name)) + 12
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// EnergyToSVG plots a kinetic energy history as a polyline, iteration on
// the x axis. Non-finite samples are skipped.
func EnergyToSVG(energy []float64, width, height int, strokeColor string) string {
	if len(energy) < 2 {
		return ""
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, e := range energy {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			continue
		}
		lo = math.Min(lo, e)
		hi = math.Max(hi, e)
	}
	if math.IsInf(lo, 1) {
		return ""
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	lo -= span * 0.1
	span *= 1.2

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="`,
		width, height, width, height, strokeColor))

	cmd := "M"
	for i, e := range energy {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			continue
		}
		x := float64(i) / float64(len(energy)-1) * float64(width)
		y := float64(height) - (e-lo)/span*float64(height)
		sb.WriteString(fmt.Sprintf("%s%.1f,%.1f ", cmd, x, y))
		cmd = "L"
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
