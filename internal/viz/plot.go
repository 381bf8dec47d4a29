package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fgmsim/internal/blend"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// EnergyPlot draws the kinetic energy history, resampled to width columns.
func EnergyPlot(energy []float64, width, height int, caption string) string {
	if len(energy) == 0 {
		return ""
	}
	return asciigraph.Plot(energy,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption))
}

// ViewPlane returns the two coordinate axes spanning the plane most nearly
// perpendicular to the rotation axis.
func ViewPlane(axis r3.Vec) (u, v int) {
	c := [3]float64{math.Abs(axis.X), math.Abs(axis.Y), math.Abs(axis.Z)}
	drop := 2
	if c[0] > c[1] && c[0] > c[2] {
		drop = 0
	} else if c[1] > c[2] {
		drop = 1
	}
	return (drop + 1) % 3, (drop + 2) % 3
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// Scatter projects the particles onto the (u, v) plane of the domain.
func Scatter(c *Canvas, ps []dynamo.Particle, bounds r3.Box, u, v int) {
	c.Clear()
	lu, hu := component(bounds.Min, u), component(bounds.Max, u)
	lv, hv := component(bounds.Min, v), component(bounds.Max, v)
	for _, p := range ps {
		c.Plot((component(p.Position, u)-lu)/(hu-lu), (component(p.Position, v)-lv)/(hv-lv), p.Material)
	}
}

// FieldSlice renders the middle layer of the field across axis with one
// colored block per cell and a legend of material names.
func FieldSlice(f *blend.Field, axis int, t Theme) string {
	if f == nil || len(t.Palette) == 0 {
		return ""
	}
	layer := f.Slice(axis, f.Resolution[axis]/2)

	var b strings.Builder
	for r := len(layer) - 1; r >= 0; r-- {
		for _, cell := range layer[r] {
			if cell.Empty() {
				b.WriteString("  ")
				continue
			}
			style := lipgloss.NewStyle().Foreground(t.Palette[cell.Dominant%len(t.Palette)])
			b.WriteString(style.Render("██"))
		}
		b.WriteByte('\n')
	}
	for k, name := range f.Materials {
		style := lipgloss.NewStyle().Foreground(t.Palette[k%len(t.Palette)])
		b.WriteString(style.Render("■ " + name))
		b.WriteString("  ")
	}
	return b.String()
}
