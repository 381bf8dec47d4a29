package export

import (
	"math"
	"strings"
	"testing"

	"github.com/san-kum/fgmsim/internal/blend"
	"github.com/san-kum/fgmsim/internal/viz"
	"gonum.org/v1/gonum/spatial/r3"
)

func twoCellField() *blend.Field {
	return &blend.Field{
		Resolution: [3]int{2, 1, 1},
		Bounds:     r3.Box{Max: r3.Vec{X: 2, Y: 1, Z: 1}},
		Materials:  []string{"steel", "polymer"},
		Cells: []blend.Cell{
			{Concentration: []float64{0.75, 0.25}, Dominant: 0},
			{Concentration: []float64{0, 0}, Dominant: -1},
		},
	}
}

func TestFieldSliceToSVG(t *testing.T) {
	theme := viz.GetTheme("forge")
	svg := FieldSliceToSVG(twoCellField(), 2, 10, theme)

	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("not an svg document")
	}
	if n := strings.Count(svg, `fill-opacity=`); n != 1 {
		t.Errorf("drew %d cells, want 1 (empty cells skipped)", n)
	}
	if !strings.Contains(svg, `fill-opacity="0.75"`) {
		t.Error("cell opacity should follow the dominant concentration")
	}
	for _, name := range []string{"steel", "polymer"} {
		if !strings.Contains(svg, ">"+name+"<") {
			t.Errorf("legend missing %s", name)
		}
	}
	if FieldSliceToSVG(nil, 2, 10, theme) != "" || FieldSliceToSVG(twoCellField(), 3, 10, theme) != "" {
		t.Error("invalid input should render nothing")
	}
}

func TestEnergyToSVG(t *testing.T) {
	svg := EnergyToSVG([]float64{3, 2, math.Inf(1), 1}, 100, 50, "#00ff00")
	if strings.Count(svg, "M") != 1 || strings.Count(svg, "L") != 2 {
		t.Errorf("path should skip non-finite samples: %s", svg)
	}
	if !strings.Contains(svg, `stroke="#00ff00"`) {
		t.Error("stroke color missing")
	}
	if EnergyToSVG([]float64{1}, 100, 50, "#fff") != "" {
		t.Error("single sample should render nothing")
	}
}
