package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBase = 0x2800

// Canvas is a Braille dot grid that remembers which material set each
// cell, so a cell can be colored by the material with most dots in it.
type Canvas struct {
	Width, Height int
	dots          [][]rune
	votes         [][][]int
}

func NewCanvas(w, h, materials int) *Canvas {
	c := &Canvas{Width: w, Height: h, dots: make([][]rune, h), votes: make([][][]int, h)}
	for i := range c.dots {
		c.dots[i] = make([]rune, w)
		c.votes[i] = make([][]int, w)
		for j := range c.votes[i] {
			c.votes[i][j] = make([]int, materials)
		}
	}
	c.Clear()
	return c
}

// Set marks the dot at sub-pixel (x, y); the canvas is Width*2 by Height*4
// dots with y growing downwards.
func (c *Canvas) Set(x, y, material int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.dots[row][col] |= rune(pixelMap[y%4][x%2])
	if material >= 0 && material < len(c.votes[row][col]) {
		c.votes[row][col][material]++
	}
}

// Plot marks the point (u, v) in [0,1]², v growing upwards.
func (c *Canvas) Plot(u, v float64, material int) {
	x := int(u * float64(c.Width*2))
	y := int((1 - v) * float64(c.Height*4))
	if u >= 1 {
		x = c.Width*2 - 1
	}
	if v <= 0 {
		y = c.Height*4 - 1
	}
	c.Set(x, y, material)
}

func (c *Canvas) Clear() {
	for i := range c.dots {
		for j := range c.dots[i] {
			c.dots[i][j] = brailleBase
			for k := range c.votes[i][j] {
				c.votes[i][j][k] = 0
			}
		}
	}
}

// Dominant is the material with most dots in cell (col, row), or -1.
func (c *Canvas) Dominant(col, row int) int {
	best, count := -1, 0
	for k, n := range c.votes[row][col] {
		if n > count {
			best, count = k, n
		}
	}
	return best
}

// Render draws the canvas with every cell colored from palette by its
// dominant material.
func (c *Canvas) Render(palette []lipgloss.Color) string {
	var b strings.Builder
	for row := range c.dots {
		for col, r := range c.dots[row] {
			k := c.Dominant(col, row)
			if k < 0 || len(palette) == 0 {
				b.WriteRune(r)
				continue
			}
			style := lipgloss.NewStyle().Foreground(palette[k%len(palette)])
			b.WriteString(style.Render(string(r)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (c *Canvas) String() string {
	return c.Render(nil)
}
