package viz

import (
	"math"
	"strings"

	"github.com/san-kum/mpctrack/internal/geom"
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

const blank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at (x, y) in sub-pixel coordinates. The canvas is
// Width*2 by Height*4 sub-pixels.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Viewport maps world metres onto canvas sub-pixels with equal scale on
// both axes; world y grows upwards, screen y downwards.
type Viewport struct {
	minX, maxY float64
	scale      float64
}

// Fit returns a viewport that shows every point on c with a small margin.
func Fit(c *Canvas, pts []geom.Point) Viewport {
	if len(pts) == 0 {
		return Viewport{scale: 1}
	}
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	w, h := float64(c.Width*2-1), float64(c.Height*4-1)
	spanX, spanY := math.Max(maxX-minX, 1e-9), math.Max(maxY-minY, 1e-9)
	scale := 0.95 * math.Min(w/spanX, h/spanY)

	// centre the drawing on both axes
	padX := (w/scale - spanX) / 2
	padY := (h/scale - spanY) / 2
	return Viewport{minX: minX - padX, maxY: maxY + padY, scale: scale}
}

func (v Viewport) Project(p geom.Point) (int, int) {
	return int(math.Round((p.X - v.minX) * v.scale)), int(math.Round((v.maxY - p.Y) * v.scale))
}

func (c *Canvas) Plot(v Viewport, p geom.Point) {
	c.Set(v.Project(p))
}

func (c *Canvas) Polyline(v Viewport, pts []geom.Point) {
	for i := 1; i < len(pts); i++ {
		x0, y0 := v.Project(pts[i-1])
		x1, y1 := v.Project(pts[i])
		c.DrawLine(x0, y0, x1, y1)
	}
}
