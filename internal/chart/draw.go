package chart

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	colBackground = color.RGBA{255, 255, 255, 255}
	colAxis       = color.RGBA{60, 60, 60, 255}
	colGrid       = color.RGBA{225, 225, 225, 255}
	colSeries     = color.RGBA{31, 119, 180, 255}
	colTarget     = color.RGBA{214, 39, 40, 255}
	colText       = color.RGBA{20, 20, 20, 255}
	colMuted      = color.RGBA{120, 120, 120, 255}
)

const (
	marginLeft   = 90
	marginRight  = 30
	marginTop    = 70
	marginBottom = 50
	markerRadius = 3
)

// canvas maps plot coordinates onto an RGBA image.
type canvas struct {
	img  *image.RGBA
	area image.Rectangle
	plot Plot
	face font.Face
}

func newCanvas(w, h int, p Plot) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{colBackground}, image.Point{}, draw.Src)
	area := image.Rect(marginLeft, marginTop, w-marginRight, h-marginBottom)
	return &canvas{img: img, area: area, plot: p, face: basicfont.Face7x13}
}

func (c *canvas) x(p Point) int {
	span := c.plot.XMax.Sub(c.plot.XMin)
	if span <= 0 {
		return c.area.Min.X + c.area.Dx()/2
	}
	f := float64(p.T.Sub(c.plot.XMin)) / float64(span)
	return c.area.Min.X + int(math.Round(f*float64(c.area.Dx())))
}

func (c *canvas) y(v float64) int {
	span := c.plot.YMax - c.plot.YMin
	if span <= 0 {
		return c.area.Max.Y
	}
	f := (v - c.plot.YMin) / span
	return c.area.Max.Y - int(math.Round(f*float64(c.area.Dy())))
}

func (c *canvas) drawFrame() {
	for _, t := range c.plot.YTicks {
		y := c.y(t.V)
		c.hline(c.area.Min.X, c.area.Max.X, y, colGrid, 0)
		c.text(c.area.Min.X-8-c.textWidth(t.Label), y+4, t.Label, colText)
	}
	for _, t := range c.plot.XTicks {
		x := c.x(Point{T: t.T})
		c.vline(x, c.area.Min.Y, c.area.Max.Y, colGrid)
		c.vline(x, c.area.Max.Y, c.area.Max.Y+5, colAxis)
		c.text(x-c.textWidth(t.Label)/2, c.area.Max.Y+20, t.Label, colText)
	}
	c.hline(c.area.Min.X, c.area.Max.X, c.area.Max.Y, colAxis, 0)
	c.vline(c.area.Min.X, c.area.Min.Y, c.area.Max.Y, colAxis)

	c.text(c.area.Min.X, c.area.Max.Y+40, "Time", colMuted)
	c.text(8, c.area.Min.Y-10, "Height (m)", colMuted)
}

func (c *canvas) drawTitle() {
	w := c.img.Bounds().Dx()
	c.text((w-c.textWidth(c.plot.Title))/2, 24, c.plot.Title, colText)
	c.text((w-c.textWidth(c.plot.Subtitle))/2, 44, c.plot.Subtitle, colMuted)
}

func (c *canvas) drawTarget() {
	if c.plot.Target <= 0 {
		return
	}
	y := c.y(c.plot.Target)
	c.hline(c.area.Min.X, c.area.Max.X, y, colTarget, 8)
	c.hline(c.area.Min.X, c.area.Max.X, y+1, colTarget, 8)
	label := "Target"
	c.text(c.area.Max.X-c.textWidth(label)-4, y-6, label, colTarget)
}

func (c *canvas) drawSegments() {
	for _, s := range c.plot.Segments {
		if s.Line() {
			for i := 1; i < len(s); i++ {
				c.line(c.x(s[i-1]), c.y(s[i-1].H), c.x(s[i]), c.y(s[i].H), colSeries)
			}
		}
		for _, p := range s {
			c.dot(c.x(p), c.y(p.H), markerRadius, colSeries)
		}
	}
}

func (c *canvas) drawPlaceholder() {
	if c.plot.Placeholder == "" {
		return
	}
	mid := c.area.Min.Add(c.area.Max).Div(2)
	c.text(mid.X-c.textWidth(c.plot.Placeholder)/2, mid.Y, c.plot.Placeholder, colMuted)
}

func (c *canvas) set(x, y int, col color.RGBA) {
	if image.Pt(x, y).In(c.img.Bounds()) {
		c.img.SetRGBA(x, y, col)
	}
}

// hline draws a horizontal line; dash > 0 alternates dash-sized on/off runs.
func (c *canvas) hline(x0, x1, y int, col color.RGBA, dash int) {
	for x := x0; x <= x1; x++ {
		if dash > 0 && ((x-x0)/dash)%2 == 1 {
			continue
		}
		c.set(x, y, col)
	}
}

func (c *canvas) vline(x, y0, y1 int, col color.RGBA) {
	for y := y0; y <= y1; y++ {
		c.set(x, y, col)
	}
}

// line is Bresenham with a 2px pen.
func (c *canvas) line(x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.set(x0, y0, col)
		c.set(x0+1, y0, col)
		c.set(x0, y0+1, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *canvas) dot(cx, cy, r int, col color.RGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				c.set(cx+x, cy+y, col)
			}
		}
	}
}

func (c *canvas) text(x, y int, s string, col color.RGBA) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (c *canvas) textWidth(s string) int {
	return font.MeasureString(c.face, s).Ceil()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
