package state

import (
	"math"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 50, Height: 40}
	assert.Equal(t, Contains(r, Point{10, 10}), true)
	assert.Equal(t, Contains(r, Point{60, 50}), true)
	assert.Equal(t, Contains(r, Point{61, 50}), false)

	// negative extents select the same area
	assert.Equal(t, Contains(Rect{X: 60, Y: 50, Width: -50, Height: -40}, Point{30, 30}), true)

	e := Ellipse{CX: 0, CY: 0, RX: 20, RY: 10}
	assert.Equal(t, Contains(e, Point{19, 0}), true)
	assert.Equal(t, Contains(e, Point{0, 11}), false)
	assert.Equal(t, Contains(e, Point{15, 8}), false)

	p := Path{Points: []Point{{0, 0}, {100, 0}}}
	assert.Equal(t, Contains(p, Point{50, 10}), true)
	assert.Equal(t, Contains(p, Point{50, 10.5}), false)
	assert.Equal(t, Contains(p, Point{-8, 0}), true)
	assert.Equal(t, Contains(Path{Points: []Point{{5, 5}}}, Point{5, 14}), true)
}

func TestIntersectsOutline(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	assert.Equal(t, Intersects(r, Point{50, 50}, EraserRadius), false)
	assert.Equal(t, Intersects(r, Point{50, 95}, EraserRadius), true)
	assert.Equal(t, Intersects(r, Point{-10, 50}, EraserRadius), true)

	e := Ellipse{CX: 0, CY: 0, RX: 40, RY: 20}
	assert.Equal(t, Intersects(e, Point{0, 0}, EraserRadius), false)
	assert.Equal(t, Intersects(e, Point{45, 0}, EraserRadius), true)
	assert.Equal(t, Intersects(e, Point{0, -28}, EraserRadius), true)
}

func TestHandleAt(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 50, Height: 40}
	assert.Equal(t, HandleAt(r, Point{12, 8}), HandleTopLeft)
	assert.Equal(t, HandleAt(r, Point{66, 10}), HandleTopRight)
	assert.Equal(t, HandleAt(r, Point{10, 50}), HandleBottomLeft)
	assert.Equal(t, HandleAt(r, Point{60, 50}), HandleBottomRight)
	assert.Equal(t, HandleAt(r, Point{35, 30}), HandleNone)

	e := Ellipse{CX: 100, CY: 100, RX: 20 * math.Sqrt2, RY: 10 * math.Sqrt2}
	assert.Equal(t, HandleAt(e, Point{120, 90}), HandleTopRight)
	assert.Equal(t, HandleAt(e, Point{80, 110}), HandleBottomLeft)

	assert.Equal(t, HandleAt(Path{Points: []Point{{0, 0}, {10, 10}}}, Point{0, 0}), HandleNone)
}

func TestResize(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 50, Height: 40}
	assert.Equal(t, Resize(r, HandleBottomRight, Point{80, 70}), Geometry(Rect{X: 10, Y: 10, Width: 70, Height: 60}))
	assert.Equal(t, Resize(r, HandleTopLeft, Point{0, 0}), Geometry(Rect{X: 0, Y: 0, Width: 60, Height: 50}))

	// dragging a corner past the opposite edge flips the rect
	assert.Equal(t, Resize(r, HandleTopLeft, Point{70, 60}), Geometry(Rect{X: 60, Y: 50, Width: 10, Height: 10}))

	e := Ellipse{CX: 0, CY: 0, RX: 10, RY: 10}
	g := Resize(e, HandleTopRight, Point{30, -20}).(Ellipse)
	assert.Equal(t, g.CX, 0.0)
	assert.Equal(t, math.Abs(g.RX-30*math.Sqrt2) < 1e-9, true)
	assert.Equal(t, math.Abs(g.RY-20*math.Sqrt2) < 1e-9, true)
}

func TestDegenerate(t *testing.T) {
	assert.Equal(t, Degenerate(Rect{Width: 2, Height: 50}), true)
	assert.Equal(t, Degenerate(Rect{Width: -3, Height: -3}), false)
	assert.Equal(t, Degenerate(Ellipse{RX: 2, RY: 10}), true)
	assert.Equal(t, Degenerate(Ellipse{RX: 3, RY: 3}), false)
	assert.Equal(t, Degenerate(Path{Points: []Point{{0, 0}}}), true)
	assert.Equal(t, Degenerate(Path{Points: []Point{{0, 0}, {0, 0}}}), false)
}

func TestTranslate(t *testing.T) {
	p := Path{Points: []Point{{0, 0}, {1, 1}}}
	moved := p.Translate(5, -5).(Path)
	assert.Equal(t, moved.Points, []Point{{5, -5}, {6, -4}})
	// the original is untouched
	assert.Equal(t, p.Points[0], Point{0, 0})
}
