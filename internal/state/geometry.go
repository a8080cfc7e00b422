package state

import (
	"math"
)

const (
	// HitTolerance is how far from a path a point may land and still select it.
	HitTolerance = 10.0
	// HandleSize is the half-extent of the square around a resize handle.
	HandleSize = 8.0
	// EraserRadius is half the eraser's width.
	EraserRadius = 10.0
	// MinExtent is the size at or below which a new rect or ellipse is dropped.
	MinExtent = 2.0
)

// Bounds is an axis-aligned box in board coordinates.
type Bounds struct {
	X, Y, Width, Height float64
}

func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width &&
		p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// Union returns the smallest box covering both.
func (b Bounds) Union(o Bounds) Bounds {
	minX, minY := math.Min(b.X, o.X), math.Min(b.Y, o.Y)
	maxX := math.Max(b.X+b.Width, o.X+o.Width)
	maxY := math.Max(b.Y+b.Height, o.Y+o.Height)
	return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Inflate grows the box by pad on every side.
func (b Bounds) Inflate(pad float64) Bounds {
	return Bounds{X: b.X - pad, Y: b.Y - pad, Width: b.Width + 2*pad, Height: b.Height + 2*pad}
}

func boundsOf(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// distanceToSegment is the distance from p to the closest point of segment ab.
func distanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return distance(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return distance(p, Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

func distanceToPolyline(p Point, points []Point) float64 {
	switch len(points) {
	case 0:
		return math.Inf(1)
	case 1:
		return distance(p, points[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(points); i++ {
		best = math.Min(best, distanceToSegment(p, points[i-1], points[i]))
	}
	return best
}

// ellipseNorm is ((x-cx)/rx)^2 + ((y-cy)/ry)^2; 1 lies on the outline.
func ellipseNorm(e Ellipse, p Point) float64 {
	if e.RX <= 0 || e.RY <= 0 {
		return math.Inf(1)
	}
	nx := (p.X - e.CX) / e.RX
	ny := (p.Y - e.CY) / e.RY
	return nx*nx + ny*ny
}

// Contains reports whether p selects g: inside a rect's bounds, inside an
// ellipse, or within HitTolerance of a path.
func Contains(g Geometry, p Point) bool {
	switch g := g.(type) {
	case Rect:
		return g.Bounds().Contains(p)
	case Ellipse:
		return ellipseNorm(g, p) <= 1
	case Path:
		return distanceToPolyline(p, g.Points) <= HitTolerance
	}
	return false
}

// Intersects reports whether a circle of the given radius around p touches
// the drawn stroke of g. Rects and ellipses are hit on their outline, so an
// eraser passing through an empty interior leaves them alone.
func Intersects(g Geometry, p Point, radius float64) bool {
	switch g := g.(type) {
	case Path:
		return distanceToPolyline(p, g.Points) <= radius
	case Rect:
		n := g.Normalize()
		corners := []Point{
			{n.X, n.Y},
			{n.X + n.Width, n.Y},
			{n.X + n.Width, n.Y + n.Height},
			{n.X, n.Y + n.Height},
			{n.X, n.Y},
		}
		return distanceToPolyline(p, corners) <= radius
	case Ellipse:
		if g.RX <= 0 || g.RY <= 0 {
			return distance(p, Point{g.CX, g.CY}) <= radius
		}
		return distanceToEllipse(g, p) <= radius
	}
	return false
}

// distanceToEllipse approximates the distance from p to the outline of e by
// sampling the outline.
func distanceToEllipse(e Ellipse, p Point) float64 {
	const samples = 72
	best := math.Inf(1)
	prev := Point{e.CX + e.RX, e.CY}
	for i := 1; i <= samples; i++ {
		a := 2 * math.Pi * float64(i) / samples
		cur := Point{e.CX + e.RX*math.Cos(a), e.CY + e.RY*math.Sin(a)}
		best = math.Min(best, distanceToSegment(p, prev, cur))
		prev = cur
	}
	return best
}

type Handle int

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
)

func (h Handle) String() string {
	switch h {
	case HandleTopLeft:
		return "top-left"
	case HandleTopRight:
		return "top-right"
	case HandleBottomLeft:
		return "bottom-left"
	case HandleBottomRight:
		return "bottom-right"
	}
	return "none"
}

// Handles returns the resize handle positions of g. Rects use their corners,
// ellipses the points at 45 degrees on their outline. Paths have none.
func Handles(g Geometry) map[Handle]Point {
	switch g := g.(type) {
	case Rect:
		n := g.Normalize()
		return map[Handle]Point{
			HandleTopLeft:     {n.X, n.Y},
			HandleTopRight:    {n.X + n.Width, n.Y},
			HandleBottomLeft:  {n.X, n.Y + n.Height},
			HandleBottomRight: {n.X + n.Width, n.Y + n.Height},
		}
	case Ellipse:
		ox, oy := g.RX/math.Sqrt2, g.RY/math.Sqrt2
		return map[Handle]Point{
			HandleTopLeft:     {g.CX - ox, g.CY - oy},
			HandleTopRight:    {g.CX + ox, g.CY - oy},
			HandleBottomLeft:  {g.CX - ox, g.CY + oy},
			HandleBottomRight: {g.CX + ox, g.CY + oy},
		}
	}
	return nil
}

// HandleAt returns the handle of g within HandleSize of p on both axes.
func HandleAt(g Geometry, p Point) Handle {
	hs := Handles(g)
	for _, h := range []Handle{HandleTopLeft, HandleTopRight, HandleBottomLeft, HandleBottomRight} {
		pos, ok := hs[h]
		if !ok {
			continue
		}
		if math.Abs(p.X-pos.X) <= HandleSize && math.Abs(p.Y-pos.Y) <= HandleSize {
			return h
		}
	}
	return HandleNone
}

// Resize applies a drag of handle h from its position on orig to p.
//
// A rect corner follows the pointer and the result is normalized. An ellipse
// is rescaled so the dragged 45 degree handle sits under the pointer.
func Resize(orig Geometry, h Handle, p Point) Geometry {
	switch g := orig.(type) {
	case Rect:
		r := g.Normalize()
		left, top := r.X, r.Y
		right, bottom := r.X+r.Width, r.Y+r.Height
		switch h {
		case HandleTopLeft:
			left, top = p.X, p.Y
		case HandleTopRight:
			right, top = p.X, p.Y
		case HandleBottomLeft:
			left, bottom = p.X, p.Y
		case HandleBottomRight:
			right, bottom = p.X, p.Y
		default:
			return g
		}
		return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}.Normalize()
	case Ellipse:
		if h == HandleNone {
			return g
		}
		g.RX = math.Abs(p.X-g.CX) * math.Sqrt2
		g.RY = math.Abs(p.Y-g.CY) * math.Sqrt2
		return g
	}
	return orig
}

// Degenerate reports whether a freshly drawn geometry is too small to keep.
func Degenerate(g Geometry) bool {
	switch g := g.(type) {
	case Path:
		return len(g.Points) < 2
	case Rect:
		return math.Abs(g.Width) <= MinExtent || math.Abs(g.Height) <= MinExtent
	case Ellipse:
		return g.RX <= MinExtent || g.RY <= MinExtent
	}
	return true
}

// EllipseFromDrag builds the ellipse inscribed in the box dragged from a to b.
func EllipseFromDrag(a, b Point) Ellipse {
	return Ellipse{
		CX: (a.X + b.X) / 2,
		CY: (a.Y + b.Y) / 2,
		RX: math.Abs(b.X-a.X) / 2,
		RY: math.Abs(b.Y-a.Y) / 2,
	}
}
