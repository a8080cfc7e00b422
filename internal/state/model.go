package state

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedOp     = errors.New("malformed operation")
	ErrUnknownKind     = errors.New("unknown operation kind")
	ErrUnknownGeometry = errors.New("unknown geometry type")
)

// Point is a position in board coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

type GeometryType string

const (
	TypePath    GeometryType = "path"
	TypeRect    GeometryType = "rect"
	TypeEllipse GeometryType = "ellipse"
)

// Geometry is one of Path, Rect or Ellipse.
type Geometry interface {
	Type() GeometryType
	Bounds() Bounds
	Translate(dx, dy float64) Geometry
	Clone() Geometry
	sealed()
}

// Path is a freehand stroke, an ordered list of points.
type Path struct {
	Points []Point
}

func (p Path) Type() GeometryType { return TypePath }

func (p Path) Bounds() Bounds { return boundsOf(p.Points) }

func (p Path) Translate(dx, dy float64) Geometry {
	moved := make([]Point, len(p.Points))
	for i, pt := range p.Points {
		moved[i] = pt.Add(dx, dy)
	}
	return Path{Points: moved}
}

func (p Path) Clone() Geometry {
	return Path{Points: append([]Point(nil), p.Points...)}
}

func (Path) sealed() {}

// Rect is an axis-aligned rectangle. Width and Height may be negative while a
// gesture is in progress; Normalize flips them.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) Type() GeometryType { return TypeRect }

func (r Rect) Bounds() Bounds {
	n := r.Normalize()
	return Bounds{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

func (r Rect) Translate(dx, dy float64) Geometry {
	r.X += dx
	r.Y += dy
	return r
}

func (r Rect) Clone() Geometry { return r }

// Normalize returns the same rectangle with non-negative width and height.
func (r Rect) Normalize() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

func (Rect) sealed() {}

// Ellipse is centered on (CX, CY) with horizontal radius RX and vertical radius RY.
type Ellipse struct {
	CX, CY, RX, RY float64
}

func (e Ellipse) Type() GeometryType { return TypeEllipse }

func (e Ellipse) Bounds() Bounds {
	return Bounds{X: e.CX - e.RX, Y: e.CY - e.RY, Width: 2 * e.RX, Height: 2 * e.RY}
}

func (e Ellipse) Translate(dx, dy float64) Geometry {
	e.CX += dx
	e.CY += dy
	return e
}

func (e Ellipse) Clone() Geometry { return e }

func (Ellipse) sealed() {}

// Shape is a geometry with its room-unique id and the subject that authored it.
type Shape struct {
	ID       string
	Author   string
	Geometry Geometry
}

func (s Shape) Clone() Shape {
	if s.Geometry != nil {
		s.Geometry = s.Geometry.Clone()
	}
	return s
}

// shapeJSON is the flattened wire form of a Shape. The legacy "circle" and
// "pencil" types are accepted on decode.
type shapeJSON struct {
	ID      string  `json:"id"`
	Author  string  `json:"author,omitempty"`
	Type    string  `json:"type"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	CenterX float64 `json:"centerX,omitempty"`
	CenterY float64 `json:"centerY,omitempty"`
	RadiusX float64 `json:"radiusX,omitempty"`
	RadiusY float64 `json:"radiusY,omitempty"`
	Radius  float64 `json:"radius,omitempty"`
	Points  []Point `json:"points,omitempty"`
}

func (s Shape) MarshalJSON() ([]byte, error) {
	out := shapeJSON{ID: s.ID, Author: s.Author}
	switch g := s.Geometry.(type) {
	case Path:
		out.Type = string(TypePath)
		out.Points = g.Points
	case Rect:
		out.Type = string(TypeRect)
		out.X, out.Y, out.Width, out.Height = g.X, g.Y, g.Width, g.Height
	case Ellipse:
		out.Type = string(TypeEllipse)
		out.CenterX, out.CenterY, out.RadiusX, out.RadiusY = g.CX, g.CY, g.RX, g.RY
	default:
		return nil, fmt.Errorf("shape %s: %w", s.ID, ErrUnknownGeometry)
	}
	return json.Marshal(out)
}

func (s *Shape) UnmarshalJSON(data []byte) error {
	var in shapeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.ID = in.ID
	s.Author = in.Author
	switch in.Type {
	case string(TypePath), "pencil":
		s.Geometry = Path{Points: in.Points}
	case string(TypeRect):
		s.Geometry = Rect{X: in.X, Y: in.Y, Width: in.Width, Height: in.Height}
	case string(TypeEllipse), "circle":
		rx, ry := in.RadiusX, in.RadiusY
		if rx == 0 && ry == 0 {
			rx, ry = in.Radius, in.Radius
		}
		s.Geometry = Ellipse{CX: in.CenterX, CY: in.CenterY, RX: rx, RY: ry}
	default:
		return fmt.Errorf("%q: %w", in.Type, ErrUnknownGeometry)
	}
	return nil
}
