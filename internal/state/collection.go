package state

import (
	"github.com/golang/glog"
)

type entry struct {
	shape    Shape
	selected bool
}

// Collection is the client-side view of a room: shapes in insertion order
// (z-order), plus the selection and the provisional shape of an in-progress
// gesture. It is not safe for concurrent use; callers own it from one
// goroutine.
type Collection struct {
	order       []string
	shapes      map[string]*entry
	provisional *Shape
}

func NewCollection() *Collection {
	return &Collection{
		shapes: make(map[string]*entry),
	}
}

// Fold replays ops left to right into a new collection.
func Fold(ops []Op) *Collection {
	c := NewCollection()
	c.Replay(ops)
	return c
}

// Replay applies every op in order and reports how many changed the collection.
func (c *Collection) Replay(ops []Op) int {
	changed := 0
	for _, op := range ops {
		if c.Apply(op) {
			changed++
		}
	}
	return changed
}

// Apply folds one op into the collection. Create and update upsert by id,
// erase deletes, clear resets. It reports whether anything changed.
func (c *Collection) Apply(op Op) bool {
	switch op.Kind {
	case OpCreatePath, OpCreateRect, OpCreateEllipse, OpUpdateShape:
		if op.Shape == nil || op.Shape.Geometry == nil {
			return false
		}
		s := op.Shape.Clone()
		if op.ShapeID != "" {
			s.ID = op.ShapeID
		}
		c.Put(s)
		return true
	case OpEraseStroke:
		return c.Remove(op.ShapeID)
	case OpClearRoom:
		had := len(c.order) > 0 || c.provisional != nil
		c.Reset()
		return had
	}
	glog.V(2).Infof("[state] ignoring op of kind %q", op.Kind)
	return false
}

// Put inserts s, or replaces the shape with the same id in place.
func (c *Collection) Put(s Shape) {
	if e, ok := c.shapes[s.ID]; ok {
		e.shape = s
		return
	}
	c.shapes[s.ID] = &entry{shape: s}
	c.order = append(c.order, s.ID)
}

func (c *Collection) Remove(id string) bool {
	if _, ok := c.shapes[id]; !ok {
		return false
	}
	delete(c.shapes, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *Collection) Reset() {
	c.order = nil
	c.shapes = make(map[string]*entry)
	c.provisional = nil
}

func (c *Collection) Get(id string) (Shape, bool) {
	e, ok := c.shapes[id]
	if !ok {
		return Shape{}, false
	}
	return e.shape, true
}

func (c *Collection) Len() int {
	return len(c.order)
}

// Shapes returns copies of the committed shapes in z-order.
func (c *Collection) Shapes() []Shape {
	out := make([]Shape, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.shapes[id].shape.Clone())
	}
	return out
}

// Select marks id as the only selected shape. An empty or unknown id clears
// the selection.
func (c *Collection) Select(id string) {
	for _, e := range c.shapes {
		e.selected = false
	}
	if e, ok := c.shapes[id]; ok {
		e.selected = true
	}
}

// Selected returns the selected shape, if any.
func (c *Collection) Selected() (Shape, bool) {
	for _, id := range c.order {
		if e := c.shapes[id]; e.selected {
			return e.shape, true
		}
	}
	return Shape{}, false
}

func (c *Collection) SetProvisional(s *Shape) {
	c.provisional = s
}

func (c *Collection) Provisional() *Shape {
	return c.provisional
}

// HitTest returns the topmost shape containing p.
func (c *Collection) HitTest(p Point) (Shape, bool) {
	for i := len(c.order) - 1; i >= 0; i-- {
		e := c.shapes[c.order[i]]
		if Contains(e.shape.Geometry, p) {
			return e.shape, true
		}
	}
	return Shape{}, false
}

// EraseAt removes every shape whose stroke lies within radius of p and
// returns their ids in z-order.
func (c *Collection) EraseAt(p Point, radius float64) []string {
	var hit []string
	for _, id := range c.order {
		if Intersects(c.shapes[id].shape.Geometry, p, radius) {
			hit = append(hit, id)
		}
	}
	for _, id := range hit {
		c.Remove(id)
	}
	return hit
}
