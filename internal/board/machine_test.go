package board

import (
	"flag"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/Prayush09/ZiDraw/internal/state"
)

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "0")
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	m     *Machine
	clock *fakeClock
	ops   []state.Op
}

func newHarness() *harness {
	h := &harness{clock: &fakeClock{t: time.Unix(1700000000, 0)}}
	ids := 0
	h.m = NewMachine(Options{
		Author: "u1",
		Emit:   func(op state.Op) { h.ops = append(h.ops, op) },
		Now:    h.clock.now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("s%d", ids)
		},
	})
	return h
}

func pt(x, y float64) state.Point { return state.Point{X: x, Y: y} }

// drag presses at the first point, moves through the middle ones with
// samples spaced past the throttle interval and releases at the last.
func (h *harness) drag(points ...state.Point) {
	h.m.PointerDown(points[0])
	for _, p := range points[1:] {
		h.clock.advance(20 * time.Millisecond)
		h.m.PointerMove(p)
	}
	h.m.PointerUp(points[len(points)-1])
}

func (h *harness) take() []state.Op {
	ops := h.ops
	h.ops = nil
	return ops
}

func TestRectangleDrag(t *testing.T) {
	h := newHarness()
	h.m.SetTool(ToolRectangle)
	h.drag(pt(10, 10), pt(40, 30), pt(60, 50))

	ops := h.take()
	assert.Equal(t, len(ops), 1)
	assert.Equal(t, ops[0].Kind, state.OpCreateRect)
	assert.Equal(t, ops[0].ShapeID, "s1")
	assert.Equal(t, ops[0].Author, "u1")
	assert.Equal(t, ops[0].Shape.Geometry, state.Geometry(state.Rect{X: 10, Y: 10, Width: 50, Height: 40}))

	shapes := h.m.Shapes()
	assert.Equal(t, len(shapes), 1)
	assert.Equal(t, h.m.Mode(), ModeIdle)
}

func TestRectangleDraggedBackwardsIsNormalized(t *testing.T) {
	h := newHarness()
	h.m.SetTool(ToolRectangle)
	h.drag(pt(60, 50), pt(10, 10))

	ops := h.take()
	assert.Equal(t, len(ops), 1)
	assert.Equal(t, ops[0].Shape.Geometry, state.Geometry(state.Rect{X: 10, Y: 10, Width: 50, Height: 40}))
}

func TestEllipseDrag(t *testing.T) {
	h := newHarness()
	h.m.SetTool(ToolEllipse)
	h.drag(pt(0, 0), pt(100, 50))

	ops := h.take()
	assert.Equal(t, len(ops), 1)
	assert.Equal(t, ops[0].Kind, state.OpCreateEllipse)
	assert.Equal(t, ops[0].Shape.Geometry, state.Geometry(state.Ellipse{CX: 50, CY: 25, RX: 50, RY: 25}))
}

func TestDegenerateShapesAreDropped(t *testing.T) {
	h := newHarness()

	h.m.SetTool(ToolRectangle)
	h.drag(pt(10, 10), pt(11, 40))
	h.m.SetTool(ToolEllipse)
	h.drag(pt(10, 10), pt(40, 12))
	h.m.SetTool(ToolFreehand)
	h.drag(pt(10, 10), pt(10, 10))

	assert.Equal(t, len(h.take()), 0)
	assert.Equal(t, len(h.m.Shapes()), 0)
	assert.Equal(t, len(h.m.Scene().Items), 0)
}

func TestFreehandStreams(t *testing.T) {
	h := newHarness()
	h.m.SetTool(ToolFreehand)
	h.drag(pt(0, 0), pt(5, 5), pt(10, 10), pt(15, 15))

	ops := h.take()
	// every sample streams, pointer-up resends the finished path
	assert.Equal(t, len(ops), 4)
	assert.Equal(t, ops[0].Kind, state.OpCreatePath)
	assert.Equal(t, len(ops[0].Shape.Geometry.(state.Path).Points), 2)
	assert.Equal(t, ops[1].Kind, state.OpUpdateShape)
	assert.Equal(t, len(ops[1].Shape.Geometry.(state.Path).Points), 3)
	assert.Equal(t, ops[2].Kind, state.OpUpdateShape)
	assert.Equal(t, len(ops[2].Shape.Geometry.(state.Path).Points), 4)
	assert.Equal(t, ops[3].Shape.Geometry, ops[2].Shape.Geometry)
	for _, op := range ops {
		assert.Equal(t, op.ShapeID, "s1")
	}

	// a peer folding the stream ends up with the same shape
	peer := state.Fold(ops)
	assert.Equal(t, peer.Shapes(), h.m.Shapes())
}

func TestThrottleDropsCloseSamples(t *testing.T) {
	h := newHarness()
	h.m.SetTool(ToolFreehand)

	h.m.PointerDown(pt(0, 0))
	h.m.PointerMove(pt(1, 1))
	h.m.PointerMove(pt(2, 2))
	h.clock.advance(10 * time.Millisecond)
	h.m.PointerMove(pt(3, 3))
	h.clock.advance(6 * time.Millisecond)
	h.m.PointerMove(pt(4, 4))

	ops := h.take()
	assert.Equal(t, len(ops), 2)
	assert.Equal(t, ops[1].Shape.Geometry, state.Geometry(state.Path{Points: []state.Point{pt(0, 0), pt(1, 1), pt(4, 4)}}))
}

func TestEraserRemovesEveryStrokeItCrosses(t *testing.T) {
	h := newHarness()
	h.m.Load([]state.Op{
		state.NewCreate(state.Shape{ID: "p1", Geometry: state.Path{Points: []state.Point{pt(0, 0), pt(100, 0)}}}),
		state.NewCreate(state.Shape{ID: "p2", Geometry: state.Path{Points: []state.Point{pt(0, 50), pt(100, 50)}}}),
		state.NewCreate(state.Shape{ID: "r1", Geometry: state.Rect{X: 200, Y: 200, Width: 10, Height: 10}}),
	})
	h.m.SetTool(ToolEraser)
	h.drag(pt(50, 3), pt(50, 30), pt(50, 48))

	ops := h.take()
	assert.Equal(t, len(ops), 2)
	assert.Equal(t, ops[0], state.NewErase("p1", "u1"))
	assert.Equal(t, ops[1], state.NewErase("p2", "u1"))
	assert.Equal(t, len(h.m.Shapes()), 1)
}

func loadRect(h *harness) {
	h.m.Load([]state.Op{
		state.NewCreate(state.Shape{ID: "r1", Author: "u2", Geometry: state.Rect{X: 10, Y: 10, Width: 50, Height: 40}}),
	})
}

func TestSelectAndMove(t *testing.T) {
	h := newHarness()
	loadRect(h)
	h.m.SetTool(ToolSelect)

	h.m.PointerDown(pt(30, 30))
	assert.Equal(t, h.m.Mode(), ModeMoving)
	h.clock.advance(20 * time.Millisecond)
	h.m.PointerMove(pt(35, 32))

	// nothing is sent mid-gesture and the committed shape is untouched
	assert.Equal(t, len(h.ops), 0)
	committed, _ := h.m.shapes.Get("r1")
	assert.Equal(t, committed.Geometry, state.Geometry(state.Rect{X: 10, Y: 10, Width: 50, Height: 40}))
	scene := h.m.Scene()
	assert.Equal(t, len(scene.Items), 1)
	assert.Equal(t, scene.Items[0].Provisional, true)
	assert.Equal(t, scene.Items[0].Shape.Geometry, state.Geometry(state.Rect{X: 15, Y: 12, Width: 50, Height: 40}))

	h.m.PointerUp(pt(40, 35))
	ops := h.take()
	assert.Equal(t, len(ops), 1)
	assert.Equal(t, ops[0].Kind, state.OpUpdateShape)
	assert.Equal(t, ops[0].ShapeID, "r1")
	assert.Equal(t, ops[0].Shape.Geometry, state.Geometry(state.Rect{X: 20, Y: 15, Width: 50, Height: 40}))

	sel, ok := h.m.Selected()
	assert.Equal(t, ok, true)
	assert.Equal(t, sel.ID, "r1")
	assert.Equal(t, len(h.m.Scene().Handles), 4)
}

func TestClickSelectsWithoutUpdate(t *testing.T) {
	h := newHarness()
	loadRect(h)
	h.m.SetTool(ToolSelect)

	h.drag(pt(30, 30), pt(30, 30))
	assert.Equal(t, len(h.take()), 0)
	_, ok := h.m.Selected()
	assert.Equal(t, ok, true)

	// clicking empty board clears the selection
	h.drag(pt(300, 300), pt(300, 300))
	_, ok = h.m.Selected()
	assert.Equal(t, ok, false)
	assert.Equal(t, len(h.take()), 0)
}

func TestResizeFromHandle(t *testing.T) {
	h := newHarness()
	loadRect(h)
	h.m.SetTool(ToolSelect)
	h.drag(pt(30, 30), pt(30, 30))

	h.m.PointerDown(pt(62, 48))
	assert.Equal(t, h.m.Mode(), ModeResizing)
	h.m.PointerUp(pt(80, 70))

	ops := h.take()
	assert.Equal(t, len(ops), 1)
	assert.Equal(t, ops[0].Kind, state.OpUpdateShape)
	assert.Equal(t, ops[0].Shape.Geometry, state.Geometry(state.Rect{X: 10, Y: 10, Width: 70, Height: 60}))
}

func TestPanShiftsBoardCoordinates(t *testing.T) {
	h := newHarness()
	h.m.SetTool(ToolPan)
	h.drag(pt(0, 0), pt(10, 5), pt(30, 20))
	assert.Equal(t, len(h.take()), 0)

	x, y := h.m.Offset()
	assert.Equal(t, x, 30.0)
	assert.Equal(t, y, 20.0)

	h.m.SetTool(ToolRectangle)
	h.drag(pt(40, 30), pt(90, 70))
	ops := h.take()
	assert.Equal(t, ops[0].Shape.Geometry, state.Geometry(state.Rect{X: 10, Y: 10, Width: 50, Height: 40}))
}

func TestClearTool(t *testing.T) {
	h := newHarness()
	loadRect(h)
	h.m.SetTool(ToolClear)
	h.drag(pt(0, 0), pt(0, 0))

	ops := h.take()
	assert.Equal(t, len(ops), 1)
	assert.Equal(t, ops[0], state.NewClear("u1"))
	assert.Equal(t, len(h.m.Shapes()), 0)
}

func TestPeerClearEndsGesture(t *testing.T) {
	h := newHarness()
	h.m.SetTool(ToolFreehand)
	h.m.PointerDown(pt(0, 0))
	h.clock.advance(20 * time.Millisecond)
	h.m.PointerMove(pt(5, 5))
	assert.Equal(t, len(h.take()), 1)

	h.m.Apply(state.NewClear("u2"))
	assert.Equal(t, h.m.Mode(), ModeIdle)

	h.clock.advance(20 * time.Millisecond)
	h.m.PointerMove(pt(10, 10))
	h.m.PointerUp(pt(15, 15))
	assert.Equal(t, len(h.take()), 0)
	assert.Equal(t, len(h.m.Scene().Items), 0)
}

func TestPeerEraseEndsMove(t *testing.T) {
	h := newHarness()
	loadRect(h)
	h.m.SetTool(ToolSelect)
	h.m.PointerDown(pt(30, 30))
	h.clock.advance(20 * time.Millisecond)
	h.m.PointerMove(pt(50, 50))

	h.m.Apply(state.NewErase("r1", "u2"))
	assert.Equal(t, h.m.Mode(), ModeIdle)
	h.m.PointerUp(pt(50, 50))
	assert.Equal(t, len(h.take()), 0)
	assert.Equal(t, len(h.m.Shapes()), 0)
}

func TestPeerUpdateWhileIdle(t *testing.T) {
	h := newHarness()
	loadRect(h)
	changes := 0
	h.m.onChange = func() { changes++ }

	h.m.Apply(state.NewUpdate(state.Shape{ID: "r1", Geometry: state.Rect{X: 0, Y: 0, Width: 5, Height: 5}}))
	h.m.Apply(state.NewErase("missing", "u2"))

	assert.Equal(t, changes, 2)
	assert.Equal(t, h.m.Shapes()[0].Geometry, state.Geometry(state.Rect{X: 0, Y: 0, Width: 5, Height: 5}))
}
