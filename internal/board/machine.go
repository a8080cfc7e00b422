package board

import (
	"reflect"
	"time"

	"github.com/golang/glog"

	"github.com/Prayush09/ZiDraw/internal/state"
)

type Tool string

const (
	ToolFreehand  Tool = "freehand"
	ToolRectangle Tool = "rectangle"
	ToolEllipse   Tool = "ellipse"
	ToolEraser    Tool = "eraser"
	ToolSelect    Tool = "select"
	ToolPan       Tool = "pan"
	ToolClear     Tool = "clear"
)

var Tools = []Tool{ToolSelect, ToolFreehand, ToolRectangle, ToolEllipse, ToolEraser, ToolPan, ToolClear}

type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModeMoving
	ModeResizing
	ModePanning
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDrawing:
		return "drawing"
	case ModeMoving:
		return "moving"
	case ModeResizing:
		return "resizing"
	case ModePanning:
		return "panning"
	}
	return "unknown"
}

// ThrottleInterval is the minimum spacing of pointer samples during a
// gesture. Samples inside the interval are dropped.
const ThrottleInterval = 16 * time.Millisecond

type Options struct {
	// Author is stamped on every shape and op this machine creates.
	Author string
	// Emit receives every op to send to the room. It must not block.
	Emit func(state.Op)
	// OnChange is called after anything visible changed.
	OnChange func()

	Now      func() time.Time
	NewID    func() string
	Throttle time.Duration
}

// Machine turns pointer input into shape operations and keeps the local
// view of the room. All methods must be called from one goroutine, the UI
// thread; peer ops are handed to Apply on that same goroutine.
type Machine struct {
	shapes *state.Collection
	tool   Tool
	mode   Mode

	author   string
	emit     func(state.Op)
	onChange func()
	now      func() time.Time
	newID    func() string
	throttle time.Duration

	// view offset added to board coordinates to get screen coordinates
	offsetX, offsetY float64

	lastSample time.Time
	start      state.Point
	panLast    state.Point
	draft      *state.Shape
	original   state.Geometry
	handle     state.Handle
	streamed   bool
}

func NewMachine(opts Options) *Machine {
	m := &Machine{
		shapes:   state.NewCollection(),
		tool:     ToolFreehand,
		author:   opts.Author,
		emit:     opts.Emit,
		onChange: opts.OnChange,
		now:      opts.Now,
		newID:    opts.NewID,
		throttle: opts.Throttle,
	}
	if m.emit == nil {
		m.emit = func(state.Op) {}
	}
	if m.onChange == nil {
		m.onChange = func() {}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = state.NewShapeID
	}
	if m.throttle == 0 {
		m.throttle = ThrottleInterval
	}
	return m
}

func (m *Machine) Tool() Tool { return m.tool }

func (m *Machine) Mode() Mode { return m.mode }

// Offset is the current pan offset.
func (m *Machine) Offset() (float64, float64) { return m.offsetX, m.offsetY }

// Shapes returns the committed shapes in z-order.
func (m *Machine) Shapes() []state.Shape { return m.shapes.Shapes() }

func (m *Machine) Selected() (state.Shape, bool) { return m.shapes.Selected() }

// SetTool switches tools. A gesture in progress is abandoned without
// emitting anything.
func (m *Machine) SetTool(tool Tool) {
	m.cancelGesture()
	if tool != ToolSelect {
		m.shapes.Select("")
	}
	m.tool = tool
	m.onChange()
}

func (m *Machine) toBoard(p state.Point) state.Point {
	return state.Point{X: p.X - m.offsetX, Y: p.Y - m.offsetY}
}

// PointerDown starts a gesture at screen position p.
func (m *Machine) PointerDown(p state.Point) {
	if m.mode != ModeIdle {
		return
	}
	bp := m.toBoard(p)
	m.start = bp
	m.lastSample = time.Time{}

	switch m.tool {
	case ToolFreehand:
		m.beginDraft(state.Path{Points: []state.Point{bp}})
	case ToolRectangle:
		m.beginDraft(state.Rect{X: bp.X, Y: bp.Y})
	case ToolEllipse:
		m.beginDraft(state.EllipseFromDrag(bp, bp))
	case ToolEraser:
		m.mode = ModeDrawing
		m.eraseAt(bp)
	case ToolClear:
		m.mode = ModeDrawing
	case ToolPan:
		m.mode = ModePanning
		m.panLast = p
	case ToolSelect:
		m.beginSelect(bp)
	}
	m.onChange()
}

func (m *Machine) beginDraft(g state.Geometry) {
	m.mode = ModeDrawing
	m.streamed = false
	m.draft = &state.Shape{ID: m.newID(), Author: m.author, Geometry: g}
	m.shapes.SetProvisional(m.draft)
}

func (m *Machine) beginSelect(bp state.Point) {
	if sel, ok := m.shapes.Selected(); ok {
		if h := state.HandleAt(sel.Geometry, bp); h != state.HandleNone {
			m.mode = ModeResizing
			m.handle = h
			m.beginTransform(sel)
			return
		}
	}
	if hit, ok := m.shapes.HitTest(bp); ok {
		m.shapes.Select(hit.ID)
		m.mode = ModeMoving
		m.beginTransform(hit)
		return
	}
	m.shapes.Select("")
}

func (m *Machine) beginTransform(s state.Shape) {
	draft := s.Clone()
	m.draft = &draft
	m.original = s.Geometry.Clone()
	m.shapes.SetProvisional(m.draft)
}

// PointerMove feeds a pointer sample at screen position p. Samples closer
// together than the throttle interval are dropped.
func (m *Machine) PointerMove(p state.Point) {
	if m.mode == ModeIdle {
		return
	}
	now := m.now()
	if !m.lastSample.IsZero() && now.Sub(m.lastSample) < m.throttle {
		return
	}
	m.lastSample = now
	m.track(p, false)
	m.onChange()
}

// track updates the gesture for position p. final marks the pointer-up
// sample, which is never streamed.
func (m *Machine) track(p state.Point, final bool) {
	bp := m.toBoard(p)
	switch m.mode {
	case ModeDrawing:
		switch m.tool {
		case ToolFreehand:
			path := m.draft.Geometry.(state.Path)
			if last := path.Points[len(path.Points)-1]; last == bp {
				return
			}
			path.Points = append(path.Points, bp)
			m.draft.Geometry = path
			if !final {
				m.streamPath()
			}
		case ToolRectangle:
			m.draft.Geometry = state.Rect{X: m.start.X, Y: m.start.Y, Width: bp.X - m.start.X, Height: bp.Y - m.start.Y}
		case ToolEllipse:
			m.draft.Geometry = state.EllipseFromDrag(m.start, bp)
		case ToolEraser:
			m.eraseAt(bp)
		}
	case ModeMoving:
		m.draft.Geometry = m.original.Translate(bp.X-m.start.X, bp.Y-m.start.Y)
	case ModeResizing:
		m.draft.Geometry = state.Resize(m.original, m.handle, bp)
	case ModePanning:
		m.offsetX += p.X - m.panLast.X
		m.offsetY += p.Y - m.panLast.Y
		m.panLast = p
	}
}

func (m *Machine) streamPath() {
	if !m.streamed {
		m.streamed = true
		m.emit(state.NewCreate(*m.draft))
		return
	}
	m.emit(state.NewUpdate(*m.draft))
}

func (m *Machine) eraseAt(bp state.Point) {
	for _, id := range m.shapes.EraseAt(bp, state.EraserRadius) {
		glog.V(2).Infof("[board] erased %s", id)
		m.emit(state.NewErase(id, m.author))
	}
}

// PointerUp ends the gesture at screen position p and emits its final op.
func (m *Machine) PointerUp(p state.Point) {
	if m.mode == ModeIdle {
		return
	}
	m.track(p, true)

	switch m.mode {
	case ModeDrawing:
		m.finishDrawing()
	case ModeMoving, ModeResizing:
		m.finishTransform()
	}
	m.endGesture()
	m.onChange()
}

func (m *Machine) finishDrawing() {
	switch m.tool {
	case ToolFreehand, ToolRectangle, ToolEllipse:
		if state.Degenerate(m.draft.Geometry) {
			return
		}
		if r, ok := m.draft.Geometry.(state.Rect); ok {
			m.draft.Geometry = r.Normalize()
		}
		m.shapes.Put(m.draft.Clone())
		if m.tool == ToolFreehand && m.streamed {
			m.emit(state.NewUpdate(*m.draft))
			return
		}
		m.emit(state.NewCreate(*m.draft))
	case ToolClear:
		m.shapes.Reset()
		m.emit(state.NewClear(m.author))
	}
}

func (m *Machine) finishTransform() {
	current, ok := m.shapes.Get(m.draft.ID)
	if !ok {
		// erased by a peer mid-gesture
		return
	}
	if reflect.DeepEqual(current.Geometry, m.draft.Geometry) {
		return
	}
	m.shapes.Put(m.draft.Clone())
	m.emit(state.NewUpdate(*m.draft))
}

func (m *Machine) endGesture() {
	m.mode = ModeIdle
	m.draft = nil
	m.original = nil
	m.handle = state.HandleNone
	m.streamed = false
	m.shapes.SetProvisional(nil)
}

func (m *Machine) cancelGesture() {
	if m.mode != ModeIdle {
		glog.V(2).Infof("[board] %s gesture abandoned", m.mode)
	}
	m.endGesture()
}

// Load replaces the local view with the fold of a room's log.
func (m *Machine) Load(ops []state.Op) {
	m.cancelGesture()
	m.shapes.Reset()
	m.shapes.Replay(ops)
	m.onChange()
}

// Apply folds an op received from a peer into the local view. A peer clear
// or an erase of the shape under the pointer ends the local gesture.
func (m *Machine) Apply(op state.Op) {
	changed := m.shapes.Apply(op)
	switch op.Kind {
	case state.OpClearRoom:
		if m.mode != ModeIdle && m.mode != ModePanning {
			m.cancelGesture()
			changed = true
		}
	case state.OpEraseStroke:
		if m.draft != nil && m.draft.ID == op.ShapeID {
			m.cancelGesture()
			changed = true
		}
	}
	if changed {
		m.onChange()
	}
}
