package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/Prayush09/ZiDraw/internal/board"
	"github.com/Prayush09/ZiDraw/internal/state"
)

var (
	inkColor         = color.Black
	selectedColor    = color.NRGBA{R: 30, G: 110, B: 230, A: 255}
	provisionalColor = color.NRGBA{R: 120, G: 120, B: 120, A: 255}
	handleColor      = color.NRGBA{R: 30, G: 110, B: 230, A: 255}
)

const strokeWidth = 2

// BoardWidget renders a room and feeds mouse input to its interaction
// machine. The machine lives on the fyne goroutine; peer ops reach it
// through fyne.Do.
type BoardWidget struct {
	widget.BaseWidget
	machine *board.Machine
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)
var _ desktop.Hoverable = (*BoardWidget)(nil)

func NewBoardWidget(author string, emit func(state.Op)) *BoardWidget {
	b := &BoardWidget{}
	b.machine = board.NewMachine(board.Options{
		Author:   author,
		Emit:     emit,
		OnChange: b.Refresh,
	})
	b.ExtendBaseWidget(b)
	return b
}

// Machine is the sink for room state. Only call it on the fyne goroutine.
func (b *BoardWidget) Machine() *board.Machine {
	return b.machine
}

func (b *BoardWidget) SetTool(t board.Tool) {
	b.machine.SetTool(t)
}

func toPoint(p fyne.Position) state.Point {
	return state.Point{X: float64(p.X), Y: float64(p.Y)}
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.machine.PointerDown(toPoint(e.Position))
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.machine.PointerUp(toPoint(e.Position))
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	b.machine.PointerMove(toPoint(e.Position))
}

func (b *BoardWidget) DragEnd() {}

func (b *BoardWidget) MouseMoved(e *desktop.MouseEvent) {
	b.machine.PointerMove(toPoint(e.Position))
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent) {}

func (b *BoardWidget) MouseOut() {}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &boardWidgetRenderer{board: b, background: canvas.NewRectangle(color.White)}
	r.rebuild()
	return r
}

type boardWidgetRenderer struct {
	board      *BoardWidget
	background *canvas.Rectangle
	objects    []fyne.CanvasObject
}

func (r *boardWidgetRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *boardWidgetRenderer) Refresh() {
	r.rebuild()
	canvas.Refresh(r.board)
}

// rebuild recreates the canvas objects from the machine's scene.
func (r *boardWidgetRenderer) rebuild() {
	scene := r.board.machine.Scene()
	ox, oy := float32(scene.OffsetX), float32(scene.OffsetY)
	pos := func(p state.Point) fyne.Position {
		return fyne.NewPos(float32(p.X)+ox, float32(p.Y)+oy)
	}

	objects := []fyne.CanvasObject{r.background}
	for _, item := range scene.Items {
		var c color.Color = inkColor
		switch {
		case item.Provisional:
			c = provisionalColor
		case item.Selected:
			c = selectedColor
		}

		switch g := item.Shape.Geometry.(type) {
		case state.Path:
			for i := 1; i < len(g.Points); i++ {
				line := canvas.NewLine(c)
				line.StrokeWidth = strokeWidth
				line.Position1 = pos(g.Points[i-1])
				line.Position2 = pos(g.Points[i])
				objects = append(objects, line)
			}
		case state.Rect:
			n := g.Normalize()
			rect := canvas.NewRectangle(color.Transparent)
			rect.StrokeColor = c
			rect.StrokeWidth = strokeWidth
			rect.Move(pos(state.Point{X: n.X, Y: n.Y}))
			rect.Resize(fyne.NewSize(float32(n.Width), float32(n.Height)))
			objects = append(objects, rect)
		case state.Ellipse:
			circle := canvas.NewCircle(color.Transparent)
			circle.StrokeColor = c
			circle.StrokeWidth = strokeWidth
			circle.Position1 = pos(state.Point{X: g.CX - g.RX, Y: g.CY - g.RY})
			circle.Position2 = pos(state.Point{X: g.CX + g.RX, Y: g.CY + g.RY})
			objects = append(objects, circle)
		}
	}

	for _, h := range scene.Handles {
		handle := canvas.NewRectangle(handleColor)
		handle.Move(pos(h).Subtract(fyne.NewPos(state.HandleSize/2, state.HandleSize/2)))
		handle.Resize(fyne.NewSize(state.HandleSize, state.HandleSize))
		objects = append(objects, handle)
	}

	r.objects = objects
}

func (r *boardWidgetRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
}

func (r *boardWidgetRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *boardWidgetRenderer) Destroy() {}
