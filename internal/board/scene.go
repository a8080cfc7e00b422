package board

import (
	"github.com/Prayush09/ZiDraw/internal/state"
)

type Item struct {
	Shape       state.Shape
	Selected    bool
	Provisional bool
}

// Scene is what a renderer draws, in board coordinates. Items are in
// z-order; a shape being moved or resized is shown with its in-progress
// geometry, a shape being drawn comes last.
type Scene struct {
	OffsetX, OffsetY float64
	Items            []Item
	Handles          []state.Point
}

func (m *Machine) Scene() Scene {
	sc := Scene{OffsetX: m.offsetX, OffsetY: m.offsetY}
	selected, hasSel := m.shapes.Selected()
	transforming := m.mode == ModeMoving || m.mode == ModeResizing

	for _, s := range m.shapes.Shapes() {
		item := Item{Shape: s, Selected: hasSel && s.ID == selected.ID}
		if transforming && m.draft != nil && s.ID == m.draft.ID {
			item.Shape = m.draft.Clone()
			item.Provisional = true
		}
		sc.Items = append(sc.Items, item)
		if item.Selected {
			for _, h := range []state.Handle{state.HandleTopLeft, state.HandleTopRight, state.HandleBottomLeft, state.HandleBottomRight} {
				if p, ok := state.Handles(item.Shape.Geometry)[h]; ok {
					sc.Handles = append(sc.Handles, p)
				}
			}
		}
	}
	if !transforming && m.draft != nil {
		sc.Items = append(sc.Items, Item{Shape: m.draft.Clone(), Provisional: true})
	}
	return sc
}
