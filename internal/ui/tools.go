package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/Prayush09/ZiDraw/internal/board"
)

func toolLabel(t board.Tool) string {
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// NewToolbar builds the tool picker and the export action.
func NewToolbar(b *BoardWidget, onExport func()) fyne.CanvasObject {
	labels := make([]string, 0, len(board.Tools))
	byLabel := make(map[string]board.Tool, len(board.Tools))
	for _, t := range board.Tools {
		labels = append(labels, toolLabel(t))
		byLabel[toolLabel(t)] = t
	}

	tools := widget.NewRadioGroup(labels, func(label string) {
		if t, ok := byLabel[label]; ok {
			b.SetTool(t)
		}
	})
	tools.Horizontal = true
	tools.Required = true
	tools.SetSelected(toolLabel(b.Machine().Tool()))

	actions := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentSaveIcon(), onExport), // PDF
	)

	return container.NewHBox(
		widget.NewLabel("Tool:"),
		tools,
		layout.NewSpacer(),
		actions,
	)
}
