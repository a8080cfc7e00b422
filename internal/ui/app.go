package ui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/golang/glog"

	"github.com/Prayush09/ZiDraw/internal/export"
)

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	board   *BoardWidget
	status  *widget.Label
	title   string
}

func NewApp(title string, b *BoardWidget) *App {
	a := &App{
		fyneApp: app.NewWithID("io.github.prayush09.zidraw"),
		board:   b,
		status:  widget.NewLabel("Connecting..."),
		title:   title,
	}
	a.window = a.fyneApp.NewWindow(title)
	a.window.Resize(fyne.NewSize(1024, 768))

	toolbar := NewToolbar(b, a.exportPDF)
	a.window.SetContent(container.NewBorder(toolbar, a.status, nil, nil, b))
	return a
}

// SetStatus updates the status line. Safe from any goroutine.
func (a *App) SetStatus(text string) {
	fyne.Do(func() {
		a.status.SetText(text)
	})
}

func (a *App) exportPDF() {
	save := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.window)
			return
		}
		if w == nil {
			return
		}
		defer w.Close()
		shapes := a.board.Machine().Shapes()
		if err := export.WritePDF(w, a.title, shapes); err != nil {
			glog.Errorf("[ui] export failed: %v", err)
			dialog.ShowError(err, a.window)
			return
		}
		a.status.SetText(fmt.Sprintf("Exported %d shapes to %s", len(shapes), w.URI().Name()))
	}, a.window)
	save.SetFileName("board.pdf")
	save.SetFilter(storage.NewExtensionFileFilter([]string{".pdf"}))
	save.Show()
}

// Run shows the window and blocks until it is closed. connect runs in the
// background once the window exists; its error ends up on the status line.
func (a *App) Run(connect func() error, onClose func()) {
	go func() {
		if err := connect(); err != nil {
			glog.Errorf("[ui] %v", err)
			a.SetStatus(fmt.Sprintf("Connection failed: %v", err))
			return
		}
		a.SetStatus("Connected")
	}()
	a.window.SetOnClosed(func() {
		if onClose != nil {
			onClose()
		}
	})
	a.window.ShowAndRun()
}
