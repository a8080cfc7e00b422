package export

import (
	"fmt"
	"io"
	"math"

	"github.com/golang/glog"
	"github.com/jung-kurt/gofpdf"

	"github.com/Prayush09/ZiDraw/internal/state"
)

const (
	pageMargin = 10.0 // mm
	boardPad   = 10.0 // board px around the drawing
	// maxScale keeps a small sketch from being blown up past 2px per mm.
	maxScale = 0.5
)

// layout maps board coordinates onto the page.
type layout struct {
	origin state.Bounds
	scale  float64
}

func (l layout) x(v float64) float64 { return pageMargin + (v-l.origin.X)*l.scale }
func (l layout) y(v float64) float64 { return pageMargin + (v-l.origin.Y)*l.scale }
func (l layout) d(v float64) float64 { return v * l.scale }

func fit(shapes []state.Shape, pageW, pageH float64) layout {
	if len(shapes) == 0 {
		return layout{scale: maxScale}
	}
	b := shapes[0].Geometry.Bounds()
	for _, s := range shapes[1:] {
		b = b.Union(s.Geometry.Bounds())
	}
	b = b.Inflate(boardPad)
	scale := math.Min((pageW-2*pageMargin)/b.Width, (pageH-2*pageMargin)/b.Height)
	return layout{origin: b, scale: math.Min(scale, maxScale)}
}

// Render draws shapes in z-order on a single landscape A4 page, scaled to
// fit.
func Render(title string, shapes []state.Shape) *gofpdf.Fpdf {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("ZiDraw", true)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	l := fit(shapes, pageW, pageH)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.4)
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	for _, s := range shapes {
		switch g := s.Geometry.(type) {
		case state.Path:
			for i := 1; i < len(g.Points); i++ {
				a, b := g.Points[i-1], g.Points[i]
				pdf.Line(l.x(a.X), l.y(a.Y), l.x(b.X), l.y(b.Y))
			}
		case state.Rect:
			r := g.Normalize()
			pdf.Rect(l.x(r.X), l.y(r.Y), l.d(r.Width), l.d(r.Height), "D")
		case state.Ellipse:
			pdf.Ellipse(l.x(g.CX), l.y(g.CY), l.d(g.RX), l.d(g.RY), 0, "D")
		}
	}

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.Text(pageMargin, pageH-pageMargin/2, fmt.Sprintf("%s - %d shapes", title, len(shapes)))
	return pdf
}

// WritePDF renders shapes and writes the document to w.
func WritePDF(w io.Writer, title string, shapes []state.Shape) error {
	pdf := Render(title, shapes)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	glog.V(1).Infof("[export] wrote %d shapes", len(shapes))
	return nil
}

func WriteFile(path, title string, shapes []state.Shape) error {
	pdf := Render(title, shapes)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	glog.Infof("[export] wrote %d shapes to %s", len(shapes), path)
	return nil
}
