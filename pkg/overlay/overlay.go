// Package overlay draws detection boxes and labels onto frames.
package overlay

import (
	"DefectScope/internal/entity"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	DefaultColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

	ClassColors = map[string]color.RGBA{
		"scratch":           {R: 255, G: 0, B: 0, A: 255},
		"dent":              {R: 0, G: 0, B: 255, A: 255},
		"paint_run":         {R: 255, G: 255, B: 0, A: 255},
		"undercoat_missing": {R: 255, G: 0, B: 255, A: 255},
		"contamination":     {R: 0, G: 255, B: 0, A: 255},
		"bubbling":          {R: 0, G: 165, B: 255, A: 255},
	}
)

const (
	boxThickness = 2
	labelPadding = 2
)

type Renderer struct {
	colors    map[string]color.RGBA
	face      font.Face
	thickness int
}

func NewRenderer() *Renderer {
	return &Renderer{
		colors:    ClassColors,
		face:      basicfont.Face7x13,
		thickness: boxThickness,
	}
}

func (r *Renderer) Color(class string) color.RGBA {
	if c, ok := r.colors[class]; ok {
		return c
	}
	return DefaultColor
}

// Render returns a copy of frame with one box and "class: 0.87" label per
// detection. Boxes are clipped to the frame; frame itself is not modified.
func (r *Renderer) Render(frame *image.RGBA, detections []entity.Detection) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	for _, d := range detections {
		rect := image.Rect(int(d.BBox.X1()), int(d.BBox.Y1()), int(d.BBox.X2()), int(d.BBox.Y2())).Intersect(bounds)
		if rect.Empty() {
			continue
		}

		c := r.Color(d.Class)
		r.drawBox(out, rect, c)
		r.drawLabel(out, rect, fmt.Sprintf("%s: %.2f", d.Class, d.Confidence), c)
	}

	return out
}

func (r *Renderer) drawBox(dst *image.RGBA, rect image.Rectangle, c color.RGBA) {
	src := image.NewUniform(c)
	t := r.thickness
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+t),
		image.Rect(rect.Min.X, rect.Max.Y-t, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+t, rect.Max.Y),
		image.Rect(rect.Max.X-t, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, edge := range edges {
		draw.Draw(dst, edge.Intersect(rect), src, image.Point{}, draw.Src)
	}
}

// drawLabel puts the label on a filled background just above the box, or
// inside its top edge when there is no room above.
func (r *Renderer) drawLabel(dst *image.RGBA, rect image.Rectangle, label string, c color.RGBA) {
	metrics := r.face.Metrics()
	textWidth := font.MeasureString(r.face, label).Ceil()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()

	height := textHeight + 2*labelPadding
	top := rect.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = rect.Min.Y
	}

	background := image.Rect(rect.Min.X, top, rect.Min.X+textWidth+2*labelPadding, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, background, image.NewUniform(c), image.Point{}, draw.Src)

	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: r.face,
		Dot:  fixed.P(rect.Min.X+labelPadding, top+labelPadding+metrics.Ascent.Ceil()),
	}
	drawer.DrawString(label)
}
