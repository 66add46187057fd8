package layout

import (
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/quartercastle/vector"
)

const (
	drawPadding    = 20.0
	drawNodeRadius = 3.0
)

// Draw renders positions and the links between them as PNG to w. The
// positions are scaled to fit into a width x height image.
func Draw(w io.Writer, positions map[string]vector.Vector, links []Link, width, height int, invertColor bool) error {
	if width <= 2*drawPadding || height <= 2*drawPadding {
		return errors.Errorf("image size %dx%d too small", width, height)
	}
	dc := gg.NewContext(width, height)
	var background, foreground color.Color = color.White, color.Black
	if invertColor {
		background, foreground = foreground, background
	}
	dc.SetColor(background)
	dc.Clear()

	minX, minY := math.Inf(+1), math.Inf(+1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pos := range positions {
		minX, maxX = math.Min(minX, pos.X()), math.Max(maxX, pos.X())
		minY, maxY = math.Min(minY, pos.Y()), math.Max(maxY, pos.Y())
	}
	scale := math.Min(
		(float64(width)-2*drawPadding)/math.Max(maxX-minX, 1),
		(float64(height)-2*drawPadding)/math.Max(maxY-minY, 1),
	)
	project := func(pos vector.Vector) (float64, float64) {
		return drawPadding + (pos.X()-minX)*scale, drawPadding + (pos.Y()-minY)*scale
	}

	dc.SetColor(foreground)
	dc.SetLineWidth(1)
	for _, link := range links {
		from, fromExists := positions[link.Source]
		to, toExists := positions[link.Target]
		if !fromExists || !toExists {
			continue
		}
		x1, y1 := project(from)
		x2, y2 := project(to)
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}
	for _, pos := range positions {
		x, y := project(pos)
		dc.DrawCircle(x, y, drawNodeRadius)
		dc.Fill()
	}
	if err := dc.EncodePNG(w); err != nil {
		return errors.Wrap(err, "failed to encode png")
	}
	return nil
}
