// Package snapshot rasterises a scene snapshot to PNG: orbit traces as
// lines, bodies as discs, names in a bitmap font.
package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

// Options controls the output image.
type Options struct {
	Width      int
	Height     int
	Lens       render.Lens
	Background color.RGBA
	Labels     bool

	// Supersample renders at this multiple of the output size and scales
	// down. Values below 2 disable it.
	Supersample int
}

// DefaultOptions is an 800x600 labelled image on a near-black background.
var DefaultOptions = Options{
	Width:       800,
	Height:      600,
	Lens:        render.DefaultLens,
	Background:  color.RGBA{R: 5, G: 5, B: 16, A: 255},
	Labels:      true,
	Supersample: 2,
}

const (
	minBodyPixels    = 2
	minCentralPixels = 5
	traceAlpha       = 0.45
)

// Image draws snap into a new RGBA image.
func Image(snap kb.Snapshot, opts Options) (*image.RGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("snapshot: invalid size %dx%d", opts.Width, opts.Height)
	}
	if opts.Lens == (render.Lens{}) {
		opts.Lens = render.DefaultLens
	}
	ss := opts.Supersample
	if ss < 2 {
		ss = 1
	}

	w, h := opts.Width*ss, opts.Height*ss
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: opts.Background}, image.Point{}, draw.Src)

	pr := render.NewProjector(snap.Camera, opts.Lens, render.Viewport{Width: w, Height: h})
	focal := float64(h) / 2 / math.Tan(mgl64.DegToRad(opts.Lens.FOV)/2)

	for _, b := range snap.Bodies {
		trace := render.WorldTrace(snap, b)
		if len(trace) == 0 {
			continue
		}
		col := blend(opts.Background, rgba(b.Style.Color), traceAlpha)
		prev, prevOK := pr.Project(trace[len(trace)-1])
		for _, p := range trace {
			pt, ok := pr.Project(p)
			if ok && prevOK {
				drawLine(canvas, prev, pt, col)
			}
			prev, prevOK = pt, ok
		}
	}

	type label struct {
		x, y int
		text string
	}
	var labels []label
	for _, b := range snap.Bodies {
		pt, ok := pr.Project(b.Position)
		if !ok {
			continue
		}
		r := screenRadius(b, snap.Camera, focal, ss)
		fillDisc(canvas, pt.X, pt.Y, r, rgba(b.Style.Color))
		labels = append(labels, label{
			x:    int(pt.X)/ss + int(r)/ss + 3,
			y:    int(pt.Y)/ss + 4,
			text: b.Style.Name,
		})
	}

	out := canvas
	if ss > 1 {
		out = image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
		draw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	}

	if opts.Labels {
		drawer := &font.Drawer{
			Dst:  out,
			Src:  image.NewUniform(color.RGBA{R: 220, G: 220, B: 220, A: 255}),
			Face: basicfont.Face7x13,
		}
		for _, l := range labels {
			drawer.Dot = fixed.Point26_6{X: fixed.I(l.x), Y: fixed.I(l.y)}
			drawer.DrawString(l.text)
		}
	}
	return out, nil
}

// Encode writes snap to w as PNG.
func Encode(w io.Writer, snap kb.Snapshot, opts Options) error {
	img, err := Image(snap, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("snapshot: encode png: %w", err)
	}
	return nil
}

// screenRadius converts a body's display radius into pixels at its
// distance from the camera.
func screenRadius(b kb.BodyState, pose model.CameraPose, focal float64, ss int) float64 {
	floor := float64(minBodyPixels * ss)
	if b.Style.Central {
		floor = float64(minCentralPixels * ss)
	}
	d := b.Position.Sub(pose.Position).Len()
	if d <= 0 || b.Style.Radius <= 0 {
		return floor
	}
	return math.Max(floor, b.Style.Radius/d*focal)
}

func rgba(c model.Color) color.RGBA {
	r, g, b := c.RGB()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func blend(bg, fg color.RGBA, alpha float64) color.RGBA {
	r, g, b := colorOf(bg).BlendRgb(colorOf(fg), alpha).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func colorOf(c color.RGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// drawLine plots a one-pixel segment by stepping along its longer axis.
func drawLine(img *image.RGBA, a, b render.Point, col color.RGBA) {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		img.SetRGBA(int(a.X), int(a.Y), col)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.SetRGBA(int(a.X+dx*t), int(a.Y+dy*t), col)
	}
}

func fillDisc(img *image.RGBA, cx, cy, r float64, col color.RGBA) {
	bounds := img.Bounds()
	x0, x1 := int(math.Floor(cx-r)), int(math.Ceil(cx+r))
	y0, y1 := int(math.Floor(cy-r)), int(math.Ceil(cy+r))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !image.Pt(x, y).In(bounds) {
				continue
			}
			fx, fy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if fx*fx+fy*fy <= r*r {
				img.SetRGBA(x, y, col)
			}
		}
	}
}
