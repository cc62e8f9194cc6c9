// Package focus maps between preview surface coordinates and the normalized
// coordinate space of the camera frame.
//
// The preview shows the frame scaled into the surface according to a fill
// mode. A tap on the surface therefore corresponds to a different normalized
// frame location depending on whether the frame is letterboxed (AspectFit),
// cropped (AspectFill) or stretched (Resize).
package focus

import "math"

// FillMode describes how the frame is scaled into the preview surface.
type FillMode int

const (
	// AspectFill scales the frame to cover the surface, cropping the overflow.
	AspectFill FillMode = iota
	// AspectFit scales the frame to fit inside the surface, letterboxing the rest.
	AspectFit
	// Resize stretches the frame to the surface on both axes.
	Resize
)

// String returns the configuration name of the fill mode.
func (m FillMode) String() string {
	switch m {
	case AspectFit:
		return "aspect-fit"
	case Resize:
		return "resize"
	default:
		return "aspect-fill"
	}
}

// ParseFillMode converts a configuration name into a FillMode.
func ParseFillMode(s string) (FillMode, bool) {
	switch s {
	case "aspect-fill", "fill", "":
		return AspectFill, true
	case "aspect-fit", "fit":
		return AspectFit, true
	case "resize", "stretch":
		return Resize, true
	default:
		return AspectFill, false
	}
}

// Point is a 2D point. Depending on context it is in surface units or
// normalized to [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a 2D extent.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Unit is the whole normalized space.
var Unit = Rect{X: 0, Y: 0, Width: 1, Height: 1}

// IsZero reports whether r is the zero value.
func (r Rect) IsZero() bool {
	return r == Rect{}
}

// Empty reports whether r covers no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Normalized reports whether r is non-empty and lies within [0,1] on both axes.
func (r Rect) Normalized() bool {
	const eps = 1e-9
	return r.Width > 0 && r.Height > 0 &&
		r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= 1+eps && r.Y+r.Height <= 1+eps
}

// Geometry describes how a frame is presented in a preview surface.
type Geometry struct {
	Bounds Size
	Frame  Size
	Mode   FillMode
}

// layout returns the displayed frame size and its offset inside the bounds.
func (g Geometry) layout() (dw, dh, ox, oy float64) {
	if g.Bounds.Empty() || g.Frame.Empty() {
		return g.Bounds.Width, g.Bounds.Height, 0, 0
	}

	sx := g.Bounds.Width / g.Frame.Width
	sy := g.Bounds.Height / g.Frame.Height

	switch g.Mode {
	case AspectFit:
		s := math.Min(sx, sy)
		sx, sy = s, s
	case AspectFill:
		s := math.Max(sx, sy)
		sx, sy = s, s
	}

	dw = g.Frame.Width * sx
	dh = g.Frame.Height * sy
	ox = (g.Bounds.Width - dw) / 2
	oy = (g.Bounds.Height - dh) / 2
	return dw, dh, ox, oy
}

// PointOfInterest converts a point in surface coordinates into the
// normalized frame coordinates used for focus and exposure.
// The result is clamped to [0,1]; taps on letterbox bars map to the nearest edge.
func (g Geometry) PointOfInterest(tap Point) Point {
	dw, dh, ox, oy := g.layout()
	if dw <= 0 || dh <= 0 {
		return Point{X: 0.5, Y: 0.5}
	}
	return Point{
		X: clamp01((tap.X - ox) / dw),
		Y: clamp01((tap.Y - oy) / dh),
	}
}

// ViewPoint converts normalized frame coordinates back into surface coordinates.
// Points in the cropped area of an AspectFill preview fall outside the bounds.
func (g Geometry) ViewPoint(poi Point) Point {
	dw, dh, ox, oy := g.layout()
	return Point{
		X: ox + poi.X*dw,
		Y: oy + poi.Y*dh,
	}
}

// RectOfInterest converts a rectangle normalized to the surface into a
// rectangle normalized to the frame, clipped to the frame.
func (g Geometry) RectOfInterest(r Rect) Rect {
	if g.Bounds.Empty() {
		return clipUnit(r)
	}
	topLeft := g.PointOfInterest(Point{
		X: r.X * g.Bounds.Width,
		Y: r.Y * g.Bounds.Height,
	})
	bottomRight := g.PointOfInterest(Point{
		X: (r.X + r.Width) * g.Bounds.Width,
		Y: (r.Y + r.Height) * g.Bounds.Height,
	})
	return Rect{
		X:      topLeft.X,
		Y:      topLeft.Y,
		Width:  bottomRight.X - topLeft.X,
		Height: bottomRight.Y - topLeft.Y,
	}
}

func clipUnit(r Rect) Rect {
	x0, y0 := clamp01(r.X), clamp01(r.Y)
	x1, y1 := clamp01(r.X+r.Width), clamp01(r.Y+r.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
