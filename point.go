// Package mandelbrot renders the Mandelbrot set into an 8-bit grayscale
// buffer, one horizontal band per worker.
package mandelbrot

// Point is a location in the complex plane: X is the real part, Y the
// imaginary part.
type Point struct {
	X, Y float64
}

func (p Point) Complex() complex128 {
	return complex(p.X, p.Y)
}

// Bounds is an image or band size in pixels.
type Bounds struct {
	Width, Height int
}

func (b Bounds) Area() int {
	return b.Width * b.Height
}

// Viewport is the rectangle of the complex plane mapped onto an image.
// UpperLeft has the larger imaginary part.
type Viewport struct {
	UpperLeft, LowerRight Point
}

// PixelToPoint maps pixel (px, py) of an image of the given bounds into
// the viewport. Row 0 is the top of the viewport, so increasing py
// decreases the imaginary part. bounds.Width and bounds.Height must be
// positive.
func PixelToPoint(bounds Bounds, px, py int, vp Viewport) Point {
	width := vp.LowerRight.X - vp.UpperLeft.X
	height := vp.UpperLeft.Y - vp.LowerRight.Y
	return Point{
		X: vp.UpperLeft.X + float64(px)*width/float64(bounds.Width),
		Y: vp.UpperLeft.Y - float64(py)*height/float64(bounds.Height),
	}
}
