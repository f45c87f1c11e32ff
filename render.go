package mandelbrot

import "fmt"

// RenderBand fills pixels, a row-major image of the given bounds, with
// the escape-time intensity of every pixel mapped into vp. It only
// writes to pixels, so calls on disjoint slices may run concurrently.
//
// RenderBand panics if len(pixels) != bounds.Area().
func RenderBand(pixels []uint8, bounds Bounds, vp Viewport) {
	if len(pixels) != bounds.Area() {
		panic(fmt.Sprintf("mandelbrot: pixel buffer has %d elements, bounds %dx%d need %d",
			len(pixels), bounds.Width, bounds.Height, bounds.Area()))
	}

	for r := range bounds.Height {
		rowOff := r * bounds.Width
		for c := range bounds.Width {
			p := PixelToPoint(bounds, c, r, vp)
			pixels[rowOff+c] = Intensity(Escapes(p.Complex(), Limit))
		}
	}
}
