// Package scorer describes views by center and scale and searches for
// views whose grayscale render has visible structure.
package scorer

import (
	"math"
	"math/rand/v2"

	"mandelbrot"
)

type View struct {
	CX, CY float64
	Scale  float64
}

// Viewport returns the rectangle centred on the view whose real extent
// is Scale and whose imaginary extent follows the image aspect ratio.
func (v View) Viewport(b mandelbrot.Bounds) mandelbrot.Viewport {
	aspect := float64(b.Height) / float64(b.Width)
	halfW := v.Scale / 2
	halfH := (v.Scale * aspect) / 2

	return mandelbrot.Viewport{
		UpperLeft:  mandelbrot.Point{X: v.CX - halfW, Y: v.CY + halfH},
		LowerRight: mandelbrot.Point{X: v.CX + halfW, Y: v.CY - halfH},
	}
}

type ViewScore struct {
	V     View
	Score float64
}

// preview is the size of the render each candidate view is scored on.
var preview = mandelbrot.Bounds{Width: 96, Height: 54}

// GenerateViewsFrom scores candidates random views drawn from rng and
// returns the n best, highest score first.
func GenerateViewsFrom(rng *rand.Rand, n, candidates int) []ViewScore {
	var best []ViewScore
	pixels := make([]uint8, preview.Area())

	for range candidates {
		v := randomView(rng)
		s := scoreView(v, pixels)
		best = insertBest(best, ViewScore{V: v, Score: s}, n)
	}

	return best
}

func insertBest(list []ViewScore, vs ViewScore, max int) []ViewScore {
	list = append(list, vs)
	for i := len(list) - 1; i > 0; i-- {
		if list[i].Score > list[i-1].Score {
			list[i], list[i-1] = list[i-1], list[i]
		} else {
			break
		}
	}
	if len(list) > max {
		return list[:max]
	}
	return list
}

func randomView(rng *rand.Rand) View {
	cx := rng.Float64()*3.5 - 2.5
	cy := rng.Float64()*3.0 - 1.5

	r := rng.Float64()
	r = r * r
	minScale := 0.0000005
	maxScale := 3.5
	scale := minScale + r*(maxScale-minScale)

	return View{CX: cx, CY: cy, Scale: scale}
}

// scoreView renders v into pixels and rewards a balanced share of
// bounded points, a spread of gray levels and many edges.
func scoreView(v View, pixels []uint8) float64 {
	w, h := preview.Width, preview.Height
	mandelbrot.RenderBand(pixels, preview, v.Viewport(preview))

	insideCount := 0
	for _, p := range pixels {
		if p == 0 {
			insideCount++
		}
	}

	total := float64(w * h)
	insideRatio := float64(insideCount) / total
	escapeScore := 1.0 - math.Abs(insideRatio-0.4)/0.4
	if escapeScore < 0 {
		escapeScore = 0
	}

	bins := 32
	hist := make([]int, bins)
	for _, p := range pixels {
		hist[int(p)*bins/256]++
	}
	entropy := 0.0
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log(p)
	}
	entropyScore := entropy / math.Log(float64(bins))

	edgeCount := 0
	for py := range h {
		for px := range w {
			idx := py*w + px
			v0 := int(pixels[idx])
			if px+1 < w && absInt(v0-int(pixels[idx+1])) > 2 {
				edgeCount++
			}
			if py+1 < h && absInt(v0-int(pixels[idx+w])) > 2 {
				edgeCount++
			}
		}
	}
	edgeScore := float64(edgeCount) / float64(2*w*h)

	return 0.5*entropyScore + 0.3*edgeScore + 0.2*escapeScore
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
