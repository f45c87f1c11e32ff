package mandelbrot

import (
	"fmt"
	"image"
	"sync"
)

// Band is a horizontal strip of the image rendered as one unit of work.
// Pixels aliases the rows [Top, Top+Rows) of the full buffer; its
// capacity ends where the next band begins.
type Band struct {
	Index    int
	Top      int
	Rows     int
	Viewport Viewport
	Pixels   []uint8
}

// Partition splits pixels into bands of H/workers+1 rows each; the last
// band takes whatever rows remain and may be shorter. Each band's
// viewport is derived from the full image mapping so that neighbouring
// bands meet exactly. A zero-area image has no bands.
func Partition(pixels []uint8, bounds Bounds, vp Viewport, workers int) []Band {
	if workers < 1 {
		workers = 1
	}
	if bounds.Width <= 0 || len(pixels) == 0 {
		return nil
	}

	bandRows := bounds.Height/workers + 1
	chunk := bandRows * bounds.Width

	var bands []Band
	for i, off := 0, 0; off < len(pixels); i, off = i+1, off+chunk {
		end := min(off+chunk, len(pixels))
		top := bandRows * i
		rows := (end - off) / bounds.Width
		bands = append(bands, Band{
			Index: i,
			Top:   top,
			Rows:  rows,
			Viewport: Viewport{
				UpperLeft:  PixelToPoint(bounds, 0, top, vp),
				LowerRight: PixelToPoint(bounds, bounds.Width, top+rows, vp),
			},
			Pixels: pixels[off:end:end],
		})
	}
	return bands
}

type BandPhase int

const (
	BandStarted BandPhase = iota
	BandFinished
)

func (p BandPhase) String() string {
	switch p {
	case BandStarted:
		return "started"
	case BandFinished:
		return "finished"
	}
	return fmt.Sprintf("BandPhase(%d)", int(p))
}

// BandEvent reports progress of one band.
type BandEvent struct {
	Band   int
	Phase  BandPhase
	Top    int
	Rows   int
	Pixels int
}

// BandPanic is the value Render panics with when rendering a band
// panicked. Value is what the band panicked with.
type BandPanic struct {
	Band  int
	Value any
}

func (p *BandPanic) Error() string {
	return fmt.Sprintf("mandelbrot: band %d: %v", p.Band, p.Value)
}

// Renderer drives a full-image render.
type Renderer struct {
	// Workers is the number of bands rendered concurrently. Values below
	// 2 render the whole image on the calling goroutine.
	Workers int

	// OnBand, if set, is called when a band starts and finishes. In
	// parallel mode it is called from the worker goroutines.
	OnBand func(BandEvent)
}

// Render fills pixels, a row-major image of the given bounds, mapped into
// vp. It returns once every band is written. If any band panics, Render
// waits for the remaining bands and then panics with a *BandPanic; the
// buffer contents are undefined in that case.
func (r Renderer) Render(pixels []uint8, bounds Bounds, vp Viewport) {
	if len(pixels) != bounds.Area() {
		panic(fmt.Sprintf("mandelbrot: pixel buffer has %d elements, bounds %dx%d need %d",
			len(pixels), bounds.Width, bounds.Height, bounds.Area()))
	}
	log := Logger()

	if r.Workers <= 1 {
		log.Info("sequential")
		whole := Band{Rows: bounds.Height, Viewport: vp, Pixels: pixels}
		r.notify(whole, BandStarted)
		RenderBand(pixels, bounds, vp)
		r.notify(whole, BandFinished)
		return
	}

	bands := Partition(pixels, bounds, vp, r.Workers)
	log.Info("parallel", "workers", r.Workers, "bands", len(bands))

	panics := make([]any, len(bands))

	var wg sync.WaitGroup
	wg.Add(len(bands))
	for _, b := range bands {
		go func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					panics[b.Index] = v
				}
			}()

			log.Info("band started", "band", b.Index, "pixels", len(b.Pixels))
			r.notify(b, BandStarted)
			RenderBand(b.Pixels, Bounds{Width: bounds.Width, Height: b.Rows}, b.Viewport)
			r.notify(b, BandFinished)
			log.Info("band finished", "band", b.Index)
		}()
	}
	wg.Wait()

	for i, v := range panics {
		if v != nil {
			panic(&BandPanic{Band: i, Value: v})
		}
	}
}

func (r Renderer) notify(b Band, phase BandPhase) {
	if r.OnBand == nil {
		return
	}
	r.OnBand(BandEvent{
		Band:   b.Index,
		Phase:  phase,
		Top:    b.Top,
		Rows:   b.Rows,
		Pixels: len(b.Pixels),
	})
}

// Render renders with the given worker count and no progress hook.
func Render(pixels []uint8, bounds Bounds, vp Viewport, workers int) {
	Renderer{Workers: workers}.Render(pixels, bounds, vp)
}

// Generate allocates a grayscale image of the given bounds and renders
// vp into it.
func Generate(bounds Bounds, vp Viewport, workers int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, bounds.Width, bounds.Height))
	Render(img.Pix, bounds, vp, workers)
	return img
}
