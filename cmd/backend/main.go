package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"runtime"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"mandelbrot"
	"mandelbrot/encode"
	"mandelbrot/scorer"
)

const (
	maxPixels       = 8192 * 8192
	maxRequestBytes = 1 << 20
)

// maxWorkers bounds the per-request band count, and with it the number
// of goroutines and progress messages a single render can create.
var maxWorkers = 4 * runtime.GOMAXPROCS(0)

// viewCandidates is how many random views /api/view/random scores.
var viewCandidates = 2000

type viewPayload struct {
	CX    float64 `json:"cx"`
	CY    float64 `json:"cy"`
	Scale float64 `json:"scale"`
}

type pointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type mandelRequest struct {
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	UpperLeft  pointPayload `json:"upper_left"`
	LowerRight pointPayload `json:"lower_right"`
	Workers    int          `json:"workers"`
	Format     string       `json:"format"`
}

type bandPayload struct {
	Band   int    `json:"band"`
	Phase  string `json:"phase"`
	Top    int    `json:"top"`
	Rows   int    `json:"rows"`
	Pixels int    `json:"pixels"`
}

// job is a validated render request.
type job struct {
	bounds   mandelbrot.Bounds
	viewport mandelbrot.Viewport
	workers  int
	format   encode.Format
}

func (j job) render(onBand func(mandelbrot.BandEvent)) ([]byte, error) {
	img, err := encode.Gray(make([]uint8, j.bounds.Area()), j.bounds.Width, j.bounds.Height)
	if err != nil {
		return nil, err
	}
	mandelbrot.Renderer{Workers: j.workers, OnBand: onBand}.Render(img.Pix, j.bounds, j.viewport)

	var buf bytes.Buffer
	if err := encode.Encode(&buf, j.format, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func checkWorkers(n int) error {
	if n > maxWorkers {
		return fmt.Errorf("workers %d exceeds limit %d", n, maxWorkers)
	}
	return nil
}

func checkBounds(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image size %dx%d has no pixels", w, h)
	}
	if w > maxPixels/h {
		return fmt.Errorf("image size %dx%d is too large", w, h)
	}
	return nil
}

func qf(r *http.Request, key string, def float64) (float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func qi(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

// jobFromQuery reads width, height, cx, cy, scale, workers and format.
func jobFromQuery(r *http.Request) (job, error) {
	width, errW := qi(r, "width", 1080)
	height, errH := qi(r, "height", 660)
	cx, errX := qf(r, "cx", -0.5)
	cy, errY := qf(r, "cy", 0.0)
	scale, errS := qf(r, "scale", 3.5)
	workers, errN := qi(r, "workers", 4)
	format, errF := encode.ParseFormat(r.URL.Query().Get("format"))
	if err := errors.Join(errW, errH, errX, errY, errS, errN, errF); err != nil {
		return job{}, err
	}
	if err := errors.Join(checkBounds(width, height), checkWorkers(workers)); err != nil {
		return job{}, err
	}

	bounds := mandelbrot.Bounds{Width: width, Height: height}
	v := scorer.View{CX: cx, CY: cy, Scale: scale}
	return job{
		bounds:   bounds,
		viewport: v.Viewport(bounds),
		workers:  workers,
		format:   format,
	}, nil
}

func randomViewHandler(w http.ResponseWriter, r *http.Request) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	best := scorer.GenerateViewsFrom(rng, 1, viewCandidates)
	v := best[0].V

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(viewPayload{
		CX:    v.CX,
		CY:    v.CY,
		Scale: v.Scale,
	})
}

func writeImage(w http.ResponseWriter, j job) {
	data, err := j.render(nil)
	if err != nil {
		log.Printf("render: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", j.format.ContentType())
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(data)
}

func mandelGETHandler(w http.ResponseWriter, r *http.Request) {
	j, err := jobFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeImage(w, j)
}

func mandelPOSTHandler(w http.ResponseWriter, r *http.Request) {
	var req mandelRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := errors.Join(checkBounds(req.Width, req.Height), checkWorkers(req.Workers)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format, err := encode.ParseFormat(req.Format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeImage(w, job{
		bounds: mandelbrot.Bounds{Width: req.Width, Height: req.Height},
		viewport: mandelbrot.Viewport{
			UpperLeft:  mandelbrot.Point{X: req.UpperLeft.X, Y: req.UpperLeft.Y},
			LowerRight: mandelbrot.Point{X: req.LowerRight.X, Y: req.LowerRight.Y},
		},
		workers: req.Workers,
		format:  format,
	})
}

// renderWSHandler streams one JSON message per band event, then the
// encoded image as a binary message.
func renderWSHandler(w http.ResponseWriter, r *http.Request) {
	j, err := jobFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Println(err)
		return
	}
	defer c.CloseNow()

	// Every band reports twice and there are at most max(workers, 1)
	// bands, so the buffer never fills and the workers never wait on the
	// socket.
	events := make(chan bandPayload, 2*max(j.workers, 1))
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer close(events)
		defer func() {
			if v := recover(); v != nil {
				done <- result{err: fmt.Errorf("%v", v)}
			}
		}()
		data, err := j.render(func(ev mandelbrot.BandEvent) {
			events <- bandPayload{
				Band:   ev.Band,
				Phase:  ev.Phase.String(),
				Top:    ev.Top,
				Rows:   ev.Rows,
				Pixels: ev.Pixels,
			}
		})
		done <- result{data: data, err: err}
	}()

	ctx := r.Context()
	var sendErr error
	for ev := range events {
		if sendErr == nil {
			sendErr = wsjson.Write(ctx, c, ev)
		}
	}
	res := <-done
	if res.err != nil {
		log.Printf("render: %v", res.err)
		c.Close(websocket.StatusInternalError, "render failed")
		return
	}
	if sendErr != nil {
		log.Printf("ws progress: %v", sendErr)
		return
	}

	if err := c.Write(ctx, websocket.MessageBinary, res.data); err != nil {
		log.Printf("ws image: %v", err)
		return
	}
	c.Close(websocket.StatusNormalClosure, "")
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/view/random", randomViewHandler)
	mux.HandleFunc("/api/render/ws", renderWSHandler)
	mux.HandleFunc("/api/mandel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			mandelPOSTHandler(w, r)
			return
		}
		mandelGETHandler(w, r)
	})
	return withCORS(mux)
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	log.Printf("listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, newMux()))
}
