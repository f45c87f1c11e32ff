package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"golang.org/x/image/bmp"
)

func TestMandelGET(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/mandel?width=32&height=24&workers=3")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Fatalf("image is %dx%d, want 32x24", b.Dx(), b.Dy())
	}
}

func TestMandelGETBadParams(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	bad := []string{
		"width=abc",
		"width=0",
		"height=-3",
		"cx=left",
		"format=gif",
		"width=100000&height=100000",
		"width=1&height=67108864&workers=1000000000",
		"workers=" + strconv.Itoa(maxWorkers+1),
	}
	for _, q := range bad {
		resp, err := http.Get(srv.URL + "/api/mandel?" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestMandelPOST(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	body, _ := json.Marshal(mandelRequest{
		Width:      20,
		Height:     10,
		UpperLeft:  pointPayload{X: -2, Y: 1},
		LowerRight: pointPayload{X: 1, Y: -1},
		Workers:    2,
		Format:     "bmp",
	})
	resp, err := http.Post(srv.URL+"/api/mandel", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/bmp" {
		t.Fatalf("Content-Type = %q", ct)
	}
	img, err := bmp.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Fatalf("image is %dx%d, want 20x10", b.Dx(), b.Dy())
	}

	resp, err = http.Post(srv.URL+"/api/mandel", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", resp.StatusCode)
	}
}

func TestMandelPOSTLimits(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	tooManyWorkers, _ := json.Marshal(mandelRequest{
		Width:      1,
		Height:     67108864,
		UpperLeft:  pointPayload{X: -2, Y: 1},
		LowerRight: pointPayload{X: 1, Y: -1},
		Workers:    1000000000,
	})
	oversized := `{"format":"` + strings.Repeat("a", maxRequestBytes+1024) + `"}`

	for name, body := range map[string]string{
		"workers":   string(tooManyWorkers),
		"oversized": oversized,
	} {
		resp, err := http.Post(srv.URL+"/api/mandel", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, resp.StatusCode)
		}
	}
}

func TestRenderWS(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/render/ws?width=30&height=20&workers=3"
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.CloseNow()

	// 20/3+1 = 7 rows per band: 7, 7, 6.
	const bands = 3
	started, finished, pixels := 0, 0, 0
	for range 2 * bands {
		var ev bandPayload
		if err := wsjson.Read(ctx, c, &ev); err != nil {
			t.Fatalf("read band event: %v", err)
		}
		switch ev.Phase {
		case "started":
			started++
			pixels += ev.Pixels
		case "finished":
			finished++
		default:
			t.Fatalf("unexpected phase %q", ev.Phase)
		}
	}
	if started != bands || finished != bands {
		t.Fatalf("started=%d finished=%d, want %d each", started, finished, bands)
	}
	if pixels != 30*20 {
		t.Fatalf("bands covered %d pixels, want 600", pixels)
	}

	typ, data, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.MessageBinary {
		t.Fatalf("image message type = %v", typ)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Fatalf("image is %dx%d, want 30x20", b.Dx(), b.Dy())
	}

	if _, _, err := c.Read(ctx); websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v", err)
	}
}

func TestRenderWSRejectsTooManyWorkers(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/render/ws?width=1&height=67108864&workers=1000000000"
	c, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		c.CloseNow()
		t.Fatal("dial succeeded, want rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("dial err = %v, want 400 response", err)
	}
}

// A client that reads nothing until the render is over must not hold up
// the workers: every band event is buffered and arrives afterwards.
func TestRenderWSSlowReader(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	workers := min(maxWorkers, 4)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/render/ws?width=16&height=64&workers=" + strconv.Itoa(workers)
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.CloseNow()

	time.Sleep(100 * time.Millisecond)

	events := 0
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			t.Fatalf("read after %d events: %v", events, err)
		}
		if typ == websocket.MessageBinary {
			if _, err := png.Decode(bytes.NewReader(data)); err != nil {
				t.Fatal(err)
			}
			break
		}
		events++
	}
	if events == 0 || events%2 != 0 || events > 2*workers {
		t.Fatalf("got %d band events for %d workers", events, workers)
	}
}

func TestRandomView(t *testing.T) {
	defer func(n int) { viewCandidates = n }(viewCandidates)
	viewCandidates = 10

	rec := httptest.NewRecorder()
	randomViewHandler(rec, httptest.NewRequest(http.MethodGet, "/api/view/random", nil))

	var v viewPayload
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Scale <= 0 {
		t.Fatalf("scale = %v, want positive", v.Scale)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/mandel", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}
