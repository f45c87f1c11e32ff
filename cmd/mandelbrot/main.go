// Command mandelbrot renders the Mandelbrot set to a grayscale image file.
//
//	mandelbrot FILE PIXELS UPPERLEFT LOWERRIGHT WORKERS
//	mandelbrot mandel.png 1000x750 -1.20,0.35 -1,0.20 8
package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"mandelbrot"
	"mandelbrot/encode"
	"mandelbrot/pair"
)

const usage = "Usage: mandelbrot FILE PIXELS UPPERLEFT LOWERRIGHT WORKERS\n" +
	"Example: mandelbrot mandel.png 1000x750 -1.20,0.35 -1,0.20 8"

var errUsage = errors.New("wrong number of arguments")

type config struct {
	file     string
	bounds   mandelbrot.Bounds
	viewport mandelbrot.Viewport
	workers  int
}

func main() {
	log.SetFlags(0)
	mandelbrot.SetLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(1)
		}
		log.Fatalln(err)
	}
}

func run(args []string) error {
	cfg, err := parseArgs(args)
	if err != nil {
		return err
	}

	img := mandelbrot.Generate(cfg.bounds, cfg.viewport, cfg.workers)

	if err := encode.WriteFile(cfg.file, img.Pix, cfg.bounds.Width, cfg.bounds.Height); err != nil {
		return fmt.Errorf("error writing %s: %w", cfg.file, err)
	}
	log.Printf("wrote %s (%dx%d)", cfg.file, cfg.bounds.Width, cfg.bounds.Height)
	return nil
}

func parseArgs(args []string) (config, error) {
	if len(args) != 5 {
		return config{}, errUsage
	}
	cfg := config{file: args[0]}

	w, h, err := pair.Ints(args[1], 'x')
	if err != nil {
		return config{}, fmt.Errorf("error parsing image dimensions: %w", err)
	}
	if w == 0 || h == 0 {
		return config{}, fmt.Errorf("error parsing image dimensions: %dx%d has no pixels", w, h)
	}
	cfg.bounds = mandelbrot.Bounds{Width: w, Height: h}

	cfg.viewport.UpperLeft, err = parsePoint(args[2])
	if err != nil {
		return config{}, fmt.Errorf("error parsing upper left corner point: %w", err)
	}
	cfg.viewport.LowerRight, err = parsePoint(args[3])
	if err != nil {
		return config{}, fmt.Errorf("error parsing lower right corner point: %w", err)
	}

	n, err := strconv.ParseUint(args[4], 10, strconv.IntSize-1)
	if err != nil {
		return config{}, fmt.Errorf("error parsing worker count: %w", err)
	}
	cfg.workers = int(n)

	return cfg, nil
}

func parsePoint(s string) (mandelbrot.Point, error) {
	x, y, err := pair.Floats(s, ',')
	if err != nil {
		return mandelbrot.Point{}, err
	}
	return mandelbrot.Point{X: x, Y: y}, nil
}
