// Package imagegen produces deterministic synthetic JPEG images for drift
// test scenarios.
//
// Every scenario needs an image workload with controllable properties:
// baseline scenes, darkened scenes for brightness drift, noisy scenes that
// depress detector confidence, and object-dense scenes for density drift.
// Images are generated from a seeded RNG so a scenario re-run submits
// byte-identical payloads.
package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
)

// Options controls the generated scene.
type Options struct {
	// Width and Height of the image in pixels. Defaults to 320x240.
	Width  int
	Height int

	// Brightness scales the background luminance, 0..1. Default 0.5.
	Brightness float64

	// Noise is the per-pixel noise amplitude, 0..1. Zero disables noise.
	Noise float64

	// Objects is the number of high-contrast rectangles drawn on the
	// background. These are what a detector picks up as objects.
	Objects int

	// Seed drives all randomized placement and noise. Same seed, same bytes.
	Seed int64

	// Quality is the JPEG encoding quality, 1..100. Default 90.
	Quality int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 320
	}
	if o.Height <= 0 {
		o.Height = 240
	}
	if o.Brightness == 0 {
		o.Brightness = 0.5
	}
	if o.Quality <= 0 {
		o.Quality = 90
	}
	return o
}

// Generate renders a scene and returns it JPEG-encoded.
func Generate(opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	if opts.Brightness < 0 || opts.Brightness > 1 {
		return nil, fmt.Errorf("brightness %v out of range [0,1]", opts.Brightness)
	}
	if opts.Noise < 0 || opts.Noise > 1 {
		return nil, fmt.Errorf("noise %v out of range [0,1]", opts.Noise)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))

	// Background: vertical gradient around the requested brightness.
	base := opts.Brightness * 255
	for y := 0; y < opts.Height; y++ {
		grad := (float64(y)/float64(opts.Height) - 0.5) * 60
		v := clamp(base + grad)
		for x := 0; x < opts.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}

	// Objects: filled rectangles that contrast with the background.
	for i := 0; i < opts.Objects; i++ {
		w := 20 + rng.Intn(opts.Width/4)
		h := 20 + rng.Intn(opts.Height/4)
		x0 := rng.Intn(maxInt(1, opts.Width-w))
		y0 := rng.Intn(maxInt(1, opts.Height-h))

		// Dark objects on bright backgrounds and vice versa.
		var v uint8
		if opts.Brightness >= 0.5 {
			v = uint8(20 + rng.Intn(60))
		} else {
			v = uint8(180 + rng.Intn(60))
		}
		c := color.RGBA{v, v, v, 255}
		for y := y0; y < y0+h; y++ {
			for x := x0; x < x0+w; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}

	// Noise last so it covers objects as well.
	if opts.Noise > 0 {
		amp := opts.Noise * 255
		for y := 0; y < opts.Height; y++ {
			for x := 0; x < opts.Width; x++ {
				px := img.RGBAAt(x, y)
				d := (rng.Float64()*2 - 1) * amp
				v := clamp(float64(px.R) + d)
				img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Baseline is a normally lit scene with a handful of objects.
func Baseline(seed int64) Options {
	return Options{Brightness: 0.5, Objects: 4, Seed: seed}
}

// Dark is a heavily underexposed scene, the brightness-drift workload.
func Dark(seed int64) Options {
	return Options{Brightness: 0.12, Objects: 4, Seed: seed}
}

// Noisy is a baseline scene drowned in noise, the confidence-drift workload.
func Noisy(seed int64) Options {
	return Options{Brightness: 0.5, Objects: 4, Noise: 0.45, Seed: seed}
}

// Dense is a scene crowded with objects, the density-drift workload.
func Dense(seed int64) Options {
	return Options{Brightness: 0.5, Objects: 24, Seed: seed}
}

// Variant derives a near-identical scene from a base seed: same layout
// class, slightly jittered brightness. Used by the load-similar scenario.
func Variant(seed int64) Options {
	rng := rand.New(rand.NewSource(seed))
	return Options{
		Brightness: 0.45 + rng.Float64()*0.1,
		Objects:    4,
		Seed:       seed,
	}
}

// Stats summarizes a decoded image for feature extraction.
type Stats struct {
	// MeanLuma is the mean pixel luminance, 0..255.
	MeanLuma float64
	// ContrastRatio is the share of pixels far from the mean luminance.
	// Scenes with more objects score higher.
	ContrastRatio float64
	// NoiseEnergy is the mean absolute luma difference between horizontal
	// neighbors, 0..255. Noisy scenes score higher.
	NoiseEnergy float64
}

// MeanLuminance decodes a JPEG and returns its mean pixel luminance in the
// 0..255 range. Used by tests and the stub backend to recover the
// brightness feature from an uploaded image.
func MeanLuminance(jpegBytes []byte) (float64, error) {
	stats, err := Analyze(jpegBytes)
	if err != nil {
		return 0, err
	}
	return stats.MeanLuma, nil
}

// Analyze decodes a JPEG and computes its luma statistics. The stub
// backend derives its fake detection features from these.
func Analyze(jpegBytes []byte) (Stats, error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to decode jpeg: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return Stats{}, fmt.Errorf("empty image")
	}

	lumas := make([]float64, 0, w*h)
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Rec. 601 luma, 16-bit channels scaled back to 8-bit.
			luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
			lumas = append(lumas, luma)
			sum += luma
		}
	}

	stats := Stats{MeanLuma: sum / float64(len(lumas))}

	var contrast int
	for _, l := range lumas {
		if diff := l - stats.MeanLuma; diff > 60 || diff < -60 {
			contrast++
		}
	}
	stats.ContrastRatio = float64(contrast) / float64(len(lumas))

	var noise float64
	var pairs int
	for y := 0; y < h; y++ {
		row := y * w
		for x := 1; x < w; x++ {
			d := lumas[row+x] - lumas[row+x-1]
			if d < 0 {
				d = -d
			}
			noise += d
			pairs++
		}
	}
	if pairs > 0 {
		stats.NoiseEnergy = noise / float64(pairs)
	}
	return stats, nil
}

func clamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
