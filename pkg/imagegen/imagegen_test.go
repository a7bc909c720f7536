package imagegen

import (
	"bytes"
	"image/jpeg"
	"testing"
)

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(Baseline(7))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := Generate(Baseline(7))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !bytes.Equal(a, b) {
		t.Error("same seed produced different bytes")
	}
}

func TestGenerate_DifferentSeeds(t *testing.T) {
	a, err := Generate(Baseline(1))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := Generate(Baseline(2))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if bytes.Equal(a, b) {
		t.Error("different seeds produced identical bytes")
	}
}

func TestGenerate_ValidJPEG(t *testing.T) {
	data, err := Generate(Options{Width: 64, Height: 48, Seed: 3})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a decodable jpeg: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 48 {
		t.Errorf("decoded size = %dx%d, want 64x48", bounds.Dx(), bounds.Dy())
	}
}

func TestGenerate_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"brightness too high", Options{Brightness: 1.5}},
		{"brightness negative", Options{Brightness: -0.1}},
		{"noise too high", Options{Noise: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Generate(tt.opts); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestBrightnessOrdering(t *testing.T) {
	dark, err := Generate(Dark(11))
	if err != nil {
		t.Fatalf("Generate(Dark) error = %v", err)
	}
	base, err := Generate(Baseline(11))
	if err != nil {
		t.Fatalf("Generate(Baseline) error = %v", err)
	}

	darkLuma, err := MeanLuminance(dark)
	if err != nil {
		t.Fatalf("MeanLuminance(dark) error = %v", err)
	}
	baseLuma, err := MeanLuminance(base)
	if err != nil {
		t.Fatalf("MeanLuminance(base) error = %v", err)
	}

	if darkLuma >= baseLuma {
		t.Errorf("dark luma %v >= baseline luma %v", darkLuma, baseLuma)
	}
	// The dark preset should be dark in absolute terms too.
	if darkLuma > 80 {
		t.Errorf("dark luma = %v, want <= 80", darkLuma)
	}
}

func TestVariant_JittersBrightness(t *testing.T) {
	seen := make(map[float64]bool)
	for seed := int64(0); seed < 10; seed++ {
		opts := Variant(seed)
		if opts.Brightness < 0.45 || opts.Brightness > 0.55 {
			t.Errorf("Variant(%d).Brightness = %v, want within [0.45, 0.55]", seed, opts.Brightness)
		}
		seen[opts.Brightness] = true
	}
	if len(seen) < 2 {
		t.Error("variants did not vary brightness across seeds")
	}
}

func TestAnalyze_FeatureOrdering(t *testing.T) {
	base, err := Generate(Baseline(5))
	if err != nil {
		t.Fatalf("Generate(Baseline) error = %v", err)
	}
	noisy, err := Generate(Noisy(5))
	if err != nil {
		t.Fatalf("Generate(Noisy) error = %v", err)
	}
	dense, err := Generate(Dense(5))
	if err != nil {
		t.Fatalf("Generate(Dense) error = %v", err)
	}

	baseStats, err := Analyze(base)
	if err != nil {
		t.Fatalf("Analyze(base) error = %v", err)
	}
	noisyStats, err := Analyze(noisy)
	if err != nil {
		t.Fatalf("Analyze(noisy) error = %v", err)
	}
	denseStats, err := Analyze(dense)
	if err != nil {
		t.Fatalf("Analyze(dense) error = %v", err)
	}

	if noisyStats.NoiseEnergy <= baseStats.NoiseEnergy {
		t.Errorf("noisy NoiseEnergy %v <= baseline %v", noisyStats.NoiseEnergy, baseStats.NoiseEnergy)
	}
	if denseStats.ContrastRatio <= baseStats.ContrastRatio {
		t.Errorf("dense ContrastRatio %v <= baseline %v", denseStats.ContrastRatio, baseStats.ContrastRatio)
	}
}

func TestMeanLuminance_InvalidData(t *testing.T) {
	if _, err := MeanLuminance([]byte("not a jpeg")); err == nil {
		t.Error("expected error for invalid jpeg, got nil")
	}
}
