package blend

import (
	"image"
	"image/color"
	"testing"
)

func solidNRGBA(w, h int, r, g, b uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

func solidGray(w, h int, v uint8) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

func within(a, b, tol int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// TestSingleTileIdempotence covers spec invariant 5: feeding one tile with
// W=B=255 everywhere reproduces the input exactly (up to int16 rounding) in
// its central region.
func TestSingleTileIdempotence(t *testing.T) {
	b := New(Config{NumBands: 4, WeightType: Float32})
	if err := b.Prepare(image.Rect(0, 0, 32, 32)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	img := solidNRGBA(32, 32, 100, 150, 200)
	w := solidGray(32, 32, 255)
	mask := solidGray(32, 32, 255)

	if err := b.Feed(img, w, mask, image.Pt(0, 0)); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	out, outMask, err := b.Blend()
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}

	for y := 8; y < 24; y++ {
		for x := 8; x < 24; x++ {
			r, g, bl := out.At(x, y)
			if !within(int(r), 100, 2) || !within(int(g), 150, 2) || !within(int(bl), 200, 2) {
				t.Fatalf("pixel (%d,%d) = (%d,%d,%d), want ~(100,150,200)", x, y, r, g, bl)
			}
			if outMask.GrayAt(x, y).Y != 255 {
				t.Fatalf("pixel (%d,%d) out_mask = %d, want 255", x, y, outMask.GrayAt(x, y).Y)
			}
		}
	}
}

// TestZeroBandsDirectBlend covers the boundary behaviour: num_bands=0
// degenerates to direct weighted blending (no pyramid levels beyond the base).
func TestZeroBandsDirectBlend(t *testing.T) {
	b := New(Config{NumBands: 0, WeightType: Float32})
	if err := b.Prepare(image.Rect(0, 0, 8, 8)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	img := solidNRGBA(8, 8, 50, 60, 70)
	w := solidGray(8, 8, 255)
	mask := solidGray(8, 8, 255)

	if err := b.Feed(img, w, mask, image.Pt(0, 0)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	out, _, err := b.Blend()
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}

	r, g, bl := out.At(4, 4)
	if !within(int(r), 50, 1) || !within(int(g), 60, 1) || !within(int(bl), 70, 1) {
		t.Fatalf("got (%d,%d,%d), want ~(50,60,70)", r, g, bl)
	}
}

// TestCoverageMatchesWeightMask covers invariant 1: out_mask(p)=255 iff some
// tile's weight mask covers p.
func TestCoverageMatchesWeightMask(t *testing.T) {
	b := New(Config{NumBands: 2, WeightType: Float32})
	if err := b.Prepare(image.Rect(0, 0, 16, 16)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	img := solidNRGBA(16, 16, 10, 20, 30)
	w := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			w.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	mask := solidGray(16, 16, 255)

	if err := b.Feed(img, w, mask, image.Pt(0, 0)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	_, outMask, err := b.Blend()
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}

	if outMask.GrayAt(2, 2).Y != 255 {
		t.Fatal("expected coverage where weight mask is 255")
	}
	if outMask.GrayAt(14, 2).Y != 0 {
		t.Fatal("expected no coverage where weight mask is 0")
	}
}

// TestCoverageAtInt16MinimumWeightBoundary pins down the documented
// tension between Int16's +1 zero-denominator guard and invariant 1: a
// pixel whose only weight is the thinnest possible nonzero byte (1, which
// convertFixed also quantizes to 1) accumulates Wsum==1, which fails
// coverageThreshold's strict ">1.0" test and reports as uncovered even
// though a tile actually touched it.
func TestCoverageAtInt16MinimumWeightBoundary(t *testing.T) {
	b := New(Config{NumBands: 1, WeightType: Int16})
	if err := b.Prepare(image.Rect(0, 0, 8, 8)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	img := solidNRGBA(8, 8, 5, 5, 5)
	w := solidGray(8, 8, 1)
	mask := solidGray(8, 8, 255)

	if err := b.Feed(img, w, mask, image.Pt(0, 0)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	_, outMask, err := b.Blend()
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}

	if got := outMask.GrayAt(4, 4).Y; got != 0 {
		t.Fatalf("minimum-weight pixel out_mask = %d, want 0 (documented boundary behaviour)", got)
	}
}

func TestBlendBeforeFeedIsBlenderEmpty(t *testing.T) {
	b := New(Config{NumBands: 2})
	if err := b.Prepare(image.Rect(0, 0, 8, 8)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, _, err := b.Blend(); err == nil {
		t.Fatal("expected BlenderEmpty error")
	}
}

func TestFeedMismatchedMaskSizeFails(t *testing.T) {
	b := New(Config{NumBands: 2})
	if err := b.Prepare(image.Rect(0, 0, 8, 8)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	img := solidNRGBA(8, 8, 1, 2, 3)
	w := solidGray(4, 4, 255)
	mask := solidGray(8, 8, 255)
	if err := b.Feed(img, w, mask, image.Pt(0, 0)); err == nil {
		t.Fatal("expected TypeMismatch error for mismatched weight mask size")
	}
}

func TestInt16WeightTypeRuns(t *testing.T) {
	b := New(Config{NumBands: 3, WeightType: Int16})
	if err := b.Prepare(image.Rect(0, 0, 16, 16)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	img := solidNRGBA(16, 16, 30, 40, 50)
	w := solidGray(16, 16, 255)
	mask := solidGray(16, 16, 255)
	if err := b.Feed(img, w, mask, image.Pt(0, 0)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	out, _, err := b.Blend()
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	r, g, bl := out.At(8, 8)
	if !within(int(r), 30, 3) || !within(int(g), 40, 3) || !within(int(bl), 50, 3) {
		t.Fatalf("int16 path got (%d,%d,%d), want ~(30,40,50)", r, g, bl)
	}
}
