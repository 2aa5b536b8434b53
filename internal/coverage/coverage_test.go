package coverage

import (
	"image"
	"image/color"
	"testing"
)

func solidGray(w, h int, v uint8) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

func TestBuildSharpCopiesLuminance(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	src.SetGray(1, 1, color.Gray{Y: 128})

	out := BuildSharp(src)
	if out.GrayAt(1, 1).Y != 128 {
		t.Fatalf("expected copied value 128, got %d", out.GrayAt(1, 1).Y)
	}
	// Must be an independent copy.
	src.SetGray(1, 1, color.Gray{Y: 0})
	if out.GrayAt(1, 1).Y != 128 {
		t.Fatal("BuildSharp output aliases the source mask")
	}
}

// TestFeatherRadiusBelowOneIsBinary covers the boundary behaviour: feather
// radius <= 1 produces a pure binary weight mask.
func TestFeatherRadiusBelowOneIsBinary(t *testing.T) {
	src := solidGray(20, 20, 0) // all-valid (black=valid)
	ctx := NewDistanceContext(32)

	out := BuildFeathered(src, 1, ctx)
	for _, v := range out.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("feather_radius<=1 produced non-binary value %d", v)
		}
	}
}

func TestBuildFeatheredRampsInward(t *testing.T) {
	src := solidGray(40, 40, 0)
	ctx := NewDistanceContext(64)

	out := BuildFeathered(src, 10, ctx)
	center := out.GrayAt(20, 20).Y
	edge := out.GrayAt(1, 1).Y
	if center <= edge {
		t.Fatalf("expected center (%d) to feather in more than near-border pixel (%d)", center, edge)
	}
}

func TestCountNonZero(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 3, 3))
	if CountNonZero(m) != 0 {
		t.Fatal("expected 0 for all-zero mask")
	}
	m.SetGray(0, 0, color.Gray{Y: 1})
	if CountNonZero(m) != 1 {
		t.Fatal("expected 1 nonzero pixel")
	}
}

func TestBuildFromRasterMarksMagentaInvalid(t *testing.T) {
	bounds := image.Rect(0, 0, 16, 16)
	img := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if x < 4 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, B: 255, A: 255}) // magenta
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
			}
		}
	}

	ctx := NewDistanceContext(32)
	out := BuildFromRaster(img, 2, ctx)

	if v := out.GrayAt(1, 8).Y; v != 0 {
		t.Fatalf("magenta pixel should have zero coverage, got %d", v)
	}
	// Column 15 is the tile's outer border, which the feathering frame
	// always forces to 0, so probe an interior pixel instead.
	if v := out.GrayAt(12, 8).Y; v == 0 {
		t.Fatalf("far-from-magenta pixel should have nonzero coverage, got %d", v)
	}
}
