package metadata

import (
	"testing"

	"github.com/MeKo-Tech/orthoblend/internal/ortho"
)

// TestDeriveCanvasFallbackBoundingBox covers spec scenario S4: two tiles at
// (5,5,4,4) and (9,5,4,4) are shifted so the tight bounding box starts at
// (0,0), and the canvas size is the box's extent.
func TestDeriveCanvasFallbackBoundingBox(t *testing.T) {
	a := &ortho.Tile{Name: "A", X: 5, Y: 5, Width: 4, Height: 4}
	b := &ortho.Tile{Name: "B", X: 9, Y: 5, Width: 4, Height: 4}
	tiles := []*ortho.Tile{a, b}

	canvas := deriveCanvasFallback(tiles)

	if canvas.Width != 8 || canvas.Height != 4 {
		t.Fatalf("canvas = %+v, want 8x4", canvas)
	}
	if a.X != 0 || a.Y != 0 {
		t.Fatalf("tile A shifted to (%d,%d), want (0,0)", a.X, a.Y)
	}
	if b.X != 4 || b.Y != 0 {
		t.Fatalf("tile B shifted to (%d,%d), want (4,0)", b.X, b.Y)
	}
}

func TestDeriveCanvasFallbackSingleTileAtOrigin(t *testing.T) {
	a := &ortho.Tile{Name: "A", X: 3, Y: 7, Width: 10, Height: 6}
	canvas := deriveCanvasFallback([]*ortho.Tile{a})

	if canvas.Width != 10 || canvas.Height != 6 {
		t.Fatalf("canvas = %+v, want 10x6", canvas)
	}
	if a.X != 0 || a.Y != 0 {
		t.Fatalf("tile shifted to (%d,%d), want (0,0)", a.X, a.Y)
	}
}
