// Package ortho holds the shared data model for the orthomosaic blending
// pipeline: tiles, the canvas they are placed on, and the error taxonomy
// every stage reports through.
package ortho

import "github.com/paulmach/orb"

// Tile is the central entity threaded through every pipeline stage. Offsets
// are mutated exactly once, during metadata-resolver finalization, and
// VoronoiMaskPath is set once when the tile's Voronoi mask is written; every
// other field is immutable after construction.
type Tile struct {
	Name string

	ImagePath         string
	ValidityMaskPath  string // empty when no validity mask was authored
	VoronoiMaskPath   string // filled in when the generated mask is written, empty until then

	X, Y          int // top-left offset in canvas pixel coordinates
	Width, Height int // tile dimensions in pixels
}

// Bounds returns the tile's canvas-space rectangle as (minX, minY, maxX, maxY).
func (t *Tile) Bounds() (minX, minY, maxX, maxY int) {
	return t.X, t.Y, t.X + t.Width, t.Y + t.Height
}

// Center returns the tile's canvas-space center, the same point the Voronoi
// mask generator computes from the tile's fields as its ownership seed.
func (t *Tile) Center() orb.Point {
	return orb.Point{
		float64(t.X) + float64(t.Width)/2,
		float64(t.Y) + float64(t.Height)/2,
	}
}

// Contains reports whether the canvas pixel (x, y) falls within this tile's
// placed bounds.
func (t *Tile) Contains(x, y int) bool {
	return x >= t.X && x < t.X+t.Width && y >= t.Y && y < t.Y+t.Height
}

// Local converts a canvas-space coordinate to this tile's local (u, v).
// Callers must have already checked Contains.
func (t *Tile) Local(x, y int) (u, v int) {
	return x - t.X, y - t.Y
}

// Validate checks the per-tile invariants from the data model: positive
// dimensions. The shared-scale invariant is checked by the metadata
// resolver as world files are read; whether a tile lies within the canvas
// is not checked.
func (t *Tile) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return Wrap(KindCanvasInvalid, t.Name, nil)
	}
	return nil
}

// Canvas is the derived, integer pixel grid spanning all tiles. Origin is
// the top-left; the coordinate system is pixels, Y-down.
type Canvas struct {
	Width, Height int
}

// Valid reports whether the canvas has a usable size.
func (c Canvas) Valid() bool {
	return c.Width > 0 && c.Height > 0
}

// WorldFile is the six-double affine record read from a .tfw-style
// sidecar: scaleX, rotationY, rotationX, scaleY, translateX, translateY.
type WorldFile struct {
	ScaleX     float64
	RotationY  float64
	RotationX  float64
	ScaleY     float64
	TranslateX float64
	TranslateY float64
}
