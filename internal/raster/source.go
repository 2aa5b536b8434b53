package raster

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/MeKo-Tech/orthoblend/internal/ortho"
)

// Source loads and releases tile rasters and masks on demand. It enforces
// the scoped-acquisition discipline the data model's lifecycle section
// requires: callers Load immediately before use and let the returned image
// go out of scope immediately after, so at most one tile's raster is
// resident at a time during the feed phase.
type Source struct {
	codec Codec
}

// NewSource wraps a Codec for lazy tile loading. Pass nil to use
// NewDefaultCodec.
func NewSource(codec Codec) *Source {
	if codec == nil {
		codec = NewDefaultCodec()
	}
	return &Source{codec: codec}
}

// LoadRaster decodes a tile's raster image from disk.
func (s *Source) LoadRaster(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("empty raster path")
	}
	img, err := s.codec.Decode(path)
	if err != nil {
		return nil, ortho.Wrap(ortho.KindMissingInput, path, err)
	}
	return img, nil
}

// LoadValidityMask decodes a tile's validity mask, if one was authored, and
// converts it to 8-bit grayscale. Returns nil, nil when path is empty (the
// caller substitutes a zeroed mask, per spec.md §4.2).
func (s *Source) LoadValidityMask(path string, wantW, wantH int) (*image.Gray, error) {
	if path == "" {
		return nil, nil
	}
	img, err := s.codec.Decode(path)
	if err != nil {
		return nil, ortho.Wrap(ortho.KindMissingInput, path, err)
	}
	gray := ToGray(img)
	b := gray.Bounds()
	if b.Dx() != wantW || b.Dy() != wantH {
		return nil, ortho.Wrap(ortho.KindMaskShapeMismatch, path,
			fmt.Errorf("mask is %dx%d, raster is %dx%d", b.Dx(), b.Dy(), wantW, wantH))
	}
	return gray, nil
}

// WriteVoronoiMask persists a generated Voronoi mask next to its raster.
func (s *Source) WriteVoronoiMask(path string, mask *image.Gray) error {
	if err := s.codec.EncodeTIFF(path, mask); err != nil {
		return ortho.Wrap(ortho.KindMaskWriteFailure, path, err)
	}
	return nil
}

// WriteComposite writes the final blended canvas as PNG.
func (s *Source) WriteComposite(path string, img image.Image) error {
	if err := s.codec.EncodePNG(path, img); err != nil {
		return ortho.Wrap(ortho.KindIOWriteFailure, path, err)
	}
	return nil
}

// ToGray converts an arbitrary image.Image to *image.Gray using
// perceptual luminance, normalizing bounds to start at (0,0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return out
}

// Exists reports whether a file is readable at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
