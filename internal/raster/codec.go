// Package raster is the narrow external-collaborator boundary for image
// codecs and file I/O. spec.md §1 names these out of scope for the core
// compositor; this package is the concrete default the core depends on
// only through the Codec interface, so a caller embedding the core in a
// different host (e.g. with a GeoTIFF/COG reader) can swap it out freely.
package raster

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/hhrutter/tiff"
)

// Codec decodes and encodes the raster formats the pipeline touches.
// Decode dispatches on content, not extension, the same way image/png and
// image/jpeg behave when registered with the image package.
type Codec interface {
	Decode(path string) (image.Image, error)
	EncodeTIFF(path string, img image.Image) error
	EncodePNG(path string, img image.Image) error
}

// DefaultCodec decodes TIFF rasters with github.com/hhrutter/tiff (the
// stdlib has no TIFF decoder) and PNG with the standard library, and
// encodes both the same way.
type DefaultCodec struct{}

// NewDefaultCodec returns the codec the pipeline uses unless a caller
// supplies its own.
func NewDefaultCodec() *DefaultCodec { return &DefaultCodec{} }

func (DefaultCodec) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err == nil {
		return img, nil
	}

	// Fall back to PNG: validity masks and debug dumps are sometimes
	// authored or re-read as PNG rather than TIFF.
	if _, seekErr := f.Seek(0, 0); seekErr != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	pngImg, pngErr := png.Decode(f)
	if pngErr != nil {
		return nil, fmt.Errorf("decoding %s: neither TIFF (%v) nor PNG (%v)", path, err, pngErr)
	}
	return pngImg, nil
}

func (DefaultCodec) EncodeTIFF(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := tiff.Encode(f, img, nil); err != nil {
		return fmt.Errorf("encoding TIFF %s: %w", path, err)
	}
	return nil
}

func (DefaultCodec) EncodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(f, img); err != nil {
		return fmt.Errorf("encoding PNG %s: %w", path, err)
	}
	return nil
}
