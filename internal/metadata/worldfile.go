// Package metadata implements the Metadata Resolver (MR): it parses world
// files, resolves each tile's raster and validity-mask paths, computes
// canvas offsets, and derives the canvas size.
package metadata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/orthoblend/internal/ortho"
)

// parseWorldFile reads exactly six whitespace/newline-separated decimal
// numbers from path. Fails with KindMetadataMalformed on fewer than six
// tokens, a non-numeric token, or a missing file.
func parseWorldFile(path string) (ortho.WorldFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return ortho.WorldFile{}, ortho.Wrap(ortho.KindMetadataMalformed, path, err)
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return ortho.WorldFile{}, ortho.Wrap(ortho.KindMetadataMalformed, path,
				fmt.Errorf("token %q is not a number: %w", tok, err))
		}
		values = append(values, v)
		if len(values) == 6 {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return ortho.WorldFile{}, ortho.Wrap(ortho.KindMetadataMalformed, path, err)
	}
	if len(values) < 6 {
		return ortho.WorldFile{}, ortho.Wrap(ortho.KindMetadataMalformed, path,
			fmt.Errorf("expected 6 numbers, found %d", len(values)))
	}

	return ortho.WorldFile{
		ScaleX:     values[0],
		RotationY:  values[1],
		RotationX:  values[2],
		ScaleY:     values[3],
		TranslateX: values[4],
		TranslateY: values[5],
	}, nil
}

// checkGeometry enforces the world-file preconditions: rotations must be
// exactly zero, and scales must be nonzero and (after the first tile)
// exactly match the first observed tile's scale.
func checkGeometry(path string, wf ortho.WorldFile, firstScaleX, firstScaleY *float64) error {
	if wf.RotationX != 0 || wf.RotationY != 0 {
		return ortho.Wrap(ortho.KindUnsupportedGeometry, path,
			fmt.Errorf("nonzero rotation (rotX=%g, rotY=%g)", wf.RotationX, wf.RotationY))
	}
	if wf.ScaleX == 0 || wf.ScaleY == 0 {
		return ortho.Wrap(ortho.KindUnsupportedGeometry, path, fmt.Errorf("zero scale"))
	}

	ax, ay := abs(wf.ScaleX), abs(wf.ScaleY)
	if *firstScaleX == 0 && *firstScaleY == 0 {
		*firstScaleX, *firstScaleY = ax, ay
		return nil
	}
	if ax != *firstScaleX || ay != *firstScaleY {
		return ortho.Wrap(ortho.KindResolutionMismatch, path,
			fmt.Errorf("scale (%g,%g) differs from first tile's (%g,%g)", ax, ay, *firstScaleX, *firstScaleY))
	}
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
