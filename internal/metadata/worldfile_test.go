package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/orthoblend/internal/ortho"
)

func writeWorldFile(t *testing.T, dir, name string, values [6]float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, v := range values {
		content += fmt.Sprintf("%g\n", v)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseWorldFileHappyPath(t *testing.T) {
	dir := t.TempDir()
	path := writeWorldFile(t, dir, "a.tfw", [6]float64{0.1, 0, 0, -0.1, 500000, 6000000})

	wf, err := parseWorldFile(path)
	if err != nil {
		t.Fatalf("parseWorldFile: %v", err)
	}
	if wf.ScaleX != 0.1 || wf.ScaleY != -0.1 {
		t.Fatalf("got %+v", wf)
	}
}

func TestParseWorldFileRejectsShortFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.tfw")
	if err := os.WriteFile(path, []byte("0.1\n0\n0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := parseWorldFile(path)
	var oe *ortho.Error
	if err == nil {
		t.Fatal("expected error for short world file")
	}
	if !asOrthoError(err, &oe) || oe.Kind != ortho.KindMetadataMalformed {
		t.Fatalf("expected MetadataMalformed, got %v", err)
	}
}

// TestRotationRejected covers spec scenario S6: a world-file with a tiny
// nonzero rotation fails with UnsupportedGeometry via an exact-zero check.
func TestRotationRejected(t *testing.T) {
	wf := ortho.WorldFile{ScaleX: 0.1, ScaleY: -0.1, RotationY: 1e-6}
	var fsx, fsy float64
	err := checkGeometry("x.tfw", wf, &fsx, &fsy)

	var oe *ortho.Error
	if !asOrthoError(err, &oe) || oe.Kind != ortho.KindUnsupportedGeometry {
		t.Fatalf("expected UnsupportedGeometry, got %v", err)
	}
}

func TestResolutionMismatchDetected(t *testing.T) {
	var fsx, fsy float64
	first := ortho.WorldFile{ScaleX: 0.1, ScaleY: -0.1}
	if err := checkGeometry("a.tfw", first, &fsx, &fsy); err != nil {
		t.Fatalf("first tile: %v", err)
	}

	second := ortho.WorldFile{ScaleX: 0.2, ScaleY: -0.2}
	err := checkGeometry("b.tfw", second, &fsx, &fsy)
	var oe *ortho.Error
	if !asOrthoError(err, &oe) || oe.Kind != ortho.KindResolutionMismatch {
		t.Fatalf("expected ResolutionMismatch, got %v", err)
	}
}

func asOrthoError(err error, target **ortho.Error) bool {
	oe, ok := err.(*ortho.Error)
	if !ok {
		return false
	}
	*target = oe
	return true
}
