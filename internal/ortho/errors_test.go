package ortho

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := Wrap(KindMissingInput, "/tmp/tile.tif", inner)

	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is did not find wrapped error")
	}
	if err.Kind != KindMissingInput {
		t.Fatalf("Kind = %v, want KindMissingInput", err.Kind)
	}
}

func TestErrorMessageIncludesPath(t *testing.T) {
	err := Wrap(KindCanvasInvalid, "", nil)
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}

	withPath := Wrap(KindMaskShapeMismatch, "/data/a.tfw", nil)
	if !strings.Contains(withPath.Error(), "/data/a.tfw") {
		t.Fatal("expected path to appear in message")
	}
}

func TestKindString(t *testing.T) {
	kinds := []Kind{
		KindMetadataMalformed, KindUnsupportedGeometry, KindResolutionMismatch,
		KindMissingInput, KindEmptyMask, KindCanvasInvalid, KindMaskShapeMismatch,
		KindInvalidGeometry, KindMaskWriteFailure, KindIncompatibleLevel,
		KindTypeMismatch, KindBlenderEmpty, KindIOWriteFailure,
	}
	for _, k := range kinds {
		if k.String() == "" {
			t.Errorf("Kind(%d).String() is empty", k)
		}
	}
	if Kind(999).String() != "Unknown" {
		t.Errorf("unknown kind should stringify to Unknown")
	}
}
