package ortho

import "fmt"

// Kind enumerates the pipeline's error taxonomy. Every failure the driver
// surfaces maps to exactly one of these; propagation policy is "abort
// immediately, recover never" for all of them.
type Kind int

const (
	// KindMetadataMalformed covers unreadable, short, or non-numeric
	// world-file or metadata-file contents.
	KindMetadataMalformed Kind = iota
	// KindUnsupportedGeometry covers nonzero rotation or invalid (zero)
	// scale in a world file.
	KindUnsupportedGeometry
	// KindResolutionMismatch covers a tile whose scale disagrees with
	// the first observed tile.
	KindResolutionMismatch
	// KindMissingInput covers a raster or mask path that exists but
	// cannot be read.
	KindMissingInput
	// KindEmptyMask covers a tile whose derived coverage mask has zero
	// nonzero pixels, or a blended composite with no covered pixel.
	KindEmptyMask
	// KindCanvasInvalid covers a zero/negative derived canvas size or
	// fewer than two tiles.
	KindCanvasInvalid
	// KindMaskShapeMismatch covers a loaded mask whose dimensions
	// disagree with its raster.
	KindMaskShapeMismatch
	// KindInvalidGeometry covers a negative overlap margin or an empty
	// tile list passed to the mask generator.
	KindInvalidGeometry
	// KindMaskWriteFailure covers a failed write of a generated
	// Voronoi mask.
	KindMaskWriteFailure
	// KindIncompatibleLevel covers a fed image whose computed support
	// region becomes empty.
	KindIncompatibleLevel
	// KindTypeMismatch covers blender inputs that violate the
	// declared pyramid/weight types.
	KindTypeMismatch
	// KindBlenderEmpty covers a blend() call where no tile was ever
	// successfully fed.
	KindBlenderEmpty
	// KindIOWriteFailure covers a failed mask or composite write.
	KindIOWriteFailure
)

func (k Kind) String() string {
	switch k {
	case KindMetadataMalformed:
		return "MetadataMalformed"
	case KindUnsupportedGeometry:
		return "UnsupportedGeometry"
	case KindResolutionMismatch:
		return "ResolutionMismatch"
	case KindMissingInput:
		return "MissingInput"
	case KindEmptyMask:
		return "EmptyMask"
	case KindCanvasInvalid:
		return "CanvasInvalid"
	case KindMaskShapeMismatch:
		return "MaskShapeMismatch"
	case KindInvalidGeometry:
		return "InvalidGeometry"
	case KindMaskWriteFailure:
		return "MaskWriteFailure"
	case KindIncompatibleLevel:
		return "IncompatibleLevel"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindBlenderEmpty:
		return "BlenderEmpty"
	case KindIOWriteFailure:
		return "IOWriteFailure"
	default:
		return "Unknown"
	}
}

// Error is the single error type the pipeline returns. Path is the
// offending file or tile name, when one applies.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an *Error of the given kind, optionally naming the
// offending path and wrapping an underlying error.
func Wrap(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}
