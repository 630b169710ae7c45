package embedding

import (
	"context"
	"errors"
)

// ErrNoFace is returned when the extractor finds no usable face in the image.
// Callers translate it into the "unprocessable" result code; it is not an
// infrastructure failure.
var ErrNoFace = errors.New("no face detected")

// Extraction is a successful extractor result.
type Extraction struct {
	Vector Vector
	// Quality is the extractor's confidence that the image contains a
	// usable face, in [0, 1].
	Quality float64
}

// Extractor turns image bytes into a face embedding. The model behind it is
// an external capability; this core only consumes its output.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (Extraction, error)
}
