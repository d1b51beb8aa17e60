package assets

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks rejected input. Nothing has been written when it is
	// returned.
	ErrValidation = errors.New("validation failed")

	// ErrTooLarge is the validation failure for input over MaxUploadSize.
	ErrTooLarge = fmt.Errorf("%w: file too large", ErrValidation)

	ErrUnauthenticated = errors.New("no authenticated owner")
	ErrNotFound        = errors.New("asset not found")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

var errNoSynthesizer = errors.New("no marker synthesizer configured")
