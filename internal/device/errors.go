package device

import "errors"

var (
	// ErrNoDevice is returned when an operation needs a device handle and got none.
	ErrNoDevice = errors.New("no device given")

	// ErrFadeCancelled is returned by Fade when it was cancelled with reject set,
	// including when a newer fade replaced it.
	ErrFadeCancelled = errors.New("fade got cancelled")

	// ErrEmptyColorSpec is returned when a ColorSpec has no variant set.
	ErrEmptyColorSpec = errors.New("empty color spec")

	// ErrInvalidBrightness is returned for brightness values outside 0.0-1.0.
	ErrInvalidBrightness = errors.New("brightness must be between 0 and 1")
)
