package percept

import "errors"

// Error taxonomy surfaced by Detect and Load.  All failures are captured at
// the orchestrator boundary and returned as values the caller can test with
// errors.Is, never as panics.
var (
	// ErrInvalidInput indicates the input frame was absent or unusable
	ErrInvalidInput = errors.New("invalid input")

	// ErrImageConversion indicates pre processing produced no usable buffer
	ErrImageConversion = errors.New("image conversion failed")

	// ErrModelLoad indicates model weights were unavailable or the declared
	// signature did not match expectations
	ErrModelLoad = errors.New("model load failed")

	// ErrInference indicates the runtime invocation of a loaded model failed
	ErrInference = errors.New("inference failed")

	// ErrBackendUnavailable indicates the requested compute backend cannot
	// be activated
	ErrBackendUnavailable = errors.New("backend unavailable")
)
