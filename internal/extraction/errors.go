package extraction

import (
	"errors"
	"fmt"
)

// ErrUnsupportedImage is returned when the upload is empty or not an image.
var ErrUnsupportedImage = errors.New("unsupported image")

var errEmptyResponse = errors.New("provider returned no content")

// ProviderUnavailableError reports a network, timeout, circuit or non-2xx failure
// talking to the extraction provider. No record is produced.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("extraction provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedExtractionError reports provider text that is not a JSON object.
// It is terminal: callers must not retry or persist.
type MalformedExtractionError struct {
	Reason string
	Raw    string
}

func (e *MalformedExtractionError) Error() string {
	return "malformed extraction: " + e.Reason
}
