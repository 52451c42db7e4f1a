package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/contactstore"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/repository"
)

// ErrSuperseded is returned to a cycle replaced by a newer capture before its
// extraction settled. Nothing from that cycle is stored or saved.
var ErrSuperseded = errors.New("capture superseded by a newer cycle")

// BusyError rejects a capture while another cycle is storing its record or
// saving its contact.
type BusyError struct {
	InFlight string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("pipeline busy: contact save for cycle %s in flight", e.InFlight)
}

// Notice turns a cycle error into the message shown to the user.
func Notice(err error) string {
	var (
		busy        *BusyError
		unavailable *extraction.ProviderUnavailableError
		malformed   *extraction.MalformedExtractionError
		invalid     *contact.ValidationError
		persistence *repository.PersistenceError
		store       *contactstore.ContactStoreError
	)
	switch {
	case err == nil:
		return "Contact saved."
	case errors.As(err, &busy):
		return "A contact is still being saved. Please wait a moment."
	case errors.Is(err, ErrSuperseded):
		return "This capture was replaced by a newer one."
	case errors.Is(err, extraction.ErrUnsupportedImage):
		return "The file is not a supported image."
	case errors.As(err, &unavailable):
		return "The card reader service is unavailable. Please try again."
	case errors.As(err, &malformed):
		return "Could not read the card. Please retake the photo."
	case errors.As(err, &invalid):
		return invalid.UserMessage()
	case errors.As(err, &store):
		return "The contact could not be saved."
	case errors.As(err, &persistence):
		return "The record could not be stored."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The capture was cancelled."
	default:
		return "Something went wrong. Please try again."
	}
}

// outcomeLabel is the metrics label for a finished cycle.
func outcomeLabel(err error) string {
	var (
		busy        *BusyError
		unavailable *extraction.ProviderUnavailableError
		malformed   *extraction.MalformedExtractionError
		invalid     *contact.ValidationError
		store       *contactstore.ContactStoreError
	)
	switch {
	case err == nil:
		return "saved"
	case errors.As(err, &busy):
		return "busy"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, extraction.ErrUnsupportedImage):
		return "invalid_image"
	case errors.As(err, &unavailable):
		return "unavailable"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &invalid):
		return "validation"
	case errors.As(err, &store):
		return "contact_store"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
