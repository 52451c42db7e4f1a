package contact

import "strings"

// ValidationError reports required contact fields that were missing or blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + strings.Join(e.Missing, " and ")
}

// UserMessage is the notice shown when a card cannot become a contact.
func (e *ValidationError) UserMessage() string {
	switch strings.Join(e.Missing, ",") {
	case "name":
		return "A name is required to save a contact."
	case "phone":
		return "A phone number is required to save a contact."
	default:
		return "Both Name and Phone number are required to save a contact."
	}
}
