package contact

import (
	"strings"

	"github.com/octobees/cardscan/internal/entity"
)

// Builder assembles a ContactPayload one optional component at a time.
// Each Add method ignores blank input.
type Builder struct {
	payload entity.ContactPayload
	notes   []string
}

// NewBuilder starts a payload with the required name parts.
func NewBuilder(displayName, firstName, lastName string) *Builder {
	return &Builder{payload: entity.ContactPayload{
		DisplayName:  displayName,
		FirstName:    firstName,
		LastName:     lastName,
		PhoneNumbers: []entity.PhoneNumber{},
	}}
}

// AddPhone appends a labelled number.
func (b *Builder) AddPhone(label, number string) *Builder {
	if strings.TrimSpace(number) != "" {
		b.payload.PhoneNumbers = append(b.payload.PhoneNumbers, entity.PhoneNumber{Label: label, Number: number})
	}
	return b
}

// AddEmail appends a labelled address.
func (b *Builder) AddEmail(label, address string) *Builder {
	if strings.TrimSpace(address) != "" {
		b.payload.Emails = append(b.payload.Emails, entity.Email{Label: label, Address: address})
	}
	return b
}

// SetOrganization sets the company name.
func (b *Builder) SetOrganization(org string) *Builder {
	b.payload.Organization = strings.TrimSpace(org)
	return b
}

// SetJobTitle sets the role printed on the card.
func (b *Builder) SetJobTitle(title string) *Builder {
	b.payload.JobTitle = strings.TrimSpace(title)
	return b
}

// AddFormattedAddress stores free-form address text without structured parts.
func (b *Builder) AddFormattedAddress(label, text string) *Builder {
	if text = strings.TrimSpace(text); text != "" {
		b.payload.PostalAddresses = append(b.payload.PostalAddresses, entity.PostalAddress{Label: label, FormattedAddress: text})
	}
	return b
}

// AddURL appends a labelled link.
func (b *Builder) AddURL(label, u string) *Builder {
	if strings.TrimSpace(u) != "" {
		b.payload.URLs = append(b.payload.URLs, entity.URL{Label: label, URL: u})
	}
	return b
}

// AddNoteLine appends a "key: value" line to the note.
func (b *Builder) AddNoteLine(key, value string) *Builder {
	if strings.TrimSpace(value) != "" {
		b.notes = append(b.notes, key+": "+value)
	}
	return b
}

// Build returns a payload that shares no slices with the builder.
func (b *Builder) Build() entity.ContactPayload {
	out := b.payload
	out.PhoneNumbers = append([]entity.PhoneNumber{}, b.payload.PhoneNumbers...)
	if len(b.payload.Emails) > 0 {
		out.Emails = append([]entity.Email(nil), b.payload.Emails...)
	}
	if len(b.payload.PostalAddresses) > 0 {
		out.PostalAddresses = append([]entity.PostalAddress(nil), b.payload.PostalAddresses...)
	}
	if len(b.payload.URLs) > 0 {
		out.URLs = append([]entity.URL(nil), b.payload.URLs...)
	}
	out.Note = strings.Join(b.notes, "\n")
	return out
}
