package contact

import (
	"strings"
	"unicode"

	"github.com/octobees/cardscan/internal/entity"
)

// Labels used on contact entries.
const (
	LabelMobile   = "mobile"
	LabelOffice   = "office"
	LabelWork     = "work"
	LabelWorkFax  = "work fax"
	LabelHomepage = "homepage"
)

// Mapper converts extracted records into contact payloads.
type Mapper struct {
	region string
}

// NewMapper builds a mapper that parses phone numbers relative to region
// (ISO 3166 alpha-2, default IN).
func NewMapper(region string) *Mapper {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = defaultPhoneRegion
	}
	return &Mapper{region: region}
}

// Validate checks the fields a contact cannot be saved without.
func Validate(rec entity.ExtractedRecord) error {
	var missing []string
	if strings.TrimSpace(rec.Name) == "" {
		missing = append(missing, "name")
	}
	if rec.Phone.IsEmpty() {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// ToContactPayload maps rec into the contact-store schema. Unknown content never
// fails the mapping; it lands in the note.
func (m *Mapper) ToContactPayload(rec entity.ExtractedRecord) (entity.ContactPayload, error) {
	if err := Validate(rec); err != nil {
		return entity.ContactPayload{}, err
	}

	name := strings.TrimSpace(rec.Name)
	first, last := SplitName(name)
	b := NewBuilder(name, first, last)

	for _, p := range phoneEntries(rec.Phone) {
		b.AddPhone(p.Label, normalizePhone(p.Number, m.region))
	}

	invalidEmail := ""
	if email, ok := normalizeEmail(rec.Email); ok {
		b.AddEmail(LabelWork, email)
	} else {
		invalidEmail = strings.TrimSpace(rec.Email)
	}

	b.SetOrganization(rec.CompanyName).
		SetJobTitle(rec.JobTitle).
		AddFormattedAddress(LabelWork, rec.Address).
		AddURL(LabelHomepage, normalizeWebsite(rec.Website))

	for _, f := range rec.ExtraFields {
		b.AddNoteLine(f.Key, f.Value)
	}
	b.AddNoteLine("email", invalidEmail)

	return b.Build(), nil
}

// SplitName returns the first whitespace-delimited token and the remainder.
// last is "" for single-word names.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	idx := strings.IndexFunc(name, unicode.IsSpace)
	if idx < 0 {
		return name, ""
	}
	return name[:idx], strings.TrimSpace(name[idx:])
}

// phoneEntries lists populated variants in the fixed label order.
func phoneEntries(p entity.PhoneValue) []entity.PhoneNumber {
	if single := strings.TrimSpace(p.Single); single != "" {
		return []entity.PhoneNumber{{Label: LabelWork, Number: single}}
	}
	out := make([]entity.PhoneNumber, 0, 4)
	for _, e := range []entity.PhoneNumber{
		{Label: LabelMobile, Number: p.Mobile},
		{Label: LabelOffice, Number: p.Office},
		{Label: LabelWork, Number: p.Work},
		{Label: LabelWorkFax, Number: p.Fax},
	} {
		if strings.TrimSpace(e.Number) != "" {
			out = append(out, entity.PhoneNumber{Label: e.Label, Number: strings.TrimSpace(e.Number)})
		}
	}
	return out
}
