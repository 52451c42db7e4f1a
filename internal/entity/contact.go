package entity

// ContactPayload is the shape handed to a contact store. Build it with contact.Builder.
type ContactPayload struct {
	DisplayName     string          `json:"displayName"`
	FirstName       string          `json:"firstName"`
	LastName        string          `json:"lastName"`
	Organization    string          `json:"organization,omitempty"`
	JobTitle        string          `json:"jobTitle,omitempty"`
	PhoneNumbers    []PhoneNumber   `json:"phoneNumbers"`
	Emails          []Email         `json:"emails,omitempty"`
	PostalAddresses []PostalAddress `json:"postalAddresses,omitempty"`
	URLs            []URL           `json:"urls,omitempty"`
	Note            string          `json:"note,omitempty"`
}

// PhoneNumber is a labeled phone entry.
type PhoneNumber struct {
	Label  string `json:"label"`
	Number string `json:"number"`
}

// Email is a labeled email entry.
type Email struct {
	Label   string `json:"label"`
	Address string `json:"email"`
}

// PostalAddress carries either structured parts or a free-form FormattedAddress.
type PostalAddress struct {
	Label            string `json:"label"`
	FormattedAddress string `json:"formattedAddress,omitempty"`
	Street           string `json:"street,omitempty"`
	City             string `json:"city,omitempty"`
	Region           string `json:"region,omitempty"`
	PostalCode       string `json:"postalCode,omitempty"`
	Country          string `json:"country,omitempty"`
}

// URL is a labeled web address.
type URL struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}
