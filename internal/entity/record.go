package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Phone label keys accepted inside a structured phone object.
const (
	PhoneKeyMobile = "mobile"
	PhoneKeyOffice = "office"
	PhoneKeyWork   = "work"
	PhoneKeyFax    = "fax"
)

// ExtractedRecord is the normalized result of a single business card extraction.
// Empty strings mean the provider did not return the field.
type ExtractedRecord struct {
	Name        string     `json:"name"`
	CompanyName string     `json:"companyName,omitempty"`
	Phone       PhoneValue `json:"phone"`
	Email       string     `json:"email,omitempty"`
	Address     string     `json:"address,omitempty"`
	Website     string     `json:"website,omitempty"`
	JobTitle    string     `json:"jobTitle,omitempty"`
	ExtraFields Fields     `json:"extraFields,omitempty"`
}

// StoredRecord is an ExtractedRecord persisted with a serial number and capture timestamp.
type StoredRecord struct {
	SerialNo int64 `json:"serialNo"`
	ExtractedRecord
	OtherInfo string `json:"otherInfo,omitempty"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

// PhoneValue holds either a single number or a set of labeled numbers.
type PhoneValue struct {
	Single string
	Mobile string
	Office string
	Work   string
	Fax    string
}

// SinglePhone wraps a plain number.
func SinglePhone(number string) PhoneValue {
	return PhoneValue{Single: number}
}

// IsLabeled reports whether the value came from a structured phone object.
func (p PhoneValue) IsLabeled() bool {
	return p.Single == "" && !p.IsEmpty()
}

// IsEmpty is true when no variant carries a non-blank number.
func (p PhoneValue) IsEmpty() bool {
	for _, v := range []string{p.Single, p.Mobile, p.Office, p.Work, p.Fax} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// String renders the phone for flat storage and display.
func (p PhoneValue) String() string {
	if p.Single != "" {
		return p.Single
	}
	parts := make([]string, 0, 4)
	for _, lv := range p.labeled() {
		parts = append(parts, lv[0]+": "+lv[1])
	}
	return strings.Join(parts, ", ")
}

func (p PhoneValue) labeled() [][2]string {
	out := make([][2]string, 0, 4)
	for _, lv := range [][2]string{
		{PhoneKeyMobile, p.Mobile},
		{PhoneKeyOffice, p.Office},
		{PhoneKeyWork, p.Work},
		{PhoneKeyFax, p.Fax},
	} {
		if strings.TrimSpace(lv[1]) != "" {
			out = append(out, lv)
		}
	}
	return out
}

// MarshalJSON encodes a single number as a JSON string and labeled numbers as an object.
func (p PhoneValue) MarshalJSON() ([]byte, error) {
	if !p.IsLabeled() {
		return json.Marshal(p.Single)
	}
	obj := struct {
		Mobile string `json:"mobile,omitempty"`
		Office string `json:"office,omitempty"`
		Work   string `json:"work,omitempty"`
		Fax    string `json:"fax,omitempty"`
	}{p.Mobile, p.Office, p.Work, p.Fax}
	return json.Marshal(obj)
}

// UnmarshalJSON accepts the shapes produced by MarshalJSON.
func (p *PhoneValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = PhoneValue{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PhoneValue{Single: s}
		return nil
	case '{':
		var obj struct {
			Mobile string `json:"mobile"`
			Office string `json:"office"`
			Work   string `json:"work"`
			Fax    string `json:"fax"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*p = PhoneValue{Mobile: obj.Mobile, Office: obj.Office, Work: obj.Work, Fax: obj.Fax}
		return nil
	default:
		return fmt.Errorf("phone: unsupported json value %s", data)
	}
}

// Field is one provider-returned key outside the reserved set.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Fields keeps extra fields in the order the provider returned them.
type Fields []Field

// Get returns the value stored under key.
func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// Lines renders the fields as newline-joined "key: value" lines.
func (f Fields) Lines() string {
	if len(f) == 0 {
		return ""
	}
	lines := make([]string, 0, len(f))
	for _, field := range f {
		lines = append(lines, field.Key+": "+field.Value)
	}
	return strings.Join(lines, "\n")
}
