package contactstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/google/uuid"

	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/entity"
)

const paramLabel = "LABEL"

var phoneTypes = map[string][]string{
	contact.LabelMobile:  {vcard.TypeCell},
	contact.LabelOffice:  {vcard.TypeWork, vcard.TypeVoice},
	contact.LabelWork:    {vcard.TypeWork},
	contact.LabelWorkFax: {vcard.TypeWork, vcard.TypeFax},
}

// ToCard renders the payload as a vCard 4.0 card.
func ToCard(payload entity.ContactPayload) vcard.Card {
	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, payload.DisplayName)
	card.SetName(&vcard.Name{
		Field:      &vcard.Field{},
		GivenName:  payload.FirstName,
		FamilyName: payload.LastName,
	})
	if payload.Organization != "" {
		card.SetValue(vcard.FieldOrganization, payload.Organization)
	}
	if payload.JobTitle != "" {
		card.SetValue(vcard.FieldTitle, payload.JobTitle)
	}
	for _, phone := range payload.PhoneNumbers {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  phone.Number,
			Params: typeParams(phoneTypes[phone.Label], phone.Label),
		})
	}
	for _, email := range payload.Emails {
		card.Add(vcard.FieldEmail, &vcard.Field{
			Value:  email.Address,
			Params: typeParams(nil, email.Label),
		})
	}
	for _, addr := range payload.PostalAddresses {
		street := addr.Street
		if street == "" && addr.City == "" && addr.PostalCode == "" {
			street = addr.FormattedAddress
		}
		params := typeParams(nil, addr.Label)
		if addr.FormattedAddress != "" {
			params.Set(paramLabel, addr.FormattedAddress)
		}
		card.AddAddress(&vcard.Address{
			Field:         &vcard.Field{Params: params},
			StreetAddress: street,
			Locality:      addr.City,
			Region:        addr.Region,
			PostalCode:    addr.PostalCode,
			Country:       addr.Country,
		})
	}
	for _, u := range payload.URLs {
		card.Add(vcard.FieldURL, &vcard.Field{
			Value:  u.URL,
			Params: typeParams([]string{vcard.TypeWork}, ""),
		})
	}
	if payload.Note != "" {
		card.SetValue(vcard.FieldNote, payload.Note)
	}
	vcard.ToV4(card)
	return card
}

func typeParams(types []string, label string) vcard.Params {
	params := make(vcard.Params)
	if len(types) == 0 && label != "" {
		types = []string{label}
	}
	for _, t := range types {
		params.Add(vcard.ParamType, t)
	}
	return params
}

// EncodeVCard writes payload as a single vCard 4.0 document.
func EncodeVCard(w io.Writer, payload entity.ContactPayload) error {
	if err := vcard.NewEncoder(w).Encode(ToCard(payload)); err != nil {
		return fmt.Errorf("encode vcard: %w", err)
	}
	return nil
}

// VCardDirStore writes one .vcf file per contact into a directory that a
// device sync tool or CardDAV importer watches.
type VCardDirStore struct {
	dir   string
	newID func() string
}

// NewVCardDirStore creates dir when missing.
func NewVCardDirStore(dir string) (*VCardDirStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("vcard directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vcard directory: %w", err)
	}
	return &VCardDirStore{dir: dir, newID: uuid.NewString}, nil
}

func (s *VCardDirStore) Save(ctx context.Context, payload entity.ContactPayload) error {
	if err := ctx.Err(); err != nil {
		return &ContactStoreError{Store: "vcard", Err: err}
	}

	id := s.newID()
	card := ToCard(payload)
	card.SetValue(vcard.FieldUID, "urn:uuid:"+id)

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return &ContactStoreError{Store: "vcard", Err: fmt.Errorf("encode vcard: %w", err)}
	}

	name := fileSlug(payload.DisplayName) + "-" + id[:8] + ".vcf"
	tmp, err := os.CreateTemp(s.dir, ".contact-*.tmp")
	if err != nil {
		return &ContactStoreError{Store: "vcard", Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return &ContactStoreError{Store: "vcard", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &ContactStoreError{Store: "vcard", Err: err}
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return &ContactStoreError{Store: "vcard", Err: err}
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func fileSlug(name string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "contact"
	}
	return slug
}

var _ Store = (*VCardDirStore)(nil)
