package extraction

import (
	"testing"

	"github.com/octobees/cardscan/internal/entity"
)

func TestParseRecord(t *testing.T) {
	tests := map[string]struct {
		input  string
		ok     bool
		verify func(t *testing.T, rec entity.ExtractedRecord)
	}{
		"plain object": {
			input: `{"name":"Jane Doe","company_name":"Acme","phone":"555-0100","email":"jane@acme.com","address":"1 Main St","website":"acme.com"}`,
			ok:    true,
			verify: func(t *testing.T, rec entity.ExtractedRecord) {
				if rec.Name != "Jane Doe" || rec.CompanyName != "Acme" || rec.Phone.Single != "555-0100" {
					t.Fatalf("unexpected record: %+v", rec)
				}
				if rec.Website != "acme.com" || rec.Address != "1 Main St" || len(rec.ExtraFields) != 0 {
					t.Fatalf("unexpected record: %+v", rec)
				}
			},
		},
		"fenced with prose": {
			input: "Here you go:\n```json\n{\"name\": \"Raj\", \"phone\": {\"mobile\": \"555-1111\", \"fax\": \"555-2222\"}}\n```",
			ok:    true,
			verify: func(t *testing.T, rec entity.ExtractedRecord) {
				if rec.Name != "Raj" || rec.Phone.Mobile != "555-1111" || rec.Phone.Fax != "555-2222" {
					t.Fatalf("unexpected record: %+v", rec)
				}
			},
		},
		"extra fields keep provider order": {
			input: `{"zeta":"last letter","name":"A","additional_info":"Open on Sundays","count":3,"tags":["x","y"],"empty":"","nothing":null,"meta":{"b":1,"a":2}}`,
			ok:    true,
			verify: func(t *testing.T, rec entity.ExtractedRecord) {
				want := entity.Fields{
					{Key: "zeta", Value: "last letter"},
					{Key: "additional_info", Value: "Open on Sundays"},
					{Key: "count", Value: "3"},
					{Key: "tags", Value: "x, y"},
					{Key: "meta", Value: `{"b":1,"a":2}`},
				}
				if len(rec.ExtraFields) != len(want) {
					t.Fatalf("expected %d extra fields, got %+v", len(want), rec.ExtraFields)
				}
				for i := range want {
					if rec.ExtraFields[i] != want[i] {
						t.Fatalf("field %d: expected %+v, got %+v", i, want[i], rec.ExtraFields[i])
					}
				}
			},
		},
		"aliases and unknown phone labels": {
			input: `{"name":"B","businessName":"Beta","jobTitle":"CTO","phone":{"work":"1","home":"2"}}`,
			ok:    true,
			verify: func(t *testing.T, rec entity.ExtractedRecord) {
				if rec.CompanyName != "Beta" || rec.JobTitle != "CTO" || rec.Phone.Work != "1" {
					t.Fatalf("unexpected record: %+v", rec)
				}
				if v, ok := rec.ExtraFields.Get("phone_home"); !ok || v != "2" {
					t.Fatalf("expected phone_home extra field, got %+v", rec.ExtraFields)
				}
			},
		},
		"numeric and array phone": {
			input: `{"name":"C","phone":["555-1","555-2"]}`,
			ok:    true,
			verify: func(t *testing.T, rec entity.ExtractedRecord) {
				if rec.Phone.Single != "555-1, 555-2" {
					t.Fatalf("unexpected phone: %+v", rec.Phone)
				}
			},
		},
		"refusal text":  {input: "Sorry, I cannot read this image"},
		"empty":         {input: "   "},
		"array payload": {input: `[{"name":"x"}]`},
		"broken json":   {input: `{"name": "x", `},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res := ParseRecord(tt.input)
			if res.OK != tt.ok {
				t.Fatalf("expected ok=%v, got %+v", tt.ok, res)
			}
			if !res.OK && res.Reason == "" {
				t.Fatalf("expected failure reason")
			}
			if tt.verify != nil {
				tt.verify(t, res.Record)
			}
		})
	}
}
