package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/octobees/cardscan/internal/entity"
)

// ParseResult is the tagged outcome of turning provider text into a record.
type ParseResult struct {
	Record entity.ExtractedRecord
	OK     bool
	Reason string
}

type member struct {
	key   string
	value json.RawMessage
}

// ParseRecord parses provider text into an ExtractedRecord. It tolerates markdown
// fences and prose around a single JSON object; anything else yields OK=false.
func ParseRecord(text string) ParseResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ParseResult{Reason: "empty response"}
	}

	var lastErr error
	for _, candidate := range candidates(trimmed) {
		members, err := objectMembers([]byte(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return ParseResult{Record: buildRecord(members), OK: true}
	}
	if lastErr == nil {
		lastErr = errors.New("no json object found")
	}
	return ParseResult{Reason: lastErr.Error()}
}

func candidates(text string) []string {
	out := []string{text}
	if unfenced := stripFences(text); unfenced != text {
		out = append(out, unfenced)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if span := text[start : end+1]; span != text {
			out = append(out, span)
		}
	}
	return out
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// objectMembers decodes a JSON object keeping member order.
func objectMembers(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("json value is not an object")
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("invalid json: expected object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid json value for %q: %w", key, err)
		}
		members = append(members, member{key: key, value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after json object")
	}
	return members, nil
}

func buildRecord(members []member) entity.ExtractedRecord {
	var rec entity.ExtractedRecord
	for _, m := range members {
		switch m.key {
		case "name":
			rec.Name = flatText(m.value)
		case "company_name", "companyName", "businessName", "business_name", "company":
			rec.CompanyName = flatText(m.value)
		case "phone", "phone_number", "phoneNumber":
			phone, extra := parsePhone(m.value)
			rec.Phone = phone
			rec.ExtraFields = append(rec.ExtraFields, extra...)
		case "email":
			rec.Email = flatText(m.value)
		case "address":
			rec.Address = flatText(m.value)
		case "website", "url":
			rec.Website = flatText(m.value)
		case "job_title", "jobTitle", "title", "designation":
			rec.JobTitle = flatText(m.value)
		default:
			if value := extraText(m.value); value != "" {
				rec.ExtraFields = append(rec.ExtraFields, entity.Field{Key: m.key, Value: value})
			}
		}
	}
	return rec
}

func parsePhone(raw json.RawMessage) (entity.PhoneValue, entity.Fields) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return entity.SinglePhone(flatText(raw)), nil
	}

	members, err := objectMembers(raw)
	if err != nil {
		return entity.PhoneValue{}, nil
	}
	var (
		phone entity.PhoneValue
		extra entity.Fields
	)
	for _, m := range members {
		value := flatText(m.value)
		switch strings.ToLower(strings.TrimSpace(m.key)) {
		case entity.PhoneKeyMobile:
			phone.Mobile = value
		case entity.PhoneKeyOffice:
			phone.Office = value
		case entity.PhoneKeyWork:
			phone.Work = value
		case entity.PhoneKeyFax:
			phone.Fax = value
		default:
			if value != "" {
				extra = append(extra, entity.Field{Key: "phone_" + m.key, Value: value})
			}
		}
	}
	return phone, extra
}

// flatText renders any JSON value as plain text: scalars as-is, containers as
// their non-empty leaf values joined by ", ".
func flatText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case 'n':
		return ""
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return ""
		}
		return joinTexts(items)
	case '{':
		members, err := objectMembers(raw)
		if err != nil {
			return ""
		}
		items := make([]json.RawMessage, 0, len(members))
		for _, m := range members {
			items = append(items, m.value)
		}
		return joinTexts(items)
	default:
		return string(raw)
	}
}

func joinTexts(items []json.RawMessage) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if text := flatText(item); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", ")
}

// extraText keeps objects as compact JSON so nested structure survives in the note.
func extraText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return ""
		}
		if buf.String() == "{}" {
			return ""
		}
		return buf.String()
	}
	return flatText(raw)
}
