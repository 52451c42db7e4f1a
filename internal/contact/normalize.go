package contact

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	idnaProfile  = idna.Lookup
)

const defaultPhoneRegion = "IN"

// normalizePhone returns the E.164 form when the number is valid for region,
// otherwise the trimmed input. Card numbers are never dropped.
func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return raw
	}
	if !phonenumbers.IsValidNumber(number) {
		return raw
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// normalizeEmail lowercases and validates an address. ok is false when the
// value is not a usable email.
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return "", false
	}
	domain, err := idnaProfile.ToASCII(parts[1])
	if err != nil || domain == "" {
		return "", false
	}
	email = parts[0] + "@" + domain
	if !emailPattern.MatchString(email) {
		return "", false
	}
	return email, true
}

// normalizeWebsite adds a scheme and punycodes the host. Unparseable input is
// returned trimmed.
func normalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return raw
	}
	host, err := idnaProfile.ToASCII(strings.ToLower(u.Hostname()))
	if err != nil || host == "" {
		return raw
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	return u.String()
}
