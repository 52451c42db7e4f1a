package contactstore

import (
	"fmt"
	"net/http"
	"strings"
)

// New selects a store by kind: "vcard", "http" or "none" (in-memory dry run).
func New(kind, vcardDir, webhookURL string, client *http.Client) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "vcard":
		return NewVCardDirStore(vcardDir)
	case "http":
		return NewHTTPStore(client, webhookURL)
	case "", "none", "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown contact store %q", kind)
	}
}
