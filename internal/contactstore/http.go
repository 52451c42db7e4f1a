package contactstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/octobees/cardscan/internal/entity"
)

// HTTPStore posts contacts as JSON to a webhook that writes them into the
// user's address book.
type HTTPStore struct {
	client *http.Client
	url    string
}

// NewHTTPStore builds a webhook store, auto-configuring an ID token client when
// no client is supplied.
func NewHTTPStore(client *http.Client, url string) (*HTTPStore, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("contact webhook url must not be empty")
	}
	if client == nil {
		idc, err := idtoken.NewClient(context.Background(), url)
		if err != nil {
			client = &http.Client{Timeout: 10 * time.Second}
		} else {
			client = idc
		}
	}
	return &HTTPStore{client: client, url: url}, nil
}

func (s *HTTPStore) Save(ctx context.Context, payload entity.ContactPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ContactStoreError{Store: "http", Err: fmt.Errorf("failed to marshal contact: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return &ContactStoreError{Store: "http", Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if id := CycleIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &ContactStoreError{Store: "http", Err: fmt.Errorf("contact webhook request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &ContactStoreError{Store: "http", Err: fmt.Errorf("contact webhook error (%d): %s", resp.StatusCode, extractError(resp.Body))}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "webhook returned an error"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}

var _ Store = (*HTTPStore)(nil)
