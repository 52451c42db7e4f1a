package session

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrNoCapture is returned before the first successful cycle.
var ErrNoCapture = errors.New("no capture recorded")

// LastCapture remembers the most recent successful capture across restarts.
type LastCapture struct {
	CycleID     string    `json:"cycleId"`
	ImageDigest string    `json:"imageDigest"`
	MIMEType    string    `json:"mimeType"`
	DisplayName string    `json:"displayName"`
	SerialNo    int64     `json:"serialNo,omitempty"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// Store persists the LastCapture value.
type Store interface {
	Save(ctx context.Context, capture LastCapture) error
	Load(ctx context.Context) (*LastCapture, error)
}

// Fingerprint is the hex BLAKE2b-256 digest of the image bytes.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MemoryStore keeps the value in process.
type MemoryStore struct {
	mu      sync.RWMutex
	capture *LastCapture
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, capture LastCapture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture = &capture
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (*LastCapture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.capture == nil {
		return nil, ErrNoCapture
	}
	out := *s.capture
	return &out, nil
}

var _ Store = (*MemoryStore)(nil)
