package contactstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/octobees/cardscan/internal/entity"
)

// Store saves a contact into a device or remote address book.
type Store interface {
	Save(ctx context.Context, payload entity.ContactPayload) error
}

// ContactStoreError reports a failed save. Persisted records are not rolled back.
type ContactStoreError struct {
	Store string
	Err   error
}

func (e *ContactStoreError) Error() string {
	return fmt.Sprintf("contact store %s: %v", e.Store, e.Err)
}

func (e *ContactStoreError) Unwrap() error {
	return e.Err
}

type cycleKey struct{}

// ContextWithCycleID tags outbound saves with the capture cycle they belong to.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

// CycleIDFromContext returns the cycle id set by ContextWithCycleID.
func CycleIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cycleKey{}).(string)
	return id
}

// MemoryStore collects saved contacts; used for dry runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	saved []entity.ContactPayload
	err   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailWith makes subsequent saves fail with err.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryStore) Save(ctx context.Context, payload entity.ContactPayload) error {
	if err := ctx.Err(); err != nil {
		return &ContactStoreError{Store: "memory", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return &ContactStoreError{Store: "memory", Err: s.err}
	}
	s.saved = append(s.saved, payload)
	return nil
}

// Saved returns the contacts stored so far.
func (s *MemoryStore) Saved() []entity.ContactPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.ContactPayload(nil), s.saved...)
}

var _ Store = (*MemoryStore)(nil)
