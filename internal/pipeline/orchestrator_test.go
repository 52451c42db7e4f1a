package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/contactstore"
	"github.com/octobees/cardscan/internal/entity"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/repository"
	"github.com/octobees/cardscan/internal/session"
)

var cardImage = extraction.Image{Data: []byte("\xff\xd8\xff\xe0card"), MIMEType: "image/jpeg"}

func validRecord() entity.ExtractedRecord {
	return entity.ExtractedRecord{
		Name:        "Jane Doe",
		CompanyName: "Acme",
		Phone:       entity.PhoneValue{Mobile: "555-1111", Fax: "555-2222"},
		ExtraFields: entity.Fields{{Key: "gst", Value: "29AB"}},
	}
}

type stubExtractor struct {
	mu      sync.Mutex
	calls   int
	record  entity.ExtractedRecord
	err     error
	started chan struct{}
	// holdFirst blocks the first call until its context is cancelled.
	holdFirst bool
}

func (s *stubExtractor) Extract(ctx context.Context, img extraction.Image) (*extraction.Extraction, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.holdFirst && call == 1 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &extraction.Extraction{Record: s.record, RawText: `{"name":"Jane Doe"}`}, nil
}

func (s *stubExtractor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type blockingStore struct {
	started chan struct{}
	release chan struct{}
	saved   atomic.Int32
}

func (s *blockingStore) Save(ctx context.Context, payload entity.ContactPayload) error {
	s.started <- struct{}{}
	<-s.release
	s.saved.Add(1)
	return nil
}

type panickingStore struct{}

func (panickingStore) Save(context.Context, entity.ContactPayload) error {
	panic("address book crashed")
}

type failingRecords struct{}

func (failingRecords) Append(context.Context, entity.ExtractedRecord) (*entity.StoredRecord, error) {
	return nil, &repository.PersistenceError{Op: "append", Err: errors.New("connection refused")}
}
func (failingRecords) ListAll(context.Context) ([]entity.StoredRecord, error) { return nil, nil }
func (failingRecords) FindBySerial(context.Context, int64) (*entity.StoredRecord, error) {
	return nil, repository.ErrRecordNotFound
}

// blockingRecords holds Append until released, then writes through.
type blockingRecords struct {
	*repository.MemoryRecordsRepository
	started chan struct{}
	release chan struct{}
}

func (b *blockingRecords) Append(ctx context.Context, rec entity.ExtractedRecord) (*entity.StoredRecord, error) {
	b.started <- struct{}{}
	<-b.release
	return b.MemoryRecordsRepository.Append(context.Background(), rec)
}

type countingObserver struct {
	mu       sync.Mutex
	cycles   map[string]int
	persists map[bool]int
}

func (c *countingObserver) ObserveCycle(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycles == nil {
		c.cycles = map[string]int{}
	}
	c.cycles[outcome]++
}

func (c *countingObserver) ObservePersistence(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.persists == nil {
		c.persists = map[bool]int{}
	}
	c.persists[ok]++
}

func newRecords() *repository.MemoryRecordsRepository {
	return repository.NewMemoryRecordsRepository(repository.NewStamper(time.UTC))
}

func listAll(t *testing.T, repo repository.RecordsRepository) []entity.StoredRecord {
	t.Helper()
	all, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	return all
}

func TestRun_Success(t *testing.T) {
	records := newRecords()
	contacts := contactstore.NewMemoryStore()
	sessions := session.NewMemoryStore()
	observer := &countingObserver{}
	var transitions []State
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	orch := New(&stubExtractor{record: validRecord()}, contact.NewMapper("US"), contacts,
		WithRecords(records),
		WithSessions(sessions),
		WithObserver(observer),
		WithClock(func() time.Time { return now }),
		WithTransitionHook(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)

	out, err := orch.Run(context.Background(), cardImage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Saved || out.Notice != "Contact saved." || out.CycleID == "" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Stored == nil || out.Stored.SerialNo != 1 {
		t.Fatalf("expected stored record with serial 1, got %+v", out.Stored)
	}

	saved := contacts.Saved()
	if len(saved) != 1 || saved[0].FirstName != "Jane" || saved[0].LastName != "Doe" {
		t.Fatalf("unexpected saved contacts %+v", saved)
	}
	if len(saved[0].PhoneNumbers) != 2 || saved[0].PhoneNumbers[0].Label != "mobile" || saved[0].PhoneNumbers[1].Label != "work fax" {
		t.Fatalf("unexpected phone entries %+v", saved[0].PhoneNumbers)
	}

	last, err := sessions.Load(context.Background())
	if err != nil {
		t.Fatalf("expected last capture: %v", err)
	}
	if last.CycleID != out.CycleID || last.SerialNo != 1 || last.ImageDigest != session.Fingerprint(cardImage.Data) || !last.CapturedAt.Equal(now) {
		t.Fatalf("unexpected last capture %+v", last)
	}

	want := []State{StateCapturing, StateExtracting, StatePersisting, StateSavingContact, StateIdle}
	if len(transitions) != len(want) {
		t.Fatalf("unexpected transitions %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("unexpected transitions %v", transitions)
		}
	}
	if orch.State() != StateIdle {
		t.Fatalf("expected idle, got %s", orch.State())
	}
	if observer.cycles["saved"] != 1 || observer.persists[true] != 1 {
		t.Fatalf("unexpected observations %+v %+v", observer.cycles, observer.persists)
	}
}

func TestRun_BusyGuardRejectsSecondCapture(t *testing.T) {
	extractor := &stubExtractor{record: validRecord()}
	store := &blockingStore{started: make(chan struct{}, 1), release: make(chan struct{})}
	orch := New(extractor, contact.NewMapper("US"), store)

	type result struct {
		out *Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := orch.Run(context.Background(), cardImage)
		first <- result{out, err}
	}()

	select {
	case <-store.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first cycle never reached the contact save")
	}

	second := extraction.Image{Data: []byte("\xff\xd8\xff\xe0second"), MIMEType: "image/jpeg"}
	out, err := orch.Run(context.Background(), second)
	var busy *BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected BusyError, got %v", err)
	}
	if out == nil || out.Notice == "" || out.Saved {
		t.Fatalf("expected busy notice, got %+v", out)
	}
	if extractor.Calls() != 1 {
		t.Fatalf("second image must never reach the provider, got %d calls", extractor.Calls())
	}
	if orch.State() != StateSavingContact {
		t.Fatalf("busy rejection must not change state, got %s", orch.State())
	}

	close(store.release)
	res := <-first
	if res.err != nil || !res.out.Saved {
		t.Fatalf("first cycle should complete, got %+v %v", res.out, res.err)
	}
	if orch.State() != StateIdle {
		t.Fatalf("expected idle after save, got %s", orch.State())
	}
	if _, err := orch.Run(context.Background(), second); err != nil {
		t.Fatalf("capture after the save finished should be accepted: %v", err)
	}
}

func TestRun_SupersededCycleIsDiscarded(t *testing.T) {
	extractor := &stubExtractor{record: validRecord(), holdFirst: true, started: make(chan struct{}, 2)}
	records := newRecords()
	contacts := contactstore.NewMemoryStore()
	orch := New(extractor, contact.NewMapper("US"), contacts, WithRecords(records))

	type result struct {
		out *Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := orch.Run(context.Background(), cardImage)
		first <- result{out, err}
	}()
	<-extractor.started

	out, err := orch.Run(context.Background(), cardImage)
	if err != nil || !out.Saved {
		t.Fatalf("newer cycle should succeed, got %+v %v", out, err)
	}

	res := <-first
	if !errors.Is(res.err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", res.err)
	}
	if res.out.Saved || res.out.Stored != nil {
		t.Fatalf("stale cycle must not persist or save, got %+v", res.out)
	}
	if got := len(listAll(t, records)); got != 1 {
		t.Fatalf("expected exactly one stored record, got %d", got)
	}
	if got := len(contacts.Saved()); got != 1 {
		t.Fatalf("expected exactly one saved contact, got %d", got)
	}
	if orch.State() != StateIdle {
		t.Fatalf("expected idle, got %s", orch.State())
	}
}

func TestRun_CaptureDuringPersistenceIsRejected(t *testing.T) {
	extractor := &stubExtractor{record: validRecord()}
	records := &blockingRecords{
		MemoryRecordsRepository: newRecords(),
		started:                 make(chan struct{}, 1),
		release:                 make(chan struct{}),
	}
	contacts := contactstore.NewMemoryStore()
	orch := New(extractor, contact.NewMapper("US"), contacts, WithRecords(records))

	type result struct {
		out *Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := orch.Run(context.Background(), cardImage)
		first <- result{out, err}
	}()

	select {
	case <-records.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first cycle never reached persistence")
	}

	out, err := orch.Run(context.Background(), cardImage)
	var busy *BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected BusyError while a record is being stored, got %v", err)
	}
	if out.Saved || extractor.Calls() != 1 {
		t.Fatalf("second capture must not run, got %+v after %d calls", out, extractor.Calls())
	}
	if orch.State() != StatePersisting {
		t.Fatalf("expected persisting, got %s", orch.State())
	}

	close(records.release)
	res := <-first
	if res.err != nil || !res.out.Saved || res.out.Stored == nil || res.out.Stored.SerialNo != 1 {
		t.Fatalf("first cycle should store and save, got %+v %v", res.out, res.err)
	}
	if got := len(listAll(t, records)); got != 1 {
		t.Fatalf("expected exactly one stored record, got %d", got)
	}
	if got := len(contacts.Saved()); got != 1 {
		t.Fatalf("expected exactly one saved contact, got %d", got)
	}
	if orch.State() != StateIdle {
		t.Fatalf("expected idle, got %s", orch.State())
	}
}

func TestRun_PersistenceFailureDoesNotBlockSave(t *testing.T) {
	contacts := contactstore.NewMemoryStore()
	observer := &countingObserver{}
	orch := New(&stubExtractor{record: validRecord()}, contact.NewMapper("US"), contacts,
		WithRecords(failingRecords{}), WithObserver(observer))

	out, err := orch.Run(context.Background(), cardImage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Saved || out.PersistenceError == "" || out.Record == nil || out.Record.Name != "Jane Doe" {
		t.Fatalf("expected saved contact with persistence error, got %+v", out)
	}
	if out.Notice != "Contact saved, but the record could not be stored." {
		t.Fatalf("unexpected notice %q", out.Notice)
	}
	if len(contacts.Saved()) != 1 || observer.persists[false] != 1 {
		t.Fatalf("expected save and failed persistence observation")
	}
}

func TestRun_FailuresReturnToIdle(t *testing.T) {
	cases := map[string]struct {
		extractor *stubExtractor
		check     func(t *testing.T, err error)
	}{
		"malformed extraction": {
			extractor: &stubExtractor{err: &extraction.MalformedExtractionError{Reason: "not json", Raw: "Sorry, I cannot read this image"}},
			check: func(t *testing.T, err error) {
				var malformed *extraction.MalformedExtractionError
				if !errors.As(err, &malformed) {
					t.Fatalf("expected MalformedExtractionError, got %v", err)
				}
			},
		},
		"provider unavailable": {
			extractor: &stubExtractor{err: &extraction.ProviderUnavailableError{Provider: "openai", Err: errors.New("503")}},
			check: func(t *testing.T, err error) {
				var unavailable *extraction.ProviderUnavailableError
				if !errors.As(err, &unavailable) {
					t.Fatalf("expected ProviderUnavailableError, got %v", err)
				}
			},
		},
		"missing phone": {
			extractor: &stubExtractor{record: entity.ExtractedRecord{Name: "Jane Doe"}},
			check: func(t *testing.T, err error) {
				var invalid *contact.ValidationError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			records := newRecords()
			contacts := contactstore.NewMemoryStore()
			var sawError bool
			orch := New(tc.extractor, contact.NewMapper("US"), contacts,
				WithRecords(records),
				WithTransitionHook(func(_ string, _, to State) {
					if to == StateError {
						sawError = true
					}
				}),
			)

			out, err := orch.Run(context.Background(), cardImage)
			tc.check(t, err)
			if out == nil || out.Notice == "" || out.Saved {
				t.Fatalf("expected failure notice, got %+v", out)
			}
			if !sawError || orch.State() != StateIdle {
				t.Fatalf("expected error then idle, got %s (error seen %v)", orch.State(), sawError)
			}
			if got := len(listAll(t, records)); got != 0 {
				t.Fatalf("no record may be stored, got %d", got)
			}
			if got := len(contacts.Saved()); got != 0 {
				t.Fatalf("no contact may be saved, got %d", got)
			}
		})
	}
}

func TestRun_ContactStoreFailureKeepsRecord(t *testing.T) {
	records := newRecords()
	contacts := contactstore.NewMemoryStore()
	contacts.FailWith(errors.New("permission denied"))
	orch := New(&stubExtractor{record: validRecord()}, contact.NewMapper("US"), contacts, WithRecords(records))

	out, err := orch.Run(context.Background(), cardImage)
	var storeErr *contactstore.ContactStoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected ContactStoreError, got %v", err)
	}
	if out.Stored == nil || len(listAll(t, records)) != 1 {
		t.Fatalf("persistence must not be rolled back")
	}
	if out.Notice != "The contact could not be saved." {
		t.Fatalf("unexpected notice %q", out.Notice)
	}
}

func TestRun_RecoversFromAdapterPanic(t *testing.T) {
	orch := New(&stubExtractor{record: validRecord()}, contact.NewMapper("US"), panickingStore{})

	out, err := orch.Run(context.Background(), cardImage)
	if err == nil || out == nil || out.Notice == "" {
		t.Fatalf("expected recovered error with notice, got %+v %v", out, err)
	}
	if orch.State() != StateIdle {
		t.Fatalf("expected idle after panic, got %s", orch.State())
	}

	_, err = orch.Run(context.Background(), cardImage)
	var busy *BusyError
	if errors.As(err, &busy) {
		t.Fatalf("saving flag must be released after a panic")
	}
}

func TestNotice(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"nil":        {nil, "Contact saved."},
		"busy":       {&BusyError{InFlight: "x"}, "A contact is still being saved. Please wait a moment."},
		"superseded": {ErrSuperseded, "This capture was replaced by a newer one."},
		"image":      {extraction.ErrUnsupportedImage, "The file is not a supported image."},
		"validation": {&contact.ValidationError{Missing: []string{"phone"}}, "A phone number is required to save a contact."},
		"canceled":   {context.Canceled, "The capture was cancelled."},
		"unknown":    {errors.New("boom"), "Something went wrong. Please try again."},
	}
	for name, tc := range cases {
		if got := Notice(tc.err); got != tc.want {
			t.Fatalf("%s: got %q want %q", name, got, tc.want)
		}
	}
}
