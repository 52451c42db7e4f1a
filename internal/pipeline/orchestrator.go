package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/octobees/cardscan/internal/contactstore"
	"github.com/octobees/cardscan/internal/entity"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/repository"
	"github.com/octobees/cardscan/internal/session"
)

// Mapper converts an extracted record into a contact, validating it first.
type Mapper interface {
	ToContactPayload(rec entity.ExtractedRecord) (entity.ContactPayload, error)
}

// CycleObserver receives cycle level metrics.
type CycleObserver interface {
	ObserveCycle(outcome string)
	ObservePersistence(ok bool)
}

// Outcome is the user visible result of one cycle. Extraction results stay
// available even when a later step fails.
type Outcome struct {
	CycleID          string                  `json:"cycleId,omitempty"`
	Record           *entity.ExtractedRecord `json:"record,omitempty"`
	RawText          string                  `json:"rawText,omitempty"`
	Stored           *entity.StoredRecord    `json:"stored,omitempty"`
	Contact          *entity.ContactPayload  `json:"contact,omitempty"`
	Saved            bool                    `json:"saved"`
	PersistenceError string                  `json:"persistenceError,omitempty"`
	Notice           string                  `json:"notice"`
}

// Orchestrator sequences capture, extraction, persistence and contact save.
type Orchestrator struct {
	extractor extraction.Extractor
	mapper    Mapper
	contacts  contactstore.Store
	records   repository.RecordsRepository
	sessions  session.Store
	observer  CycleObserver
	hooks     []TransitionHook
	log       zerolog.Logger
	now       func() time.Time

	mu          sync.Mutex
	state       State
	current     string
	cancel      context.CancelFunc
	saving      bool
	savingCycle string
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithRecords enables best-effort persistence of each extracted record.
func WithRecords(repo repository.RecordsRepository) Option {
	return func(o *Orchestrator) { o.records = repo }
}

// WithSessions records the last successful capture.
func WithSessions(store session.Store) Option {
	return func(o *Orchestrator) { o.sessions = store }
}

// WithObserver reports cycle metrics.
func WithObserver(obs CycleObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithTransitionHook subscribes to state transitions.
func WithTransitionHook(hook TransitionHook) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, hook) }
}

// WithLogger sets the orchestrator logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithClock overrides time.Now for LastCapture timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an orchestrator around the required adapters.
func New(extractor extraction.Extractor, mapper Mapper, contacts contactstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor: extractor,
		mapper:    mapper,
		contacts:  contacts,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State reports the state of the current cycle.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run executes one capture cycle. The returned Outcome is never nil and always
// carries a Notice; err classifies failures for callers that branch on them.
func (o *Orchestrator) Run(ctx context.Context, img extraction.Image) (out *Outcome, err error) {
	cycleCtx, id, err := o.begin(ctx)
	if err != nil {
		o.observeCycle(err)
		return &Outcome{Notice: Notice(err)}, err
	}

	out = &Outcome{CycleID: id}
	log := o.log.With().Str("cycle_id", id).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("capture cycle panicked")
			err = fmt.Errorf("capture cycle panicked: %v", r)
		}
		if err != nil && !errors.Is(err, ErrSuperseded) {
			o.transition(id, StateError)
		}
		out.Notice = o.notice(out, err)
		o.finish(id)
		o.observeCycle(err)
	}()

	o.transition(id, StateExtracting)
	ext, err := o.extractor.Extract(cycleCtx, img)
	if err != nil {
		if o.stale(id) {
			log.Info().Msg("discarding superseded extraction")
			return out, ErrSuperseded
		}
		log.Warn().Err(err).Msg("extraction failed")
		return out, err
	}
	// Once extraction settles the cycle owns the stores until it finishes.
	if !o.settle(id) {
		log.Info().Msg("discarding superseded extraction")
		return out, ErrSuperseded
	}
	defer o.release(id)

	rec := ext.Record
	out.Record = &rec
	out.RawText = ext.RawText

	payload, err := o.mapper.ToContactPayload(rec)
	if err != nil {
		log.Info().Err(err).Msg("extracted record is not a valid contact")
		return out, err
	}
	out.Contact = &payload

	if o.records != nil {
		o.transition(id, StatePersisting)
		stored, perr := o.records.Append(cycleCtx, rec)
		o.observePersistence(perr == nil)
		if perr != nil {
			log.Warn().Err(perr).Msg("record persistence failed; continuing with contact save")
			out.PersistenceError = perr.Error()
		} else {
			out.Stored = stored
		}
	}

	o.transition(id, StateSavingContact)
	saveCtx := contactstore.ContextWithCycleID(cycleCtx, id)
	if err := o.contacts.Save(saveCtx, payload); err != nil {
		var storeErr *contactstore.ContactStoreError
		if !errors.As(err, &storeErr) {
			err = &contactstore.ContactStoreError{Store: "contacts", Err: err}
		}
		log.Warn().Err(err).Msg("contact save failed")
		return out, err
	}
	out.Saved = true

	o.rememberCapture(ctx, log, id, img, out)
	log.Info().Str("display_name", payload.DisplayName).Msg("contact saved")
	return out, nil
}

func (o *Orchestrator) begin(ctx context.Context) (context.Context, string, error) {
	o.mu.Lock()
	if o.saving {
		inFlight := o.savingCycle
		o.mu.Unlock()
		return nil, "", &BusyError{InFlight: inFlight}
	}
	if o.cancel != nil {
		o.cancel()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	o.current = id
	o.cancel = cancel
	from := o.state
	o.state = StateCapturing
	o.mu.Unlock()

	o.notify(id, from, StateCapturing)
	return cycleCtx, id, nil
}

func (o *Orchestrator) finish(id string) {
	o.mu.Lock()
	if o.current != id {
		o.mu.Unlock()
		return
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.current = ""
	o.cancel = nil
	from := o.state
	o.state = StateIdle
	o.mu.Unlock()

	o.notify(id, from, StateIdle)
}

func (o *Orchestrator) transition(id string, to State) {
	o.mu.Lock()
	if o.current != id {
		o.mu.Unlock()
		return
	}
	from := o.state
	o.state = to
	o.mu.Unlock()

	o.notify(id, from, to)
}

func (o *Orchestrator) stale(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != id
}

// settle marks id as the in-flight cycle. It fails when a newer capture
// already replaced id.
func (o *Orchestrator) settle(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != id {
		return false
	}
	o.saving = true
	o.savingCycle = id
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.savingCycle == id {
		o.saving = false
		o.savingCycle = ""
	}
}

func (o *Orchestrator) notify(id string, from, to State) {
	if from == to {
		return
	}
	for _, hook := range o.hooks {
		hook(id, from, to)
	}
}

func (o *Orchestrator) rememberCapture(ctx context.Context, log zerolog.Logger, id string, img extraction.Image, out *Outcome) {
	if o.sessions == nil {
		return
	}
	capture := session.LastCapture{
		CycleID:     id,
		ImageDigest: session.Fingerprint(img.Data),
		MIMEType:    img.MIMEType,
		CapturedAt:  o.now(),
	}
	if out.Contact != nil {
		capture.DisplayName = out.Contact.DisplayName
	}
	if out.Stored != nil {
		capture.SerialNo = out.Stored.SerialNo
	}
	if err := o.sessions.Save(ctx, capture); err != nil {
		log.Warn().Err(err).Msg("failed to remember last capture")
	}
}

func (o *Orchestrator) notice(out *Outcome, err error) string {
	if err == nil && out.PersistenceError != "" {
		return "Contact saved, but the record could not be stored."
	}
	return Notice(err)
}

func (o *Orchestrator) observeCycle(err error) {
	if o.observer != nil {
		o.observer.ObserveCycle(outcomeLabel(err))
	}
}

func (o *Orchestrator) observePersistence(ok bool) {
	if o.observer != nil {
		o.observer.ObservePersistence(ok)
	}
}
