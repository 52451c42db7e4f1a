package repository

import "time"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Stamper produces capture timestamps in a single fixed zone.
type Stamper struct {
	loc *time.Location
	now func() time.Time
}

// NewStamper stamps in loc (UTC when nil).
func NewStamper(loc *time.Location) Stamper {
	if loc == nil {
		loc = time.UTC
	}
	return Stamper{loc: loc, now: time.Now}
}

// WithClock returns a copy using now as the time source.
func (s Stamper) WithClock(now func() time.Time) Stamper {
	s.now = now
	return s
}

func (s Stamper) current() time.Time {
	now := s.now
	if now == nil {
		now = time.Now
	}
	loc := s.loc
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// Stamp returns the date (YYYY-MM-DD) and minute-precision time (HH:MM).
func (s Stamper) Stamp() (string, string) {
	t := s.current()
	return t.Format(dateLayout), t.Format(timeLayout)
}
