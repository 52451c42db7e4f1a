package repository

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/octobees/cardscan/internal/entity"
)

func fixedStamper() Stamper {
	return NewStamper(time.UTC).WithClock(func() time.Time {
		return time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC)
	})
}

func TestMemoryRecordsRepository_RoundTrip(t *testing.T) {
	repo := NewMemoryRecordsRepository(fixedStamper())
	rec := entity.ExtractedRecord{
		Name:        "Jane Doe",
		CompanyName: "Acme",
		Phone:       entity.PhoneValue{Mobile: "98450", Fax: "2222"},
		Email:       "jane@acme.com",
		ExtraFields: entity.Fields{{Key: "gst", Value: "29AB"}, {Key: "tagline", Value: "We build"}},
	}

	stored, err := repo.Append(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.SerialNo != 1 {
		t.Fatalf("expected serial 1, got %d", stored.SerialNo)
	}
	if stored.Date != "2024-05-01" || stored.Time != "10:30" {
		t.Fatalf("unexpected stamp %s %s", stored.Date, stored.Time)
	}
	if stored.OtherInfo != "gst: 29AB\ntagline: We build" {
		t.Fatalf("unexpected other info %q", stored.OtherInfo)
	}

	all, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || !reflect.DeepEqual(all[0].ExtractedRecord, rec) {
		t.Fatalf("round trip mismatch: %+v", all)
	}

	found, err := repo.FindBySerial(context.Background(), 1)
	if err != nil || found.Name != "Jane Doe" {
		t.Fatalf("expected record by serial, got %+v %v", found, err)
	}
}

func TestMemoryRecordsRepository_EmptyList(t *testing.T) {
	repo := NewMemoryRecordsRepository(fixedStamper())
	all, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", all)
	}
	if _, err := repo.FindBySerial(context.Background(), 1); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryRecordsRepository_RequiresName(t *testing.T) {
	repo := NewMemoryRecordsRepository(fixedStamper())
	_, err := repo.Append(context.Background(), entity.ExtractedRecord{Phone: entity.SinglePhone("1")})
	if !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	all, _ := repo.ListAll(context.Background())
	if len(all) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(all))
	}
}

func TestMemoryRecordsRepository_ConcurrentAppendsAreGapless(t *testing.T) {
	repo := NewMemoryRecordsRepository(fixedStamper())
	for i := 0; i < 3; i++ {
		if _, err := repo.Append(context.Background(), entity.ExtractedRecord{Name: "seed"}); err != nil {
			t.Fatalf("seed append: %v", err)
		}
	}

	const writers = 10
	var wg sync.WaitGroup
	serials := make([]int64, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, err := repo.Append(context.Background(), entity.ExtractedRecord{Name: "writer"})
			if err != nil {
				errs[i] = err
				return
			}
			serials[i] = stored.SerialNo
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d failed: %v", i, err)
		}
	}
	sort.Slice(serials, func(i, j int) bool { return serials[i] < serials[j] })
	for i, serial := range serials {
		if want := int64(4 + i); serial != want {
			t.Fatalf("expected serial %d, got %d (all %v)", want, serial, serials)
		}
	}
}

func TestMemoryRecordsRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRecordsRepository(fixedStamper())
	stored, err := repo.Append(context.Background(), entity.ExtractedRecord{
		Name:        "Jane",
		ExtraFields: entity.Fields{{Key: "a", Value: "1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored.ExtraFields[0].Value = "mutated"

	again, _ := repo.FindBySerial(context.Background(), stored.SerialNo)
	if v, _ := again.ExtraFields.Get("a"); v != "1" {
		t.Fatalf("stored record was mutated through returned copy")
	}
}

func TestMemoryRecordsRepository_AppendTrimsName(t *testing.T) {
	repo := NewMemoryRecordsRepository(NewStamper(time.UTC))
	stored, err := repo.Append(context.Background(), entity.ExtractedRecord{Name: " Jane Doe  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Name != "Jane Doe" || all[0].Name != stored.Name {
		t.Fatalf("expected trimmed name in both results, got %q and %q", stored.Name, all[0].Name)
	}
}
