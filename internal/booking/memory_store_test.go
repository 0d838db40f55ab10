package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chikitsa360/telehealth-booking/internal/clock"
)

func testClock() *clock.Fake {
	return clock.NewFake(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
}

func futureSlot(t *testing.T, store *MemorySlotStore, doctorID uuid.UUID, startMinute int) *Availability {
	t.Helper()
	slot := &Availability{
		DoctorID:    doctorID,
		Date:        Day(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)),
		StartMinute: startMinute,
		EndMinute:   startMinute + 30,
	}
	if err := store.Create(context.Background(), slot); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return slot
}

func TestMemorySlotStoreCreate(t *testing.T) {
	clk := testClock()
	store := NewMemorySlotStore(clk)
	doctorID := uuid.New()

	t.Run("rejects past slot", func(t *testing.T) {
		slot := &Availability{
			DoctorID:    doctorID,
			Date:        Day(clk.Now()),
			StartMinute: 60, // 01:00, clock is at 08:00
			EndMinute:   90,
		}
		if err := store.Create(context.Background(), slot); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("rejects duplicate window for same doctor", func(t *testing.T) {
		futureSlot(t, store, doctorID, 600)
		dup := &Availability{
			DoctorID:    doctorID,
			Date:        Day(clk.Now()),
			StartMinute: 600,
			EndMinute:   630,
		}
		if err := store.Create(context.Background(), dup); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("same window for another doctor is fine", func(t *testing.T) {
		other := uuid.New()
		slot := &Availability{
			DoctorID:    other,
			Date:        Day(clk.Now()),
			StartMinute: 600,
			EndMinute:   630,
		}
		if err := store.Create(context.Background(), slot); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestMemorySlotStoreConcurrentClaim(t *testing.T) {
	store := NewMemorySlotStore(testClock())
	slot := futureSlot(t, store, uuid.New(), 600)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Claim(context.Background(), slot.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("got %d successful claims, want exactly 1", successes)
	}
	if conflicts != workers-1 {
		t.Fatalf("got %d conflicts, want %d", conflicts, workers-1)
	}
}

func TestMemorySlotStoreReleaseMakesClaimable(t *testing.T) {
	store := NewMemorySlotStore(testClock())
	slot := futureSlot(t, store, uuid.New(), 600)

	if _, err := store.Claim(context.Background(), slot.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := store.Claim(context.Background(), slot.ID); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if err := store.Release(context.Background(), slot.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := store.Claim(context.Background(), slot.ID); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

func TestMemorySlotStoreDelete(t *testing.T) {
	store := NewMemorySlotStore(testClock())
	doctorID := uuid.New()

	t.Run("owner deletes unbooked slot", func(t *testing.T) {
		slot := futureSlot(t, store, doctorID, 600)
		err := store.Delete(context.Background(), slot.ID, Actor{ID: doctorID, Role: RoleDoctor})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Get(context.Background(), slot.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("other doctor forbidden", func(t *testing.T) {
		slot := futureSlot(t, store, doctorID, 660)
		err := store.Delete(context.Background(), slot.ID, Actor{ID: uuid.New(), Role: RoleDoctor})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("patient forbidden", func(t *testing.T) {
		slot := futureSlot(t, store, doctorID, 720)
		err := store.Delete(context.Background(), slot.ID, Actor{ID: uuid.New(), Role: RolePatient})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("booked slot cannot be deleted", func(t *testing.T) {
		slot := futureSlot(t, store, doctorID, 780)
		if _, err := store.Claim(context.Background(), slot.ID); err != nil {
			t.Fatalf("claim: %v", err)
		}
		err := store.Delete(context.Background(), slot.ID, Actor{ID: doctorID, Role: RoleDoctor})
		if !errors.Is(err, ErrSlotUnavailable) {
			t.Fatalf("expected ErrSlotUnavailable, got %v", err)
		}
	})
}

func TestMemorySlotStoreFind(t *testing.T) {
	store := NewMemorySlotStore(testClock())
	doctorID := uuid.New()

	a := futureSlot(t, store, doctorID, 660)
	b := futureSlot(t, store, doctorID, 600)
	futureSlot(t, store, uuid.New(), 600) // someone else's

	if _, err := store.Claim(context.Background(), a.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	t.Run("unbooked only", func(t *testing.T) {
		var got []uuid.UUID
		for slot, err := range store.Find(context.Background(), doctorID, from, to, true) {
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			got = append(got, slot.ID)
		}
		if len(got) != 1 || got[0] != b.ID {
			t.Fatalf("got %v, want just %v", got, b.ID)
		}
	})

	t.Run("all slots ordered by start", func(t *testing.T) {
		var got []uuid.UUID
		for slot, err := range store.Find(context.Background(), doctorID, from, to, false) {
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			got = append(got, slot.ID)
		}
		if len(got) != 2 || got[0] != b.ID || got[1] != a.ID {
			t.Fatalf("got %v, want [%v %v]", got, b.ID, a.ID)
		}
	})

	t.Run("sequence restarts cleanly", func(t *testing.T) {
		seq := store.Find(context.Background(), doctorID, from, to, false)
		for range 2 {
			n := 0
			for _, err := range seq {
				if err != nil {
					t.Fatalf("find: %v", err)
				}
				n++
			}
			if n != 2 {
				t.Fatalf("got %d slots, want 2", n)
			}
		}
	})
}

func TestMemoryAppointmentStoreOneLivePerSlot(t *testing.T) {
	clk := testClock()
	slots := NewMemorySlotStore(clk)
	appts := NewMemoryAppointmentStore(clk)
	slot := futureSlot(t, slots, uuid.New(), 600)

	first, err := appts.Create(context.Background(), uuid.New(), slot, "first")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	if _, err := appts.Create(context.Background(), uuid.New(), slot, "second"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	// Once cancelled, the slot may be referenced again.
	if _, err := appts.Transition(context.Background(), first.ID, StatusCancelled, Actor{Role: RoleSystem}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := appts.Create(context.Background(), uuid.New(), slot, "rebook"); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestMemoryAppointmentStoreFindStaleRequested(t *testing.T) {
	clk := testClock()
	slots := NewMemorySlotStore(clk)
	appts := NewMemoryAppointmentStore(clk)

	stale, err := appts.Create(context.Background(), uuid.New(), futureSlot(t, slots, uuid.New(), 600), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clk.Advance(45 * time.Minute)
	fresh, err := appts.Create(context.Background(), uuid.New(), futureSlot(t, slots, uuid.New(), 660), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cutoff := clk.Now().Add(-30 * time.Minute)
	found, err := appts.FindStaleRequested(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("find stale: %v", err)
	}
	if len(found) != 1 || found[0].ID != stale.ID {
		t.Fatalf("got %d stale (want 1 with id %v), fresh was %v", len(found), stale.ID, fresh.ID)
	}
}
