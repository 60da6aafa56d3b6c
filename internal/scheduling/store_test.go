package scheduling

import (
	"errors"
	"testing"
)

func TestSlotsForIncludesUnavailableAndFiltersByDoctor(t *testing.T) {
	store := newTestStore(t)

	all := store.SlotsFor("", "2025-03-10")
	if len(all) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(all))
	}
	if all[3].Start != "14:00" || all[3].Available {
		t.Fatalf("expected unavailable 14:00 slot, got %#v", all[3])
	}

	onlyB := store.SlotsFor("dr. b", "2025-03-10")
	if len(onlyB) != 1 || onlyB[0].Doctor != "Dr. B" {
		t.Fatalf("expected Dr. B only, got %#v", onlyB)
	}
}

func TestMarkBookedAndAvailableFlipSameSlot(t *testing.T) {
	store := newTestStore(t)

	if err := store.MarkBooked("Dr. A", "2025-03-10", "09:00"); err != nil {
		t.Fatalf("mark booked: %v", err)
	}
	if store.SlotsFor("Dr. A", "2025-03-10")[0].Available {
		t.Fatal("expected slot to be unavailable after MarkBooked")
	}
	if err := store.MarkAvailable("Dr. A", "2025-03-10", "09:00"); err != nil {
		t.Fatalf("mark available: %v", err)
	}
	if !store.SlotsFor("Dr. A", "2025-03-10")[0].Available {
		t.Fatal("expected slot to be available again")
	}
}

func TestMarkBookedUnknownSlot(t *testing.T) {
	store := newTestStore(t)
	err := store.MarkBooked("Dr. A", "2025-03-10", "08:00")
	if !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
	// Exact name match only for mutators.
	if err := store.MarkBooked("dr. a", "2025-03-10", "09:00"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected case-sensitive miss, got %v", err)
	}
}
