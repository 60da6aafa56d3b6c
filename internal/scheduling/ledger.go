package scheduling

import "sort"

// ledger indexes active appointments by id and by slot key. Every entry in
// bySlot points at an id present in byID.
type ledger struct {
	byID   map[string]*Appointment
	bySlot map[SlotKey]string
}

func newLedger() *ledger {
	return &ledger{
		byID:   make(map[string]*Appointment),
		bySlot: make(map[SlotKey]string),
	}
}

func (l *ledger) get(id string) (*Appointment, bool) {
	apt, ok := l.byID[id]
	return apt, ok
}

// holder returns the id of the active appointment at key, if any.
func (l *ledger) holder(key SlotKey) (string, bool) {
	id, ok := l.bySlot[key]
	return id, ok
}

func (l *ledger) insert(apt *Appointment) {
	l.byID[apt.ID] = apt
	l.bySlot[apt.Key()] = apt.ID
}

func (l *ledger) remove(id string) {
	apt, ok := l.byID[id]
	if !ok {
		return
	}
	if l.bySlot[apt.Key()] == id {
		delete(l.bySlot, apt.Key())
	}
	delete(l.byID, id)
}

// move re-indexes apt after its slot fields changed from old.
func (l *ledger) move(apt *Appointment, old SlotKey) {
	if l.bySlot[old] == apt.ID {
		delete(l.bySlot, old)
	}
	l.bySlot[apt.Key()] = apt.ID
}

func (l *ledger) len() int {
	return len(l.byID)
}

// snapshot copies every appointment ordered by date, start then doctor.
func (l *ledger) snapshot() []Appointment {
	out := make([]Appointment, 0, len(l.byID))
	for _, apt := range l.byID {
		out = append(out, *apt)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.DoctorName < b.DoctorName
	})
	return out
}
