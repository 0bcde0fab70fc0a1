package tracker

import (
	"sort"
	"sync"

	"github.com/trezcool/markalloc/core/allocation"
)

// Slots
const (
	SlotCurrent  Slot = "current"
	SlotSelected Slot = "selected"
)

// Slot names an independent Store entry. Two slots holding the same semester are still cached separately.
type Slot string

// Store caches at most one allocation summary per slot.
// Only the Coordinator writes to it; reads never fetch.
type Store struct {
	mu    sync.RWMutex
	slots map[Slot]allocation.SemesterAllocationSummary
}

func NewStore() *Store {
	return &Store{slots: make(map[Slot]allocation.SemesterAllocationSummary)}
}

// set replaces the slot's summary wholesale.
func (s *Store) set(slot Slot, summary allocation.SemesterAllocationSummary) {
	summary.Contents = copyContents(summary.Contents)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = summary
}

// Get returns the slot's last applied summary, as received from the server.
func (s *Store) Get(slot Slot) (allocation.SemesterAllocationSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.slots[slot]
	if !ok {
		return allocation.SemesterAllocationSummary{}, false
	}
	summary.Contents = copyContents(summary.Contents)
	return summary, true
}

// Projection projects candidate marks against the slot's summary.
func (s *Store) Projection(slot Slot, candidate int) (allocation.Projection, error) {
	summary, ok := s.Get(slot)
	if !ok {
		return allocation.Projection{}, ErrSlotEmpty
	}
	return allocation.Project(summary, candidate)
}

// Slots lists the occupied slots, sorted.
func (s *Store) Slots() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]Slot, 0, len(s.slots))
	for slot := range s.slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// Reset discards every slot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[Slot]allocation.SemesterAllocationSummary)
}

func copyContents(contents []allocation.ContentAllocation) []allocation.ContentAllocation {
	if contents == nil {
		return nil
	}
	out := make([]allocation.ContentAllocation, len(contents))
	copy(out, contents)
	return out
}
