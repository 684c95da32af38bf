// Package store owns the authoritative in-memory marker collection. All
// operations are synchronous and free of I/O; remote persistence happens in
// the engine around these calls.
package store

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/hexatlas/engine/internal/fault"
	"github.com/hexatlas/engine/pkg/core"
)

// Store holds marker records keyed by their remote identifier.
type Store struct {
	mu      sync.RWMutex
	markers map[uint]core.MarkerRecord
	log     *slog.Logger
}

// New creates an empty store.
func New(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		markers: make(map[uint]core.MarkerRecord),
		log:     log,
	}
}

// Load replaces the collection wholesale. If any record is malformed the
// prior collection is kept and the condition is logged and reported.
func (s *Store) Load(records []core.MarkerRecord) error {
	next := make(map[uint]core.MarkerRecord, len(records))
	for _, rec := range records {
		if rec.ID == 0 {
			err := fault.New(fault.Validation, "record for catalog %d has no identifier", rec.CatalogNumber)
			s.log.Warn("Load rejected, keeping current collection", "error", err)
			return err
		}
		if _, dup := next[rec.ID]; dup {
			err := fault.New(fault.Validation, "duplicate marker identifier %d", rec.ID)
			s.log.Warn("Load rejected, keeping current collection", "error", err)
			return err
		}
		if math.IsNaN(rec.X) || math.IsNaN(rec.Y) {
			err := fault.New(fault.Validation, "marker %d has non-numeric coordinates", rec.ID)
			s.log.Warn("Load rejected, keeping current collection", "error", err)
			return err
		}
		rec.X = clamp01(rec.X)
		rec.Y = clamp01(rec.Y)
		next[rec.ID] = rec
	}

	s.mu.Lock()
	s.markers = next
	s.mu.Unlock()

	s.log.Info("Marker collection replaced", "count", len(next))
	return nil
}

// Add appends a record that has already been assigned a remote identifier.
func (s *Store) Add(rec core.MarkerRecord) error {
	if rec.ID == 0 {
		return fault.New(fault.Validation, "marker has no remote identifier")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.markers[rec.ID]; exists {
		return fault.New(fault.Validation, "marker %d already present", rec.ID)
	}
	rec.X = clamp01(rec.X)
	rec.Y = clamp01(rec.Y)
	s.markers[rec.ID] = rec
	return nil
}

// Update applies a partial position/image change to a record. Unknown
// identifiers are reported and leave the collection unchanged.
func (s *Store) Update(id uint, patch core.MarkerPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.markers[id]
	if !ok {
		s.log.Warn("Update for unknown marker", "id", id)
		return fault.New(fault.Validation, "unknown marker identifier %d", id)
	}

	if patch.X != nil {
		rec.X = clamp01(*patch.X)
	}
	if patch.Y != nil {
		rec.Y = clamp01(*patch.Y)
	}
	if patch.Image != nil {
		rec.Image = *patch.Image
	}
	s.markers[id] = rec
	return nil
}

// Remove deletes a record. Unknown identifiers are reported.
func (s *Store) Remove(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markers[id]; !ok {
		s.log.Warn("Remove for unknown marker", "id", id)
		return fault.New(fault.Validation, "unknown marker identifier %d", id)
	}
	delete(s.markers, id)
	return nil
}

// Get returns the record with the given identifier.
func (s *Store) Get(id uint) (core.MarkerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.markers[id]
	return rec, ok
}

// All returns a copy of the collection ordered by identifier.
func (s *Store) All() []core.MarkerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.MarkerRecord, 0, len(s.markers))
	for _, rec := range s.markers {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the collection size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

// UsageCounts returns how many placements each catalog number currently has
// on the map. Entries with no placement are absent.
func (s *Store) UsageCounts() map[int]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int, len(s.markers))
	for _, rec := range s.markers {
		counts[rec.CatalogNumber]++
	}
	return counts
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
