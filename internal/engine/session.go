package engine

import (
	"sync"

	"github.com/hexatlas/engine/pkg/core"
)

// Session holds the interaction mode flags: whether markers are draggable
// (edit mode), whether map clicks place new markers (add mode), which
// marker an image attach targets, and which catalog entry the next
// add-mode click places.
type Session struct {
	mu           sync.RWMutex
	editMode     bool
	addMode      bool
	editTarget   uint
	placement    core.CatalogEntry
	hasPlacement bool
}

// NewSession creates a session with all modes off.
func NewSession() *Session {
	return &Session{}
}

// EditMode reports whether markers are currently draggable.
func (s *Session) EditMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editMode
}

// SetEditMode toggles edit mode. Leaving edit mode drops the edit target.
func (s *Session) SetEditMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMode = on
	if !on {
		s.editTarget = 0
	}
}

// AddMode reports whether the next map click places a marker.
func (s *Session) AddMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addMode
}

// SetAddMode toggles add mode. Leaving add mode drops the selected entry.
func (s *Session) SetAddMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addMode = on
	if !on {
		s.placement = core.CatalogEntry{}
		s.hasPlacement = false
	}
}

// SetPlacement selects the catalog entry the next map click places, and
// arms add mode.
func (s *Session) SetPlacement(entry core.CatalogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placement = entry
	s.hasPlacement = true
	s.addMode = true
}

// Placement returns the entry armed for placement, if any.
func (s *Session) Placement() (core.CatalogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placement, s.hasPlacement
}

// ClearPlacement drops the armed entry without leaving add mode.
func (s *Session) ClearPlacement() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placement = core.CatalogEntry{}
	s.hasPlacement = false
}

// EditTarget returns the marker selected for image attachment, if any.
func (s *Session) EditTarget() (uint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editTarget, s.editTarget != 0
}

// SetEditTarget selects a marker for image attachment.
func (s *Session) SetEditTarget(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editTarget = id
}

// ClearEditTarget drops the selection.
func (s *Session) ClearEditTarget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editTarget = 0
}
