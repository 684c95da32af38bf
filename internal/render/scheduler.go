package render

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/hexatlas/engine/internal/projection"
	"github.com/hexatlas/engine/pkg/core"
)

// DefaultBatchSize is how many visuals are materialized between yields.
const DefaultBatchSize = 50

// DefaultBaseRadius is the nominal marker radius in pixels.
const DefaultBaseRadius = 5

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBatchSize overrides the materialization batch size.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBaseRadius overrides the nominal marker radius.
func WithBaseRadius(r float64) Option {
	return func(s *Scheduler) {
		s.baseRadius = r
	}
}

// WithYield replaces the between-batch yield hook. The default hands the
// processor to other goroutines; tests count invocations instead.
func WithYield(fn func()) Option {
	return func(s *Scheduler) {
		s.yield = fn
	}
}

// Scheduler converts the marker collection into visuals. Full rebuilds
// happen only on load, wholesale replacement and explicit reset; everything
// else is an incremental single-visual mutation.
type Scheduler struct {
	proj       projection.Projection
	surface    Surface
	log        *slog.Logger
	batchSize  int
	baseRadius float64
	yield      func()
	onEvent    InteractionFunc

	mu      sync.Mutex
	visuals map[uint]Visual
	factor  float64
}

// NewScheduler creates a scheduler drawing onto the given surface.
func NewScheduler(proj projection.Projection, surface Surface, log *slog.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		proj:       proj,
		surface:    surface,
		log:        log,
		batchSize:  DefaultBatchSize,
		baseRadius: DefaultBaseRadius,
		yield:      runtime.Gosched,
		visuals:    make(map[uint]Visual),
		factor:     1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnInteraction registers the single handler receiving all surface gestures.
func (s *Scheduler) OnInteraction(fn InteractionFunc) {
	s.onEvent = fn
}

// Dispatch delivers a surface gesture to the registered handler.
func (s *Scheduler) Dispatch(kind EventKind, id uint, at geom.XY) {
	if s.onEvent != nil {
		s.onEvent(kind, id, at)
	}
}

// RenderAll tears down the surface and rebuilds every visual in batches,
// yielding once per batch.
func (s *Scheduler) RenderAll(records []core.MarkerRecord) {
	s.mu.Lock()
	s.visuals = make(map[uint]Visual, len(records))
	s.mu.Unlock()
	s.surface.Clear()

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		for _, rec := range records[start:end] {
			s.place(rec)
		}
		s.yield()
	}

	s.log.Debug("Collection rendered", "count", len(records))
}

// Place materializes one new record without touching the rest.
func (s *Scheduler) Place(rec core.MarkerRecord) {
	s.place(rec)
}

// Move repositions the visual of a record at its new coordinates.
func (s *Scheduler) Move(rec core.MarkerRecord) {
	s.mu.Lock()
	v, ok := s.visuals[rec.ID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("Move for unknown visual", "id", rec.ID)
		return
	}
	v.Center = s.proj.ToScreen(rec.X, rec.Y)
	s.visuals[rec.ID] = v
	s.mu.Unlock()

	s.surface.Update(v)
}

// Refresh re-derives appearance state (image badge) for one record.
func (s *Scheduler) Refresh(rec core.MarkerRecord) {
	s.mu.Lock()
	v, ok := s.visuals[rec.ID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("Refresh for unknown visual", "id", rec.ID)
		return
	}
	v.HasImage = rec.HasImage()
	s.visuals[rec.ID] = v
	s.mu.Unlock()

	s.surface.Update(v)
}

// Remove destroys one visual.
func (s *Scheduler) Remove(id uint) {
	s.mu.Lock()
	_, ok := s.visuals[id]
	delete(s.visuals, id)
	s.mu.Unlock()

	if ok {
		s.surface.Remove(id)
	}
}

// Rescale applies the zoom scaling law to every visual in place. It adjusts
// radii only; normalized coordinates are never touched.
func (s *Scheduler) Rescale(zoom int) {
	s.mu.Lock()
	s.factor = ScaleFactor(KindPoint, zoom)
	updated := make([]Visual, 0, len(s.visuals))
	for id, v := range s.visuals {
		v.Radius = s.baseRadius * ScaleFactor(v.Kind, zoom)
		s.visuals[id] = v
		updated = append(updated, v)
	}
	s.mu.Unlock()

	for _, v := range updated {
		s.surface.Update(v)
	}
}

// Visual returns the current visual for a record.
func (s *Scheduler) Visual(id uint) (Visual, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visuals[id]
	return v, ok
}

// Len returns the number of live visuals.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visuals)
}

func (s *Scheduler) place(rec core.MarkerRecord) {
	s.mu.Lock()
	v := Visual{
		ID:       rec.ID,
		Kind:     KindPoint,
		Center:   s.proj.ToScreen(rec.X, rec.Y),
		Radius:   s.baseRadius * s.factor,
		HasImage: rec.HasImage(),
	}
	s.visuals[rec.ID] = v
	s.mu.Unlock()

	s.surface.Place(v)
}
