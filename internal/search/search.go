// Package search turns catalog queries into ranked placement candidates.
// Keystrokes are debounced; results are ordered so entries not yet placed
// on the map come first.
package search

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/peterstace/simplefeatures/geom"

	"github.com/hexatlas/engine/pkg/core"
)

// DefaultDebounce is the delay between the last keystroke and the query.
const DefaultDebounce = 300 * time.Millisecond

// DefaultResultLimit caps how many entries a text search returns.
const DefaultResultLimit = 20

// DefaultDetailCacheSize bounds the popup-detail LRU.
const DefaultDetailCacheSize = 64

// CatalogSource is the slice of the API client the workflow depends on.
type CatalogSource interface {
	Catalog() ([]core.CatalogEntry, error)
	SearchCatalog(query string) ([]core.CatalogEntry, error)
	CatalogDetail(number int) (core.CatalogDetail, error)
}

// UsageCounter reports current on-map placements per catalog number.
type UsageCounter interface {
	UsageCounts() map[int]int
}

// Creator is the engine's confirmed-create path.
type Creator interface {
	Create(at geom.XY, entry core.CatalogEntry) (core.MarkerRecord, error)
}

// Ranked is a catalog entry annotated with its current placement count.
type Ranked struct {
	Entry core.CatalogEntry
	Used  int
}

// Rank orders entries by ascending usage count, tie-broken by ascending
// catalog number, so unplaced entries surface first.
func Rank(entries []core.CatalogEntry, counts map[int]int) []Ranked {
	ranked := make([]Ranked, len(entries))
	for i, e := range entries {
		ranked[i] = Ranked{Entry: e, Used: counts[e.Number]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Used != ranked[j].Used {
			return ranked[i].Used < ranked[j].Used
		}
		return ranked[i].Entry.Number < ranked[j].Entry.Number
	})
	return ranked
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithDelay overrides the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithResultLimit overrides the search result cap.
func WithResultLimit(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.limit = n
		}
	}
}

// Workflow runs debounced catalog queries and resolves selections into
// placements.
type Workflow struct {
	source  CatalogSource
	usage   UsageCounter
	details *lru.Cache[int, core.CatalogDetail]
	log     *slog.Logger
	delay   time.Duration
	limit   int

	debounced func(func())

	mu      sync.Mutex
	pending string
}

// NewWorkflow creates a workflow over a catalog source.
func NewWorkflow(source CatalogSource, usage UsageCounter, log *slog.Logger, opts ...Option) (*Workflow, error) {
	if log == nil {
		log = slog.Default()
	}

	details, err := lru.New[int, core.CatalogDetail](DefaultDetailCacheSize)
	if err != nil {
		return nil, err
	}

	w := &Workflow{
		source:  source,
		usage:   usage,
		details: details,
		log:     log,
		delay:   DefaultDebounce,
		limit:   DefaultResultLimit,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debounced = debounce.New(w.delay)
	return w, nil
}

// Input records a keystroke. The pending query is replaced and the delay
// restarts; only the query pending when the delay expires is executed, with
// its ranked results handed to deliver.
func (w *Workflow) Input(query string, deliver func([]Ranked, error)) {
	w.mu.Lock()
	w.pending = query
	w.mu.Unlock()

	w.debounced(func() {
		w.mu.Lock()
		q := w.pending
		w.mu.Unlock()
		deliver(w.Run(q))
	})
}

// Run executes a query immediately. An empty query lists the full catalog.
func (w *Workflow) Run(query string) ([]Ranked, error) {
	var entries []core.CatalogEntry
	var err error

	if strings.TrimSpace(query) == "" {
		entries, err = w.source.Catalog()
	} else {
		entries, err = w.source.SearchCatalog(query)
	}
	if err != nil {
		w.log.Warn("Catalog query failed", "query", query, "error", err)
		return nil, err
	}

	if len(entries) > w.limit {
		entries = entries[:w.limit]
	}
	return Rank(entries, w.usage.UsageCounts()), nil
}

// Detail serves the full record for a popup, caching fetches.
func (w *Workflow) Detail(number int) (core.CatalogDetail, error) {
	if detail, ok := w.details.Get(number); ok {
		return detail, nil
	}

	detail, err := w.source.CatalogDetail(number)
	if err != nil {
		return core.CatalogDetail{}, err
	}
	w.details.Add(number, detail)
	return detail, nil
}

// InvalidateDetail drops a cached record, forcing the next popup to
// regenerate. Called after an image attach changes a marker's content.
func (w *Workflow) InvalidateDetail(number int) {
	w.details.Remove(number)
}

// Place resolves a selected result into a confirmed marker at the captured
// click point. It returns only after the remote has confirmed (or
// rejected) the placement, which is when the dialog may close.
func (w *Workflow) Place(creator Creator, at geom.XY, entry core.CatalogEntry) (core.MarkerRecord, error) {
	return creator.Create(at, entry)
}
