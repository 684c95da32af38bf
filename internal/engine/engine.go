// Package engine mediates every marker mutation between the in-memory
// collection, the rendering surface, the remote store and the local
// snapshot cache. Remote calls confirm before local state changes for
// create and delete; drags stay where they were dropped even when the
// remote rejects them.
package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/hexatlas/engine/internal/cache"
	"github.com/hexatlas/engine/internal/fault"
	"github.com/hexatlas/engine/internal/notify"
	"github.com/hexatlas/engine/internal/projection"
	"github.com/hexatlas/engine/internal/render"
	"github.com/hexatlas/engine/internal/store"
	"github.com/hexatlas/engine/pkg/core"
)

// Remote is the slice of the API client the engine depends on.
type Remote interface {
	Markers() ([]core.MarkerRecord, error)
	CreateMarker(catalogNumber int, x, y float64) (core.MarkerRecord, error)
	UpdateMarker(id uint, x, y float64, image string) error
	DeleteMarker(id uint) error
	UploadImage(filename string, content io.Reader, catalogNumber int) (string, error)
}

// DetailInvalidator drops a cached catalog detail so the next popup for
// that entry is regenerated.
type DetailInvalidator interface {
	InvalidateDetail(number int)
}

// Per-operation sync states, logged for every remote mutation.
const (
	stateRequested = "requested"
	stateConfirmed = "confirmed"
	stateFailed    = "failed"
)

// Dependencies carries everything the engine needs.
type Dependencies struct {
	Projection projection.Projection
	Store      *store.Store
	Scheduler  *render.Scheduler
	Remote     Remote
	Snapshots  *cache.Store      // optional
	Details    DetailInvalidator // optional
	Notifier   notify.Notifier
	Session    *Session
	Log        *slog.Logger
}

// Engine is the synchronization core.
type Engine struct {
	deps Dependencies
	log  *slog.Logger
}

// New creates an engine from its dependencies.
func New(deps Dependencies) *Engine {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = NewSession()
	}
	return &Engine{deps: deps, log: deps.Log}
}

// Session exposes the interaction mode flags.
func (e *Engine) Session() *Session {
	return e.deps.Session
}

// Bootstrap populates the collection at startup. The remote store is
// authoritative; if it is unreachable the last saved local snapshot is
// loaded instead and the user is told they are looking at cached data.
func (e *Engine) Bootstrap() error {
	e.trace("bootstrap", stateRequested)

	records, err := e.deps.Remote.Markers()
	if err != nil {
		e.trace("bootstrap", stateFailed, "error", err)
		notify.Failure(e.deps.Notifier, err)
		return e.loadCached()
	}

	if err := e.deps.Store.Load(records); err != nil {
		notify.Failure(e.deps.Notifier, err)
		return err
	}
	e.deps.Scheduler.RenderAll(e.deps.Store.All())
	e.trace("bootstrap", stateConfirmed, "count", len(records))

	// load-time mirror so the next offline start has data
	if e.deps.Snapshots != nil {
		if err := e.deps.Snapshots.Save(core.NewSnapshot(e.deps.Store.All())); err != nil {
			e.log.Warn("Failed to mirror snapshot", "error", err)
		}
	}
	return nil
}

func (e *Engine) loadCached() error {
	if e.deps.Snapshots == nil {
		return nil
	}
	snap, ok, err := e.deps.Snapshots.Load()
	if err != nil || !ok {
		return err
	}
	if err := e.deps.Store.Load(snap.Markers); err != nil {
		return err
	}
	e.deps.Scheduler.RenderAll(e.deps.Store.All())
	e.deps.Notifier.Publish(notify.Info,
		fmt.Sprintf("remote store unreachable, showing %d cached markers", len(snap.Markers)))
	return nil
}

// Create places a catalog entry at a released screen point. The marker is
// only shown once the remote store has confirmed it and assigned an
// identifier; a failed call leaves no trace locally.
func (e *Engine) Create(at geom.XY, entry core.CatalogEntry) (core.MarkerRecord, error) {
	x, y := e.deps.Projection.ToNormalized(at)
	e.trace("create", stateRequested, "catalog", entry.Number)

	created, err := e.deps.Remote.CreateMarker(entry.Number, x, y)
	if err != nil {
		e.trace("create", stateFailed, "catalog", entry.Number, "error", err)
		notify.Failure(e.deps.Notifier, err)
		return core.MarkerRecord{}, err
	}

	if created.DisplayName == "" {
		created.DisplayName = entry.DisplayName
	}
	if created.Symbol == "" {
		created.Symbol = entry.Symbol
	}

	if err := e.deps.Store.Add(created); err != nil {
		notify.Failure(e.deps.Notifier, err)
		return core.MarkerRecord{}, err
	}
	e.deps.Scheduler.Place(created)
	e.trace("create", stateConfirmed, "id", created.ID)
	return created, nil
}

// Move persists a drag. The previous image reference is carried through
// unchanged. On failure the visual stays at the dropped point (no revert);
// the authoritative record is updated only on confirmation, so the screen
// may diverge from the server until the next full reload.
func (e *Engine) Move(id uint, released geom.XY) error {
	rec, ok := e.deps.Store.Get(id)
	if !ok {
		err := fault.New(fault.Validation, "unknown marker identifier %d", id)
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	x, y := e.deps.Projection.ToNormalized(released)
	e.trace("move", stateRequested, "id", id)

	if err := e.deps.Remote.UpdateMarker(id, x, y, rec.Image); err != nil {
		e.trace("move", stateFailed, "id", id, "error", err)
		dropped := rec
		dropped.X, dropped.Y = x, y
		e.deps.Scheduler.Move(dropped)
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	if err := e.deps.Store.Update(id, core.MarkerPatch{X: &x, Y: &y}); err != nil {
		notify.Failure(e.deps.Notifier, err)
		return err
	}
	updated, _ := e.deps.Store.Get(id)
	e.deps.Scheduler.Move(updated)
	e.trace("move", stateConfirmed, "id", id)
	return nil
}

// Delete removes a marker after the user confirms. A declined confirmation
// aborts quietly; a failed remote call leaves the marker in place.
func (e *Engine) Delete(id uint, confirm func() bool) error {
	if _, ok := e.deps.Store.Get(id); !ok {
		err := fault.New(fault.Validation, "unknown marker identifier %d", id)
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	if confirm != nil && !confirm() {
		err := fault.New(fault.UserAbort, "delete cancelled")
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	e.trace("delete", stateRequested, "id", id)
	if err := e.deps.Remote.DeleteMarker(id); err != nil {
		e.trace("delete", stateFailed, "id", id, "error", err)
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	if err := e.deps.Store.Remove(id); err != nil {
		notify.Failure(e.deps.Notifier, err)
		return err
	}
	e.deps.Scheduler.Remove(id)
	e.trace("delete", stateConfirmed, "id", id)
	return nil
}

// AttachImage uploads a selected file and binds the hosted URI to a marker.
// Only files with an image MIME category are accepted.
func (e *Engine) AttachImage(id uint, filename, mimeType string, content io.Reader) error {
	if !strings.HasPrefix(mimeType, "image/") {
		err := fault.New(fault.Validation, "selected file %q is not an image (%s)", filename, mimeType)
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	rec, ok := e.deps.Store.Get(id)
	if !ok {
		err := fault.New(fault.Validation, "unknown marker identifier %d", id)
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	e.trace("attach-image", stateRequested, "id", id)
	uri, err := e.deps.Remote.UploadImage(filename, content, rec.CatalogNumber)
	if err != nil {
		e.trace("attach-image", stateFailed, "id", id, "error", err)
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	if err := e.deps.Remote.UpdateMarker(id, rec.X, rec.Y, uri); err != nil {
		e.trace("attach-image", stateFailed, "id", id, "error", err)
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	if err := e.deps.Store.Update(id, core.MarkerPatch{Image: &uri}); err != nil {
		notify.Failure(e.deps.Notifier, err)
		return err
	}
	updated, _ := e.deps.Store.Get(id)
	e.deps.Scheduler.Refresh(updated)

	// an open detail popup for this entry must regenerate
	if e.deps.Details != nil {
		e.deps.Details.InvalidateDetail(rec.CatalogNumber)
	}
	e.trace("attach-image", stateConfirmed, "id", id)

	e.deps.Notifier.Publish(notify.Success, "image attached")
	return nil
}

// Reset discards local state and reloads the collection from the remote
// store, with a full re-render.
func (e *Engine) Reset() error {
	e.trace("reset", stateRequested)

	records, err := e.deps.Remote.Markers()
	if err != nil {
		e.trace("reset", stateFailed, "error", err)
		notify.Failure(e.deps.Notifier, err)
		return err
	}
	if err := e.deps.Store.Load(records); err != nil {
		notify.Failure(e.deps.Notifier, err)
		return err
	}
	e.deps.Scheduler.RenderAll(e.deps.Store.All())
	e.trace("reset", stateConfirmed, "count", len(records))
	return nil
}

// SaveSnapshot writes the current collection to the local cache slot. This
// is the only durable write outside the bootstrap mirror.
func (e *Engine) SaveSnapshot() error {
	if e.deps.Snapshots == nil {
		return fault.New(fault.Validation, "no snapshot store configured")
	}
	if err := e.deps.Snapshots.Save(core.NewSnapshot(e.deps.Store.All())); err != nil {
		notify.Failure(e.deps.Notifier, err)
		return err
	}
	e.deps.Notifier.Publish(notify.Success,
		fmt.Sprintf("saved %d markers locally", e.deps.Store.Len()))
	return nil
}

// ExportSnapshot writes the current collection as an interchange file.
func (e *Engine) ExportSnapshot(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(core.NewSnapshot(e.deps.Store.All()))
}

// ImportSnapshot replaces the collection from an interchange file. A file
// without an array field "markers" is rejected and the current collection
// stays untouched.
func (e *Engine) ImportSnapshot(r io.Reader) error {
	snap, err := cache.Import(r)
	if err != nil {
		notify.Failure(e.deps.Notifier, err)
		return err
	}

	if err := e.deps.Store.Load(snap.Markers); err != nil {
		notify.Failure(e.deps.Notifier, err)
		return err
	}
	e.deps.Scheduler.RenderAll(e.deps.Store.All())
	e.deps.Notifier.Publish(notify.Success,
		fmt.Sprintf("imported %d markers", len(snap.Markers)))
	return nil
}

func (e *Engine) trace(op, state string, attrs ...any) {
	args := append([]any{"op", op, "state", state}, attrs...)
	e.log.Debug("Sync operation", args...)
}
