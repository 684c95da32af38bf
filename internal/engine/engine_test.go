package engine

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexatlas/engine/internal/cache"
	"github.com/hexatlas/engine/internal/fault"
	"github.com/hexatlas/engine/internal/notify"
	"github.com/hexatlas/engine/internal/projection"
	"github.com/hexatlas/engine/internal/render"
	"github.com/hexatlas/engine/internal/store"
	"github.com/hexatlas/engine/pkg/core"
)

type fakeSurface struct {
	placed  []render.Visual
	updated []render.Visual
	removed []uint
	clears  int
}

func (f *fakeSurface) Place(v render.Visual)  { f.placed = append(f.placed, v) }
func (f *fakeSurface) Update(v render.Visual) { f.updated = append(f.updated, v) }
func (f *fakeSurface) Remove(id uint)         { f.removed = append(f.removed, id) }
func (f *fakeSurface) Clear()                 { f.clears++ }

type updateCall struct {
	id    uint
	x, y  float64
	image string
}

type fakeRemote struct {
	listed     []core.MarkerRecord
	nextID     uint
	updates    []updateCall
	deletes    []uint
	uploads    int
	uploadURI  string
	failList   bool
	failCreate bool
	failUpdate bool
	failDelete bool
	failUpload bool
}

var errRemote = errors.New("connection refused")

func (f *fakeRemote) Markers() ([]core.MarkerRecord, error) {
	if f.failList {
		return nil, fault.Wrap(fault.Network, errRemote)
	}
	return f.listed, nil
}

func (f *fakeRemote) CreateMarker(catalogNumber int, x, y float64) (core.MarkerRecord, error) {
	if f.failCreate {
		return core.MarkerRecord{}, fault.Wrap(fault.Network, errRemote)
	}
	f.nextID++
	return core.MarkerRecord{ID: f.nextID, CatalogNumber: catalogNumber, X: x, Y: y}, nil
}

func (f *fakeRemote) UpdateMarker(id uint, x, y float64, image string) error {
	if f.failUpdate {
		return fault.Wrap(fault.Network, errRemote)
	}
	f.updates = append(f.updates, updateCall{id: id, x: x, y: y, image: image})
	return nil
}

func (f *fakeRemote) DeleteMarker(id uint) error {
	if f.failDelete {
		return fault.Wrap(fault.Network, errRemote)
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeRemote) UploadImage(filename string, content io.Reader, catalogNumber int) (string, error) {
	if f.failUpload {
		return "", fault.Wrap(fault.Network, errRemote)
	}
	f.uploads++
	if f.uploadURI != "" {
		return f.uploadURI, nil
	}
	return "/static/uploads/test.png", nil
}

type testRig struct {
	engine   *Engine
	remote   *fakeRemote
	store    *store.Store
	surface  *fakeSurface
	notifier *notify.Recorder
	proj     projection.Projection
}

func newRig(t *testing.T, remote *fakeRemote, snapshots *cache.Store) *testRig {
	t.Helper()

	proj := projection.Default()
	st := store.New(nil)
	surface := &fakeSurface{}
	sched := render.NewScheduler(proj, surface, nil, render.WithYield(func() {}))
	rec := &notify.Recorder{}

	eng := New(Dependencies{
		Projection: proj,
		Store:      st,
		Scheduler:  sched,
		Remote:     remote,
		Snapshots:  snapshots,
		Notifier:   rec,
	})
	return &testRig{engine: eng, remote: remote, store: st, surface: surface, notifier: rec, proj: proj}
}

func TestEngine_Create_Success(t *testing.T) {
	rig := newRig(t, &fakeRemote{}, nil)

	at := rig.proj.ToScreen(0.25, 0.75)
	created, err := rig.engine.Create(at, core.CatalogEntry{Number: 7, DisplayName: "Shi", Symbol: "师"})
	require.NoError(t, err)

	assert.Equal(t, uint(1), created.ID)
	assert.Equal(t, 1, rig.store.Len())
	got, ok := rig.store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, 0.25, got.X)
	assert.Equal(t, "Shi", got.DisplayName)
	require.Len(t, rig.surface.placed, 1)
}

func TestEngine_Create_FailureLeavesNoTrace(t *testing.T) {
	rig := newRig(t, &fakeRemote{failCreate: true}, nil)

	_, err := rig.engine.Create(geom.XY{X: 100, Y: -100}, core.CatalogEntry{Number: 7})
	require.Error(t, err)

	assert.Equal(t, 0, rig.store.Len(), "no speculative marker may exist")
	assert.Empty(t, rig.surface.placed)

	last, ok := rig.notifier.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, last.Severity)
}

func TestEngine_Create_ClampsReleasedPoint(t *testing.T) {
	rig := newRig(t, &fakeRemote{}, nil)

	// released far past the world edge
	created, err := rig.engine.Create(geom.XY{X: 99999, Y: 500}, core.CatalogEntry{Number: 1})
	require.NoError(t, err)

	assert.Equal(t, 1.0, created.X)
	assert.Equal(t, 0.0, created.Y)
}

func TestEngine_Move_Success(t *testing.T) {
	remote := &fakeRemote{}
	rig := newRig(t, remote, nil)

	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.2, Y: 0.2}))
	rig.engine.deps.Scheduler.Place(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.2, Y: 0.2})

	require.NoError(t, rig.engine.Move(1, rig.proj.ToScreen(0.5, 0.5)))

	got, _ := rig.store.Get(1)
	assert.Equal(t, 0.5, got.X)
	assert.Equal(t, 0.5, got.Y)

	v, ok := rig.engine.deps.Scheduler.Visual(1)
	require.True(t, ok)
	assert.Equal(t, rig.proj.ToScreen(0.5, 0.5), v.Center)
}

func TestEngine_Move_CarriesPreviousImage(t *testing.T) {
	remote := &fakeRemote{}
	rig := newRig(t, remote, nil)

	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.2, Y: 0.2, Image: "/static/uploads/1.png"}))
	rig.engine.deps.Scheduler.Place(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.2, Y: 0.2})

	require.NoError(t, rig.engine.Move(1, rig.proj.ToScreen(0.6, 0.6)))

	require.Len(t, remote.updates, 1)
	assert.Equal(t, "/static/uploads/1.png", remote.updates[0].image)
}

func TestEngine_Move_FailureKeepsDraggedPosition(t *testing.T) {
	rig := newRig(t, &fakeRemote{failUpdate: true}, nil)

	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.2, Y: 0.2}))
	rig.engine.deps.Scheduler.Place(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.2, Y: 0.2})

	err := rig.engine.Move(1, rig.proj.ToScreen(0.5, 0.5))
	require.Error(t, err)

	// authoritative record unchanged until the next full reload
	got, _ := rig.store.Get(1)
	assert.Equal(t, 0.2, got.X)

	// but the visual stays where it was dropped
	v, ok := rig.engine.deps.Scheduler.Visual(1)
	require.True(t, ok)
	assert.Equal(t, rig.proj.ToScreen(0.5, 0.5), v.Center)

	last, ok := rig.notifier.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, last.Severity)
}

func TestEngine_Move_UnknownMarker(t *testing.T) {
	rig := newRig(t, &fakeRemote{}, nil)

	err := rig.engine.Move(42, geom.XY{})
	require.Error(t, err)
	assert.Equal(t, fault.Validation, fault.KindOf(err))
}

func TestEngine_Delete_Declined(t *testing.T) {
	remote := &fakeRemote{}
	rig := newRig(t, remote, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3}))

	err := rig.engine.Delete(1, func() bool { return false })
	require.Error(t, err)
	assert.Equal(t, fault.UserAbort, fault.KindOf(err))

	assert.Equal(t, 1, rig.store.Len())
	assert.Empty(t, remote.deletes, "remote must not be called on declined confirmation")
}

func TestEngine_Delete_RemoteFailureKeepsMarker(t *testing.T) {
	rig := newRig(t, &fakeRemote{failDelete: true}, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3}))
	rig.engine.deps.Scheduler.Place(core.MarkerRecord{ID: 1, CatalogNumber: 3})

	err := rig.engine.Delete(1, func() bool { return true })
	require.Error(t, err)

	assert.Equal(t, 1, rig.store.Len(), "marker must survive a failed remote delete")
	_, stillVisible := rig.engine.deps.Scheduler.Visual(1)
	assert.True(t, stillVisible)
	assert.Empty(t, rig.surface.removed)
}

func TestEngine_Delete_Success(t *testing.T) {
	remote := &fakeRemote{}
	rig := newRig(t, remote, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3}))
	rig.engine.deps.Scheduler.Place(core.MarkerRecord{ID: 1, CatalogNumber: 3})

	require.NoError(t, rig.engine.Delete(1, func() bool { return true }))

	assert.Equal(t, 0, rig.store.Len())
	assert.Equal(t, []uint{1}, remote.deletes)
	assert.Equal(t, []uint{1}, rig.surface.removed)
}

func TestEngine_AttachImage_RejectsNonImage(t *testing.T) {
	remote := &fakeRemote{}
	rig := newRig(t, remote, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3}))

	err := rig.engine.AttachImage(1, "notes.txt", "text/plain", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, fault.Validation, fault.KindOf(err))
	assert.Equal(t, 0, remote.uploads, "nothing must be uploaded for a non-image file")

	got, _ := rig.store.Get(1)
	assert.Empty(t, got.Image)
}

func TestEngine_AttachImage_Success(t *testing.T) {
	remote := &fakeRemote{uploadURI: "/static/uploads/3_main.png"}
	rig := newRig(t, remote, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.4, Y: 0.6}))
	rig.engine.deps.Scheduler.Place(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.4, Y: 0.6})

	require.NoError(t, rig.engine.AttachImage(1, "main.png", "image/png", strings.NewReader("png")))

	got, _ := rig.store.Get(1)
	assert.Equal(t, "/static/uploads/3_main.png", got.Image)

	// the update carried the hosted URI alongside the unchanged position
	require.Len(t, remote.updates, 1)
	assert.Equal(t, "/static/uploads/3_main.png", remote.updates[0].image)
	assert.Equal(t, 0.4, remote.updates[0].x)

	v, ok := rig.engine.deps.Scheduler.Visual(1)
	require.True(t, ok)
	assert.True(t, v.HasImage)

	last, ok := rig.notifier.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Success, last.Severity)
}

type fakeInvalidator struct {
	invalidated []int
}

func (f *fakeInvalidator) InvalidateDetail(number int) {
	f.invalidated = append(f.invalidated, number)
}

func TestEngine_AttachImage_InvalidatesCatalogDetail(t *testing.T) {
	remote := &fakeRemote{uploadURI: "/static/uploads/3_main.png"}
	rig := newRig(t, remote, nil)
	details := &fakeInvalidator{}
	rig.engine.deps.Details = details

	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.4, Y: 0.6}))
	rig.engine.deps.Scheduler.Place(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.4, Y: 0.6})

	require.NoError(t, rig.engine.AttachImage(1, "main.png", "image/png", strings.NewReader("png")))

	// the cached detail for the marker's entry must regenerate with the image
	assert.Equal(t, []int{3}, details.invalidated)
}

func TestEngine_AttachImage_FailureKeepsCachedDetail(t *testing.T) {
	remote := &fakeRemote{failUpload: true}
	rig := newRig(t, remote, nil)
	details := &fakeInvalidator{}
	rig.engine.deps.Details = details

	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3}))

	err := rig.engine.AttachImage(1, "main.png", "image/png", strings.NewReader("png"))
	require.Error(t, err)
	assert.Empty(t, details.invalidated)
}

func TestEngine_Bootstrap_RemoteAuthoritative(t *testing.T) {
	remote := &fakeRemote{listed: []core.MarkerRecord{
		{ID: 1, CatalogNumber: 5, X: 0.1, Y: 0.1},
		{ID: 2, CatalogNumber: 9, X: 0.2, Y: 0.2},
	}}
	rig := newRig(t, remote, nil)

	require.NoError(t, rig.engine.Bootstrap())

	assert.Equal(t, 2, rig.store.Len())
	assert.Len(t, rig.surface.placed, 2)
	assert.Equal(t, 1, rig.surface.clears, "bootstrap is a full render")
}

func TestEngine_Bootstrap_FallsBackToSnapshot(t *testing.T) {
	snapshots, err := cache.Open("", "test_slot", zerolog.Nop())
	require.NoError(t, err)
	defer snapshots.Close()

	require.NoError(t, snapshots.Save(core.NewSnapshot([]core.MarkerRecord{
		{ID: 4, CatalogNumber: 2, X: 0.3, Y: 0.3},
	})))

	rig := newRig(t, &fakeRemote{failList: true}, snapshots)

	require.NoError(t, rig.engine.Bootstrap())

	assert.Equal(t, 1, rig.store.Len(), "cached snapshot should populate the store")
	_, ok := rig.store.Get(4)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, rig.notifier.Len(), 2, "network failure and cache notice are both surfaced")
}

func TestEngine_Reset_FullRerender(t *testing.T) {
	remote := &fakeRemote{listed: []core.MarkerRecord{{ID: 9, CatalogNumber: 1, X: 0.5, Y: 0.5}}}
	rig := newRig(t, remote, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 1}))

	require.NoError(t, rig.engine.Reset())

	assert.Equal(t, 1, rig.store.Len())
	_, ok := rig.store.Get(9)
	assert.True(t, ok)
	assert.Equal(t, 1, rig.surface.clears)
}

func TestEngine_ImportSnapshot_RejectsInvalid(t *testing.T) {
	rig := newRig(t, &fakeRemote{}, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.5, Y: 0.5}))

	err := rig.engine.ImportSnapshot(strings.NewReader(`{"markers":"not-an-array"}`))
	require.Error(t, err)
	assert.Equal(t, fault.Validation, fault.KindOf(err))

	// collection untouched
	assert.Equal(t, 1, rig.store.Len())
	got, _ := rig.store.Get(1)
	assert.Equal(t, 0.5, got.X)

	last, ok := rig.notifier.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, last.Severity)
	assert.Equal(t, 0, rig.surface.clears, "no re-render on rejected import")
}

func TestEngine_ImportSnapshot_ReplacesCollection(t *testing.T) {
	rig := newRig(t, &fakeRemote{}, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3}))

	input := `{"markers":[{"id":8,"number":6,"x":0.7,"y":0.1}],"version":"2.0"}`
	require.NoError(t, rig.engine.ImportSnapshot(strings.NewReader(input)))

	assert.Equal(t, 1, rig.store.Len())
	_, ok := rig.store.Get(8)
	assert.True(t, ok)
	assert.Equal(t, 1, rig.surface.clears, "wholesale replacement is a full render")
}

func TestEngine_SaveSnapshot_ExplicitOnly(t *testing.T) {
	snapshots, err := cache.Open("", "save_slot", zerolog.Nop())
	require.NoError(t, err)
	defer snapshots.Close()

	rig := newRig(t, &fakeRemote{}, snapshots)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.5, Y: 0.5}))

	// nothing saved before the explicit call
	_, ok, err := snapshots.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rig.engine.SaveSnapshot())

	snap, ok, err := snapshots.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snap.Markers, 1)
	assert.Equal(t, uint(1), snap.Markers[0].ID)
}

func TestEngine_ExportSnapshot(t *testing.T) {
	rig := newRig(t, &fakeRemote{}, nil)
	require.NoError(t, rig.store.Add(core.MarkerRecord{ID: 1, CatalogNumber: 3, X: 0.5, Y: 0.5}))

	var buf strings.Builder
	require.NoError(t, rig.engine.ExportSnapshot(&buf))

	snap, err := cache.Decode([]byte(buf.String()))
	require.NoError(t, err)
	require.Len(t, snap.Markers, 1)
	assert.Equal(t, core.SnapshotVersion, snap.Version)
}

func TestSession_ModeFlags(t *testing.T) {
	s := NewSession()

	assert.False(t, s.EditMode())
	assert.False(t, s.AddMode())

	s.SetEditMode(true)
	s.SetEditTarget(5)
	id, ok := s.EditTarget()
	require.True(t, ok)
	assert.Equal(t, uint(5), id)

	// leaving edit mode drops the target
	s.SetEditMode(false)
	_, ok = s.EditTarget()
	assert.False(t, ok)

	s.SetAddMode(true)
	assert.True(t, s.AddMode())
}

func TestSession_PlacementSelection(t *testing.T) {
	s := NewSession()

	_, ok := s.Placement()
	assert.False(t, ok)

	// selecting an entry arms add mode
	s.SetPlacement(core.CatalogEntry{Number: 7, DisplayName: "Shi"})
	assert.True(t, s.AddMode())
	entry, ok := s.Placement()
	require.True(t, ok)
	assert.Equal(t, 7, entry.Number)

	// leaving add mode drops the selection
	s.SetAddMode(false)
	_, ok = s.Placement()
	assert.False(t, ok)

	s.SetPlacement(core.CatalogEntry{Number: 3})
	s.ClearPlacement()
	_, ok = s.Placement()
	assert.False(t, ok)
	assert.True(t, s.AddMode(), "clearing the selection alone keeps add mode")
}
