// Package render materializes marker records into visuals on a rendering
// surface, in fixed-size batches so large collections never block the
// interaction thread.
package render

import (
	"github.com/peterstace/simplefeatures/geom"
)

// EventKind identifies a surface gesture on one visual.
type EventKind int

const (
	// EventClick opens the detail popup or begins an edit.
	EventClick EventKind = iota
	// EventDragStart begins repositioning; only delivered in edit mode.
	EventDragStart
	// EventDragEnd finishes repositioning at the released point.
	EventDragEnd
	// EventSecondaryAction requests deletion, pending confirmation.
	EventSecondaryAction
)

func (k EventKind) String() string {
	switch k {
	case EventClick:
		return "click"
	case EventDragStart:
		return "drag-start"
	case EventDragEnd:
		return "drag-end"
	case EventSecondaryAction:
		return "secondary-action"
	default:
		return "unknown"
	}
}

// InteractionFunc receives every gesture for every visual. A single
// registration covers the whole surface, so interaction logic is testable
// without a live renderer.
type InteractionFunc func(kind EventKind, id uint, at geom.XY)

// VisualKind tags the visual variant of a marker. Each kind carries its own
// zoom-resize strategy, looked up by tag rather than by runtime type checks.
type VisualKind int

const (
	// KindPoint is a circle marker, the only kind currently shipped.
	KindPoint VisualKind = iota
)

// Visual is the 1:1 screen projection of one marker record.
type Visual struct {
	ID       uint
	Kind     VisualKind
	Center   geom.XY
	Radius   float64
	HasImage bool
}

// Surface is the rendering target the scheduler draws onto.
type Surface interface {
	Place(v Visual)
	Update(v Visual)
	Remove(id uint)
	Clear()
}

// Zoom thresholds of the three-tier visual scaling.
const (
	lowZoomThreshold  = 3
	highZoomThreshold = 6

	lowZoomFactor  = 0.8
	highZoomFactor = 1.2
)

// resizeStrategies maps each visual kind to its zoom scaling law.
var resizeStrategies = map[VisualKind]func(zoom int) float64{
	KindPoint: threeTierFactor,
}

// threeTierFactor shrinks markers at far-out zooms and grows them close in.
func threeTierFactor(zoom int) float64 {
	switch {
	case zoom < lowZoomThreshold:
		return lowZoomFactor
	case zoom > highZoomThreshold:
		return highZoomFactor
	default:
		return 1.0
	}
}

// ScaleFactor returns the radius multiplier for a visual kind at a zoom.
func ScaleFactor(kind VisualKind, zoom int) float64 {
	strategy, ok := resizeStrategies[kind]
	if !ok {
		return 1.0
	}
	return strategy(zoom)
}
