// Package projection maps normalized catalog coordinates onto the planar
// pixel space of a fixed tile pyramid. There is no geodesy here: the map is
// a flat raster and every transform is affine.
package projection

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"
)

// Default pyramid dimensions for the shipped map image.
const (
	DefaultWorldWidth    = 1024
	DefaultWorldHeight   = 1024
	DefaultTileSize      = 128
	DefaultMinZoom       = 2
	DefaultMaxNativeZoom = 8
	DefaultMaxZoom       = 10
)

// Projection describes one tile pyramid and converts between normalized
// [0,1]² coordinates and planar screen points.
//
// Normalized space has its origin at the top-left with y growing downward.
// Planar space keeps x as-is and negates y so it grows upward; tile
// addressing re-inverts it. Both inversions must stay exact or markers and
// tiles drift apart under zoom.
type Projection struct {
	WorldWidth    float64
	WorldHeight   float64
	TileSize      int
	MinZoom       int
	MaxNativeZoom int
	MaxZoom       int
}

// Default returns the projection for the shipped 1024x1024 pyramid.
func Default() Projection {
	return Projection{
		WorldWidth:    DefaultWorldWidth,
		WorldHeight:   DefaultWorldHeight,
		TileSize:      DefaultTileSize,
		MinZoom:       DefaultMinZoom,
		MaxNativeZoom: DefaultMaxNativeZoom,
		MaxZoom:       DefaultMaxZoom,
	}
}

// ToScreen converts normalized coordinates to a planar screen point at the
// reference zoom.
func (p Projection) ToScreen(xNorm, yNorm float64) geom.XY {
	return geom.XY{
		X: xNorm * p.WorldWidth,
		Y: -yNorm * p.WorldHeight,
	}
}

// ToNormalized converts a planar screen point back to normalized
// coordinates, clamping both axes to [0,1]. Points released outside the
// world extent land on its edge.
func (p Projection) ToNormalized(pt geom.XY) (xNorm, yNorm float64) {
	xNorm = clamp(pt.X/p.WorldWidth, 0, 1)
	yNorm = clamp(-pt.Y/p.WorldHeight, 0, 1)
	return xNorm, yNorm
}

// Scale returns the pixel scale factor at the given zoom relative to the
// reference zoom: scale(zoom) = 2^(zoom - minZoom).
func (p Projection) Scale(zoom float64) float64 {
	return math.Pow(2, zoom-float64(p.MinZoom))
}

// ZoomForScale is the inverse of Scale: zoom(s) = log2(s) + minZoom.
func (p Projection) ZoomForScale(scale float64) float64 {
	return math.Log2(scale) + float64(p.MinZoom)
}

// ClampToWorld pins a planar point into the world extent. Used to bound
// panning so nothing outside the raster is ever requested.
func (p Projection) ClampToWorld(pt geom.XY) geom.XY {
	return geom.XY{
		X: clamp(pt.X, 0, p.WorldWidth),
		Y: clamp(pt.Y, -p.WorldHeight, 0),
	}
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
