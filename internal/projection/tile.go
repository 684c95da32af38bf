package projection

import (
	"fmt"
	"strings"
)

// Tile addresses one image in the pyramid by integer zoom, column and row.
// Row 0 is the top of the map (tile space is y-down).
type Tile struct {
	Zoom int
	Col  int
	Row  int
}

// NativeZoom clamps a display zoom into the range backed by real imagery.
// Display zooms above the native maximum upscale the highest-resolution
// tiles instead of requesting files that do not exist.
func (p Projection) NativeZoom(zoom int) int {
	if zoom < p.MinZoom {
		return p.MinZoom
	}
	if zoom > p.MaxNativeZoom {
		return p.MaxNativeZoom
	}
	return zoom
}

// TilesPerAxis returns the tile count along one axis at the given display
// zoom, evaluated at the clamped native zoom.
func (p Projection) TilesPerAxis(zoom int) int {
	native := p.NativeZoom(zoom)
	n := int(p.WorldWidth) * int(p.Scale(float64(native))) / p.TileSize
	if n < 1 {
		n = 1
	}
	return n
}

// TileAt returns the tile containing the given planar point at a display
// zoom. Indices are clamped into the pyramid, never outside it.
func (p Projection) TileAt(x, y float64, zoom int) Tile {
	native := p.NativeZoom(zoom)
	s := p.Scale(float64(native))

	// back to y-down pixel space at the native zoom
	px := x * s
	py := -y * s

	limit := p.TilesPerAxis(zoom) - 1
	col := clampInt(int(px)/p.TileSize, 0, limit)
	row := clampInt(int(py)/p.TileSize, 0, limit)

	return Tile{Zoom: native, Col: col, Row: row}
}

// TilesInView lists every tile covering the planar rectangle spanned by two
// corner points at a display zoom, clamped to the world extent.
func (p Projection) TilesInView(x0, y0, x1, y1 float64, zoom int) []Tile {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}

	first := p.TileAt(x0, y1, zoom)
	last := p.TileAt(x1, y0, zoom)

	tiles := make([]Tile, 0, (last.Col-first.Col+1)*(last.Row-first.Row+1))
	for row := first.Row; row <= last.Row; row++ {
		for col := first.Col; col <= last.Col; col++ {
			tiles = append(tiles, Tile{Zoom: first.Zoom, Col: col, Row: row})
		}
	}
	return tiles
}

// TileSource expands tile addresses into fetchable URLs. Placeholder is
// substituted by the rendering surface when a tile fails to load, so a
// missing image never blocks marker interaction.
type TileSource struct {
	Template    string
	Placeholder string
}

// URL expands the {z}/{x}/{y} template for a tile.
func (s TileSource) URL(t Tile) string {
	r := strings.NewReplacer(
		"{z}", fmt.Sprint(t.Zoom),
		"{x}", fmt.Sprint(t.Col),
		"{y}", fmt.Sprint(t.Row),
	)
	return r.Replace(s.Template)
}

func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
