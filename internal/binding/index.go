// Package binding implements the precomputed spatial index over key geometries and custom
// regions (spec.md §4.3, C3). Indexes are rebuilt only when layouts or the keymap change;
// queries are O(keys), allocation-free, and side-partitioned.
package binding

import (
	"sort"

	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/keymap"
)

// DefaultSnapRadius is the normalized-unit snap radius used when a release lands outside
// every key (spec.md §4.3 policy 3).
const DefaultSnapRadius = 0.05

type gridEntry struct {
	StorageKey string
	Row, Col   int
	Geom       keymap.HitGeometry
}

type customEntry struct {
	ID   string
	Geom keymap.HitGeometry
}

type sideIndex struct {
	grid          []gridEntry
	customByLayer [keymap.MaxLayer + 1][]customEntry
}

// Index is the Binding Index owned by the Core. It never crosses sides: a query for
// frame.SideLeft never considers right-side geometry, and vice versa.
type Index struct {
	sides      map[frame.Side]*sideIndex
	snapRadius float64
}

// Result is the outcome of a Hit query.
type Result struct {
	StorageKey   string
	IsCustom     bool
	CustomID     string
	Row, Col     int
	EdgeDistance float64 // negative = outside, larger = further inside
}

// Build precomputes the spatial index for both sides from their computed layouts and the
// active keymap's custom buttons across every layer (spec.md §4.3).
func Build(layouts map[frame.Side]keymap.KeyLayout, km *keymap.Keymap, preset string, snapRadius float64) *Index {
	if snapRadius <= 0 {
		snapRadius = DefaultSnapRadius
	}
	idx := &Index{sides: make(map[frame.Side]*sideIndex, len(layouts)), snapRadius: snapRadius}

	for side, layout := range layouts {
		si := &sideIndex{}
		for sk, k := range layout.Keys {
			_, row, col, err := keymap.ParseStorageKey(sk)
			if err != nil {
				continue
			}
			si.grid = append(si.grid, gridEntry{StorageKey: sk, Row: row, Col: col, Geom: k.Geometry()})
		}
		// Stable bucket order by row then column makes tie-breaking and iteration
		// deterministic (spec.md §4.3 policy 4, §8 property 6 determinism).
		sort.Slice(si.grid, func(i, j int) bool {
			if si.grid[i].Row != si.grid[j].Row {
				return si.grid[i].Row < si.grid[j].Row
			}
			return si.grid[i].Col < si.grid[j].Col
		})

		if km != nil {
			for layer := uint8(0); layer <= keymap.MaxLayer; layer++ {
				for _, b := range km.CustomButtonsFor(preset, layer) {
					if b.Side != side {
						continue
					}
					si.customByLayer[layer] = append(si.customByLayer[layer], customEntry{ID: b.ID, Geom: b.Rect.Geometry()})
				}
			}
		}
		idx.sides[side] = si
	}
	return idx
}

// Hit resolves a normalized point against the active layer's geometry for one side, applying
// the policy in spec.md §4.3: custom buttons first (insertion order, first match wins), then
// the static grid, then snap-to-nearest-center within snapRadius, with deterministic ties.
func (idx *Index) Hit(side frame.Side, layer uint8, x, y float64) (Result, bool) {
	si, ok := idx.sides[side]
	if !ok {
		return Result{}, false
	}

	if layer <= keymap.MaxLayer {
		for _, b := range si.customByLayer[layer] {
			if inside, dist := b.Geom.Contains(x, y); inside {
				return Result{IsCustom: true, CustomID: b.ID, EdgeDistance: dist}, true
			}
		}
	}

	for _, g := range si.grid {
		if inside, dist := g.Geom.Contains(x, y); inside {
			return Result{StorageKey: g.StorageKey, Row: g.Row, Col: g.Col, EdgeDistance: dist}, true
		}
	}

	// Snap to nearest key center within snapRadius, tie-broken by smaller center distance,
	// then lower row, then lower column (spec.md §4.3 policy 4).
	best := -1
	bestDist := idx.snapRadius
	bestEdge := 0.0
	for i, g := range si.grid {
		d := g.Geom.CenterDistance(x, y)
		if d > idx.snapRadius {
			continue
		}
		if best == -1 || d < bestDist ||
			(d == bestDist && (g.Row < si.grid[best].Row ||
				(g.Row == si.grid[best].Row && g.Col < si.grid[best].Col))) {
			best = i
			bestDist = d
			_, bestEdge = g.Geom.Contains(x, y)
		}
	}
	if best == -1 {
		return Result{}, false
	}
	g := si.grid[best]
	return Result{StorageKey: g.StorageKey, Row: g.Row, Col: g.Col, EdgeDistance: bestEdge}, true
}
