package geo

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

// earthRadiusMeters is the fixed sphere radius used to convert angular
// distances to meters.
const earthRadiusMeters = 6371000

// rectTol is the tolerance used to turn a point into a degenerate R-tree
// rectangle.
const rectTol = 1e-9

// Result pairs a park with its great-circle distance from the query point.
type Result struct {
	Park   Park
	Meters float64
}

// Index is a read-only spatial index over a fixed park set. Build it once
// with NewIndex; Nearest is safe for concurrent use afterwards.
type Index struct {
	parks []Park
	tree  *rtreego.Rtree
}

type treeItem struct {
	idx  int
	rect rtreego.Rect
}

func (t *treeItem) Bounds() rtreego.Rect { return t.rect }

// NewIndex builds the spatial index. Points are stored in a locally
// projected plane with longitude on the first axis, matching the tree's
// (x, y) convention.
func NewIndex(parks []Park) *Index {
	items := make([]rtreego.Spatial, len(parks))
	for i, p := range parks {
		pt := project(p.Lat, p.Lon)
		items[i] = &treeItem{idx: i, rect: pt.ToRect(rectTol)}
	}
	return &Index{
		parks: parks,
		tree:  rtreego.NewTree(2, 25, 50, items...),
	}
}

// Size returns the number of indexed parks.
func (ix *Index) Size() int { return len(ix.parks) }

// Nearest returns the k parks closest to (lat, lon), ascending by distance.
// k values above the indexed count are clamped to it; that clamp is the
// intended boundary behavior, not an error. Nearest never filters by
// distance; deciding that results are too far away is the caller's policy.
func (ix *Index) Nearest(lat, lon float64, k int) []Result {
	if k < 1 || len(ix.parks) == 0 {
		return nil
	}
	if k > len(ix.parks) {
		k = len(ix.parks)
	}

	// The projected plane makes planar distance track great-circle distance
	// closely at city scale; oversampling and re-ranking by haversine
	// removes the residual ordering error.
	cand := k * 3
	if cand > len(ix.parks) {
		cand = len(ix.parks)
	}

	query := project(lat, lon)
	neighbors := ix.tree.NearestNeighbors(cand, query)

	results := make([]Result, 0, len(neighbors))
	for _, n := range neighbors {
		item := n.(*treeItem)
		park := ix.parks[item.idx]
		results = append(results, Result{
			Park:   park,
			Meters: haversineMeters(lat, lon, park.Lat, park.Lon),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Meters < results[j].Meters })

	return results[:k]
}

// haversineMeters computes the great-circle distance between two points on a
// sphere of radius earthRadiusMeters.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	deltaPhi := radians(lat2 - lat1)
	deltaLambda := radians(lon2 - lon1)

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// project maps a coordinate onto an equirectangular plane in radians, with
// longitude scaled by cos(lat). Without the scaling, one degree of
// longitude near the poles would look as long to the tree as one degree of
// latitude, and the tree could rank a genuinely near point behind a far
// one so badly that re-ranking never sees it.
func project(lat, lon float64) rtreego.Point {
	phi := radians(lat)
	return rtreego.Point{radians(lon) * math.Cos(phi), phi}
}
