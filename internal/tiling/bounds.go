package tiling

import "photomap/internal/atlas"

// BoundsForDateRange computes the bounding box of the items whose date
// falls in the inclusive range (zero bounds mean unconstrained). The
// second return is false when no item matched.
//
// Longitude grows via westmost/eastmost rather than plain min/max so a
// box straddling the antimeridian stays narrow instead of flipping to
// span nearly the whole globe the wrong way.
func BoundsForDateRange(items []atlas.GeoItem, from, to atlas.Numdate) (atlas.Bounds, bool) {
	filter := atlas.Filter{DateFrom: from, DateTo: to}
	var b atlas.Bounds
	found := false
	for i := range items {
		it := &items[i]
		if !filter.MatchesDate(it.Date) {
			continue
		}
		if !found {
			b = atlas.Bounds{
				South: it.Position.Lat,
				North: it.Position.Lat,
				West:  it.Position.Lng,
				East:  it.Position.Lng,
			}
			found = true
			continue
		}
		if it.Position.Lat < b.South {
			b.South = it.Position.Lat
		}
		if it.Position.Lat > b.North {
			b.North = it.Position.Lat
		}
		b.West = westmost(b.West, it.Position.Lng)
		b.East = eastmost(b.East, it.Position.Lng)
	}
	return b, found
}

// westmost picks whichever candidate reaches the other by traveling
// east less than 180 degrees (ties broken toward a).
func westmost(a, b float64) float64 {
	if mod360(b-a) < 180 {
		return a
	}
	return b
}

// eastmost picks whichever candidate is reached from the other by
// traveling east less than 180 degrees (ties broken toward b).
func eastmost(a, b float64) float64 {
	if mod360(b-a) < 180 {
		return b
	}
	return a
}
