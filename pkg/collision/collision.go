// Package collision validates a furniture layout against its room: pairwise
// footprint overlap on the floor plane, and placement within the room bounds.
// Footprints are axis-aligned boxes centered on each item's position.
package collision

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Size struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

type Item struct {
	ID         string  `json:"id"`
	Position   Vector3 `json:"position"`
	Dimensions Size    `json:"dimensions"`
}

// Dimensions describes the room. The floor is centered on the origin and
// spans [-Width/2, Width/2] x [-Depth/2, Depth/2].
type Dimensions struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

type Result struct {
	Valid       bool     `json:"valid"`
	Collisions  []Pair   `json:"collisions"`
	OutOfBounds []string `json:"out_of_bounds"`
}

// ValidateLayout checks every item against the room bounds and every pair of
// items against each other. An empty layout is valid.
func ValidateLayout(items []Item, room Dimensions) Result {
	result := Result{
		Collisions:  []Pair{},
		OutOfBounds: []string{},
	}

	halfW := room.Width / 2
	halfD := room.Depth / 2
	for _, item := range items {
		minX, maxX, minZ, maxZ := footprint(item)
		if minX < -halfW || maxX > halfW || minZ < -halfD || maxZ > halfD {
			result.OutOfBounds = append(result.OutOfBounds, item.ID)
		}
	}

	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if overlaps(items[i], items[j]) {
				result.Collisions = append(result.Collisions, Pair{A: items[i].ID, B: items[j].ID})
			}
		}
	}

	result.Valid = len(result.Collisions) == 0 && len(result.OutOfBounds) == 0
	return result
}

func footprint(item Item) (minX, maxX, minZ, maxZ float64) {
	halfW := item.Dimensions.Width / 2
	halfD := item.Dimensions.Depth / 2
	return item.Position.X - halfW, item.Position.X + halfW,
		item.Position.Z - halfD, item.Position.Z + halfD
}

// overlaps reports whether two footprints intersect. Touching edges do not
// count as a collision.
func overlaps(a, b Item) bool {
	aMinX, aMaxX, aMinZ, aMaxZ := footprint(a)
	bMinX, bMaxX, bMinZ, bMaxZ := footprint(b)

	return aMinX < bMaxX && bMinX < aMaxX && aMinZ < bMaxZ && bMinZ < aMaxZ
}
