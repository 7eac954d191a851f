package main

import "math"

// CheckCollision checks if two circles overlap
func CheckCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	radSum := r1 + r2
	return dx*dx+dy*dy < radSum*radSum
}

// CircleCellOverlap checks a circle against the unit square of cell (cx,cy)
// using the closest point on the square. Touching edges do not overlap.
func CircleCellOverlap(x, y, r float64, cx, cy int) bool {
	nx := Clamp(x, float64(cx), float64(cx+1))
	ny := Clamp(y, float64(cy), float64(cy+1))
	dx := x - nx
	dy := y - ny
	return dx*dx+dy*dy < r*r
}

// CircleHitsTerrain reports whether a circle overlaps any tank-blocking cell
func CircleHitsTerrain(idx *SpatialIndex, x, y, r float64) bool {
	minX := int(math.Floor(x - r))
	maxX := int(math.Floor(x + r))
	minY := int(math.Floor(y - r))
	maxY := int(math.Floor(y + r))
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			if idx.Blocking(cx, cy) && CircleCellOverlap(x, y, r, cx, cy) {
				return true
			}
		}
	}
	return false
}

// cellOf returns the cell containing the point
func cellOf(x, y float64) (int, int) {
	return int(math.Floor(x)), int(math.Floor(y))
}

// inBounds reports whether a point lies inside a w x h map
func inBounds(x, y float64, w, h int) bool {
	return x >= 0 && y >= 0 && x < float64(w) && y < float64(h)
}
