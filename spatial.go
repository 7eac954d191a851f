package main

import "sort"

// SpatialBucketSize is the bucket edge length in cells
const SpatialBucketSize = 8

// BrickHP is the starting health of a destructible brick
const BrickHP = 3

// ObstacleKind identifies the terrain type of a map cell
type ObstacleKind uint8

const (
	ObstacleBrick     ObstacleKind = 1 // destructible, blocks tanks and bullets
	ObstacleSteel     ObstacleKind = 2 // indestructible
	ObstacleWater     ObstacleKind = 3 // blocks tanks, bullets fly over
	ObstacleBush      ObstacleKind = 4 // passable, conceals
	ObstacleQuicksand ObstacleKind = 5 // passable, slows
)

// Obstacle is a single occupied map cell
type Obstacle struct {
	X, Y int
	Kind ObstacleKind
	HP   int
}

// BlocksTanks reports whether tanks can not enter the cell
func (o *Obstacle) BlocksTanks() bool {
	switch o.Kind {
	case ObstacleBrick, ObstacleSteel, ObstacleWater:
		return true
	}
	return false
}

// BlocksBullets reports whether bullets stop at the cell
func (o *Obstacle) BlocksBullets() bool {
	return o.Kind == ObstacleBrick || o.Kind == ObstacleSteel
}

type bucketKey struct {
	bx, by int
}

// SpatialIndex stores obstacles in sparse square buckets for cell and
// rectangle lookups
type SpatialIndex struct {
	buckets map[bucketKey][]*Obstacle
	count   int
}

// NewSpatialIndex creates an empty index
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{buckets: make(map[bucketKey][]*Obstacle)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func keyFor(x, y int) bucketKey {
	return bucketKey{floorDiv(x, SpatialBucketSize), floorDiv(y, SpatialBucketSize)}
}

// Add inserts o, replacing any obstacle already at the same cell
func (s *SpatialIndex) Add(o *Obstacle) {
	k := keyFor(o.X, o.Y)
	b := s.buckets[k]
	for i, e := range b {
		if e.X == o.X && e.Y == o.Y {
			b[i] = o
			return
		}
	}
	s.buckets[k] = append(b, o)
	s.count++
}

// Remove deletes the obstacle at o's cell. Missing cells are ignored.
func (s *SpatialIndex) Remove(o *Obstacle) {
	k := keyFor(o.X, o.Y)
	b := s.buckets[k]
	for i, e := range b {
		if e.X == o.X && e.Y == o.Y {
			b[i] = b[len(b)-1]
			b = b[:len(b)-1]
			if len(b) == 0 {
				delete(s.buckets, k)
			} else {
				s.buckets[k] = b
			}
			s.count--
			return
		}
	}
}

// At returns the obstacle occupying cell (x,y)
func (s *SpatialIndex) At(x, y int) (*Obstacle, bool) {
	for _, e := range s.buckets[keyFor(x, y)] {
		if e.X == x && e.Y == y {
			return e, true
		}
	}
	return nil, false
}

// InRect returns obstacles whose cell lies in the inclusive rectangle
func (s *SpatialIndex) InRect(x1, y1, x2, y2 int) []*Obstacle {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	var out []*Obstacle
	k1 := keyFor(x1, y1)
	k2 := keyFor(x2, y2)
	for by := k1.by; by <= k2.by; by++ {
		for bx := k1.bx; bx <= k2.bx; bx++ {
			for _, e := range s.buckets[bucketKey{bx, by}] {
				if e.X >= x1 && e.X <= x2 && e.Y >= y1 && e.Y <= y2 {
					out = append(out, e)
				}
			}
		}
	}
	return out
}

// Blocking reports whether a tank can not occupy cell (x,y)
func (s *SpatialIndex) Blocking(x, y int) bool {
	o, ok := s.At(x, y)
	return ok && o.BlocksTanks()
}

// Walkable is the inverse of Blocking
func (s *SpatialIndex) Walkable(x, y int) bool {
	return !s.Blocking(x, y)
}

// Len returns the number of stored obstacles
func (s *SpatialIndex) Len() int {
	return s.count
}

// All returns every obstacle sorted by (y, x)
func (s *SpatialIndex) All() []*Obstacle {
	out := make([]*Obstacle, 0, s.count)
	for _, b := range s.buckets {
		out = append(out, b...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
