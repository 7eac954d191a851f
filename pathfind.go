package main

import "container/heap"

// MaxPathNodes caps how many cells one search may expand
const MaxPathNodes = 2000

// Cell is an integer map coordinate
type Cell struct {
	X, Y int
}

type pathNode struct {
	cell  Cell
	g, f  int
	index int
}

type openSet []*pathNode

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].g > o[j].g
}
func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openSet) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*o)
	*o = append(*o, n)
}
func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*o = old[:len(old)-1]
	return n
}

func manhattan(a, b Cell) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

var pathDirs = [4]Cell{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// FindPath runs a 4-directional A* over walkable cells of a w x h map.
// The returned path starts after start and ends at goal. It returns
// nil, false when the goal is unreachable or the node budget runs out.
func FindPath(idx *SpatialIndex, w, h int, start, goal Cell) ([]Cell, bool) {
	walkable := func(c Cell) bool {
		return c.X >= 0 && c.Y >= 0 && c.X < w && c.Y < h && idx.Walkable(c.X, c.Y)
	}
	if !walkable(start) || !walkable(goal) {
		return nil, false
	}
	if start == goal {
		return []Cell{}, true
	}

	open := &openSet{}
	heap.Init(open)
	nodes := map[Cell]*pathNode{}
	came := map[Cell]Cell{}
	closed := map[Cell]bool{}

	sn := &pathNode{cell: start, g: 0, f: manhattan(start, goal)}
	nodes[start] = sn
	heap.Push(open, sn)

	expanded := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if cur.cell == goal {
			return rebuildPath(came, start, goal), true
		}
		closed[cur.cell] = true
		expanded++
		if expanded > MaxPathNodes {
			return nil, false
		}
		for _, d := range pathDirs {
			nc := Cell{cur.cell.X + d.X, cur.cell.Y + d.Y}
			if closed[nc] || !walkable(nc) {
				continue
			}
			g := cur.g + 1
			if n, ok := nodes[nc]; ok {
				if g < n.g {
					n.g = g
					n.f = g + manhattan(nc, goal)
					came[nc] = cur.cell
					heap.Fix(open, n.index)
				}
				continue
			}
			n := &pathNode{cell: nc, g: g, f: g + manhattan(nc, goal)}
			nodes[nc] = n
			came[nc] = cur.cell
			heap.Push(open, n)
		}
	}
	return nil, false
}

func rebuildPath(came map[Cell]Cell, start, goal Cell) []Cell {
	var rev []Cell
	for c := goal; c != start; c = came[c] {
		rev = append(rev, c)
	}
	path := make([]Cell, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}
