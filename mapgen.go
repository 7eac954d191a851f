package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strings"
)

var ErrUnknownMap = errors.New("unknown map")

// MapDef is the static description of a map
type MapDef struct {
	ID         string
	Mode       MapMode
	Width      int
	Height     int
	Obstacles  []Obstacle
	Spawns     []Point
	TeamSpawns [3][]Point
	Stars      []Point
	Bases      [3]Rect
	FlagHomes  [3]Point
	BossSpawn  Point
}

// mapSeed derives the generator seed from the map id
func mapSeed(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return int64(h.Sum64() & math.MaxInt64)
}

// ParseMapMode returns the mode named by the id prefix, e.g. "ctf-2"
func ParseMapMode(id string) (MapMode, error) {
	prefix, _, _ := strings.Cut(id, "-")
	switch prefix {
	case "classic":
		return ModeClassic, nil
	case "ctf":
		return ModeCTF, nil
	case "boss":
		return ModeBoss, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMap, id)
}

// GenerateMap builds the map for id. The result depends only on id.
func GenerateMap(id string) (*MapDef, error) {
	mode, err := ParseMapMode(id)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(mapSeed(id)))
	def := &MapDef{ID: id, Mode: mode}

	switch mode {
	case ModeCTF:
		def.Width, def.Height = 72, 40
		midY := float64(def.Height) / 2
		def.Bases[TeamRed] = Rect{1, midY - 5, 8, midY + 5}
		def.Bases[TeamBlue] = Rect{float64(def.Width) - 8, midY - 5, float64(def.Width) - 1, midY + 5}
		for _, team := range []int{TeamRed, TeamBlue} {
			b := def.Bases[team]
			def.FlagHomes[team] = b.Center()
			for i := 0; i < 6; i++ {
				def.TeamSpawns[team] = append(def.TeamSpawns[team], Point{
					X: b.X1 + 1.5 + float64(i%2)*(b.X2-b.X1-3),
					Y: b.Y1 + 1.5 + float64(i/2)*3.5,
				})
			}
		}
		def.Spawns = append(append([]Point{}, def.TeamSpawns[TeamRed]...), def.TeamSpawns[TeamBlue]...)
	case ModeBoss:
		def.Width, def.Height = 48, 48
		def.BossSpawn = Point{float64(def.Width) / 2, float64(def.Height) / 3}
		for i := 0; i < 10; i++ {
			def.Spawns = append(def.Spawns, Point{X: 4.5 + float64(i)*4.3, Y: float64(def.Height) - 3.5})
		}
	default:
		def.Width, def.Height = 60, 60
		cx, cy := float64(def.Width)/2, float64(def.Height)/2
		r := 0.38 * float64(def.Width)
		for i := 0; i < 16; i++ {
			a := float64(i) * 2 * math.Pi / 16
			hx, hy := Heading(a)
			def.Spawns = append(def.Spawns, Point{math.Floor(cx+hx*r) + 0.5, math.Floor(cy+hy*r) + 0.5})
		}
	}

	reserved := func(x, y int) bool {
		px, py := float64(x)+0.5, float64(y)+0.5
		for _, s := range def.Spawns {
			if Distance(px, py, s.X, s.Y) < 2.5 {
				return true
			}
		}
		if mode == ModeBoss && Distance(px, py, def.BossSpawn.X, def.BossSpawn.Y) < 4 {
			return true
		}
		if mode == ModeCTF {
			for _, team := range []int{TeamRed, TeamBlue} {
				b := def.Bases[team]
				if px >= b.X1-1 && px <= b.X2+1 && py >= b.Y1-1 && py <= b.Y2+1 {
					return true
				}
			}
		}
		return false
	}

	occupied := make(map[Cell]ObstacleKind)
	clusters := def.Width * def.Height / 45
	for i := 0; i < clusters; i++ {
		kind := pickObstacleKind(rng)
		w := 1 + rng.Intn(4)
		h := 1 + rng.Intn(3)
		x0 := rng.Intn(def.Width - w)
		y0 := rng.Intn(def.Height - h)
		for y := y0; y < y0+h; y++ {
			for x := x0; x < x0+w; x++ {
				if reserved(x, y) {
					continue
				}
				occupied[Cell{x, y}] = kind
			}
		}
	}
	for c, kind := range occupied {
		o := Obstacle{X: c.X, Y: c.Y, Kind: kind}
		if kind == ObstacleBrick {
			o.HP = BrickHP
		}
		def.Obstacles = append(def.Obstacles, o)
	}
	sortObstacles(def.Obstacles)

	starCount := def.Width * def.Height / 120
	seen := make(map[Cell]bool)
	for tries := 0; len(def.Stars) < starCount && tries < starCount*20; tries++ {
		c := Cell{rng.Intn(def.Width), rng.Intn(def.Height)}
		if _, blocked := occupied[c]; blocked || seen[c] {
			continue
		}
		seen[c] = true
		def.Stars = append(def.Stars, Point{float64(c.X) + 0.5, float64(c.Y) + 0.5})
	}
	return def, nil
}

func pickObstacleKind(rng *rand.Rand) ObstacleKind {
	n := rng.Intn(100)
	switch {
	case n < 40:
		return ObstacleBrick
	case n < 55:
		return ObstacleSteel
	case n < 70:
		return ObstacleWater
	case n < 90:
		return ObstacleBush
	}
	return ObstacleQuicksand
}

func sortObstacles(obs []Obstacle) {
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Y != obs[j].Y {
			return obs[i].Y < obs[j].Y
		}
		return obs[i].X < obs[j].X
	})
}

// MapRun is a horizontal run of same-kind cells. On the wire it is the
// array [x, y, type, len].
type MapRun struct {
	X, Y int
	Type ObstacleKind
	Len  int
}

func (r MapRun) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.X, r.Y, int(r.Type), r.Len})
}

func (r *MapRun) UnmarshalJSON(data []byte) error {
	var a [4]int
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a[3] < 1 || a[2] < int(ObstacleBrick) || a[2] > int(ObstacleQuicksand) {
		return fmt.Errorf("invalid map run %v", a)
	}
	r.X, r.Y, r.Type, r.Len = a[0], a[1], ObstacleKind(a[2]), a[3]
	return nil
}

// CompressMap run-length encodes obstacles sorted by (y, x). Runs only
// extend along increasing x with constant y and kind.
func CompressMap(obs []*Obstacle) []MapRun {
	var runs []MapRun
	for _, o := range obs {
		if n := len(runs); n > 0 {
			last := &runs[n-1]
			if last.Y == o.Y && last.Type == o.Kind && last.X+last.Len == o.X {
				last.Len++
				continue
			}
		}
		runs = append(runs, MapRun{X: o.X, Y: o.Y, Type: o.Kind, Len: 1})
	}
	return runs
}

// DecompressMap expands runs back into obstacles. Bricks get full HP.
func DecompressMap(runs []MapRun) []Obstacle {
	var out []Obstacle
	for _, r := range runs {
		for i := 0; i < r.Len; i++ {
			o := Obstacle{X: r.X + i, Y: r.Y, Kind: r.Type}
			if r.Type == ObstacleBrick {
				o.HP = BrickHP
			}
			out = append(out, o)
		}
	}
	return out
}
