package main

import (
	"math"
	"math/rand"
)

// Tile is a single cell coordinate on the maze grid.
type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Maze is an odd-sized square grid of open (1) and wall (0) cells, a goal
// tile, and two start tiles sitting in a distance band around 2×size so
// both players face routes of comparable length. Mazes are immutable after
// generation and safe to share between goroutines.
type Maze struct {
	Size   int
	Grid   [][]int
	Goal   Tile
	Starts [2]Tile
}

var mazeDirections = [4]Tile{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

// GenerateMaze carves a random perfect maze of the given odd size and picks
// the goal and start tiles. The caller owns rng; generation itself holds no
// shared state.
func GenerateMaze(size int, rng *rand.Rand) (*Maze, error) {
	if size < 5 || size%2 == 0 {
		return nil, ErrMazeSize
	}

	m := &Maze{
		Size: size,
		Grid: make([][]int, size),
	}
	for y := range m.Grid {
		m.Grid[y] = make([]int, size)
	}

	m.carve(rng)
	m.pickStarts()

	return m, nil
}

// carve runs a randomized depth-first walk over odd-coordinate cells using
// an explicit stack, opening the wall between each visited cell and its
// unvisited neighbors two steps away. The cell opened last becomes the goal.
func (m *Maze) carve(rng *rand.Rand) {
	start := Tile{
		X: 1 + 2*rng.Intn(m.Size/2),
		Y: 1 + 2*rng.Intn(m.Size/2),
	}
	m.Grid[start.Y][start.X] = 1
	m.Goal = start

	stack := []Tile{start}
	dirs := mazeDirections

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rng.Shuffle(len(dirs), func(i, j int) {
			dirs[i], dirs[j] = dirs[j], dirs[i]
		})

		for _, d := range dirs {
			next := Tile{X: cur.X + d.X*2, Y: cur.Y + d.Y*2}
			if next.X <= 0 || next.X >= m.Size || next.Y <= 0 || next.Y >= m.Size {
				continue
			}
			if m.Grid[next.Y][next.X] != 0 {
				continue
			}

			m.Grid[next.Y][next.X] = 1
			m.Grid[cur.Y+d.Y][cur.X+d.X] = 1
			m.Goal = next
			stack = append(stack, next)
		}
	}
}

// pickStarts runs a breadth-first search from the goal, collects tiles whose
// graph distance falls within size/2 of 2×size, and selects the candidate
// pair with the greatest Euclidean separation as the two start tiles.
func (m *Maze) pickStarts() {
	type frontier struct {
		tile Tile
		dist int
	}

	wanted := m.Size * 2
	lo, hi := wanted-m.Size/2, wanted+m.Size/2

	seen := make(map[Tile]bool, m.Size*m.Size)
	seen[m.Goal] = true

	queue := []frontier{{tile: m.Goal, dist: 1}}
	var candidates, reachable []Tile

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.tile != m.Goal {
			reachable = append(reachable, cur.tile)
		}
		if cur.dist >= lo && cur.dist <= hi {
			candidates = append(candidates, cur.tile)
		}

		for _, d := range mazeDirections {
			next := Tile{X: cur.tile.X + d.X, Y: cur.tile.Y + d.Y}
			if next.X < 0 || next.X >= m.Size || next.Y < 0 || next.Y >= m.Size {
				continue
			}
			if seen[next] || m.Grid[next.Y][next.X] == 0 {
				continue
			}

			seen[next] = true
			queue = append(queue, frontier{tile: next, dist: cur.dist + 1})
		}
	}

	// Small mazes may have no tile inside the band; fall back to every
	// reachable tile except the goal so the starts stay distinct from it.
	if len(candidates) < 2 {
		candidates = reachable
	}

	m.Starts[0], m.Starts[1] = farthestPair(candidates)
}

// farthestPair returns the two tiles with the greatest straight-line
// separation.
func farthestPair(tiles []Tile) (Tile, Tile) {
	var best [2]Tile
	maxDist := -1.0

	for i := range tiles {
		for j := i + 1; j < len(tiles); j++ {
			dx := float64(tiles[i].X - tiles[j].X)
			dy := float64(tiles[i].Y - tiles[j].Y)
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist > maxDist {
				maxDist = dist
				best = [2]Tile{tiles[i], tiles[j]}
			}
		}
	}

	return best[0], best[1]
}

// Open reports whether the tile is in bounds and walkable.
func (m *Maze) Open(t Tile) bool {
	if t.X < 0 || t.X >= m.Size || t.Y < 0 || t.Y >= m.Size {
		return false
	}
	return m.Grid[t.Y][t.X] == 1
}

func (m *Maze) payload(starts map[string]Tile) MazePayload {
	return MazePayload{
		Size:   m.Size,
		Grid:   m.Grid,
		Goal:   m.Goal,
		Starts: starts,
	}
}
