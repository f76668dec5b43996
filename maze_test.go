package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMazeRejectsBadSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, size := range []int{0, 3, 4, 6, 20} {
		_, err := GenerateMaze(size, rng)
		assert.ErrorIs(t, err, ErrMazeSize, "size %d", size)
	}
}

// flood returns every tile reachable from start through open cells.
func flood(m *Maze, start Tile) map[Tile]bool {
	seen := map[Tile]bool{start: true}
	queue := []Tile{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, d := range mazeDirections {
			next := Tile{X: cur.X + d.X, Y: cur.Y + d.Y}
			if seen[next] || !m.Open(next) {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}

	return seen
}

func TestGenerateMazeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for size := 5; size <= 29; size += 2 {
		for trial := 0; trial < 5; trial++ {
			m, err := GenerateMaze(size, rng)
			require.NoError(t, err)

			require.Len(t, m.Grid, size)
			for _, row := range m.Grid {
				require.Len(t, row, size)
			}

			// Goal and both starts sit on open cells; starts are distinct
			// from each other and from the goal.
			assert.True(t, m.Open(m.Goal))
			assert.True(t, m.Open(m.Starts[0]))
			assert.True(t, m.Open(m.Starts[1]))
			assert.NotEqual(t, m.Starts[0], m.Starts[1])
			assert.NotEqual(t, m.Goal, m.Starts[0])
			assert.NotEqual(t, m.Goal, m.Starts[1])

			// Both starts reach the goal (and therefore each other) through
			// open cells only.
			reachable := flood(m, m.Goal)
			assert.True(t, reachable[m.Starts[0]], "size %d trial %d: start 1 unreachable", size, trial)
			assert.True(t, reachable[m.Starts[1]], "size %d trial %d: start 2 unreachable", size, trial)

			// The border stays walled.
			for i := 0; i < size; i++ {
				assert.Equal(t, 0, m.Grid[0][i])
				assert.Equal(t, 0, m.Grid[size-1][i])
				assert.Equal(t, 0, m.Grid[i][0])
				assert.Equal(t, 0, m.Grid[i][size-1])
			}
		}
	}
}

func TestFarthestPair(t *testing.T) {
	tiles := []Tile{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 9, Y: 9}, {X: 2, Y: 0}}

	a, b := farthestPair(tiles)
	assert.ElementsMatch(t, []Tile{{X: 0, Y: 0}, {X: 9, Y: 9}}, []Tile{a, b})
}
