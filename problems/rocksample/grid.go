package rocksample

import (
	"fmt"
	"os"
	"strings"
)

// Cell codes; rocks use their index, so every rock code is >= 0.
const (
	cellEmpty int64 = -1
	cellGoal  int64 = -2
)

// Grid is the parsed map: cell types, the start position and the rock
// positions in discovery order.
type Grid struct {
	Rows  int64
	Cols  int64
	Start Position
	Rocks []Position
	cells [][]int64
}

// ParseMap reads the map format of the problem files: a "rows cols" header
// followed by one line per row of cells '.' (empty), 'S' (start), 'G'
// (goal) and 'o' (rock).
func ParseMap(text string) (*Grid, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty map")
	}
	g := &Grid{}
	if _, err := fmt.Sscanf(lines[0], "%d %d", &g.Rows, &g.Cols); err != nil {
		return nil, fmt.Errorf("bad map header %q: %w", lines[0], err)
	}
	if int64(len(lines)-1) < g.Rows {
		return nil, fmt.Errorf("map declares %d rows, found %d", g.Rows, len(lines)-1)
	}
	haveStart := false
	for i := int64(0); i < g.Rows; i++ {
		line := lines[1+i]
		if int64(len(line)) < g.Cols {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(line), g.Cols)
		}
		row := make([]int64, g.Cols)
		for j := int64(0); j < g.Cols; j++ {
			switch line[j] {
			case 'o':
				row[j] = int64(len(g.Rocks))
				g.Rocks = append(g.Rocks, Position{Row: i, Col: j})
			case 'G':
				row[j] = cellGoal
			case 'S':
				g.Start = Position{Row: i, Col: j}
				haveStart = true
				row[j] = cellEmpty
			default:
				row[j] = cellEmpty
			}
		}
		g.cells = append(g.cells, row)
	}
	if !haveStart {
		return nil, fmt.Errorf("map has no start cell")
	}
	return g, nil
}

// LoadMap parses a map file.
func LoadMap(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map: %w", err)
	}
	return ParseMap(string(data))
}

func (g *Grid) inBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.Rows && p.Col >= 0 && p.Col < g.Cols
}

// RockAt returns the rock index at p, or -1.
func (g *Grid) RockAt(p Position) int64 {
	if !g.inBounds(p) {
		return -1
	}
	if c := g.cells[p.Row][p.Col]; c >= 0 {
		return c
	}
	return -1
}

func (g *Grid) isGoal(p Position) bool {
	return g.inBounds(p) && g.cells[p.Row][p.Col] == cellGoal
}

// Draw renders the map the way the problem files write it; rocks print
// their index.
func (g *Grid) Draw() string {
	var sb strings.Builder
	for i := int64(0); i < g.Rows; i++ {
		for j := int64(0); j < g.Cols; j++ {
			switch c := g.cells[i][j]; {
			case c >= 0:
				fmt.Fprintf(&sb, "%x", c)
			case c == cellGoal:
				sb.WriteByte('G')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
