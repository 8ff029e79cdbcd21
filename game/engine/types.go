package engine

import (
	"fmt"
	"math"
)

// Infinite is the depth reported for bedrock below the board.
const Infinite = math.MaxInt

const (
	// Solver limits
	DefaultMaxDepth = 3
	MaxSolveDepth   = 9

	// Validation constants
	MaxLayoutWidth  = 64
	MaxLayoutHeight = 64

	// Layout characters
	StartChar = '@'
	GoalChar  = '*'
	OpenChar  = '.'
)

// Cell is a grid coordinate. Y grows upward and Y<0 is bedrock.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Segment is a named block of cells that moves as one unit
type Segment struct {
	Name  string `json:"name"`
	Cells []Cell `json:"cells"`
}

// SegmentMoveRange is the inclusive range of depths a segment can be set to
// from the character's current cell. When Unbounded is set, Max is
// meaningless and the caller's max depth applies.
type SegmentMoveRange struct {
	Segment   int  `json:"segment"`
	Min       int  `json:"min"`
	Max       int  `json:"max"`
	Unbounded bool `json:"unbounded,omitempty"`
}

// Upper returns the highest depth in the range, capping unbounded ranges at maxDepth
func (r SegmentMoveRange) Upper(maxDepth int) int {
	if r.Unbounded {
		return maxDepth
	}
	return r.Max
}

// Step is one entry of a solution: the configuration after move N and the
// cell the character occupies.
type Step struct {
	N      int            `json:"n"`
	Config *Configuration `json:"configuration"`
	Cell   Cell           `json:"cell"`
}

// SolverStats reports how much work a search did
type SolverStats struct {
	Expanded       int `json:"expanded"`
	Enqueued       int `json:"enqueued"`
	Pruned         int `json:"pruned"`
	Duplicates     int `json:"duplicates"`
	Covered        int `json:"covered"`
	Configurations int `json:"configurations"`
}

// Snapshot is emitted once per expanded state when tracing is enabled
type Snapshot struct {
	Move      int
	Config    *Configuration
	Cell      Cell
	Reachable []Cell
}
