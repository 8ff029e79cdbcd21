package engine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"
)

// Configuration assigns a depth to every segment of a board. Configurations
// are never modified after creation; With returns a copy.
type Configuration struct {
	board  *Board
	depths []int
}

// NewConfiguration returns the initial configuration with every segment flush
func NewConfiguration(board *Board) *Configuration {
	return &Configuration{
		board:  board,
		depths: make([]int, len(board.Segments)),
	}
}

// NewConfigurationWithDepths restores a configuration from a stored depth vector
func NewConfigurationWithDepths(board *Board, depths []int) (*Configuration, error) {
	if len(depths) != len(board.Segments) {
		return nil, fmt.Errorf("depth vector has %d entries, board has %d segments", len(depths), len(board.Segments))
	}
	for i, z := range depths {
		if z < 0 {
			return nil, fmt.Errorf("segment %d has negative depth %d", i, z)
		}
	}
	return &Configuration{board: board, depths: slices.Clone(depths)}, nil
}

// Board returns the geometry this configuration was built over
func (c *Configuration) Board() *Board {
	return c.board
}

// Depths returns a copy of the depth vector
func (c *Configuration) Depths() []int {
	return slices.Clone(c.depths)
}

// Depth returns the depth of segment i
func (c *Configuration) Depth(i int) int {
	return c.depths[i]
}

// DepthAt returns the depth at (x, y): the occupying segment's depth, 0 for
// an open cell, Infinite below the board.
func (c *Configuration) DepthAt(x, y int) int {
	if y < 0 {
		return Infinite
	}
	if i, ok := c.board.cells[Cell{X: x, Y: y}]; ok {
		return c.depths[i]
	}
	return 0
}

// With returns a copy of c with segment i set to depth z
func (c *Configuration) With(i, z int) *Configuration {
	depths := slices.Clone(c.depths)
	depths[i] = z
	return &Configuration{board: c.board, depths: depths}
}

// MinDepth returns the smallest segment depth, or 0 for a board without segments
func (c *Configuration) MinDepth() int {
	if len(c.depths) == 0 {
		return 0
	}
	return slices.Min(c.depths)
}

// Equal compares depth vectors only; the board is assumed shared
func (c *Configuration) Equal(other *Configuration) bool {
	return slices.Equal(c.depths, other.depths)
}

// Key returns a compact string that is equal for equal depth vectors
func (c *Configuration) Key() string {
	buf := make([]byte, 0, len(c.depths))
	for _, z := range c.depths {
		buf = binary.AppendUvarint(buf, uint64(z))
	}
	return string(buf)
}

// Render draws the configuration with the character at loc. Segment cells
// show their depth (0-9, then a-z).
func (c *Configuration) Render(loc Cell) string {
	return c.board.render(func(p Cell) byte {
		switch p {
		case loc:
			return StartChar
		case c.board.Goal:
			return GoalChar
		}
		if i, ok := c.board.cells[p]; ok {
			return depthGlyph(c.depths[i])
		}
		return OpenChar
	})
}

func (c *Configuration) String() string {
	return fmt.Sprint(c.depths)
}

// MarshalJSON exposes the depth vector together with the segment names
func (c *Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Depths   []int    `json:"depths"`
		Segments []string `json:"segments"`
	}{
		Depths:   c.depths,
		Segments: c.board.SegmentNames(),
	})
}

func depthGlyph(z int) byte {
	switch {
	case z < 10:
		return byte('0' + z)
	case z < 36:
		return byte('a' + z - 10)
	default:
		return '+'
	}
}
