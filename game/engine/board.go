package engine

import (
	"fmt"
	"strings"
)

// Board is the immutable puzzle geometry
type Board struct {
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Start    Cell      `json:"start"`
	Goal     Cell      `json:"goal"`
	Segments []Segment `json:"segments"`

	cells map[Cell]int
}

// NewBoard builds a board from explicit segments. A cell may belong to at
// most one segment.
func NewBoard(width, height int, start, goal Cell, segments []Segment) (*Board, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: board must be at least 1x1, got %dx%d", ErrInvalidLayout, width, height)
	}

	b := &Board{
		Width:    width,
		Height:   height,
		Start:    start,
		Goal:     goal,
		Segments: segments,
		cells:    make(map[Cell]int),
	}

	for i, seg := range segments {
		for _, c := range seg.Cells {
			if other, exists := b.cells[c]; exists {
				return nil, fmt.Errorf("%w: cell %s belongs to segments %s and %s",
					ErrInvalidLayout, c, segments[other].Name, seg.Name)
			}
			b.cells[c] = i
		}
	}

	return b, nil
}

// SegmentAt returns the index of the segment occupying c
func (b *Board) SegmentAt(c Cell) (int, bool) {
	i, ok := b.cells[c]
	return i, ok
}

// SegmentNames returns the display names in segment index order
func (b *Board) SegmentNames() []string {
	names := make([]string, len(b.Segments))
	for i, seg := range b.Segments {
		names[i] = seg.Name
	}
	return names
}

// InBounds reports whether x is a valid column
func (b *Board) InBounds(x int) bool {
	return x >= 0 && x < b.Width
}

// Render draws the board with segment names, top row first
func (b *Board) Render() string {
	return b.render(func(c Cell) byte {
		switch c {
		case b.Start:
			return StartChar
		case b.Goal:
			return GoalChar
		}
		if i, ok := b.cells[c]; ok && b.Segments[i].Name != "" {
			return b.Segments[i].Name[0]
		}
		return OpenChar
	})
}

func (b *Board) render(glyph func(Cell) byte) string {
	var sb strings.Builder
	for y := b.Height - 1; y >= 0; y-- {
		row := make([]byte, b.Width)
		for x := 0; x < b.Width; x++ {
			row[x] = glyph(Cell{X: x, Y: y})
		}
		sb.WriteString(" ")
		sb.Write(row)
		sb.WriteString("\n")
	}
	return sb.String()
}
