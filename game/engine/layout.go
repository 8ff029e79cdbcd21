package engine

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidLayout = errors.New("invalid layout")

// Level is a named puzzle as stored in level files
type Level struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	MaxDepth    int      `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	Layout      []string `json:"layout" yaml:"layout"`
}

// Board parses the level layout
func (l *Level) Board() (*Board, error) {
	return ParseLayout(l.Layout)
}

// EffectiveMaxDepth returns the level's max depth or the default
func (l *Level) EffectiveMaxDepth() int {
	if l.MaxDepth > 0 {
		return l.MaxDepth
	}
	return DefaultMaxDepth
}

// ValidateLevel validates a level for correctness and solvability preconditions
func ValidateLevel(level *Level) error {
	if level.Name == "" {
		return fmt.Errorf("level validation: name is required")
	}
	if level.MaxDepth < 0 || level.MaxDepth > MaxSolveDepth {
		return fmt.Errorf("level validation: max_depth must be between 0 and %d, got %d", MaxSolveDepth, level.MaxDepth)
	}
	if _, err := ParseLayout(level.Layout); err != nil {
		return fmt.Errorf("level validation: %w", err)
	}
	return nil
}

// ParseLayout builds a board from ASCII rows, top row first. '@' marks the
// start, '*' the goal, and each ASCII letter or digit a segment; every other
// character is open space.
func ParseLayout(rows []string) (*Board, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: layout is empty", ErrInvalidLayout)
	}
	if len(rows) > MaxLayoutHeight {
		return nil, fmt.Errorf("%w: layout has %d rows, max is %d", ErrInvalidLayout, len(rows), MaxLayoutHeight)
	}

	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: first row is empty", ErrInvalidLayout)
	}
	if width > MaxLayoutWidth {
		return nil, fmt.Errorf("%w: layout is %d columns wide, max is %d", ErrInvalidLayout, width, MaxLayoutWidth)
	}

	height := len(rows)
	var start, goal *Cell
	var segments []Segment
	index := make(map[byte]int)

	// Row order is reversed so the bottom row is y=0.
	for y := 0; y < height; y++ {
		row := rows[height-1-y]
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d must have %d characters, got %d", ErrInvalidLayout, height-y, width, len(row))
		}
		for x := 0; x < width; x++ {
			c := Cell{X: x, Y: y}
			ch := row[x]
			switch {
			case ch == StartChar:
				if start != nil {
					return nil, fmt.Errorf("%w: more than one start (@) cell", ErrInvalidLayout)
				}
				start = &c
			case ch == GoalChar:
				if goal != nil {
					return nil, fmt.Errorf("%w: more than one goal (*) cell", ErrInvalidLayout)
				}
				goal = &c
			case isSegmentChar(ch):
				i, ok := index[ch]
				if !ok {
					i = len(segments)
					index[ch] = i
					segments = append(segments, Segment{Name: string(ch)})
				}
				segments[i].Cells = append(segments[i].Cells, c)
			}
		}
	}

	if start == nil {
		return nil, fmt.Errorf("%w: layout must contain a start (@) cell", ErrInvalidLayout)
	}
	if goal == nil {
		return nil, fmt.Errorf("%w: layout must contain a goal (*) cell", ErrInvalidLayout)
	}

	return NewBoard(width, height, *start, *goal, segments)
}

// SplitLayout splits raw level text into rows, dropping trailing whitespace
// and blank lines at either end.
func SplitLayout(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, strings.TrimRight(line, " \t"))
	}
	for len(rows) > 0 && rows[0] == "" {
		rows = rows[1:]
	}
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isSegmentChar(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ('0' <= ch && ch <= '9')
}
