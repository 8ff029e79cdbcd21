package engine

// SegmentMoves returns the segments the character standing at c can push or
// pull, with the depth range each may be set to.
func SegmentMoves(cfg *Configuration, c Cell) []SegmentMoveRange {
	b := cfg.board
	x, y := c.X, c.Y
	z := cfg.DepthAt(x, y)

	// Platform block. A segment the character stands on cannot move.
	platform, onSegment := b.SegmentAt(Cell{X: x, Y: y - 1})
	zp := cfg.DepthAt(x, y-1)
	movable := func(seg int) bool {
		return !onSegment || seg != platform
	}

	var moves []SegmentMoveRange

	// Front block.
	if front, ok := b.SegmentAt(c); ok && movable(front) && z < zp-1 {
		if y > 0 {
			moves = append(moves, SegmentMoveRange{Segment: front, Min: 0, Max: zp - 1})
		} else {
			moves = append(moves, SegmentMoveRange{Segment: front, Min: 0, Unbounded: true})
		}
	}

	// Side blocks.
	for _, dx := range []int{-1, 1} {
		side := Cell{X: x + dx, Y: y}
		seg, ok := b.SegmentAt(side)
		if !ok || !movable(seg) {
			continue
		}
		if z < cfg.DepthAt(side.X, side.Y) {
			moves = append(moves, SegmentMoveRange{Segment: seg, Min: z + 1, Unbounded: true})
		}
	}

	return moves
}
