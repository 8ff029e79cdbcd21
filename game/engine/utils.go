package engine

// ManhattanDistance calculates the Manhattan distance between two cells
func ManhattanDistance(from, to Cell) int {
	return abs(from.X-to.X) + abs(from.Y-to.Y)
}

// CountSegmentCells counts the cells covered by segments
func CountSegmentCells(board *Board) int {
	return len(board.cells)
}

// LargestSegment returns the name and size of the segment with the most cells
func LargestSegment(board *Board) (string, int, bool) {
	name, size, found := "", 0, false
	for _, seg := range board.Segments {
		if len(seg.Cells) > size {
			name, size, found = seg.Name, len(seg.Cells), true
		}
	}
	return name, size, found
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
