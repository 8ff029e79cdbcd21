package engine

import (
	"cmp"
	"slices"

	"github.com/zyedidia/generic/mapset"
)

// CellSet is a set of reachable cells
type CellSet = mapset.Set[Cell]

// ReachableCells returns every cell the character can reach from start
// without moving any segment. The result always contains start.
func ReachableCells(cfg *Configuration, start Cell) CellSet {
	seen := mapset.New[Cell]()
	seen.Put(start)
	stack := []Cell{start}

	push := func(c Cell) {
		if !cfg.board.InBounds(c.X) || seen.Has(c) {
			return
		}
		seen.Put(c)
		stack = append(stack, c)
	}

	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		moveTargets(cfg, c, push)
	}

	return seen
}

// moveTargets calls emit for every cell one walk, jump, or fall away from
// (x0, y0). Targets may lie outside the board width; emit filters them.
func moveTargets(cfg *Configuration, from Cell, emit func(Cell)) {
	x0, y0 := from.X, from.Y
	depth := cfg.DepthAt

	z0 := depth(x0, y0)
	zp := depth(x0, y0-1)

	// Jump up, straight or diagonal, when nothing is overhead.
	if depth(x0, y0+1) < zp {
		for dx := -1; dx <= 1; dx++ {
			x1 := x0 + dx
			z := depth(x1, y0+1)
			if z >= zp {
				continue
			}
			if max(z, z0-1) < depth(x1, y0) {
				emit(Cell{X: x1, Y: y0 + 1})
			}
		}
	}

	// Jump over the neighbouring column, landing one up or level.
	for _, dx := range []int{-1, 1} {
		x1 := x0 + dx
		if depth(x1, y0+1) >= zp {
			continue
		}
		x2 := x1 + dx
		z := depth(x2, y0+1)
		if z >= zp {
			continue
		}
		if max(z, z0) < depth(x2, y0) {
			emit(Cell{X: x2, Y: y0 + 1})
			continue
		}
		z = depth(x2, y0)
		if z >= zp {
			continue
		}
		if max(z, z0) < depth(x2, y0-1) {
			emit(Cell{X: x2, Y: y0})
		}
	}

	// Walk sideways, dropping to the first support below.
	for _, dx := range []int{-1, 1} {
		x1 := x0 + dx
		z := depth(x1, y0)
		if z >= zp {
			continue
		}
		for y1 := y0; y1 >= 0; y1-- {
			if max(z, z0) < depth(x1, y1-1) {
				emit(Cell{X: x1, Y: y1})
				break
			}
		}
	}

	// Fall off the front of the platform.
	for dx := -1; dx <= 1; dx++ {
		x1 := x0 + dx
		z := max(depth(x1, y0), zp)
		for y1 := y0; y1 >= 0; y1-- {
			z1 := depth(x1, y1-1)
			if z < z1 {
				emit(Cell{X: x1, Y: y1})
				break
			}
			z = max(z, z1)
		}
	}
}

// SortedCells returns the members of set ordered by (x, y)
func SortedCells(set CellSet) []Cell {
	cells := make([]Cell, 0, set.Size())
	set.Each(func(c Cell) {
		cells = append(cells, c)
	})
	slices.SortFunc(cells, func(a, b Cell) int {
		if a.X != b.X {
			return cmp.Compare(a.X, b.X)
		}
		return cmp.Compare(a.Y, b.Y)
	})
	return cells
}
