package engine

import (
	"slices"
	"testing"
)

func TestReachableCells_FlatRow(t *testing.T) {
	board := createTestBoard(t, "@.*")
	reach := ReachableCells(NewConfiguration(board), board.Start)

	expected := []Cell{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	if got := SortedCells(reach); !slices.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestReachableCells_ClimbPulledStep(t *testing.T) {
	board := createTestBoard(t, ".*", "@A")
	root := NewConfiguration(board)

	if ReachableCells(root, board.Start).Has(board.Goal) {
		t.Error("Goal should not be reachable while the step is flush")
	}
	if !ReachableCells(root.With(0, 1), board.Start).Has(board.Goal) {
		t.Error("Goal should be reachable once the step is pulled out")
	}
}

func TestReachableCells_ContainsStart(t *testing.T) {
	board := createTestBoard(t, ".*.", "@..")
	start := Cell{X: 1, Y: 1}
	reach := ReachableCells(NewConfiguration(board), start)
	if !reach.Has(start) {
		t.Errorf("Expected reachable set to contain start %s", start)
	}
}

func TestReachableCells_StaysInBounds(t *testing.T) {
	board := createTestBoard(t, "..*.", ".AA.", "@BB.")
	cfg := NewConfiguration(board).With(0, 1).With(1, 2)

	ReachableCells(cfg, board.Start).Each(func(c Cell) {
		if !board.InBounds(c.X) {
			t.Errorf("Cell %s lies outside the board", c)
		}
		if c.Y < 0 {
			t.Errorf("Cell %s lies in bedrock", c)
		}
	})
}

func TestReachableCells_Deterministic(t *testing.T) {
	board := createTestBoard(t, "..*.", ".AA.", "@BB.")
	cfg := NewConfiguration(board).With(1, 1)

	first := SortedCells(ReachableCells(cfg, board.Start))
	for i := 0; i < 5; i++ {
		if got := SortedCells(ReachableCells(cfg, board.Start)); !slices.Equal(got, first) {
			t.Fatalf("Run %d returned %v, first run returned %v", i, got, first)
		}
	}
}

// Every rule applied to any member of the set must land inside the set.
func TestReachableCells_Closed(t *testing.T) {
	board := createTestBoard(t,
		"...*..",
		".CC...",
		"..BB..",
		"@..AA.",
	)

	for a := 0; a <= 2; a++ {
		for b := 0; b <= 2; b++ {
			for c := 0; c <= 2; c++ {
				cfg, err := NewConfigurationWithDepths(board, []int{a, b, c})
				if err != nil {
					t.Fatalf("NewConfigurationWithDepths failed: %v", err)
				}
				reach := ReachableCells(cfg, board.Start)
				reach.Each(func(from Cell) {
					moveTargets(cfg, from, func(to Cell) {
						if board.InBounds(to.X) && !reach.Has(to) {
							t.Errorf("depths %v: %s -> %s escapes the reachable set", cfg, from, to)
						}
					})
				})
			}
		}
	}
}

func TestSortedCells(t *testing.T) {
	board := createTestBoard(t, "@.*")
	reach := ReachableCells(NewConfiguration(board), Cell{X: 2, Y: 0})
	got := SortedCells(reach)
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.X > cur.X || (prev.X == cur.X && prev.Y >= cur.Y) {
			t.Errorf("Cells out of order: %v", got)
		}
	}
}
