package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/zyedidia/generic/heap"
	"github.com/zyedidia/generic/mapset"
)

var ErrBudgetExceeded = errors.New("search budget exceeded")

// SolverOptions control one search
type SolverOptions struct {
	// MaxDepth caps unbounded segment move ranges.
	MaxDepth int
	// Verbose emits a snapshot for every expanded state.
	Verbose bool
	// MaxExpansions bounds the number of expanded states; 0 means unlimited.
	MaxExpansions int
	// Trace receives snapshots when Verbose is set. Nil logs them.
	Trace func(Snapshot)
}

// Result is the outcome of a search. An unsolvable board yields Solved=false
// and no error.
type Result struct {
	Solved bool        `json:"solved"`
	Steps  []Step      `json:"steps,omitempty"`
	Stats  SolverStats `json:"stats"`
}

// searchState is one node of the search tree. parent indexes the solver's
// arena and is -1 for the root.
type searchState struct {
	n      int
	cost   int
	parent int
	cfg    *Configuration
	cell   Cell
}

// Solver runs a greedy best-first search over (configuration, cell) states.
// A Solver is not safe for concurrent use; run separate solvers instead.
type Solver struct {
	board *Board
	opts  SolverOptions

	states   []searchState
	frontier *heap.Heap[int]
	visited  map[string]CellSet
	stats    SolverStats
}

// NewSolver creates a solver for board
func NewSolver(board *Board, opts SolverOptions) *Solver {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Solver{
		board: board,
		opts:  opts,
	}
}

// Solve searches board and returns the steps of a solution, or false when no
// sequence of pushes and pulls reaches the goal.
func Solve(board *Board, maxDepth int, verbose bool) ([]Step, bool) {
	result, err := NewSolver(board, SolverOptions{MaxDepth: maxDepth, Verbose: verbose}).Run(context.Background())
	if err != nil || !result.Solved {
		return nil, false
	}
	return result.Steps, true
}

// Run performs the search. It returns ErrBudgetExceeded when MaxExpansions is
// reached and ctx.Err() when ctx is done; both come with the partial stats.
func (s *Solver) Run(ctx context.Context) (*Result, error) {
	s.reset()

	goal := s.board.Goal
	root := NewConfiguration(s.board)
	s.enqueue(searchState{
		n:      0,
		cost:   ManhattanDistance(s.board.Start, goal),
		parent: -1,
		cfg:    root,
		cell:   s.board.Start,
	})

	for s.frontier.Size() > 0 {
		if err := ctx.Err(); err != nil {
			return &Result{Stats: s.stats}, err
		}
		if s.opts.MaxExpansions > 0 && s.stats.Expanded >= s.opts.MaxExpansions {
			return &Result{Stats: s.stats}, fmt.Errorf("%w: %d states expanded", ErrBudgetExceeded, s.stats.Expanded)
		}

		idx, _ := s.frontier.Pop()
		cur := s.states[idx]

		key := cur.cfg.Key()
		known, seen := s.visited[key]
		if seen && known.Has(cur.cell) {
			s.stats.Covered++
			continue
		}

		reach := ReachableCells(cur.cfg, cur.cell)
		s.stats.Expanded++
		s.remember(key, known, seen, reach)

		if s.opts.Verbose {
			s.emit(Snapshot{
				Move:      cur.n + 1,
				Config:    cur.cfg,
				Cell:      cur.cell,
				Reachable: SortedCells(reach),
			})
		}

		if reach.Has(goal) {
			s.states = append(s.states, searchState{
				n:      cur.n + 1,
				cost:   0,
				parent: idx,
				cfg:    cur.cfg,
				cell:   goal,
			})
			return &Result{
				Solved: true,
				Steps:  s.path(len(s.states) - 1),
				Stats:  s.stats,
			}, nil
		}

		// Cells are visited in sorted order so that ties in the frontier
		// are broken the same way on every run.
		for _, cell := range SortedCells(reach) {
			for _, r := range SegmentMoves(cur.cfg, cell) {
				upper := r.Upper(s.opts.MaxDepth)
				for z := r.Min; z <= upper; z++ {
					next := cur.cfg.With(r.Segment, z)
					if next.MinDepth() >= 2 {
						s.stats.Pruned++
						continue
					}
					if _, exists := s.visited[next.Key()]; exists {
						s.stats.Duplicates++
						continue
					}
					s.enqueue(searchState{
						n:      cur.n + 1,
						cost:   ManhattanDistance(cell, goal),
						parent: idx,
						cfg:    next,
						cell:   cell,
					})
				}
			}
		}
	}

	return &Result{Stats: s.stats}, nil
}

func (s *Solver) reset() {
	s.states = s.states[:0]
	s.visited = make(map[string]CellSet)
	s.stats = SolverStats{}
	s.frontier = heap.New(func(a, b int) bool {
		if s.states[a].cost != s.states[b].cost {
			return s.states[a].cost < s.states[b].cost
		}
		return a < b
	})
}

func (s *Solver) enqueue(st searchState) {
	s.states = append(s.states, st)
	s.frontier.Push(len(s.states) - 1)
	s.stats.Enqueued++
}

// remember merges reach into the visited set for key
func (s *Solver) remember(key string, known CellSet, seen bool, reach CellSet) {
	if !seen {
		known = mapset.New[Cell]()
		s.visited[key] = known
		s.stats.Configurations++
	}
	reach.Each(func(c Cell) {
		known.Put(c)
	})
}

// path walks parent links from idx back to the root
func (s *Solver) path(idx int) []Step {
	var steps []Step
	for ; idx >= 0; idx = s.states[idx].parent {
		st := s.states[idx]
		steps = append(steps, Step{N: st.n, Config: st.cfg, Cell: st.cell})
	}
	slices.Reverse(steps)
	return steps
}

func (s *Solver) emit(snap Snapshot) {
	if s.opts.Trace != nil {
		s.opts.Trace(snap)
		return
	}
	log.Printf("-- Move %d --\n%s Possible locations: %v", snap.Move, snap.Config.Render(snap.Cell), snap.Reachable)
}
