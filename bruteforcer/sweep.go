package main

import (
	"context"

	"github.com/wricardo/mcp-training/pushmo/game/service"
)

// Attempt is one solve at a fixed max depth
type Attempt struct {
	Depth    int
	RunID    string
	Status   service.RunStatus
	Moves    int
	Expanded int
}

// SweepResult records every attempt made for a level. MinDepth is the
// smallest max depth that solved it, or 0 when none did.
type SweepResult struct {
	Level    string
	MinDepth int
	Attempts []Attempt
}

// Limited reports whether any attempt stopped on a budget or timeout, in
// which case an unsolved result is inconclusive.
func (r *SweepResult) Limited() bool {
	for _, a := range r.Attempts {
		if a.Status == service.StatusBudgetExceeded || a.Status == service.StatusTimeout {
			return true
		}
	}
	return false
}

// SweepOptions bound a sweep
type SweepOptions struct {
	MaxDepth      int
	MaxExpansions int
	TimeoutMS     int
	// OnAttempt, when set, is called after every attempt.
	OnAttempt func(Attempt)
}

type solver interface {
	Solve(ctx context.Context, req service.SolveRequest) (*service.RunInfo, error)
}

// Sweep solves level at max depth 1, 2, ... up to opts.MaxDepth and stops at
// the first depth that yields a solution.
func Sweep(ctx context.Context, s solver, level string, opts SweepOptions) (*SweepResult, error) {
	result := &SweepResult{Level: level}

	for depth := 1; depth <= opts.MaxDepth; depth++ {
		info, err := s.Solve(ctx, service.SolveRequest{
			Level:         level,
			MaxDepth:      depth,
			MaxExpansions: opts.MaxExpansions,
			TimeoutMS:     opts.TimeoutMS,
		})
		if err != nil {
			return result, err
		}

		attempt := Attempt{
			Depth:    depth,
			RunID:    info.ID,
			Status:   info.Status,
			Moves:    info.Moves,
			Expanded: info.Stats.Expanded,
		}
		result.Attempts = append(result.Attempts, attempt)
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt)
		}

		if info.Solved {
			result.MinDepth = depth
			break
		}
	}

	return result, nil
}
