package service

import (
	"context"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
)

// SolverService defines all solver-related operations
type SolverService interface {
	// Solving
	Solve(ctx context.Context, req SolveRequest) (*RunInfo, error)
	SolveBatch(ctx context.Context, reqs []SolveRequest) ([]*BatchResult, error)

	// Runs
	GetRun(ctx context.Context, runID string) (*RunInfo, error)
	ListRuns(ctx context.Context) ([]*RunInfo, error)
	DeleteRun(ctx context.Context, runID string) error
	GetStep(ctx context.Context, runID string, n int) (*StepView, error)

	// Levels
	ListLevels(ctx context.Context) ([]*LevelInfo, error)
	LoadLevel(ctx context.Context, name string) (*engine.Level, error)
	SaveLevel(ctx context.Context, name string, level *engine.Level) error
}

// RunManager defines run storage operations
type RunManager interface {
	Save(run *Run) error
	Get(id string) (*Run, error)
	List() []*Run
	Delete(id string) error
}

// LevelManager handles level loading
type LevelManager interface {
	LoadLevel(name string) (*engine.Level, error)
	ListLevels() ([]*LevelInfo, error)
	SaveLevel(name string, level *engine.Level) error
}
