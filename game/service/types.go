package service

import (
	"time"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
)

// RunStatus is the outcome of a solve
type RunStatus string

const (
	StatusSolved         RunStatus = "solved"
	StatusUnsolvable     RunStatus = "unsolvable"
	StatusBudgetExceeded RunStatus = "budget_exceeded"
	StatusTimeout        RunStatus = "timeout"
)

// SolveRequest describes one search. Either Level names a stored level or
// Layout carries the rows inline.
type SolveRequest struct {
	ID            string   `json:"id,omitempty"`
	Level         string   `json:"level,omitempty"`
	Layout        []string `json:"layout,omitempty"`
	MaxDepth      int      `json:"max_depth,omitempty"`
	MaxExpansions int      `json:"max_expansions,omitempty"`
	TimeoutMS     int      `json:"timeout_ms,omitempty"`
}

// Run is the stored record of a finished solve
type Run struct {
	ID         string             `json:"id"`
	Level      string             `json:"level"`
	Layout     []string           `json:"layout"`
	MaxDepth   int                `json:"max_depth"`
	Status     RunStatus          `json:"status"`
	Steps      []StepRecord       `json:"steps,omitempty"`
	Stats      engine.SolverStats `json:"stats"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	DurationMS int64              `json:"duration_ms"`
}

// StepRecord is a Step reduced to plain data for storage
type StepRecord struct {
	N      int         `json:"n"`
	Depths []int       `json:"depths"`
	Cell   engine.Cell `json:"cell"`
}

// RunInfo provides information about a solve run
type RunInfo struct {
	ID         string             `json:"id"`
	Level      string             `json:"level"`
	Status     RunStatus          `json:"status"`
	Solved     bool               `json:"solved"`
	Moves      int                `json:"moves"`
	MaxDepth   int                `json:"max_depth"`
	Segments   []string           `json:"segments"`
	Stats      engine.SolverStats `json:"stats"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	DurationMS int64              `json:"duration_ms"`
	Steps      []StepRecord       `json:"steps,omitempty"`
}

// StepView is one step of a run, rendered for display
type StepView struct {
	RunID     string         `json:"run_id"`
	N         int            `json:"n"`
	Total     int            `json:"total"`
	Cell      engine.Cell    `json:"cell"`
	Depths    []int          `json:"depths"`
	Segments  []string       `json:"segments"`
	Change    *SegmentChange `json:"change,omitempty"`
	Rendering string         `json:"rendering"`
}

// SegmentChange describes the push or pull that led to a step
type SegmentChange struct {
	Segment string `json:"segment"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

// BatchResult pairs a batch request with its run or error
type BatchResult struct {
	Request SolveRequest `json:"request"`
	Run     *RunInfo     `json:"run,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// LevelInfo provides information about a stored level
type LevelInfo struct {
	Filename    string `json:"filename"`
	LevelID     string `json:"level_id"` // The identifier to use for solving
	Name        string `json:"name"`     // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Segments    int    `json:"segments"`
	MaxDepth    int    `json:"max_depth"`
}

// ProgressEvent reports solve progress to observers such as the WebSocket hub
type ProgressEvent struct {
	Type    string              `json:"type"` // "solve_started", "solve_progress", "solve_finished"
	RunID   string              `json:"run_id"`
	Level   string              `json:"level,omitempty"`
	Move    int                 `json:"move,omitempty"`
	Cell    *engine.Cell        `json:"cell,omitempty"`
	Depths  []int               `json:"depths,omitempty"`
	Stats   *engine.SolverStats `json:"stats,omitempty"`
	Status  RunStatus           `json:"status,omitempty"`
	Message string              `json:"message,omitempty"`
}

// ProgressFunc receives progress events; it must not block
type ProgressFunc func(ProgressEvent)
