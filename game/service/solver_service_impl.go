package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
)

var (
	ErrInvalidRequest = errors.New("invalid solve request")
	ErrStepOutOfRange = errors.New("step out of range")
)

const (
	// DefaultBatchLimit bounds concurrent searches in SolveBatch
	DefaultBatchLimit = 4
	// MaxBatchSize bounds the number of requests in one batch
	MaxBatchSize = 32
	// DefaultMaxExpansions and DefaultSolveTimeout bound every search. A
	// request may ask for less, never more.
	DefaultMaxExpansions = 200000
	DefaultSolveTimeout  = 30 * time.Second

	inlineLevelName = "inline"
	progressEvery   = 64
)

// solverServiceImpl implements the SolverService interface
type solverServiceImpl struct {
	levels     LevelManager
	runs       RunManager
	progress   ProgressFunc
	batchLimit int
	inflight   singleflight.Group

	maxExpansions int
	timeout       time.Duration
}

// Option configures the solver service
type Option func(*solverServiceImpl)

// WithProgress registers a progress observer
func WithProgress(fn ProgressFunc) Option {
	return func(s *solverServiceImpl) {
		s.progress = fn
	}
}

// WithBatchLimit sets how many batch requests are solved concurrently
func WithBatchLimit(n int) Option {
	return func(s *solverServiceImpl) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithDefaultLimits sets the expansion budget and timeout applied to requests
// that leave them unset and used to clamp larger ones. Non-positive values
// keep the defaults.
func WithDefaultLimits(maxExpansions int, timeout time.Duration) Option {
	return func(s *solverServiceImpl) {
		if maxExpansions > 0 {
			s.maxExpansions = maxExpansions
		}
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewSolverService creates a new solver service instance
func NewSolverService(levels LevelManager, runs RunManager, opts ...Option) SolverService {
	s := &solverServiceImpl{
		levels:     levels,
		runs:       runs,
		batchLimit: DefaultBatchLimit,

		maxExpansions: DefaultMaxExpansions,
		timeout:       DefaultSolveTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve resolves the requested level, searches it, and stores the run.
// Identical concurrent requests without an explicit ID share one search; the
// shared search outlives a caller that gives up, within the service limits.
func (s *solverServiceImpl) Solve(ctx context.Context, req SolveRequest) (*RunInfo, error) {
	level, err := s.resolveLevel(req)
	if err != nil {
		return nil, err
	}

	maxDepth := level.EffectiveMaxDepth()
	if req.MaxDepth != 0 {
		maxDepth = req.MaxDepth
	}
	if maxDepth < 1 || maxDepth > engine.MaxSolveDepth {
		return nil, fmt.Errorf("%w: max_depth must be between 1 and %d, got %d", ErrInvalidRequest, engine.MaxSolveDepth, maxDepth)
	}
	if req.MaxExpansions < 0 || req.TimeoutMS < 0 {
		return nil, fmt.Errorf("%w: limits cannot be negative", ErrInvalidRequest)
	}
	req.MaxExpansions, req.TimeoutMS = s.limits(req)

	board, err := engine.ParseLayout(level.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if req.ID != "" {
		return s.solve(ctx, req, level, board, maxDepth)
	}

	key := fmt.Sprintf("%s|%d|%d|%d|%s", level.Name, maxDepth, req.MaxExpansions, req.TimeoutMS, strings.Join(level.Layout, "/"))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		return s.solve(context.WithoutCancel(ctx), req, level, board, maxDepth)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Printf("Shared in-flight solve for level %s", level.Name)
		}
		return res.Val.(*RunInfo), nil
	}
}

// limits returns the request's expansion budget and timeout after applying
// and clamping to the service limits
func (s *solverServiceImpl) limits(req SolveRequest) (int, int) {
	expansions := req.MaxExpansions
	if expansions == 0 || expansions > s.maxExpansions {
		expansions = s.maxExpansions
	}
	timeoutMS := int(s.timeout.Milliseconds())
	if req.TimeoutMS > 0 && req.TimeoutMS < timeoutMS {
		timeoutMS = req.TimeoutMS
	}
	return expansions, timeoutMS
}

// resolveLevel returns the inline or stored level a request refers to
func (s *solverServiceImpl) resolveLevel(req SolveRequest) (*engine.Level, error) {
	if len(req.Layout) > 0 {
		name := req.Level
		if name == "" {
			name = inlineLevelName
		}
		return &engine.Level{Name: name, Layout: req.Layout}, nil
	}

	if req.Level == "" {
		return nil, fmt.Errorf("%w: either level or layout is required", ErrInvalidRequest)
	}

	level, err := s.levels.LoadLevel(req.Level)
	if err != nil {
		if listed, listErr := s.levels.ListLevels(); listErr == nil && len(listed) > 0 && isNotFound(err) {
			ids := make([]string, 0, len(listed))
			for _, info := range listed {
				ids = append(ids, info.LevelID)
			}
			return nil, fmt.Errorf("%w. Available levels: %v", err, ids)
		}
		return nil, fmt.Errorf("failed to load level %s: %w", req.Level, err)
	}
	return level, nil
}

func (s *solverServiceImpl) solve(ctx context.Context, req SolveRequest, level *engine.Level, board *engine.Board, maxDepth int) (*RunInfo, error) {
	runID := req.ID
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx, span := otel.Tracer("solver").Start(ctx, "solver.Solve",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("level", level.Name),
			attribute.Int("max_depth", maxDepth),
			attribute.Int("segments", len(board.Segments)),
		),
	)
	defer span.End()

	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	s.emit(ProgressEvent{Type: "solve_started", RunID: runID, Level: level.Name})

	opts := engine.SolverOptions{
		MaxDepth:      maxDepth,
		MaxExpansions: req.MaxExpansions,
	}
	if s.progress != nil {
		expanded := 0
		opts.Verbose = true
		opts.Trace = func(snap engine.Snapshot) {
			expanded++
			if expanded%progressEvery != 0 {
				return
			}
			cell := snap.Cell
			s.emit(ProgressEvent{
				Type:   "solve_progress",
				RunID:  runID,
				Level:  level.Name,
				Move:   snap.Move,
				Cell:   &cell,
				Depths: snap.Config.Depths(),
			})
		}
	}

	start := time.Now()
	result, err := engine.NewSolver(board, opts).Run(ctx)
	elapsed := time.Since(start)

	run := &Run{
		ID:         runID,
		Level:      level.Name,
		Layout:     level.Layout,
		MaxDepth:   maxDepth,
		CreatedAt:  start,
		DurationMS: elapsed.Milliseconds(),
	}
	if result != nil {
		run.Stats = result.Stats
	}

	switch {
	case err == nil && result.Solved:
		run.Status = StatusSolved
		run.Steps = toStepRecords(result.Steps)
	case err == nil:
		run.Status = StatusUnsolvable
	case errors.Is(err, engine.ErrBudgetExceeded):
		run.Status = StatusBudgetExceeded
		run.Error = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		run.Status = StatusTimeout
		run.Error = fmt.Sprintf("search timed out after %dms", req.TimeoutMS)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "search aborted")
		s.emit(ProgressEvent{Type: "solve_finished", RunID: runID, Level: level.Name, Message: err.Error()})
		return nil, fmt.Errorf("search aborted: %w", err)
	}

	span.SetAttributes(
		attribute.String("status", string(run.Status)),
		attribute.Int("expanded", run.Stats.Expanded),
		attribute.Int("configurations", run.Stats.Configurations),
	)

	if err := s.runs.Save(run); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store run")
		return nil, fmt.Errorf("failed to store run: %w", err)
	}

	stats := run.Stats
	s.emit(ProgressEvent{
		Type:   "solve_finished",
		RunID:  runID,
		Level:  level.Name,
		Stats:  &stats,
		Status: run.Status,
	})

	return toRunInfo(run, board, true), nil
}

// SolveBatch solves several requests concurrently. Per-request failures are
// reported in the results; only cancellation of ctx fails the batch.
func (s *solverServiceImpl) SolveBatch(ctx context.Context, reqs []SolveRequest) ([]*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", ErrInvalidRequest)
	}
	if len(reqs) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch has %d requests, max is %d", ErrInvalidRequest, len(reqs), MaxBatchSize)
	}

	results := make([]*BatchResult, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.batchLimit)

	for i, req := range reqs {
		g.Go(func() error {
			result := &BatchResult{Request: req}
			info, err := s.Solve(ctx, req)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Run = info
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// GetRun retrieves a run including its steps
func (s *solverServiceImpl) GetRun(ctx context.Context, runID string) (*RunInfo, error) {
	run, err := s.runs.Get(runID)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return toRunInfo(run, boardFor(run), true), nil
}

// ListRuns returns run summaries without steps, newest first
func (s *solverServiceImpl) ListRuns(ctx context.Context) ([]*RunInfo, error) {
	stored := s.runs.List()
	result := make([]*RunInfo, 0, len(stored))
	for _, run := range stored {
		result = append(result, toRunInfo(run, boardFor(run), false))
	}
	return result, nil
}

// DeleteRun removes a run
func (s *solverServiceImpl) DeleteRun(ctx context.Context, runID string) error {
	if err := s.runs.Delete(runID); err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	return nil
}

// GetStep renders step n of a solved run
func (s *solverServiceImpl) GetStep(ctx context.Context, runID string, n int) (*StepView, error) {
	run, err := s.runs.Get(runID)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if n < 0 || n >= len(run.Steps) {
		return nil, fmt.Errorf("%w: run %s has %d steps, requested %d", ErrStepOutOfRange, runID, len(run.Steps), n)
	}

	board, err := engine.ParseLayout(run.Layout)
	if err != nil {
		return nil, fmt.Errorf("stored layout for run %s is invalid: %w", runID, err)
	}

	rec := run.Steps[n]
	cfg, err := engine.NewConfigurationWithDepths(board, rec.Depths)
	if err != nil {
		return nil, fmt.Errorf("stored step %d of run %s is invalid: %w", n, runID, err)
	}

	view := &StepView{
		RunID:     run.ID,
		N:         rec.N,
		Total:     len(run.Steps),
		Cell:      rec.Cell,
		Depths:    cfg.Depths(),
		Segments:  board.SegmentNames(),
		Rendering: cfg.Render(rec.Cell),
	}
	if n > 0 {
		view.Change = segmentChange(board, run.Steps[n-1].Depths, rec.Depths)
	}
	return view, nil
}

// ListLevels returns the available levels
func (s *solverServiceImpl) ListLevels(ctx context.Context) ([]*LevelInfo, error) {
	return s.levels.ListLevels()
}

// LoadLevel loads a level by name
func (s *solverServiceImpl) LoadLevel(ctx context.Context, name string) (*engine.Level, error) {
	return s.levels.LoadLevel(name)
}

// SaveLevel validates and stores a level
func (s *solverServiceImpl) SaveLevel(ctx context.Context, name string, level *engine.Level) error {
	return s.levels.SaveLevel(name, level)
}

func (s *solverServiceImpl) emit(ev ProgressEvent) {
	if s.progress != nil {
		s.progress(ev)
	}
}

func toStepRecords(steps []engine.Step) []StepRecord {
	records := make([]StepRecord, len(steps))
	for i, st := range steps {
		records[i] = StepRecord{N: st.N, Depths: st.Config.Depths(), Cell: st.Cell}
	}
	return records
}

func toRunInfo(run *Run, board *engine.Board, withSteps bool) *RunInfo {
	info := &RunInfo{
		ID:         run.ID,
		Level:      run.Level,
		Status:     run.Status,
		Solved:     run.Status == StatusSolved,
		MaxDepth:   run.MaxDepth,
		Stats:      run.Stats,
		Error:      run.Error,
		CreatedAt:  run.CreatedAt,
		DurationMS: run.DurationMS,
	}
	if len(run.Steps) > 0 {
		info.Moves = len(run.Steps) - 1
	}
	if board != nil {
		info.Segments = board.SegmentNames()
	}
	if withSteps {
		info.Steps = run.Steps
	}
	return info
}

// boardFor parses the stored layout, or returns nil if it no longer parses
func boardFor(run *Run) *engine.Board {
	board, err := engine.ParseLayout(run.Layout)
	if err != nil {
		return nil
	}
	return board
}

// segmentChange reports the first segment whose depth differs between steps
func segmentChange(board *engine.Board, before, after []int) *SegmentChange {
	for i := range after {
		if i < len(before) && before[i] != after[i] {
			return &SegmentChange{Segment: board.Segments[i].Name, From: before[i], To: after[i]}
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "not found")
}
