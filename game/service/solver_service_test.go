package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
	"github.com/wricardo/mcp-training/pushmo/game/service"
)

var errMockNotFound = errors.New("not found")

// MockRunManager implements service.RunManager for testing
type MockRunManager struct {
	mu   sync.Mutex
	runs map[string]*service.Run
}

func NewMockRunManager() *MockRunManager {
	return &MockRunManager{runs: make(map[string]*service.Run)}
}

func (m *MockRunManager) Save(run *service.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = fmt.Sprintf("run_%d", len(m.runs)+1)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *MockRunManager) Get(id string) (*service.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, exists := m.runs[id]
	if !exists {
		return nil, errMockNotFound
	}
	return run, nil
}

func (m *MockRunManager) List() []*service.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*service.Run, 0, len(m.runs))
	for _, run := range m.runs {
		result = append(result, run)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *MockRunManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[id]; !exists {
		return errMockNotFound
	}
	delete(m.runs, id)
	return nil
}

// MockLevelManager implements service.LevelManager for testing
type MockLevelManager struct {
	levels map[string]*engine.Level
}

func NewMockLevelManager() *MockLevelManager {
	return &MockLevelManager{
		levels: map[string]*engine.Level{
			"pull": {
				Name:   "Pull",
				Layout: []string{".*", "@A"},
			},
			"flat": {
				Name:   "Flat",
				Layout: []string{"@.*"},
			},
			"stuck": {
				Name:     "Stuck",
				MaxDepth: 4,
				Layout:   []string{"..*", "...", "@A."},
			},
		},
	}
}

func (m *MockLevelManager) LoadLevel(name string) (*engine.Level, error) {
	level, exists := m.levels[name]
	if !exists {
		return nil, fmt.Errorf("level %s: %w", name, errMockNotFound)
	}
	return level, nil
}

func (m *MockLevelManager) ListLevels() ([]*service.LevelInfo, error) {
	result := make([]*service.LevelInfo, 0, len(m.levels))
	for id, level := range m.levels {
		result = append(result, &service.LevelInfo{LevelID: id, Name: level.Name})
	}
	return result, nil
}

func (m *MockLevelManager) SaveLevel(name string, level *engine.Level) error {
	if err := engine.ValidateLevel(level); err != nil {
		return err
	}
	m.levels[name] = level
	return nil
}

func newTestService(opts ...service.Option) (service.SolverService, *MockRunManager) {
	runs := NewMockRunManager()
	return service.NewSolverService(NewMockLevelManager(), runs, opts...), runs
}

func TestSolverService_Solve(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	tests := []struct {
		name       string
		req        service.SolveRequest
		wantStatus service.RunStatus
		wantMoves  int
		wantErr    error
	}{
		{
			name:       "stored level needing one pull",
			req:        service.SolveRequest{Level: "pull"},
			wantStatus: service.StatusSolved,
			wantMoves:  2,
		},
		{
			name:       "flat level",
			req:        service.SolveRequest{Level: "flat"},
			wantStatus: service.StatusSolved,
			wantMoves:  1,
		},
		{
			name:       "unsolvable level",
			req:        service.SolveRequest{Level: "stuck"},
			wantStatus: service.StatusUnsolvable,
		},
		{
			name:       "inline layout",
			req:        service.SolveRequest{Layout: []string{".*", "@A"}},
			wantStatus: service.StatusSolved,
			wantMoves:  2,
		},
		{
			name:       "expansion budget",
			req:        service.SolveRequest{Level: "stuck", MaxExpansions: 1},
			wantStatus: service.StatusBudgetExceeded,
		},
		{
			name:    "missing level",
			req:     service.SolveRequest{Level: "nonexistent"},
			wantErr: errMockNotFound,
		},
		{
			name:    "empty request",
			req:     service.SolveRequest{},
			wantErr: service.ErrInvalidRequest,
		},
		{
			name:    "max depth too large",
			req:     service.SolveRequest{Level: "pull", MaxDepth: engine.MaxSolveDepth + 1},
			wantErr: service.ErrInvalidRequest,
		},
		{
			name:    "malformed inline layout",
			req:     service.SolveRequest{Layout: []string{"@A"}},
			wantErr: engine.ErrInvalidLayout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.Solve(ctx, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Solve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Solve() unexpected error: %v", err)
			}
			if info.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s (%s)", tt.wantStatus, info.Status, info.Error)
			}
			if info.Moves != tt.wantMoves {
				t.Errorf("Expected %d moves, got %d", tt.wantMoves, info.Moves)
			}
			if info.Solved != (tt.wantStatus == service.StatusSolved) {
				t.Errorf("Solved flag %v inconsistent with status %s", info.Solved, info.Status)
			}
		})
	}
}

func TestSolverService_MissingLevelListsAvailable(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Solve(context.Background(), service.SolveRequest{Level: "nonexistent"})
	if err == nil || !strings.Contains(err.Error(), "Available levels") {
		t.Errorf("Expected available levels in error, got %v", err)
	}
}

func TestSolverService_ExplicitID(t *testing.T) {
	svc, runs := newTestService()
	info, err := svc.Solve(context.Background(), service.SolveRequest{ID: "client-chosen", Level: "pull"})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if info.ID != "client-chosen" {
		t.Errorf("Expected run ID client-chosen, got %s", info.ID)
	}
	if _, err := runs.Get("client-chosen"); err != nil {
		t.Errorf("Expected run stored under its ID: %v", err)
	}
}

func TestSolverService_Cancelled(t *testing.T) {
	svc, _ := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Solve(ctx, service.SolveRequest{Level: "stuck"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSolverService_GetStep(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	info, err := svc.Solve(ctx, service.SolveRequest{Level: "pull"})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	root, err := svc.GetStep(ctx, info.ID, 0)
	if err != nil {
		t.Fatalf("GetStep(0) failed: %v", err)
	}
	if root.Change != nil {
		t.Errorf("Root step should have no change, got %+v", root.Change)
	}
	if root.Rendering != " .*\n @0\n" {
		t.Errorf("Unexpected root rendering %q", root.Rendering)
	}

	pulled, err := svc.GetStep(ctx, info.ID, 1)
	if err != nil {
		t.Fatalf("GetStep(1) failed: %v", err)
	}
	if pulled.Change == nil || pulled.Change.Segment != "A" || pulled.Change.From != 0 || pulled.Change.To != 1 {
		t.Errorf("Expected A pulled 0 -> 1, got %+v", pulled.Change)
	}
	if pulled.Total != 3 {
		t.Errorf("Expected 3 steps in total, got %d", pulled.Total)
	}

	if _, err := svc.GetStep(ctx, info.ID, 3); !errors.Is(err, service.ErrStepOutOfRange) {
		t.Errorf("Expected ErrStepOutOfRange, got %v", err)
	}
	if _, err := svc.GetStep(ctx, "missing", 0); !errors.Is(err, errMockNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestSolverService_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	info, err := svc.Solve(ctx, service.SolveRequest{Level: "pull"})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	got, err := svc.GetRun(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if len(got.Steps) != 3 || len(got.Segments) != 1 {
		t.Errorf("Expected 3 steps over 1 segment, got %d steps, segments %v", len(got.Steps), got.Segments)
	}

	list, err := svc.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(list) != 1 || list[0].Steps != nil {
		t.Errorf("Expected one summary without steps, got %+v", list)
	}

	if err := svc.DeleteRun(ctx, info.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := svc.GetRun(ctx, info.ID); err == nil {
		t.Error("Expected error after delete")
	}
}

func TestSolverService_SolveBatch(t *testing.T) {
	svc, _ := newTestService(service.WithBatchLimit(2))

	reqs := []service.SolveRequest{
		{Level: "pull"},
		{Level: "flat"},
		{Level: "stuck"},
		{Level: "nonexistent"},
	}
	results, err := svc.SolveBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("SolveBatch failed: %v", err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("Expected %d results, got %d", len(reqs), len(results))
	}

	wantStatus := []service.RunStatus{service.StatusSolved, service.StatusSolved, service.StatusUnsolvable}
	for i, want := range wantStatus {
		if results[i].Run == nil || results[i].Run.Status != want {
			t.Errorf("Result %d: expected %s, got %+v", i, want, results[i])
		}
	}
	if results[3].Error == "" || results[3].Run != nil {
		t.Errorf("Expected error for missing level, got %+v", results[3])
	}

	if _, err := svc.SolveBatch(context.Background(), nil); !errors.Is(err, service.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for empty batch, got %v", err)
	}
	tooMany := make([]service.SolveRequest, service.MaxBatchSize+1)
	if _, err := svc.SolveBatch(context.Background(), tooMany); !errors.Is(err, service.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for oversized batch, got %v", err)
	}
}

func TestSolverService_Progress(t *testing.T) {
	var mu sync.Mutex
	var events []service.ProgressEvent
	svc, _ := newTestService(service.WithProgress(func(ev service.ProgressEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))

	info, err := svc.Solve(context.Background(), service.SolveRequest{Level: "pull"})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 2 {
		t.Fatalf("Expected start and finish events, got %d", len(events))
	}
	first, last := events[0], events[len(events)-1]
	if first.Type != "solve_started" || first.RunID != info.ID {
		t.Errorf("Unexpected first event %+v", first)
	}
	if last.Type != "solve_finished" || last.Status != service.StatusSolved || last.Stats == nil {
		t.Errorf("Unexpected last event %+v", last)
	}
}

func TestSolverService_ConcurrentIdenticalRequests(t *testing.T) {
	svc, runs := newTestService()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Solve(context.Background(), service.SolveRequest{Level: "stuck"}); err != nil {
				t.Errorf("Solve failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// Sharing is timing dependent; at most one run per request is stored.
	if n := len(runs.List()); n < 1 || n > 8 {
		t.Errorf("Expected between 1 and 8 stored runs, got %d", n)
	}
}

func TestSolverService_Levels(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	level := &engine.Level{Name: "New", Layout: []string{"@*"}}
	if err := svc.SaveLevel(ctx, "new", level); err != nil {
		t.Fatalf("SaveLevel failed: %v", err)
	}
	loaded, err := svc.LoadLevel(ctx, "new")
	if err != nil || loaded.Name != "New" {
		t.Errorf("LoadLevel returned %+v, %v", loaded, err)
	}

	infos, err := svc.ListLevels(ctx)
	if err != nil {
		t.Fatalf("ListLevels failed: %v", err)
	}
	if len(infos) != 4 {
		t.Errorf("Expected 4 levels, got %d", len(infos))
	}
}

func TestSolverService_DurationRecorded(t *testing.T) {
	svc, _ := newTestService()
	before := time.Now()
	info, err := svc.Solve(context.Background(), service.SolveRequest{Level: "pull"})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if info.CreatedAt.Before(before.Add(-time.Second)) || info.DurationMS < 0 {
		t.Errorf("Unexpected timing: created %v, duration %dms", info.CreatedAt, info.DurationMS)
	}
}

// wideLayout has far too many configurations to exhaust
var wideLayout = []string{
	"*...............",
	"................",
	"ABCDEFGHIJKLMNOP",
	"@QRSTUVWXYZabcde",
}

func TestSolverService_DefaultLimits(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		opts         []service.Option
		req          service.SolveRequest
		wantStatus   service.RunStatus
		wantExpanded int
	}{
		{
			name:         "unlimited request gets the service budget",
			opts:         []service.Option{service.WithDefaultLimits(300, time.Minute)},
			req:          service.SolveRequest{Layout: wideLayout, MaxDepth: engine.MaxSolveDepth},
			wantStatus:   service.StatusBudgetExceeded,
			wantExpanded: 300,
		},
		{
			name:         "larger request budget is clamped",
			opts:         []service.Option{service.WithDefaultLimits(300, time.Minute)},
			req:          service.SolveRequest{Layout: wideLayout, MaxDepth: engine.MaxSolveDepth, MaxExpansions: 1 << 30},
			wantStatus:   service.StatusBudgetExceeded,
			wantExpanded: 300,
		},
		{
			name:         "smaller request budget is kept",
			opts:         []service.Option{service.WithDefaultLimits(300, time.Minute)},
			req:          service.SolveRequest{Layout: wideLayout, MaxDepth: engine.MaxSolveDepth, MaxExpansions: 20},
			wantStatus:   service.StatusBudgetExceeded,
			wantExpanded: 20,
		},
		{
			name:       "unlimited request gets the service timeout",
			opts:       []service.Option{service.WithDefaultLimits(1<<30, 50*time.Millisecond)},
			req:        service.SolveRequest{Layout: wideLayout, MaxDepth: engine.MaxSolveDepth},
			wantStatus: service.StatusTimeout,
		},
		{
			name:       "longer request timeout is clamped",
			opts:       []service.Option{service.WithDefaultLimits(1<<30, 50*time.Millisecond)},
			req:        service.SolveRequest{Layout: wideLayout, MaxDepth: engine.MaxSolveDepth, TimeoutMS: 3600000},
			wantStatus: service.StatusTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(tt.opts...)

			start := time.Now()
			info, err := svc.Solve(ctx, tt.req)
			if err != nil {
				t.Fatalf("Solve() unexpected error: %v", err)
			}
			if info.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s (%s)", tt.wantStatus, info.Status, info.Error)
			}
			if tt.wantExpanded > 0 && info.Stats.Expanded != tt.wantExpanded {
				t.Errorf("Expected %d expansions, got %d", tt.wantExpanded, info.Stats.Expanded)
			}
			if elapsed := time.Since(start); elapsed > 30*time.Second {
				t.Errorf("Search was not bounded, took %v", elapsed)
			}
		})
	}
}

func TestSolverService_SharedSearchSurvivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	svc, runs := newTestService(service.WithProgress(func(ev service.ProgressEvent) {
		if ev.Type == "solve_started" {
			once.Do(func() {
				close(started)
				<-release
			})
		}
	}))
	req := service.SolveRequest{Level: "pull"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Solve(firstCtx, req)
		firstErr <- err
	}()
	<-started

	type result struct {
		info *service.RunInfo
		err  error
	}
	second := make(chan result, 1)
	go func() {
		info, err := svc.Solve(context.Background(), req)
		second <- result{info, err}
	}()

	// Let the second caller join the in-flight search.
	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected first caller to see context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Cancelled caller did not return")
	}

	close(release)

	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("Second caller failed: %v", res.err)
		}
		if !res.info.Solved {
			t.Errorf("Expected pull to be solved, got %s", res.info.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Second caller did not return")
	}

	if n := len(runs.List()); n != 1 {
		t.Errorf("Expected one shared run stored, got %d", n)
	}
}
