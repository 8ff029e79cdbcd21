package runs

import (
	"errors"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
	"github.com/wricardo/mcp-training/pushmo/game/service"
)

func createTestRun(id string) *service.Run {
	return &service.Run{
		ID:       id,
		Level:    "tutorial",
		Layout:   []string{".*", "@A"},
		MaxDepth: 3,
		Status:   service.StatusSolved,
		Steps: []service.StepRecord{
			{N: 0, Depths: []int{0}, Cell: engine.Cell{X: 0, Y: 0}},
			{N: 1, Depths: []int{1}, Cell: engine.Cell{X: 1, Y: 0}},
			{N: 2, Depths: []int{1}, Cell: engine.Cell{X: 1, Y: 1}},
		},
		Stats:      engine.SolverStats{Expanded: 2, Enqueued: 2, Pruned: 2, Duplicates: 1, Configurations: 2},
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		DurationMS: 3,
	}
}

// persistenceContract exercises behaviour every RunPersistence must share
func persistenceContract(t *testing.T, p RunPersistence) {
	t.Run("save and load", func(t *testing.T) {
		run := createTestRun("run-1")
		if err := p.Save(run); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if !p.Exists("run-1") {
			t.Error("Expected run to exist after save")
		}

		loaded, err := p.Load("run-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !reflect.DeepEqual(loaded, run) {
			t.Errorf("Loaded run differs:\n got %+v\nwant %+v", loaded, run)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		run := createTestRun("run-1")
		run.Status = service.StatusUnsolvable
		run.Steps = nil
		if err := p.Save(run); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		loaded, err := p.Load("run-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Status != service.StatusUnsolvable || len(loaded.Steps) != 0 {
			t.Errorf("Expected overwritten run, got %+v", loaded)
		}
	})

	t.Run("list", func(t *testing.T) {
		if err := p.Save(createTestRun("run-2")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids, err := p.ListAll()
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		sort.Strings(ids)
		if !reflect.DeepEqual(ids, []string{"run-1", "run-2"}) {
			t.Errorf("Expected [run-1 run-2], got %v", ids)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := p.Load("nope"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("Expected ErrRunNotFound, got %v", err)
		}
		if p.Exists("nope") {
			t.Error("Expected missing run to not exist")
		}
		if err := p.Delete("nope"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("Expected ErrRunNotFound on delete, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := p.Delete("run-2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if p.Exists("run-2") {
			t.Error("Expected run to be gone after delete")
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		if err := p.Save(createTestRun("../escape")); !errors.Is(err, ErrInvalidRunID) {
			t.Errorf("Expected ErrInvalidRunID, got %v", err)
		}
		if err := p.Save(nil); err == nil {
			t.Error("Expected error for nil run")
		}
	})
}

func TestFilePersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	p, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("NewFilePersistence failed: %v", err)
	}
	persistenceContract(t, p)
}

func TestSQLitePersistence(t *testing.T) {
	p, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer p.Close()
	persistenceContract(t, p)
}

func TestSQLitePersistence_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	p, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := p.Save(createTestRun("kept")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	p.Close()

	p, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer p.Close()
	if !p.Exists("kept") {
		t.Error("Expected run to survive reopening the database")
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestFilePersistence_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	p, _ := NewFilePersistence(dir)
	if err := p.Save(createTestRun("only")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	writeFile(t, filepath.Join(dir, "notes.json"), "{}")

	ids, err := p.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "only" {
		t.Errorf("Expected [only], got %v", ids)
	}
}
