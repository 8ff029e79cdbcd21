// Command validate provides a small CLI that validates Pushmo level files
// (.json, .yaml, .txt) in a directory, ../levels by default. It checks:
//   - File format: JSON schema, strict YAML fields, or raw ASCII rows
//   - Layout consistency: equal row widths, exactly one start (@) and goal (*)
//   - Max depth within 1-9
//   - Segment shape: segments split into disconnected pieces are reported
//   - Solvability: a bounded search must reach the goal
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
	"github.com/wricardo/mcp-training/pushmo/game/levels"
)

const (
	// searchBudget bounds the solvability check per level
	searchBudget  = 200000
	searchTimeout = 30 * time.Second
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateLevel loads and validates a single level file.
// It performs format and layout checks, segment shape analysis and a bounded
// solvability search.
func validateLevel(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	level, err := levels.LoadFile(filePath)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	board, err := level.Board()
	if err != nil {
		result.fail("%v", err)
		return result
	}

	result.note("✓ Board: %dx%d, %d segments, max depth %d", board.Width, board.Height, len(board.Segments), level.EffectiveMaxDepth())

	// Segments may legally be split, but it is usually a typo in the layout
	for _, seg := range board.Segments {
		if pieces := countPieces(seg.Cells); pieces > 1 {
			result.note("⚠ Segment %s is split into %d pieces", seg.Name, pieces)
		}
	}

	if board.Goal.Y > 0 {
		if _, ok := board.SegmentAt(engine.Cell{X: board.Goal.X, Y: board.Goal.Y - 1}); !ok {
			result.note("⚠ Goal at %s has no segment beneath it", board.Goal)
		}
	}

	checkSolvable(&result, board, level.EffectiveMaxDepth())
	return result
}

// checkSolvable runs a bounded search. Running out of budget is not an error.
func checkSolvable(result *ValidationResult, board *engine.Board, maxDepth int) {
	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	solver := engine.NewSolver(board, engine.SolverOptions{
		MaxDepth:      maxDepth,
		MaxExpansions: searchBudget,
	})
	res, err := solver.Run(ctx)

	switch {
	case errors.Is(err, engine.ErrBudgetExceeded), errors.Is(err, context.DeadlineExceeded):
		result.note("⚠ Solvability unknown: search stopped after %d states", res.Stats.Expanded)
	case err != nil:
		result.fail("Search failed: %v", err)
	case !res.Solved:
		result.fail("Unsolvable at max depth %d (%d states explored)", maxDepth, res.Stats.Expanded)
	default:
		result.note("✓ Solvable in %d steps (%d states expanded)", len(res.Steps), res.Stats.Expanded)
	}
}

// countPieces counts the 4-connected components of cells
func countPieces(cells []engine.Cell) int {
	remaining := make(map[engine.Cell]bool, len(cells))
	for _, c := range cells {
		remaining[c] = true
	}

	pieces := 0
	for _, start := range cells {
		if !remaining[start] {
			continue
		}
		pieces++

		// Flood fill algorithm
		queue := []engine.Cell{start}
		delete(remaining, start)
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			for _, dir := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				next := engine.Cell{X: current.X + dir[0], Y: current.Y + dir[1]}
				if remaining[next] {
					delete(remaining, next)
					queue = append(queue, next)
				}
			}
		}
	}
	return pieces
}

// findLevelFiles lists level files in dir, sorted by name
func findLevelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !levels.IsLevelFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// main scans the level directory (first argument, default ../levels) and
// validates each file, printing a concise report and exiting with non-zero
// status if any are invalid.
func main() {
	levelDir := "../levels"
	if len(os.Args) > 1 {
		levelDir = os.Args[1]
	}

	files, err := findLevelFiles(levelDir)
	if err != nil {
		fmt.Printf("Error finding level files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateLevel(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Printf("✅ All %d levels are valid!\n", len(files))
	} else {
		fmt.Println("❌ Some levels have errors")
		os.Exit(1)
	}
}
