// Command analyze prints quick, human-readable heuristics about level files
// in a directory (first argument, default "levels"). It summarizes
// dimensions, segment counts, the size of the configuration space, and what
// the character can do before moving any segment.
package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
	"github.com/wricardo/mcp-training/pushmo/game/levels"
)

// Analysis is the set of heuristics computed for one level
type Analysis struct {
	Name         string
	Width        int
	Height       int
	MaxDepth     int
	Segments     int
	SegmentCells int
	Largest      string
	LargestSize  int
	// StateSpace is the number of configurations, (MaxDepth+1)^Segments
	StateSpace float64
	Distance   int
	Climb      int
	// InitialReach counts cells reachable before any segment moves
	InitialReach int
	GoalInReach  bool
	// Handles counts initially reachable cells with at least one segment move
	Handles int
}

func main() {
	dir := "levels"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Printf("Error reading level directory: %v\n", err)
		os.Exit(1)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && levels.IsLevelFile(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", file)
		analyzeFile(os.Stdout, filepath.Join(dir, file))
	}
}

func analyzeFile(w io.Writer, path string) {
	level, err := levels.LoadFile(path)
	if err != nil {
		fmt.Fprintf(w, "Error loading level: %v\n", err)
		return
	}

	a, err := analyzeLevel(level)
	if err != nil {
		fmt.Fprintf(w, "Error parsing layout: %v\n", err)
		return
	}
	printAnalysis(w, a)
}

func analyzeLevel(level *engine.Level) (*Analysis, error) {
	board, err := level.Board()
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Name:         level.Name,
		Width:        board.Width,
		Height:       board.Height,
		MaxDepth:     level.EffectiveMaxDepth(),
		Segments:     len(board.Segments),
		SegmentCells: engine.CountSegmentCells(board),
		Distance:     engine.ManhattanDistance(board.Start, board.Goal),
		Climb:        board.Goal.Y - board.Start.Y,
	}
	a.Largest, a.LargestSize, _ = engine.LargestSegment(board)
	a.StateSpace = math.Pow(float64(a.MaxDepth+1), float64(a.Segments))

	root := engine.NewConfiguration(board)
	reach := engine.ReachableCells(root, board.Start)
	a.InitialReach = reach.Size()
	a.GoalInReach = reach.Has(board.Goal)
	for _, c := range engine.SortedCells(reach) {
		if len(engine.SegmentMoves(root, c)) > 0 {
			a.Handles++
		}
	}

	return a, nil
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Board Size: %d x %d\n", a.Width, a.Height)
	fmt.Fprintf(w, "Segments: %d (%d cells)\n", a.Segments, a.SegmentCells)
	if a.LargestSize > 0 {
		fmt.Fprintf(w, "Largest Segment: %s (%d cells)\n", a.Largest, a.LargestSize)
	}
	fmt.Fprintf(w, "Max Depth: %d\n", a.MaxDepth)
	fmt.Fprintf(w, "Configurations: %.3g\n", a.StateSpace)
	fmt.Fprintf(w, "Start to Goal: distance %d, climb %d\n", a.Distance, a.Climb)
	fmt.Fprintf(w, "Initially Reachable Cells: %d\n", a.InitialReach)

	switch {
	case a.GoalInReach:
		fmt.Fprintf(w, "⚠️  WARNING: goal is reachable without moving any segment\n")
	case a.Handles == 0:
		fmt.Fprintf(w, "⚠️  CRITICAL: no segment can be moved from the start area\n")
	default:
		fmt.Fprintf(w, "✅ %d reachable cells can push or pull a segment\n", a.Handles)
	}

	if a.StateSpace > 1e7 {
		fmt.Fprintf(w, "⚠️  Large configuration space; consider --max-expansions when solving\n")
	}
}
