// Package engine provides the core solver logic for Pushmo-style puzzles.
//
// A puzzle is a 2-D wall of named segments. Each segment can be pulled out of
// the wall (or pushed back in) to a depth, and the character climbs the steps
// that the protruding segments form. The engine answers whether the goal cell
// can be reached and, if so, which sequence of configurations gets there.
//
// The engine package implements:
//   - Board geometry parsed from ASCII layouts (@ start, * goal, letters/digits segments)
//   - Configurations: immutable depth assignments, one depth per segment
//   - Reachability: every cell the character can walk, jump, or fall to
//   - Segment moves: which segments the character can push or pull from a cell
//   - Search: greedy best-first search over (configuration, cell) states
//   - Text rendering of boards and configurations
//
// Core Types:
//
// Board is the immutable geometry. Configuration pairs a Board with a depth
// vector and is the search key. Solver runs one search and returns a Result
// whose Steps lead from the start to the goal.
//
// Usage:
//
//	board, err := engine.ParseLayout([]string{
//		"..*",
//		".AA",
//		"@AA",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	steps, ok := engine.Solve(board, engine.DefaultMaxDepth, false)
//	if !ok {
//		fmt.Println("Unsolvable.")
//	}
//	for _, step := range steps {
//		fmt.Println(step.Config.Render(step.Cell))
//	}
//
// Coordinates:
//
// X is the column, Y the level. The bottom layout row is Y=0 and anything
// below it (Y<0) is bedrock of infinite depth. Open cells have depth 0.
package engine
