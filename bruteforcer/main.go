// Command bruteforcer asks a running solver server to solve levels at every
// max depth from 1 upward and reports the smallest depth each level needs.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
)

func main() {
	cmd := &cli.Command{
		Name:      "bruteforcer",
		Usage:     "find the smallest max depth that solves each level",
		ArgsUsage: "[LEVEL...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "Solver server URL",
				Sources: cli.EnvVars("PUSHMO_API_URL"),
			},
			&cli.IntFlag{
				Name:  "max-depth",
				Value: engine.MaxSolveDepth,
				Usage: "Deepest max depth to try",
			},
			&cli.IntFlag{
				Name:  "max-expansions",
				Value: 200000,
				Usage: "Expansion budget per attempt (0 = unlimited)",
			},
			&cli.IntFlag{
				Name:  "timeout-ms",
				Usage: "Timeout per attempt in milliseconds (0 = server default)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log every attempt",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	maxDepth := cmd.Int("max-depth")
	if maxDepth < 1 || maxDepth > engine.MaxSolveDepth {
		return fmt.Errorf("max-depth must be between 1 and %d", engine.MaxSolveDepth)
	}

	log.Printf("Connecting to solver server at %s", cmd.String("url"))
	client := NewClient(cmd.String("url"))

	names := cmd.Args().Slice()
	if len(names) == 0 {
		infos, err := client.ListLevels(ctx)
		if err != nil {
			return err
		}
		for _, info := range infos {
			names = append(names, info.LevelID)
		}
	}
	if len(names) == 0 {
		log.Printf("No levels to sweep")
		return nil
	}

	opts := SweepOptions{
		MaxDepth:      maxDepth,
		MaxExpansions: cmd.Int("max-expansions"),
		TimeoutMS:     cmd.Int("timeout-ms"),
	}
	if cmd.Bool("verbose") {
		opts.OnAttempt = func(a Attempt) {
			log.Printf("  depth %d: %s (%d moves, %d expanded) run=%s", a.Depth, a.Status, a.Moves, a.Expanded, a.RunID)
		}
	}

	unsolved := 0
	for _, name := range names {
		log.Printf("\n=== 🔍 Sweeping %s ===", name)
		result, err := Sweep(ctx, client, name, opts)
		if err != nil {
			log.Printf("⚠️  %v", err)
			unsolved++
			continue
		}
		log.Print(summarize(result, maxDepth))
		if result.MinDepth == 0 {
			unsolved++
		}
	}

	if unsolved > 0 {
		return cli.Exit(fmt.Sprintf("\n❌ %d of %d levels unsolved", unsolved, len(names)), 1)
	}
	log.Printf("\n🎉 All %d levels solved", len(names))
	return nil
}

func summarize(r *SweepResult, maxDepth int) string {
	if r.MinDepth > 0 {
		last := r.Attempts[len(r.Attempts)-1]
		return fmt.Sprintf("✅ %s: solved at max depth %d in %d moves", r.Level, r.MinDepth, last.Moves)
	}
	if r.Limited() {
		return fmt.Sprintf("⚠️  %s: no solution found up to depth %d, some attempts hit their budget", r.Level, maxDepth)
	}
	return fmt.Sprintf("❌ %s: unsolvable up to depth %d", r.Level, maxDepth)
}
