// Package service provides the business logic layer for the Pushmo solver.
//
// The service package implements:
//   - Solving stored or inline levels with time and expansion budgets
//   - Concurrent batch solving
//   - Run storage and step-by-step playback
//   - Level listing, loading and saving
//
// Core Interfaces:
//
// SolverService is the main service interface used by the HTTP, WebSocket
// and MCP transports. RunManager stores finished runs. LevelManager loads
// level files.
//
// Usage:
//
//	levelMgr, _ := levels.NewManager("levels")
//	runMgr := runs.NewManager()
//	svc := service.NewSolverService(levelMgr, runMgr,
//		service.WithProgress(func(ev service.ProgressEvent) {
//			hub.BroadcastToRun(ev.RunID, ev)
//		}),
//	)
//
//	info, err := svc.Solve(ctx, service.SolveRequest{Level: "tutorial"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	step, err := svc.GetStep(ctx, info.ID, 1)
//
// Each solve runs in its own engine.Solver and is traced with an
// OpenTelemetry span named "solver.Solve". Requests that carry no ID and
// match an in-flight request share its result.
package service
