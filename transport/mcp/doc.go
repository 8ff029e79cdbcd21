// Package mcp provides a Model Context Protocol server for the Pushmo solver.
//
// The server is a thin client: every tool call is proxied to the REST API
// (see package api), so the MCP process and the HTTP server can run apart.
//
// MCP Tools:
//   - list_levels: List stored levels
//   - describe_level: Show a level's layout, segments and max depth
//   - save_level: Store a new level
//   - solve_level: Solve a stored level
//   - solve_layout: Solve an inline ASCII layout
//   - get_run: Get a run with all of its steps
//   - get_step: Render one step of a run
//   - list_runs: List past runs, optionally filtered by level and status
//   - solver_instructions: Layout format, rules and how to read results
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer()) for local MCP clients
//   - HTTP: the main server exposes /mcp and feeds request bodies to
//     GetMCPServer().HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
