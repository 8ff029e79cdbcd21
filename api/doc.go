// Package api provides HTTP REST API handlers for the Pushmo solver.
//
// Endpoints:
//
// Levels:
//   - GET /api/levels - List stored levels
//   - POST /api/levels - Store a level (name, description, max_depth, layout)
//   - GET /api/levels/{name} - Get a level with its parsed board and rendering
//
// Runs:
//   - POST /api/runs - Solve a stored level or an inline layout
//   - POST /api/runs/batch - Solve several requests concurrently
//   - GET /api/runs - List runs, filtered by ?level=, ?status= and ?limit=
//   - GET /api/runs/{id} - Get a run including its steps
//   - DELETE /api/runs/{id} - Delete a run
//   - GET /api/runs/{id}/steps/{n} - Render step n of a run
//
// Other:
//   - GET /api/health - Liveness check
//   - GET /ws?run={id} - Stream solve progress for a run, or every run with run=*
//
// A solve request looks like:
//
//	{
//	  "level": "first_pull",        // or "layout": ["..*", "@A."]
//	  "max_depth": 3,               // optional, 1..9
//	  "max_expansions": 10000,      // optional search budget
//	  "timeout_ms": 5000            // optional
//	}
//
// Unsolvable and budget-exhausted searches still produce a run (201) whose
// status says why no solution was returned.
//
// Error Handling:
//
// Errors are returned as JSON:
//
//	{"error": "error message"}
//
// Unknown runs, levels and steps map to 404, invalid requests and layouts to
// 422, malformed bodies to 400 and everything else to 500.
package api
