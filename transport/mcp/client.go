package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
	"github.com/wricardo/mcp-training/pushmo/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Solves can run for a while; the server enforces its own timeouts.
			Timeout: 2 * time.Minute,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Pushmo Solver",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Pushmo Solver - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A Pushmo puzzle is a wall of coloured segments. The character (@) pulls
segments out of the wall or pushes them back in, then climbs the steps they
form to reach the goal (*). The solver searches for a sequence of
configurations that gets the character to the goal.

AVAILABLE TOOLS:
- list_levels: List stored levels
- describe_level: Show a level's layout, segments and max depth
- save_level: Store a new level
- solve_level: Solve a stored level
- solve_layout: Solve an inline ASCII layout
- get_run: Get a run with all of its steps
- get_step: Render one step of a run
- list_runs: List past runs
- solver_instructions: Layout format, rules and how to read results`),
	)

	// Register all tools
	c.registerTools()
}

var solveOptionProperties = map[string]interface{}{
	"max_depth": map[string]interface{}{
		"type":        "integer",
		"minimum":     1,
		"maximum":     engine.MaxSolveDepth,
		"description": "How far segments may be pulled out (optional, defaults to the level's value or 3)",
	},
	"max_expansions": map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"description": "Stop after expanding this many states (optional, 0 means unlimited)",
	},
	"timeout_ms": map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"description": "Abort the search after this many milliseconds (optional)",
	},
}

func withSolveOptions(props map[string]interface{}) map[string]interface{} {
	for k, v := range solveOptionProperties {
		props[k] = v
	}
	return props
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Levels
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List all stored levels",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_level",
		Description: "Show a stored level: its layout, segments, start, goal and max depth",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"description": "Level ID (see list_levels)",
				},
			},
			Required: []string{"level"},
		},
	}, c.handleDescribeLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "save_level",
		Description: "Store a new level so it can be solved by name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Display name; the level ID is derived from it",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Optional description",
				},
				"layout": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Layout rows, top row first, all the same width",
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"maximum":     engine.MaxSolveDepth,
					"description": "Default max depth for this level (optional)",
				},
			},
			Required: []string{"name", "layout"},
		},
	}, c.handleSaveLevel)

	// Solving
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "solve_level",
		Description: "Solve a stored level and return the run with its steps",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withSolveOptions(map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"description": "Level ID (see list_levels)",
				},
			}),
			Required: []string{"level"},
		},
	}, c.handleSolveLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "solve_layout",
		Description: "Solve an ASCII layout given inline and return the run with its steps",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withSolveOptions(map[string]interface{}{
				"layout": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Layout rows, top row first. @ start, * goal, letters/digits segments, anything else open",
				},
			}),
			Required: []string{"layout"},
		},
	}, c.handleSolveLayout)

	// Runs
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_run",
		Description: "Get a run including every step of its solution",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run ID",
				},
			},
			Required: []string{"run_id"},
		},
	}, c.handleGetRun)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_step",
		Description: "Render one step of a run: the wall with depths, the character position and the segment that changed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run ID",
				},
				"n": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"description": "Step number, 0 is the starting configuration",
				},
			},
			Required: []string{"run_id", "n"},
		},
	}, c.handleGetStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_runs",
		Description: "List past runs, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"description": "Only runs of this level (optional)",
				},
				"status": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"solved", "unsolvable", "budget_exceeded", "timeout"},
					"description": "Only runs with this status (optional)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"description": "Maximum number of runs (optional)",
				},
			},
		},
	}, c.handleListRuns)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "solver_instructions",
		Description: "Get the layout format, puzzle rules and how to read solver output",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleSolverInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall makes an HTTP request to the REST API
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads an integer argument; JSON numbers arrive as float64
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func stringsArg(args map[string]interface{}, key string) []string {
	raw, _ := args[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func solveRequest(args map[string]interface{}) service.SolveRequest {
	req := service.SolveRequest{}
	req.MaxDepth, _ = intArg(args, "max_depth")
	req.MaxExpansions, _ = intArg(args, "max_expansions")
	req.TimeoutMS, _ = intArg(args, "timeout_ms")
	return req
}

// Level handlers

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Count  int                  `json:"count"`
		Levels []*service.LevelInfo `json:"levels"`
	}
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLevelList(resp.Levels)), nil
}

func (c *Client) handleDescribeLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["level"].(string)
	if name == "" {
		return mcp.NewToolResultError("level is required"), nil
	}

	var resp struct {
		Level     engine.Level `json:"level"`
		Board     engine.Board `json:"board"`
		Rendering string       `json:"rendering"`
	}
	if err := c.apiCall(ctx, "GET", "/api/levels/"+url.PathEscape(name), nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLevel(&resp.Level, &resp.Board, resp.Rendering)), nil
}

func (c *Client) handleSaveLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	level := engine.Level{Layout: stringsArg(args, "layout")}
	level.Name, _ = args["name"].(string)
	level.Description, _ = args["description"].(string)
	level.MaxDepth, _ = intArg(args, "max_depth")

	var resp struct {
		LevelID string `json:"level_id"`
	}
	if err := c.apiCall(ctx, "POST", "/api/levels", level, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Saved level %q as %s\n", level.Name, resp.LevelID)), nil
}

// Solve handlers

func (c *Client) handleSolveLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	req := solveRequest(args)
	req.Level, _ = args["level"].(string)
	if req.Level == "" {
		return mcp.NewToolResultError("level is required"), nil
	}

	return c.solve(ctx, req)
}

func (c *Client) handleSolveLayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	req := solveRequest(args)
	req.Layout = stringsArg(args, "layout")
	if len(req.Layout) == 0 {
		return mcp.NewToolResultError("layout is required"), nil
	}

	return c.solve(ctx, req)
}

func (c *Client) solve(ctx context.Context, req service.SolveRequest) (*mcp.CallToolResult, error) {
	var run service.RunInfo
	if err := c.apiCall(ctx, "POST", "/api/runs", req, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRun(&run)), nil
}

// Run handlers

func (c *Client) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	runID, _ := args["run_id"].(string)
	if runID == "" {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	var run service.RunInfo
	if err := c.apiCall(ctx, "GET", "/api/runs/"+url.PathEscape(runID), nil, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRun(&run)), nil
}

func (c *Client) handleGetStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	runID, _ := args["run_id"].(string)
	n, ok := intArg(args, "n")
	if runID == "" || !ok {
		return mcp.NewToolResultError("run_id and n are required"), nil
	}

	var step service.StepView
	path := fmt.Sprintf("/api/runs/%s/steps/%d", url.PathEscape(runID), n)
	if err := c.apiCall(ctx, "GET", path, nil, &step); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStep(&step)), nil
}

func (c *Client) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := url.Values{}
	if level, _ := args["level"].(string); level != "" {
		query.Set("level", level)
	}
	if status, _ := args["status"].(string); status != "" {
		query.Set("status", status)
	}
	if limit, ok := intArg(args, "limit"); ok && limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/runs"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp struct {
		Count int                `json:"count"`
		Total int                `json:"total"`
		Runs  []*service.RunInfo `json:"runs"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRunList(resp.Runs, resp.Total)), nil
}

func (c *Client) handleSolverInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(solverInstructions), nil
}

const solverInstructions = `🧩 Pushmo Solver - Complete Instructions

PUZZLE RULES:
• The puzzle is a wall seen from the front. Each segment is a group of cells
  that moves as one block.
• Every segment has a depth: 0 means flush with the wall, higher values mean
  pulled further out toward the character. Open cells always have depth 0.
• The character stands on top of protruding cells. It can walk sideways onto
  a cell with depth, climb up one cell onto a step that sticks out, and fall
  down until it lands on something. Row 0 stands on bedrock.
• From where it stands the character can pull the segment in front of it or
  beside it further out, or push it back in. It cannot move the segment it
  is standing on.
• The puzzle is solved when the character reaches the goal cell.

LAYOUT FORMAT:
• One string per row, top row first, every row the same width
• @ - start cell (exactly one)
• * - goal cell (exactly one)
• A-Z, a-z, 0-9 - segment cells; equal characters form one segment
• anything else (usually .) - open space

Example:
  ..*
  .AA
  @AA

READING RESULTS:
• Status is one of: solved, unsolvable, budget_exceeded, timeout
• Step 0 is the starting configuration; the last step has the character on
  the goal. Each step in between pushes or pulls exactly one segment.
• get_step renders the wall with each cell's depth (0-9, then a-z for deeper),
  @ for the character and * for the goal.
• Stats: expanded states, enqueued states, pruned states (a segment pulled
  out with no way to reach it) and duplicates.

TIPS:
• Raise max_depth (up to 9) if a level is unsolvable at the default of 3.
• Use max_expansions or timeout_ms to bound very large searches.

Good luck climbing!`

// Formatting helpers

func formatLevelList(levels []*service.LevelInfo) string {
	if len(levels) == 0 {
		return "No levels stored.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d levels:\n", len(levels))
	for _, l := range levels {
		fmt.Fprintf(&sb, "- %s: %s (%dx%d, %d segments, max depth %d)", l.LevelID, l.Name, l.Width, l.Height, l.Segments, l.MaxDepth)
		if l.Description != "" {
			fmt.Fprintf(&sb, " - %s", l.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatLevel(level *engine.Level, board *engine.Board, rendering string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Level: %s\n", level.Name)
	if level.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", level.Description)
	}
	fmt.Fprintf(&sb, "Size: %dx%d\n", board.Width, board.Height)
	fmt.Fprintf(&sb, "Start: %s  Goal: %s\n", board.Start, board.Goal)
	fmt.Fprintf(&sb, "Max depth: %d\n", level.EffectiveMaxDepth())

	names := make([]string, 0, len(board.Segments))
	for _, seg := range board.Segments {
		names = append(names, fmt.Sprintf("%s(%d cells)", seg.Name, len(seg.Cells)))
	}
	fmt.Fprintf(&sb, "Segments: %s\n", strings.Join(names, ", "))

	sb.WriteString("\nLayout:\n")
	sb.WriteString(rendering)
	return sb.String()
}

func formatRun(run *service.RunInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run: %s\n", run.ID)
	if run.Level != "" {
		fmt.Fprintf(&sb, "Level: %s\n", run.Level)
	}

	switch run.Status {
	case service.StatusSolved:
		fmt.Fprintf(&sb, "🎉 SOLVED in %d moves\n", run.Moves)
	case service.StatusUnsolvable:
		fmt.Fprintf(&sb, "✗ UNSOLVABLE at max depth %d\n", run.MaxDepth)
	default:
		fmt.Fprintf(&sb, "⚠️ %s\n", strings.ToUpper(string(run.Status)))
	}
	if run.Error != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", run.Error)
	}

	s := run.Stats
	fmt.Fprintf(&sb, "Stats: expanded=%d enqueued=%d pruned=%d duplicates=%d (%dms)\n",
		s.Expanded, s.Enqueued, s.Pruned, s.Duplicates, run.DurationMS)

	if len(run.Steps) > 0 {
		fmt.Fprintf(&sb, "\nSteps (segments %s):\n", strings.Join(run.Segments, " "))
		for _, step := range run.Steps {
			fmt.Fprintf(&sb, "  %2d: at %s depths %v\n", step.N, step.Cell, step.Depths)
		}
		sb.WriteString("\nUse get_step to render any step.\n")
	}
	return sb.String()
}

func formatStep(step *service.StepView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s, step %d of %d\n", step.RunID, step.N, step.Total-1)
	fmt.Fprintf(&sb, "Character at %s\n", step.Cell)
	if step.Change != nil {
		verb := "Pulled"
		if step.Change.To < step.Change.From {
			verb = "Pushed"
		}
		fmt.Fprintf(&sb, "%s segment %s from depth %d to %d\n", verb, step.Change.Segment, step.Change.From, step.Change.To)
	}
	sb.WriteString("\n")
	sb.WriteString(step.Rendering)
	return sb.String()
}

func formatRunList(runs []*service.RunInfo, total int) string {
	if len(runs) == 0 {
		return "No runs found.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Showing %d of %d runs:\n", len(runs), total)
	for _, r := range runs {
		fmt.Fprintf(&sb, "- %s %s %s", r.ID, r.Level, r.Status)
		if r.Solved {
			fmt.Fprintf(&sb, " (%d moves)", r.Moves)
		}
		fmt.Fprintf(&sb, " %s\n", r.CreatedAt.Format(time.RFC3339))
	}
	return sb.String()
}
