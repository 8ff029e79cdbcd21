// Command pushmo solves Pushmo puzzles.
//
// It has three commands:
//  1. "solve FILE" – solves a level file and prints every step
//  2. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  3. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags fall back to environment variables, and a .env file in the working
// directory is loaded first. The server can optionally be exposed through an
// ngrok tunnel during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/pushmo/api"
	"github.com/wricardo/mcp-training/pushmo/game/engine"
	"github.com/wricardo/mcp-training/pushmo/game/levels"
	"github.com/wricardo/mcp-training/pushmo/game/runs"
	"github.com/wricardo/mcp-training/pushmo/game/service"
	"github.com/wricardo/mcp-training/pushmo/transport/mcp"
	"github.com/wricardo/mcp-training/pushmo/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Pushmo Solver"
)

// Exit codes of the solve command
const (
	exitLoadError  = 1
	exitUnsolvable = 2
	exitStopped    = 3
)

// main loads .env and runs the command line
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		// Only log if it's not a "file not found" error
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:           "pushmo",
		Usage:          AppName,
		Version:        Version,
		DefaultCommand: "server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			// Setup logging
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			solveCommand(),
			serverCommand(),
			mcpCommand(),
		},
	}
}

// Solve command

type solveOptions struct {
	MaxDepth      int
	MaxExpansions int
	Timeout       time.Duration
	Verbose       bool
}

func solveCommand() *cli.Command {
	return &cli.Command{
		Name:      "solve",
		Usage:     "Solve a level file (.txt, .json, .yaml) and print every step; - reads a text layout from stdin",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-depth",
				Usage: fmt.Sprintf("How far segments may be pulled out, 1-%d (default: the level's value or %d)", engine.MaxSolveDepth, engine.DefaultMaxDepth),
			},
			&cli.IntFlag{
				Name:  "max-expansions",
				Usage: "Stop after expanding this many states (0 means unlimited)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Abort the search after this long (0 means no timeout)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print every expanded state and its reachable cells",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("solve: FILE is required", exitLoadError)
			}

			level, err := loadLevel(path, os.Stdin)
			if err != nil {
				return cli.Exit(err.Error(), exitLoadError)
			}

			solved, err := runSolve(ctx, os.Stdout, level, solveOptions{
				MaxDepth:      cmd.Int("max-depth"),
				MaxExpansions: cmd.Int("max-expansions"),
				Timeout:       cmd.Duration("timeout"),
				Verbose:       cmd.Bool("verbose"),
			})
			switch {
			case errors.Is(err, engine.ErrInvalidLayout), errors.Is(err, errInvalidOption):
				return cli.Exit(err.Error(), exitLoadError)
			case err != nil:
				return cli.Exit(err.Error(), exitStopped)
			case !solved:
				return cli.Exit("", exitUnsolvable)
			}
			return nil
		},
	}
}

var errInvalidOption = errors.New("invalid option")

// loadLevel reads a level file, or a text layout from stdin when path is "-"
func loadLevel(path string, stdin io.Reader) (*engine.Level, error) {
	if path != "-" {
		return levels.LoadFile(path)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return levels.Decode(data, "stdin.txt")
}

// runSolve searches level and prints the initial board, every step of the
// solution and a summary line to out. Budget and timeout stops are errors.
func runSolve(ctx context.Context, out io.Writer, level *engine.Level, opts solveOptions) (bool, error) {
	board, err := level.Board()
	if err != nil {
		return false, err
	}

	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = level.EffectiveMaxDepth()
	}
	if maxDepth < 1 || maxDepth > engine.MaxSolveDepth {
		return false, fmt.Errorf("%w: max-depth must be between 1 and %d, got %d", errInvalidOption, engine.MaxSolveDepth, maxDepth)
	}
	if opts.MaxExpansions < 0 || opts.Timeout < 0 {
		return false, fmt.Errorf("%w: limits cannot be negative", errInvalidOption)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	fmt.Fprintln(out, "-- Initial state --")
	fmt.Fprint(out, board.Render())
	fmt.Fprintln(out)

	solver := engine.NewSolver(board, engine.SolverOptions{
		MaxDepth:      maxDepth,
		Verbose:       opts.Verbose,
		MaxExpansions: opts.MaxExpansions,
		Trace: func(snap engine.Snapshot) {
			fmt.Fprintf(out, "-- Move %d --\n", snap.Move)
			fmt.Fprint(out, snap.Config.Render(snap.Cell))
			fmt.Fprintf(out, " Possible locations: %v\n\n", snap.Reachable)
		},
	})

	result, err := solver.Run(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, fmt.Errorf("search timed out after %s", opts.Timeout)
		}
		return false, err
	}

	if !result.Solved {
		fmt.Fprintln(out, "Unsolvable.")
		return false, nil
	}

	for _, step := range result.Steps {
		fmt.Fprintf(out, "-- Move %d --\n", step.N)
		fmt.Fprint(out, step.Config.Render(step.Cell))
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Solved in %d steps.\n", len(result.Steps))
	return true, nil
}

// Storage configuration shared by server and mcp

type serviceConfig struct {
	LevelsDir  string
	RunsDir    string
	Store      string
	BatchLimit int
	RunTTL     time.Duration

	SolveMaxExpansions int
	SolveTimeout       time.Duration
}

func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "levels-dir",
			Value:   "levels",
			Usage:   "Directory containing level files",
			Sources: cli.EnvVars("LEVELS_DIR"),
		},
		&cli.StringFlag{
			Name:    "runs-dir",
			Value:   "runs",
			Usage:   "Directory for stored runs",
			Sources: cli.EnvVars("RUNS_DIR"),
		},
		&cli.StringFlag{
			Name:    "store",
			Value:   "file",
			Usage:   "Run store: file (zstd JSON per run) or sqlite",
			Sources: cli.EnvVars("PUSHMO_STORE"),
		},
		&cli.IntFlag{
			Name:  "batch-limit",
			Value: service.DefaultBatchLimit,
			Usage: "Maximum concurrent searches in a batch solve",
		},
		&cli.DurationFlag{
			Name:  "run-ttl",
			Value: 7 * 24 * time.Hour,
			Usage: "Delete runs older than this (0 keeps them forever)",
		},
		&cli.IntFlag{
			Name:    "solve-max-expansions",
			Value:   service.DefaultMaxExpansions,
			Usage:   "Expansion budget for requests that set none; larger requests are clamped",
			Sources: cli.EnvVars("PUSHMO_SOLVE_MAX_EXPANSIONS"),
		},
		&cli.DurationFlag{
			Name:    "solve-timeout",
			Value:   service.DefaultSolveTimeout,
			Usage:   "Timeout for requests that set none; longer requests are clamped",
			Sources: cli.EnvVars("PUSHMO_SOLVE_TIMEOUT"),
		},
	}
}

func serviceConfigFrom(cmd *cli.Command) serviceConfig {
	return serviceConfig{
		LevelsDir:  cmd.String("levels-dir"),
		RunsDir:    cmd.String("runs-dir"),
		Store:      cmd.String("store"),
		BatchLimit: cmd.Int("batch-limit"),
		RunTTL:     cmd.Duration("run-ttl"),

		SolveMaxExpansions: cmd.Int("solve-max-expansions"),
		SolveTimeout:       cmd.Duration("solve-timeout"),
	}
}

// services holds the wired managers and the solver service
type services struct {
	solver  service.SolverService
	levels  *levels.Manager
	runs    *runs.Manager
	closers []io.Closer
}

// Close releases the level watcher and the run store
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
}

// initializeServices wires level/run managers and the solver service.
func initializeServices(cfg serviceConfig, progress service.ProgressFunc) (*services, error) {
	levelManager, err := levels.NewManager(cfg.LevelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create level manager: %w", err)
	}
	svc := &services{levels: levelManager, closers: []io.Closer{levelManager}}

	var persistence runs.RunPersistence
	switch cfg.Store {
	case "", "file":
		fp, err := runs.NewFilePersistence(cfg.RunsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create run persistence: %w", err)
		}
		persistence = fp
	case "sqlite":
		if err := os.MkdirAll(cfg.RunsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create runs directory: %w", err)
		}
		db, err := runs.OpenSQLite(filepath.Join(cfg.RunsDir, "runs.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open run database: %w", err)
		}
		svc.closers = append(svc.closers, db)
		persistence = db
	default:
		return nil, fmt.Errorf("unknown run store %q (use file or sqlite)", cfg.Store)
	}

	svc.runs = runs.NewManagerWithPersistence(persistence)

	// Load persisted runs on startup
	if err := svc.runs.LoadPersistedRuns(); err != nil {
		log.Printf("Warning: Failed to load persisted runs: %v", err)
	}

	opts := []service.Option{}
	if progress != nil {
		opts = append(opts, service.WithProgress(progress))
	}
	if cfg.BatchLimit > 0 {
		opts = append(opts, service.WithBatchLimit(cfg.BatchLimit))
	}
	opts = append(opts, service.WithDefaultLimits(cfg.SolveMaxExpansions, cfg.SolveTimeout))
	svc.solver = service.NewSolverService(svc.levels, svc.runs, opts...)

	return svc, nil
}

// runCleanupRoutine periodically removes runs older than ttl.
func runCleanupRoutine(ctx context.Context, manager *runs.Manager, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredRuns(ttl); removed > 0 {
				log.Printf("Cleaned up %d expired runs", removed)
			}
		}
	}
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// Server command

func serverCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "HTTP server port",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:  "host",
			Value: "localhost",
			Usage: "HTTP server host",
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "Enable ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "Ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "Custom ngrok domain (optional)",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}

	return &cli.Command{
		Name:    "server",
		Aliases: []string{"http"},
		Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
		Flags:   append(flags, storageFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runHTTPServer(ctx, cmd)
		},
	}
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func runHTTPServer(parent context.Context, cmd *cli.Command) error {
	log.Printf("Starting %s v%s", AppName, Version)

	// Create WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	svc, err := initializeServices(serviceConfigFrom(cmd), hub.PublishProgress)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	if err := svc.levels.Watch(); err != nil {
		log.Printf("Warning: level directory watch disabled: %v", err)
	}

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go runCleanupRoutine(ctx, svc.runs, cmd.Duration("run-ttl"))

	// Create API server
	apiServer := api.NewServer(svc.solver, hub)

	// Setup HTTP server address
	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))

	// Create MCP client for /mcp endpoint
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	// Create main router that combines API and MCP
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Handle shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	// Start regular HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?run=<run_id|*>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)
		log.Printf("Levels: %s", svc.levels.Dir())

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Start ngrok tunnel if enabled
	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	// Wait for shutdown signal
	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case err := <-serveErr:
		log.Printf("HTTP server failed: %v", err)
		cancel()
		wg.Wait()
		return err
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Wait for all goroutines to finish
	wg.Wait()
	log.Println("Server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Printf("Using custom ngrok domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(authToken),
	)
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?run=<run_id|*>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	go func() {
		<-ctx.Done()
		tun.Close()
	}()

	// Serve HTTP through ngrok tunnel
	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// MCP command

func mcpCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "api-url",
			Value:   "http://localhost:8080",
			Usage:   "REST API to proxy; an internal server is started if it is not reachable",
			Sources: cli.EnvVars("PUSHMO_API_URL"),
		},
	}

	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp", "mcp-stdio"},
		Usage:   "Run MCP stdio server with internal HTTP server",
		Flags:   append(flags, storageFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStdioMCPWithInternalServer(ctx, cmd)
		},
	}
}

// apiAvailable reports whether a REST API answers at baseURL
func apiAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API first; if unavailable, it starts a
// minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, cmd *cli.Command) error {
	// MCP owns stdout; keep logs on stderr
	log.SetOutput(os.Stderr)

	baseURL := cmd.String("api-url")
	log.Printf("Checking for external API server at %s...", baseURL)

	if apiAvailable(baseURL) {
		log.Printf("External API server found at %s, using it for MCP", baseURL)
	} else {
		// No external server found, start internal one
		log.Printf("No external API server found, starting internal HTTP server")

		hub := websocket.NewHub()
		go hub.Run()

		svc, err := initializeServices(serviceConfigFrom(cmd), hub.PublishProgress)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.Close()

		// Start internal HTTP server on a random available port
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		httpServer := &http.Server{
			Handler: api.NewServer(svc.solver, hub),
		}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	}

	// Create MCP client pointing to the selected server
	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
