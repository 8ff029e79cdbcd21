package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
	"github.com/wricardo/mcp-training/pushmo/game/levels"
	"github.com/wricardo/mcp-training/pushmo/game/runs"
	"github.com/wricardo/mcp-training/pushmo/game/service"
	"github.com/wricardo/mcp-training/pushmo/transport/websocket"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Server represents the REST API server
type Server struct {
	service service.SolverService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(solverService service.SolverService, hub *websocket.Hub) *Server {
	s := &Server{
		service: solverService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Levels
	api.HandleFunc("/levels", s.handleListLevels).Methods("GET")
	api.HandleFunc("/levels", s.handleCreateLevel).Methods("POST")
	api.HandleFunc("/levels/{name}", s.handleGetLevel).Methods("GET")

	// Runs (batch must be before {id} pattern)
	api.HandleFunc("/runs", s.handleSolve).Methods("POST")
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/batch", s.handleSolveBatch).Methods("POST")
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleDeleteRun).Methods("DELETE")
	api.HandleFunc("/runs/{id}/steps/{n}", s.handleGetStep).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, runs.ErrRunNotFound),
		errors.Is(err, levels.ErrLevelNotFound),
		errors.Is(err, service.ErrStepOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, levels.ErrInvalidLevel),
		errors.Is(err, engine.ErrInvalidLayout):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		respondError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// Level Handlers

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	infos, err := s.service.ListLevels(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if infos == nil {
		infos = []*service.LevelInfo{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(infos),
		"levels": infos,
	})
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	for _, ext := range levels.Extensions {
		name = strings.TrimSuffix(name, ext)
	}

	level, err := s.service.LoadLevel(r.Context(), name)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	board, err := level.Board()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"level":     level,
		"board":     board,
		"rendering": board.Render(),
	})
}

func (s *Server) handleCreateLevel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LevelID string `json:"level_id,omitempty"`
		engine.Level
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Level name is required")
		return
	}
	id := req.LevelID
	if id == "" {
		id = slug(req.Name)
	}

	if err := s.service.SaveLevel(r.Context(), id, &req.Level); err != nil {
		respondError(w, statusFor(err), fmt.Sprintf("Failed to save level: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Level saved successfully",
		"level_id": id,
	})
}

// Run Handlers

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req service.SolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	info, err := s.service.Solve(r.Context(), req)
	if err != nil {
		log.Printf("[SOLVE] level=%s error=%v", req.Level, err)
		respondError(w, statusFor(err), err.Error())
		return
	}

	log.Printf("[SOLVE] run=%s level=%s status=%s moves=%d expanded=%d duration=%dms",
		info.ID, info.Level, info.Status, info.Moves, info.Stats.Expanded, info.DurationMS)

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleSolveBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []service.SolveRequest `json:"requests"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	results, err := s.service.SolveBatch(r.Context(), req.Requests)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	solved := 0
	for _, res := range results {
		if res != nil && res.Run != nil && res.Run.Solved {
			solved++
		}
	}
	log.Printf("[SOLVE] batch of %d, %d solved", len(results), solved)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"solved":  solved,
		"results": results,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	infos, err := s.service.ListRuns(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := r.URL.Query()
	level := query.Get("level")
	status := query.Get("status")

	filtered := make([]*service.RunInfo, 0, len(infos))
	for _, info := range infos {
		if level != "" && info.Level != level {
			continue
		}
		if status != "" && string(info.Status) != status {
			continue
		}
		filtered = append(filtered, info)
	}
	total := len(filtered)

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(filtered) {
			filtered = filtered[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(filtered),
		"total": total,
		"runs":  filtered,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	info, err := s.service.GetRun(r.Context(), runID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	if err := s.service.DeleteRun(r.Context(), runID); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Run %s deleted", runID),
	})
}

func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["id"]

	n, err := strconv.Atoi(vars["n"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Step must be an integer")
		return
	}

	step, err := s.service.GetStep(r.Context(), runID, n)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, step)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		http.Error(w, "run parameter required", http.StatusBadRequest)
		return
	}

	s.hub.ServeWS(w, r, runID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// slug turns a display name into a level id
func slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
