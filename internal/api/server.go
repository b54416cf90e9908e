// Package api serves the tavern over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/engine"
	"github.com/talgya/tavern-minds/internal/observer"
	"github.com/talgya/tavern-minds/internal/persistence"
	"github.com/talgya/tavern-minds/internal/phi"
)

// Server serves simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine     // Optional. Without it the control endpoints return 503.
	DB       *persistence.DB    // Optional. When set, /traces reads stored history.
	Addr     string             // Listen address, e.g. ":8080"
	AdminKey string             // Bearer token for POST endpoints. Empty = POST disabled.

	SummaryLimit *RateLimiter // Defaults to 120 summaries per minute per IP.
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	limiter := s.SummaryLimit
	if limiter == nil {
		limiter = NewRateLimiter(120, time.Minute)
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/agent/{id}/summary", RateLimitMiddleware(limiter, s.handleSummary))
	mux.HandleFunc("GET /api/v1/agent/{id}/relationships", s.handleRelationships)
	mux.HandleFunc("GET /api/v1/traces", s.handleTraces)
	mux.HandleFunc("GET /api/v1/clusters", s.handleClusters)
	mux.HandleFunc("GET /api/v1/artifacts", s.handleArtifacts)
	mux.HandleFunc("GET /api/v1/groups", s.handleGroups)
	mux.HandleFunc("GET /api/v1/conversations", s.handleConversations)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/pause", s.adminOnly(s.handlePause))
	mux.HandleFunc("POST /api/v1/resume", s.adminOnly(s.handleResume))
	mux.HandleFunc("POST /api/v1/agent/{id}/tell", s.adminOnly(s.handleTell))

	return corsMiddleware(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// CORS_ORIGINS is a comma-separated list; localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly wraps a handler to require the admin bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no TAVERN_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tick := s.Sim.CurrentTick()
	status := map[string]any{
		"run_id":   s.Sim.RunID.String(),
		"seed":     s.Sim.Seed,
		"tick":     tick,
		"sim_time": engine.SimTime(tick),
		"stats":    s.Sim.Stats(),
		"last":     s.Sim.LastReport(),
	}
	if cond, ok := s.Sim.Env.Weather(tick); ok {
		status["weather"] = cond
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["paused"] = s.Eng.Paused()
	}
	writeJSON(w, status)
}

type agentSummary struct {
	ID         agents.AgentID `json:"id"`
	Name       string         `json:"name"`
	Archetype  string         `json:"archetype,omitempty"`
	Location   string         `json:"location"`
	Mood       float64        `json:"mood"`
	Urgency    float64        `json:"urgency"`
	ActiveGoal string         `json:"active_goal,omitempty"`
	Groups     int            `json:"groups"`
}

// handleAgents lists the population. ?location= filters by room.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	where := r.URL.Query().Get("location")
	result := []agentSummary{}
	for _, id := range s.Sim.AgentIDs() {
		s.Sim.WithAgent(id, func(a *agents.Agent) {
			loc, _ := a.Location()
			if where != "" && loc != where {
				return
			}
			em := a.Emotions()
			sum := agentSummary{
				ID:        a.ID,
				Name:      a.Name,
				Archetype: a.Archetype,
				Location:  loc,
				Mood:      em.Mood().Valence,
				Urgency:   a.MaxUrgency(),
			}
			if g, ok := a.ActiveGoal(); ok {
				sum.ActiveGoal = g.Description
			}
			result = append(result, sum)
		})
	}
	for i := range result {
		result[i].Groups = len(s.Sim.Social.GroupsOf(result[i].ID))
	}
	writeJSON(w, result)
}

// handleSummary serves the dialogue bridge: GET /api/v1/agent/{id}/summary?with=7&k=5
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAgent(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var with uint64
	if v := q.Get("with"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid interlocutor", http.StatusBadRequest)
			return
		}
		with = n
	}
	k := phi.Completion
	if v := q.Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 50 {
			http.Error(w, "k must be 0-50", http.StatusBadRequest)
			return
		}
		k = n
	}

	sum, found := s.Sim.Summary(id, agents.AgentID(with), k)
	if !found {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAgent(w, r)
	if !ok {
		return
	}
	type view struct {
		Other        agents.AgentID  `json:"other"`
		Attitude     agents.Attitude `json:"attitude"`
		Strength     float64         `json:"strength"`
		Interactions int             `json:"interactions"`
	}
	out := []view{}
	for _, rel := range s.Sim.Social.Relationships() {
		var other agents.AgentID
		switch id {
		case rel.A:
			other = rel.B
		case rel.B:
			other = rel.A
		default:
			continue
		}
		out = append(out, view{
			Other:        other,
			Attitude:     rel.Stance(id).Attitude(),
			Strength:     rel.Strength(),
			Interactions: rel.Interactions,
		})
	}
	writeJSON(w, out)
}

// handleTraces streams decision traces as JSON lines. ?agent= and ?since= filter; with a
// database attached the full stored history is served, otherwise the in-memory log.
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var query persistence.TraceQuery
	for key, dst := range map[string]*uint64{"since": &query.Since, "until": &query.Until} {
		if v := q.Get(key); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				http.Error(w, "invalid "+key, http.StatusBadRequest)
				return
			}
			*dst = n
		}
	}
	if v := q.Get("agent"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid agent", http.StatusBadRequest)
			return
		}
		query.Agent = agents.AgentID(n)
	}
	query.Command = q.Get("command")

	var traces []observer.Trace
	if s.DB != nil {
		var err error
		traces, err = s.DB.Traces(query)
		if err != nil {
			slog.Error("trace query failed", "error", err)
			http.Error(w, "trace query failed", http.StatusInternalServerError)
			return
		}
	} else {
		for _, t := range s.Sim.Observer.Since(query.Since) {
			if query.Agent != 0 && t.Agent != query.Agent {
				continue
			}
			if query.Until != 0 && t.Tick > query.Until {
				continue
			}
			if query.Command != "" && t.Command() != query.Command {
				continue
			}
			traces = append(traces, t)
		}
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, t := range traces {
		if err := enc.Encode(t); err != nil {
			return
		}
	}
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	threshold := phi.ClusterAffinityThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -1 || f > 1 {
			http.Error(w, "threshold must be -1..1", http.StatusBadRequest)
			return
		}
		threshold = f
	}
	clusters := s.Sim.Social.Clusters(threshold)
	if clusters == nil {
		clusters = [][]agents.AgentID{}
	}
	writeJSON(w, map[string]any{"threshold": threshold, "clusters": clusters})
}

// handleArtifacts lists cultural artifacts. ?min_known= restricts to traditions.
func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	minKnown := 0
	if v := r.URL.Query().Get("min_known"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid min_known", http.StatusBadRequest)
			return
		}
		minKnown = n
	}
	arts := s.Sim.Social.Traditions(minKnown)
	if minKnown == 0 {
		arts = s.Sim.Social.Artifacts()
	}
	writeJSON(w, nonNil(arts))
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, nonNil(s.Sim.Social.Groups()))
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, nonNil(s.Sim.RecentConversations()))
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not attached", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not attached", http.StatusServiceUnavailable)
		return
	}
	s.Eng.Pause()
	slog.Info("simulation paused", "tick", s.Eng.Tick())
	writeJSON(w, map[string]any{"paused": true, "tick": s.Eng.Tick()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not attached", http.StatusServiceUnavailable)
		return
	}
	s.Eng.Resume()
	slog.Info("simulation resumed", "tick", s.Eng.Tick())
	writeJSON(w, map[string]any{"paused": s.Eng.Paused(), "tick": s.Eng.Tick()})
}

// handleTell queues player input for an agent's next perception.
func (s *Server) handleTell(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAgent(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}
	if err := s.Sim.Tell(id, req.Text); err != nil {
		if errors.Is(err, engine.ErrUnknownAgent) {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]any{"queued": true, "agent": id})
}

func pathAgent(w http.ResponseWriter, r *http.Request) (agents.AgentID, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || n == 0 {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return 0, false
	}
	return agents.AgentID(n), true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
