package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/engine"
	"github.com/talgya/tavern-minds/internal/observer"
	"github.com/talgya/tavern-minds/internal/world"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newServer(t *testing.T, ticks uint64) *Server {
	t.Helper()
	locs, pois := world.DefaultTavern()
	var pop []*agents.Agent
	for _, cfg := range agents.NewSpawner(11).SpawnPopulation(6, locs) {
		a, err := agents.New(cfg)
		require.NoError(t, err)
		pop = append(pop, a)
	}
	sim, err := engine.NewSimulation(engine.Options{
		Seed:      11,
		Scheduler: engine.SchedulerConfig{CycleBudget: 6, Workers: 2},
		Layout:    world.NewLayout(locs, pois),
		Events:    world.DefaultEvents(),
	}, pop)
	require.NoError(t, err)
	for tick := uint64(1); tick <= ticks; tick++ {
		_, err := sim.Step(context.Background(), tick)
		require.NoError(t, err)
	}
	eng := engine.NewEngine(ticks, func(context.Context, uint64) error { return nil })
	return &Server{Sim: sim, Eng: eng, AdminKey: "s3cret"}
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	s := newServer(t, 3)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 3, got["tick"])
	assert.Equal(t, s.Sim.RunID.String(), got["run_id"])
	assert.Equal(t, false, got["paused"])
}

func TestAgentsListAndFilter(t *testing.T) {
	s := newServer(t, 1)
	h := s.Handler()

	var all []agentSummary
	rec := do(t, h, http.MethodGet, "/api/v1/agents", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 6)
	for _, a := range all {
		assert.NotEmpty(t, a.Name)
		if a.Archetype != agents.ArchScholar {
			assert.Positive(t, a.Groups, "%s joins its archetype's group", a.Archetype)
		}
	}

	var none []agentSummary
	rec = do(t, h, http.MethodGet, "/api/v1/agents?location=nowhere", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &none))
	assert.Empty(t, none)
}

func TestSummary(t *testing.T) {
	s := newServer(t, 4)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/agent/1/summary?with=2&k=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum agents.StateSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, agents.AgentID(1), sum.Agent)
	assert.Equal(t, agents.AgentID(2), sum.Interlocutor)
	assert.LessOrEqual(t, len(sum.Memories), 3)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/agent/99/summary", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/agent/x/summary", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/agent/1/summary?k=-1", "", nil).Code)
}

func TestSummaryRateLimited(t *testing.T) {
	s := newServer(t, 1)
	s.SummaryLimit = NewRateLimiter(2, time.Hour)
	h := s.Handler()

	from := map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}
	for range 2 {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/agent/1/summary", "", from).Code)
	}
	rec := do(t, h, http.MethodGet, "/api/v1/agent/1/summary", "", from)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	other := map[string]string{"X-Forwarded-For": "198.51.100.4"}
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/agent/1/summary", "", other).Code)
}

func TestTracesAsJSONLines(t *testing.T) {
	s := newServer(t, 5)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/traces?agent=2&since=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var got []observer.Trace
	sc := bufio.NewScanner(rec.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var tr observer.Trace
		require.NoError(t, json.Unmarshal(sc.Bytes(), &tr))
		got = append(got, tr)
	}
	require.NoError(t, sc.Err())
	require.Len(t, got, 3)
	for i, tr := range got {
		assert.Equal(t, agents.AgentID(2), tr.Agent)
		assert.Equal(t, uint64(3+i), tr.Tick)
	}

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/traces?since=soon", "", nil).Code)
}

func TestSocialViews(t *testing.T) {
	s := newServer(t, 10)
	h := s.Handler()

	for _, path := range []string{"/api/v1/clusters", "/api/v1/artifacts", "/api/v1/artifacts?min_known=2", "/api/v1/groups", "/api/v1/conversations", "/api/v1/agent/1/relationships"} {
		rec := do(t, h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.True(t, json.Valid(rec.Body.Bytes()), path)
		assert.NotEqual(t, "null\n", rec.Body.String(), path)
	}
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/clusters?threshold=3", "", nil).Code)
}

func TestAdminRequiresToken(t *testing.T) {
	s := newServer(t, 1)
	h := s.Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/pause", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/pause", "",
		map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.False(t, s.Eng.Paused())

	s.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, do(t, s.Handler(), http.MethodPost, "/api/v1/pause", "",
		map[string]string{"Authorization": "Bearer "}).Code)
}

func TestAdminControls(t *testing.T) {
	s := newServer(t, 1)
	h := s.Handler()
	auth := map[string]string{"Authorization": "Bearer s3cret"}

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/pause", "", auth).Code)
	assert.True(t, s.Eng.Paused())
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/resume", "", auth).Code)
	assert.False(t, s.Eng.Paused())

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": 4}`, auth).Code)
	assert.Equal(t, 4.0, s.Eng.Speed())
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": -1}`, auth).Code)

	rec := do(t, h, http.MethodPost, "/api/v1/agent/1/tell", `{"text": "a round for the house"}`, auth)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/agent/99/tell", `{"text": "hi"}`, auth).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/agent/1/tell", `{}`, auth).Code)
}

func TestCORS(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://tavern.example")
	s := newServer(t, 1)
	h := s.Handler()

	rec := do(t, h, http.MethodOptions, "/api/v1/status", "", map[string]string{"Origin": "https://tavern.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://tavern.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/v1/status", "", map[string]string{"Origin": "https://elsewhere.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterWindowResets(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))

	now = now.Add(3 * time.Minute)
	rl.Allow("b")
	rl.mu.Lock()
	_, stale := rl.buckets["a"]
	rl.mu.Unlock()
	assert.False(t, stale, "stale buckets are swept")
}
