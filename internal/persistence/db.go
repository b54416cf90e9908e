// Package persistence provides SQLite storage for a run: agent state, the social graph, pending
// outcomes and the decision trace log.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/engine"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ErrNoState is returned by LoadState when nothing has been saved yet.
var ErrNoState = errors.New("no saved state")

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = path
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty database.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		archetype TEXT NOT NULL,
		location TEXT NOT NULL,
		pos_q INTEGER NOT NULL,
		pos_r INTEGER NOT NULL,
		last_tick INTEGER NOT NULL,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relationships (
		a INTEGER NOT NULL,
		b INTEGER NOT NULL,
		ab_affinity REAL NOT NULL,
		ab_trust REAL NOT NULL,
		ab_respect REAL NOT NULL,
		ab_familiarity REAL NOT NULL,
		ba_affinity REAL NOT NULL,
		ba_trust REAL NOT NULL,
		ba_respect REAL NOT NULL,
		ba_familiarity REAL NOT NULL,
		interactions INTEGER NOT NULL,
		formed INTEGER NOT NULL,
		last_tick INTEGER NOT NULL,
		PRIMARY KEY (a, b)
	);

	CREATE TABLE IF NOT EXISTS social_groups (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		kind INTEGER NOT NULL,
		members_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reputation (
		group_id INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (group_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		kind INTEGER NOT NULL,
		content TEXT NOT NULL,
		creator INTEGER NOT NULL,
		created INTEGER NOT NULL,
		known_by_json TEXT NOT NULL,
		sentiment_json TEXT NOT NULL,
		variations_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inboxes (
		agent_id INTEGER PRIMARY KEY,
		rumors_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pending (
		agent_id INTEGER PRIMARY KEY,
		action_json TEXT NOT NULL,
		outcome_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		tier TEXT NOT NULL,
		command TEXT NOT NULL,
		digest TEXT NOT NULL,
		trace_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_traces_tick ON traces(tick);
	CREATE INDEX IF NOT EXISTS idx_traces_agent ON traces(agent_id);
	CREATE INDEX IF NOT EXISTS idx_reputation_agent ON reputation(agent_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// HasState reports whether a run has been saved.
func (db *DB) HasState() bool {
	_, err := db.GetMeta("last_tick")
	return err == nil
}

func (db *DB) saveMetaTx(tx *sqlx.Tx, key, value string) error {
	_, err := tx.Exec("INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// SaveState replaces the stored run with st in one transaction.
func (db *DB) SaveState(st engine.State) error {
	slog.Info("saving run state", "tick", st.LastTick, "agents", len(st.Agents),
		"relationships", len(st.Social.Relationships), "artifacts", len(st.Social.Artifacts))

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"agents", "relationships", "social_groups", "reputation", "artifacts", "inboxes", "pending"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := saveAgents(tx, st.Agents); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := saveSocial(tx, st.Social); err != nil {
		return fmt.Errorf("save social graph: %w", err)
	}
	if err := savePending(tx, st.Pending); err != nil {
		return fmt.Errorf("save pending outcomes: %w", err)
	}

	conversing, err := json.Marshal(st.Conversing)
	if err != nil {
		return err
	}
	meta := map[string]string{
		"run_id":        st.RunID.String(),
		"seed":          strconv.FormatInt(st.Seed, 10),
		"last_tick":     strconv.FormatUint(st.LastTick, 10),
		"conversing":    string(conversing),
		"conversations": strconv.FormatUint(st.Social.Conversations, 10),
	}
	for k, v := range meta {
		if err := db.saveMetaTx(tx, k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("run state saved")
	return nil
}

// LoadState reads the stored run. Returns ErrNoState if nothing has been saved.
func (db *DB) LoadState() (engine.State, error) {
	if !db.HasState() {
		return engine.State{}, ErrNoState
	}
	var st engine.State
	meta := make(map[string]string)
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT key, value FROM run_meta"); err != nil {
		return st, fmt.Errorf("load meta: %w", err)
	}
	for _, r := range rows {
		meta[r.Key] = r.Value
	}

	var err error
	if st.RunID, err = uuid.Parse(meta["run_id"]); err != nil {
		return st, fmt.Errorf("load run id: %w", err)
	}
	if st.Seed, err = strconv.ParseInt(meta["seed"], 10, 64); err != nil {
		return st, fmt.Errorf("load seed: %w", err)
	}
	if st.LastTick, err = strconv.ParseUint(meta["last_tick"], 10, 64); err != nil {
		return st, fmt.Errorf("load last tick: %w", err)
	}
	if c := meta["conversing"]; c != "" && c != "null" {
		if err := json.Unmarshal([]byte(c), &st.Conversing); err != nil {
			return st, fmt.Errorf("load conversing: %w", err)
		}
	}

	if st.Agents, err = db.loadAgents(); err != nil {
		return st, fmt.Errorf("load agents: %w", err)
	}
	if st.Social, err = db.loadSocial(); err != nil {
		return st, fmt.Errorf("load social graph: %w", err)
	}
	if n, ok := meta["conversations"]; ok {
		if st.Social.Conversations, err = strconv.ParseUint(n, 10, 64); err != nil {
			return st, fmt.Errorf("load conversation count: %w", err)
		}
	}
	if st.Pending, err = db.loadPending(); err != nil {
		return st, fmt.Errorf("load pending outcomes: %w", err)
	}
	return st, nil
}

type agentRow struct {
	ID        agents.AgentID `db:"id"`
	Name      string         `db:"name"`
	Archetype string         `db:"archetype"`
	Location  string         `db:"location"`
	PosQ      int            `db:"pos_q"`
	PosR      int            `db:"pos_r"`
	LastTick  uint64         `db:"last_tick"`
	StateJSON string         `db:"state_json"`
}

func saveAgents(tx *sqlx.Tx, states []agents.AgentState) error {
	stmt, err := tx.PrepareNamed(`INSERT INTO agents
		(id, name, archetype, location, pos_q, pos_r, last_tick, state_json)
		VALUES (:id, :name, :archetype, :location, :pos_q, :pos_r, :last_tick, :state_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range states {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode agent %d: %w", a.ID, err)
		}
		row := agentRow{
			ID: a.ID, Name: a.Name, Archetype: a.Archetype, Location: a.Location,
			PosQ: a.Coord.Q, PosR: a.Coord.R, LastTick: a.LastTick, StateJSON: string(raw),
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}
	return nil
}

func (db *DB) loadAgents() ([]agents.AgentState, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]agents.AgentState, 0, len(rows))
	for _, r := range rows {
		var st agents.AgentState
		if err := json.Unmarshal([]byte(r.StateJSON), &st); err != nil {
			return nil, fmt.Errorf("decode agent %d: %w", r.ID, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// AgentStates returns every stored agent, ordered by ID.
func (db *DB) AgentStates() ([]agents.AgentState, error) {
	return db.loadAgents()
}

type pendingRow struct {
	AgentID     agents.AgentID `db:"agent_id"`
	ActionJSON  string         `db:"action_json"`
	OutcomeJSON string         `db:"outcome_json"`
}

func savePending(tx *sqlx.Tx, pending []engine.PendingOutcome) error {
	for _, p := range pending {
		action, err := json.Marshal(p.Action)
		if err != nil {
			return err
		}
		outcome, err := json.Marshal(p.Outcome)
		if err != nil {
			return err
		}
		_, err = tx.NamedExec(`INSERT INTO pending (agent_id, action_json, outcome_json)
			VALUES (:agent_id, :action_json, :outcome_json)`,
			pendingRow{AgentID: p.Agent, ActionJSON: string(action), OutcomeJSON: string(outcome)})
		if err != nil {
			return fmt.Errorf("insert pending outcome of %d: %w", p.Agent, err)
		}
	}
	return nil
}

func (db *DB) loadPending() ([]engine.PendingOutcome, error) {
	var rows []pendingRow
	if err := db.conn.Select(&rows, "SELECT * FROM pending ORDER BY agent_id"); err != nil {
		return nil, err
	}
	var out []engine.PendingOutcome
	for _, r := range rows {
		p := engine.PendingOutcome{Agent: r.AgentID}
		if err := json.Unmarshal([]byte(r.ActionJSON), &p.Action); err != nil {
			return nil, fmt.Errorf("decode pending action of %d: %w", r.AgentID, err)
		}
		if err := json.Unmarshal([]byte(r.OutcomeJSON), &p.Outcome); err != nil {
			return nil, fmt.Errorf("decode pending outcome of %d: %w", r.AgentID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// isNoRows reports whether err means a lookup found nothing.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
