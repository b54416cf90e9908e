package persistence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/observer"
)

type traceRow struct {
	ID        int64          `db:"id"`
	Tick      uint64         `db:"tick"`
	AgentID   agents.AgentID `db:"agent_id"`
	Tier      string         `db:"tier"`
	Command   string         `db:"command"`
	Digest    string         `db:"digest"`
	TraceJSON string         `db:"trace_json"`
}

// AppendTraces appends decision traces. Traces are never rewritten.
func (db *DB) AppendTraces(traces []observer.Trace) error {
	if len(traces) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO traces (tick, agent_id, tier, command, digest, trace_json)
		VALUES (:tick, :agent_id, :tier, :command, :digest, :trace_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range traces {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode trace %d/%d: %w", t.Tick, t.Agent, err)
		}
		row := traceRow{Tick: t.Tick, AgentID: t.Agent, Tier: t.Tier, Command: t.Command(), Digest: t.Digest, TraceJSON: string(raw)}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert trace %d/%d: %w", t.Tick, t.Agent, err)
		}
	}
	return tx.Commit()
}

// TraceQuery filters stored traces. Zero fields match everything.
type TraceQuery struct {
	Agent   agents.AgentID
	Since   uint64 // First tick, inclusive
	Until   uint64 // Last tick, inclusive
	Command string
	Limit   int
}

// Traces returns the matching traces ordered by tick, then agent ID.
func (db *DB) Traces(q TraceQuery) ([]observer.Trace, error) {
	var where []string
	var args []any
	if q.Agent != 0 {
		where = append(where, "agent_id = ?")
		args = append(args, q.Agent)
	}
	if q.Since != 0 {
		where = append(where, "tick >= ?")
		args = append(args, q.Since)
	}
	if q.Until != 0 {
		where = append(where, "tick <= ?")
		args = append(args, q.Until)
	}
	if q.Command != "" {
		where = append(where, "command = ?")
		args = append(args, q.Command)
	}

	query := "SELECT * FROM traces"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY tick, agent_id, id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	var rows []traceRow
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	out := make([]observer.Trace, 0, len(rows))
	for _, r := range rows {
		var t observer.Trace
		if err := json.Unmarshal([]byte(r.TraceJSON), &t); err != nil {
			return nil, fmt.Errorf("decode trace %d: %w", r.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// LastTraceTick returns the highest stored trace tick, or 0 if there are none.
func (db *DB) LastTraceTick() (uint64, error) {
	var tick uint64
	err := db.conn.Get(&tick, "SELECT COALESCE(MAX(tick), 0) FROM traces")
	return tick, err
}

// AgentState loads one stored agent. The bool is false if it is not stored.
func (db *DB) AgentState(id agents.AgentID) (agents.AgentState, bool, error) {
	var row agentRow
	err := db.conn.Get(&row, "SELECT * FROM agents WHERE id = ?", id)
	if isNoRows(err) {
		return agents.AgentState{}, false, nil
	}
	if err != nil {
		return agents.AgentState{}, false, err
	}
	var st agents.AgentState
	if err := json.Unmarshal([]byte(row.StateJSON), &st); err != nil {
		return agents.AgentState{}, false, fmt.Errorf("decode agent %d: %w", id, err)
	}
	return st, true, nil
}
