// Package observer is the append-only decision trace log. Every cycle the scheduler runs leaves
// one Trace; the log can be exported as JSON lines for analytics and replay regression tests.
package observer

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/talgya/tavern-minds/internal/agents"
)

// Trace is one agent's decision in one tick.
type Trace struct {
	Tick      uint64             `json:"tick"`
	Agent     agents.AgentID     `json:"agent"`
	Tier      string             `json:"tier"`
	Inputs    agents.CycleInputs `json:"inputs"`
	Digest    string             `json:"digest"`
	Action    *agents.Action     `json:"action"` // nil means the agent did nothing notable
	Rationale string             `json:"rationale"`
	Tags      []string           `json:"tags,omitempty"`
}

// HasTag reports whether the trace carries tag.
func (t Trace) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// Command returns the chosen command, or "none".
func (t Trace) Command() string {
	if t.Action == nil {
		return "none"
	}
	return string(t.Action.Command)
}

// Digest hashes the canonical JSON encoding of what an agent considered in a tick. Two runs
// that fed an agent the same inputs produce the same digest.
func Digest(tick uint64, agent agents.AgentID, in agents.CycleInputs) string {
	raw, err := json.Marshal(struct {
		Tick   uint64             `json:"tick"`
		Agent  agents.AgentID     `json:"agent"`
		Inputs agents.CycleInputs `json:"inputs"`
	}{tick, agent, in})
	if err != nil {
		// Only non-finite floats fail to encode.
		raw = fmt.Appendf(nil, "%d/%d/%+v", tick, agent, in)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// FromResult builds a trace from a cycle result.
func FromResult(res agents.CycleResult, tier string) Trace {
	t := Trace{
		Tick:      res.Tick,
		Agent:     res.Agent,
		Tier:      tier,
		Inputs:    res.Inputs,
		Rationale: res.Rationale,
		Tags:      slices.Clone(res.Tags),
	}
	if res.Action != nil {
		a := *res.Action
		t.Action = &a
	}
	return t
}

// Log is the append-only trace store. Safe for concurrent use.
type Log struct {
	mu     sync.RWMutex
	traces []Trace
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Record appends a trace, computing its digest if missing, and returns the stored trace.
func (l *Log) Record(t Trace) Trace {
	if t.Digest == "" {
		t.Digest = Digest(t.Tick, t.Agent, t.Inputs)
	}
	t.Tags = slices.Clone(t.Tags)
	l.mu.Lock()
	l.traces = append(l.traces, t)
	l.mu.Unlock()
	return t
}

// Len returns the number of traces recorded.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.traces)
}

// Traces returns every trace in recording order.
func (l *Log) Traces() []Trace {
	return l.filter(func(Trace) bool { return true })
}

// ForAgent returns one agent's traces in recording order.
func (l *Log) ForAgent(id agents.AgentID) []Trace {
	return l.filter(func(t Trace) bool { return t.Agent == id })
}

// Since returns the traces from tick onward.
func (l *Log) Since(tick uint64) []Trace {
	return l.filter(func(t Trace) bool { return t.Tick >= tick })
}

// Tagged returns the traces carrying tag.
func (l *Log) Tagged(tag string) []Trace {
	return l.filter(func(t Trace) bool { return t.HasTag(tag) })
}

func (l *Log) filter(keep func(Trace) bool) []Trace {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Trace
	for _, t := range l.traces {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// Ordered returns every trace sorted by tick, then agent ID. Recording order breaks ties.
func (l *Log) Ordered() []Trace {
	out := l.Traces()
	slices.SortStableFunc(out, func(a, b Trace) int {
		return cmp.Or(cmp.Compare(a.Tick, b.Tick), cmp.Compare(a.Agent, b.Agent))
	})
	return out
}

// Digests returns the ordered digests, the fingerprint of a run for replay comparison.
func (l *Log) Digests() []string {
	ordered := l.Ordered()
	out := make([]string, len(ordered))
	for i, t := range ordered {
		out[i] = t.Digest
	}
	return out
}

// Export writes the ordered traces as JSON lines.
func (l *Log) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, t := range l.Ordered() {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("export trace tick %d agent %d: %w", t.Tick, t.Agent, err)
		}
	}
	return nil
}

// Import reads JSON lines written by Export and appends them to the log.
func (l *Log) Import(r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for dec.More() {
		var t Trace
		if err := dec.Decode(&t); err != nil {
			return n, fmt.Errorf("import trace %d: %w", n+1, err)
		}
		l.Record(t)
		n++
	}
	return n, nil
}
