// Agent memory: episodic records whose accessibility fades with time, and durable semantic
// knowledge that only grows.

package agents

import (
	"iter"
	"math"
	"sort"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// Episodic records a notable experience in an agent's life.
type Episodic struct {
	ID           uint64    `json:"id"`
	Content      string    `json:"content"`
	Participants []AgentID `json:"participants,omitempty"`
	Location     string    `json:"location,omitempty"`
	Tick         uint64    `json:"tick"`
	Valence      float64   `json:"valence"`    // -1.0 to +1.0
	Intensity    float64   `json:"intensity"`  // 0.0–1.0
	Importance   float64   `json:"importance"` // 0.01–1.0
	Tags         []string  `json:"tags,omitempty"`
	Retrievals   int       `json:"retrievals"`
	LastAccess   uint64    `json:"last_access"`
}

// Accessibility is importance × recency × (1 + ln(1 + retrievals)), computed at read time.
// Recency halves every phi.MemoryHalfLife ticks since the memory was last accessed.
func (m Episodic) Accessibility(now uint64) float64 {
	elapsed := 0.0
	if now > m.LastAccess {
		elapsed = float64(now - m.LastAccess)
	}
	recency := math.Pow(0.5, elapsed/phi.MemoryHalfLife)
	return bounds.NonNegative(m.Importance * recency * (1 + math.Log1p(float64(m.Retrievals))))
}

// HasTag reports whether the memory carries the tag.
func (m Episodic) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Involves reports whether the agent took part in the memory.
func (m Episodic) Involves(id AgentID) bool {
	for _, p := range m.Participants {
		if p == id {
			return true
		}
	}
	return false
}

func (m Episodic) clone() Episodic {
	c := m
	c.Participants = append([]AgentID(nil), m.Participants...)
	c.Tags = append([]string(nil), m.Tags...)
	return c
}

// EpisodicInput is the data for a new episodic memory.
type EpisodicInput struct {
	Content      string
	Participants []AgentID
	Location     string
	Tick         uint64
	Valence      float64
	Intensity    float64
	Importance   float64
	Tags         []string
}

// Semantic is durable knowledge. It never decays, only gets reinforced.
type Semantic struct {
	Category       string  `json:"category"`
	Content        string  `json:"content"`
	Confidence     float64 `json:"confidence"`
	Reinforcements int     `json:"reinforcements"`
}

// RecallQuery selects memories for a reinforcing recall. Zero fields match everything.
type RecallQuery struct {
	Tag              string
	Participant      AgentID
	Limit            int
	MinAccessibility float64
}

// MemoryStore holds an agent's episodic and semantic memories. Nothing is ever removed;
// unimportant memories simply become inaccessible.
type MemoryStore struct {
	episodes     []Episodic
	semantic     []Semantic
	semIndex     map[string]int // category + "\x00" + content → index
	consolidated map[string]int // tag → occurrences at last promotion
	nextID       uint64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		semIndex:     make(map[string]int),
		consolidated: make(map[string]int),
		nextID:       1,
	}
}

// Add inserts an episodic memory and returns its ID. Inputs are clamped.
func (s *MemoryStore) Add(in EpisodicInput) uint64 {
	m := Episodic{
		ID:           s.nextID,
		Content:      in.Content,
		Participants: append([]AgentID(nil), in.Participants...),
		Location:     in.Location,
		Tick:         in.Tick,
		Valence:      bounds.Signed(in.Valence),
		Intensity:    bounds.Unit(in.Intensity),
		Importance:   bounds.Clamp(bounds.Unit(in.Importance), phi.MinImportance, 1),
		Tags:         append([]string(nil), in.Tags...),
		LastAccess:   in.Tick,
	}
	s.nextID++
	s.episodes = append(s.episodes, m)
	return m.ID
}

// Len returns the number of episodic memories.
func (s *MemoryStore) Len() int {
	return len(s.episodes)
}

// Get returns an episodic memory by ID without touching its retrieval count.
func (s *MemoryStore) Get(id uint64) (Episodic, bool) {
	for _, m := range s.episodes {
		if m.ID == id {
			return m.clone(), true
		}
	}
	return Episodic{}, false
}

// RecallRecent yields memories formed within window ticks of now, newest first.
// A pure query: iterating does not reinforce anything.
func (s *MemoryStore) RecallRecent(now, window uint64) iter.Seq[Episodic] {
	return func(yield func(Episodic) bool) {
		for i := len(s.episodes) - 1; i >= 0; i-- {
			m := s.episodes[i]
			if m.Tick > now || now-m.Tick > window {
				continue
			}
			if !yield(m.clone()) {
				return
			}
		}
	}
}

// RecallEmotional yields memories with |valence| ≥ minMagnitude and intensity ≥ minIntensity,
// oldest first. A pure query.
func (s *MemoryStore) RecallEmotional(minMagnitude, minIntensity float64) iter.Seq[Episodic] {
	return func(yield func(Episodic) bool) {
		for _, m := range s.episodes {
			if math.Abs(m.Valence) < minMagnitude || m.Intensity < minIntensity {
				continue
			}
			if !yield(m.clone()) {
				return
			}
		}
	}
}

// Recall returns the most accessible matching memories and reinforces them: each returned
// memory's retrieval count goes up and its recency clock restarts at now.
func (s *MemoryStore) Recall(now uint64, q RecallQuery) []Episodic {
	idx := s.rank(now, q)
	if q.Limit > 0 && len(idx) > q.Limit {
		idx = idx[:q.Limit]
	}
	out := make([]Episodic, 0, len(idx))
	for _, i := range idx {
		s.episodes[i].Retrievals++
		if now > s.episodes[i].LastAccess {
			s.episodes[i].LastAccess = now
		}
		out = append(out, s.episodes[i].clone())
	}
	return out
}

// MostAccessible returns the top k memories by accessibility without reinforcing them.
func (s *MemoryStore) MostAccessible(now uint64, k int) []Episodic {
	idx := s.rank(now, RecallQuery{})
	if k > 0 && len(idx) > k {
		idx = idx[:k]
	}
	out := make([]Episodic, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.episodes[i].clone())
	}
	return out
}

// rank returns indexes of matching memories, most accessible first, newest first on ties.
func (s *MemoryStore) rank(now uint64, q RecallQuery) []int {
	var idx []int
	for i, m := range s.episodes {
		if q.Tag != "" && !m.HasTag(q.Tag) {
			continue
		}
		if q.Participant != 0 && !m.Involves(q.Participant) {
			continue
		}
		if q.MinAccessibility > 0 && m.Accessibility(now) < q.MinAccessibility {
			continue
		}
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		aa, ab := s.episodes[idx[a]].Accessibility(now), s.episodes[idx[b]].Accessibility(now)
		if aa != ab {
			return aa > ab
		}
		return idx[a] > idx[b]
	})
	return idx
}

// Learn adds semantic knowledge or reinforces it if already known.
func (s *MemoryStore) Learn(category, content string, confidence float64) Semantic {
	key := category + "\x00" + content
	if i, ok := s.semIndex[key]; ok {
		sm := &s.semantic[i]
		sm.Reinforcements++
		sm.Confidence = bounds.Unit(math.Max(sm.Confidence, confidence) + (1-sm.Confidence)*phi.Agnosis)
		return *sm
	}
	sm := Semantic{Category: category, Content: content, Confidence: bounds.Unit(confidence)}
	s.semIndex[key] = len(s.semantic)
	s.semantic = append(s.semantic, sm)
	return sm
}

// Semantic returns all semantic memories in the order they were learned.
func (s *MemoryStore) Semantic() []Semantic {
	return append([]Semantic(nil), s.semantic...)
}

// Consolidate promotes episodic tags seen at least minOccurrences times into semantic
// memory. Additive only: episodes are left as they are. Returns the number of new promotions.
func (s *MemoryStore) Consolidate(minOccurrences int) int {
	if minOccurrences < 1 {
		minOccurrences = 1
	}
	counts := make(map[string]int)
	var order []string
	for _, m := range s.episodes {
		for _, t := range m.Tags {
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	promoted := 0
	for _, tag := range order {
		n := counts[tag]
		if n < minOccurrences {
			continue
		}
		prev, seen := s.consolidated[tag]
		if seen && prev == n {
			continue
		}
		if !seen {
			promoted++
		}
		s.consolidated[tag] = n
		s.Learn("pattern", tag, bounds.Unit(1-math.Pow(phi.Matter, float64(n))))
	}
	return promoted
}

// Episodes returns copies of all episodic memories in insertion order.
func (s *MemoryStore) Episodes() []Episodic {
	out := make([]Episodic, len(s.episodes))
	for i, m := range s.episodes {
		out[i] = m.clone()
	}
	return out
}
