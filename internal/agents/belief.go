package agents

import (
	"fmt"
	"sort"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// BeliefKind classifies what a belief asserts.
type BeliefKind uint8

const (
	BeliefFact BeliefKind = iota
	BeliefProbability
	BeliefNorm
	BeliefAbility
)

var beliefKindNames = [...]string{"fact", "probability", "norm", "ability"}

func (k BeliefKind) String() string {
	if int(k) < len(beliefKindNames) {
		return beliefKindNames[k]
	}
	return fmt.Sprintf("belief(%d)", k)
}

// EvidenceRef is one contribution to a belief's confidence.
type EvidenceRef struct {
	Ref        string  `json:"ref"`
	Tick       uint64  `json:"tick"`
	Confidence float64 `json:"confidence"`
}

// Belief is a confidence-weighted proposition. Superseded content is blended, never erased;
// the evidence trail keeps every contribution.
type Belief struct {
	Kind       BeliefKind    `json:"kind"`
	Subject    string        `json:"subject"`
	Content    string        `json:"content"`
	Confidence float64       `json:"confidence"` // 0.0–1.0
	Evidence   []EvidenceRef `json:"evidence"`
	Tick       uint64        `json:"tick"` // Last update
	Seq        int           `json:"seq"`  // Insertion order
}

type beliefKey struct {
	kind    BeliefKind
	subject string
}

// BeliefStore holds an agent's beliefs and its models of other agents' minds.
type BeliefStore struct {
	beliefs []*Belief
	index   map[beliefKey]*Belief
	minds   map[AgentID]*MindModel
}

// NewBeliefStore creates an empty store.
func NewBeliefStore() *BeliefStore {
	return &BeliefStore{
		index: make(map[beliefKey]*Belief),
		minds: make(map[AgentID]*MindModel),
	}
}

// Add records a belief. If one with the same kind and subject exists, its confidence is
// blended toward the new evidence (weighted by phi.Matter) rather than overwritten.
func (s *BeliefStore) Add(kind BeliefKind, subject, content string, confidence float64, evidence string, tick uint64) Belief {
	confidence = bounds.Unit(confidence)
	ref := EvidenceRef{Ref: evidence, Tick: tick, Confidence: confidence}

	key := beliefKey{kind: kind, subject: subject}
	if b, ok := s.index[key]; ok {
		b.Confidence = bounds.Unit(b.Confidence*(1-phi.Matter) + confidence*phi.Matter)
		b.Content = content
		b.Evidence = append(b.Evidence, ref)
		if tick > b.Tick {
			b.Tick = tick
		}
		return b.clone()
	}

	b := &Belief{
		Kind:       kind,
		Subject:    subject,
		Content:    content,
		Confidence: confidence,
		Evidence:   []EvidenceRef{ref},
		Tick:       tick,
		Seq:        len(s.beliefs),
	}
	s.beliefs = append(s.beliefs, b)
	s.index[key] = b
	return b.clone()
}

// Get returns the belief for (kind, subject).
func (s *BeliefStore) Get(kind BeliefKind, subject string) (Belief, bool) {
	b, ok := s.index[beliefKey{kind: kind, subject: subject}]
	if !ok {
		return Belief{}, false
	}
	return b.clone(), true
}

// About returns every belief about a subject, highest confidence first.
func (s *BeliefStore) About(subject string) []Belief {
	var out []Belief
	for _, b := range s.beliefs {
		if b.Subject == subject {
			out = append(out, b.clone())
		}
	}
	sortBeliefs(out)
	return out
}

// All returns every belief in insertion order.
func (s *BeliefStore) All() []Belief {
	out := make([]Belief, len(s.beliefs))
	for i, b := range s.beliefs {
		out[i] = b.clone()
	}
	return out
}

// Len returns the number of beliefs.
func (s *BeliefStore) Len() int {
	return len(s.beliefs)
}

func sortBeliefs(bs []Belief) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].Confidence != bs[j].Confidence {
			return bs[i].Confidence > bs[j].Confidence
		}
		if bs[i].Kind != bs[j].Kind {
			return bs[i].Kind < bs[j].Kind
		}
		return bs[i].Seq < bs[j].Seq
	})
}

func (b *Belief) clone() Belief {
	c := *b
	c.Evidence = append([]EvidenceRef(nil), b.Evidence...)
	return c
}

// restore appends a belief verbatim; used when rebuilding a store from saved state.
func (s *BeliefStore) restore(b Belief) {
	nb := b.clone()
	nb.Seq = len(s.beliefs)
	s.beliefs = append(s.beliefs, &nb)
	s.index[beliefKey{kind: nb.Kind, subject: nb.Subject}] = &nb
}
