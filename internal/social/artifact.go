package social

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// ArtifactKind is the form a piece of culture takes.
type ArtifactKind uint8

const (
	ArtifactSong ArtifactKind = iota
	ArtifactStory
	ArtifactTradition
	ArtifactBelief
	ArtifactSaying
)

var artifactKindNames = [...]string{"song", "story", "tradition", "belief", "saying"}

func (k ArtifactKind) String() string {
	if int(k) < len(artifactKindNames) {
		return artifactKindNames[k]
	}
	return fmt.Sprintf("ArtifactKind(%d)", k)
}

// ParseArtifactKind maps a name to its kind.
func ParseArtifactKind(s string) (ArtifactKind, bool) {
	i := slices.Index(artifactKindNames[:], strings.ToLower(s))
	if i < 0 {
		return 0, false
	}
	return ArtifactKind(i), true
}

// Variation is a retelling that drifted from the original.
type Variation struct {
	By      agents.AgentID `json:"by"`
	Tick    uint64         `json:"tick"`
	Content string         `json:"content"`
}

// Artifact is a song, story, or saying that spreads from agent to agent.
type Artifact struct {
	ID         uuid.UUID                  `json:"id"`
	Kind       ArtifactKind               `json:"kind"`
	Content    string                     `json:"content"`
	Creator    agents.AgentID             `json:"creator"`
	Created    uint64                     `json:"created"`
	KnownBy    []agents.AgentID           `json:"known_by"` // sorted, only ever grows
	Sentiment  map[agents.AgentID]float64 `json:"sentiment"`
	Variations []Variation                `json:"variations,omitempty"`
}

// Knows reports whether an agent knows the artifact.
func (a Artifact) Knows(id agents.AgentID) bool {
	_, found := slices.BinarySearch(a.KnownBy, id)
	return found
}

// Latest returns the most recent retelling, or the original content.
func (a Artifact) Latest() string {
	if len(a.Variations) == 0 {
		return a.Content
	}
	return a.Variations[len(a.Variations)-1].Content
}

func (a *Artifact) clone() Artifact {
	c := *a
	c.KnownBy = slices.Clone(a.KnownBy)
	c.Sentiment = maps.Clone(a.Sentiment)
	c.Variations = slices.Clone(a.Variations)
	return c
}

// embellishments are how a retelling drifts.
var embellishments = []string{
	"%s, or so they say",
	"%s, with a new verse about the innkeeper",
	"%s, told louder each time",
	"%s, though the ending changed",
	"%s, sung to a different tune",
}

// CreateArtifact records a new piece of culture. The creator knows it and likes it.
func (e *Engine) CreateArtifact(kind ArtifactKind, content string, creator agents.AgentID, tick uint64) Artifact {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := &Artifact{
		ID:        uuid.NewSHA1(e.ns, fmt.Appendf(nil, "artifact/%d/%d/%d", creator, tick, len(e.artifactOrder))),
		Kind:      kind,
		Content:   content,
		Creator:   creator,
		Created:   tick,
		KnownBy:   []agents.AgentID{creator},
		Sentiment: map[agents.AgentID]float64{creator: phi.Matter},
	}
	e.artifacts[a.ID] = a
	e.artifactOrder = append(e.artifactOrder, a.ID)
	return a.clone()
}

// SpreadCulturalArtifact teaches an artifact to another agent. The listener's sentiment
// blends the teller's with how much the listener likes the teller. A listener whose openness
// exceeds phi.VariationOpenness retells it with a twist. Known-by never shrinks.
func (e *Engine) SpreadCulturalArtifact(id uuid.UUID, from, to agents.AgentID, openness float64, tick uint64) (Artifact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.artifacts[id]
	if !ok {
		return Artifact{}, fmt.Errorf("spread artifact %s: %w", id, ErrUnknownArtifact)
	}
	if !a.Knows(from) {
		return Artifact{}, fmt.Errorf("spread artifact %s: agent %d does not know it", id, from)
	}
	if a.Knows(to) {
		return a.clone(), nil
	}

	i, _ := slices.BinarySearch(a.KnownBy, to)
	a.KnownBy = slices.Insert(a.KnownBy, i, to)
	liking := e.stanceLocked(to, from).Affinity
	a.Sentiment[to] = bounds.Signed(a.Sentiment[from]*phi.Matter + liking*phi.Psyche)

	if openness > phi.VariationOpenness {
		h := fnv.New64a()
		h.Write(id[:])
		draw := e.src.Keyed(h.Sum64(), uint64(to), tick)
		tmpl := embellishments[int(draw*float64(len(embellishments)))]
		a.Variations = append(a.Variations, Variation{By: to, Tick: tick, Content: fmt.Sprintf(tmpl, a.Latest())})
	}
	return a.clone(), nil
}

// Artifact returns a copy of an artifact.
func (e *Engine) Artifact(id uuid.UUID) (Artifact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.artifacts[id]
	if !ok {
		return Artifact{}, fmt.Errorf("artifact %s: %w", id, ErrUnknownArtifact)
	}
	return a.clone(), nil
}

// Artifacts returns copies of every artifact in creation order.
func (e *Engine) Artifacts() []Artifact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Artifact, 0, len(e.artifactOrder))
	for _, id := range e.artifactOrder {
		out = append(out, e.artifacts[id].clone())
	}
	return out
}

// ArtifactsKnownBy returns the artifacts an agent knows, in creation order.
func (e *Engine) ArtifactsKnownBy(agent agents.AgentID) []Artifact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Artifact
	for _, id := range e.artifactOrder {
		if a := e.artifacts[id]; a.Knows(agent) {
			out = append(out, a.clone())
		}
	}
	return out
}

// Traditions lists artifacts known by at least minKnown agents: culture that has reached a
// community rather than a single table. Most widely known first.
func (e *Engine) Traditions(minKnown int) []Artifact {
	var out []Artifact
	for _, a := range e.Artifacts() {
		if len(a.KnownBy) >= minKnown {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(x, y Artifact) int {
		return cmp.Compare(len(y.KnownBy), len(x.KnownBy))
	})
	return out
}
