// Package agents provides the agent data model and its cognitive machinery: traits, needs,
// emotions, beliefs, memory, goals and the per-tick cognitive cycle.
package agents

import (
	"github.com/talgya/tavern-minds/internal/world"
)

// AgentID is a unique identifier for an agent. Zero means "no agent".
type AgentID uint64

// Action is what an agent decided to do this tick. Immutable once emitted.
type Action struct {
	Agent       AgentID `json:"agent"`
	Command     Command `json:"command"`
	Description string  `json:"description"` // Human-readable description for the event log
	Target      AgentID `json:"target,omitempty"`
	Goal        GoalID  `json:"goal,omitempty"`
	Tick        uint64  `json:"tick"`
}

// Involves reports whether the action was directed at another agent.
func (a Action) Involves() bool {
	return a.Target != 0 && a.Target != a.Agent
}

// Perception is the environment snapshot handed to one agent's cognitive cycle.
type Perception struct {
	Tick          uint64         `json:"tick"`
	Location      string         `json:"location"`
	Coord         world.HexCoord `json:"coord"`
	LocationTags  []string       `json:"location_tags,omitempty"`
	VisibleAgents []VisibleAgent `json:"visible_agents,omitempty"`
	Input         string         `json:"input,omitempty"` // Raw external/player input
	Events        []AmbientEvent `json:"events,omitempty"`
	Rumors        []Rumor        `json:"rumors,omitempty"`
}

// Validate checks the fields a cycle cannot run without.
func (p Perception) Validate() error {
	if p.Location == "" || p.Tick == 0 {
		return ErrMalformedPerception
	}
	return nil
}

// HasTag reports whether the current location carries the tag.
func (p Perception) HasTag(tag string) bool {
	for _, t := range p.LocationTags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasEvent reports whether an ambient event of the given kind is present.
func (p Perception) HasEvent(kind string) bool {
	for _, e := range p.Events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// VisibleAgent is another agent in view, with the last thing it was seen doing.
type VisibleAgent struct {
	ID          AgentID `json:"id"`
	Name        string  `json:"name"`
	LastCommand Command `json:"last_command,omitempty"`
}

// AmbientEvent is something happening in the environment, pre-appraised by the game engine.
type AmbientEvent struct {
	Kind           string  `json:"kind"` // "threat", "food", "music", "brawl", ...
	Description    string  `json:"description"`
	Valence        float64 `json:"valence"`        // -1.0 to +1.0
	Unexpectedness float64 `json:"unexpectedness"` // 0.0–1.0
	Relevance      float64 `json:"relevance"`      // 0.0–1.0
	Subject        AgentID `json:"subject,omitempty"`
}

// Rumor is a piece of gossip delivered through the social graph.
type Rumor struct {
	Origin     AgentID `json:"origin"` // Who started it
	Teller     AgentID `json:"teller"` // Who passed it on to the listener
	About      AgentID `json:"about"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"` // 0.0–1.0
	Sentiment  float64 `json:"sentiment"`  // -1.0 to +1.0: how the rumor reflects on its subject
	Hops       int     `json:"hops"`
}

// Outcome is the environment's resolution of an Action.
type Outcome struct {
	Success bool     `json:"success"`
	Effects []Effect `json:"effects,omitempty"`
}

// EffectKind classifies a world-state delta.
type EffectKind uint8

const (
	EffectNeed  EffectKind = iota // Amount satisfies Need
	EffectEvent                   // Amount is the valence of an event the agent experiences
	EffectMove                    // The agent ends up at Location
)

// Effect is one world-state delta resulting from an action.
type Effect struct {
	Kind        EffectKind     `json:"kind"`
	Need        NeedType       `json:"need,omitempty"`
	Amount      float64        `json:"amount"`
	Other       AgentID        `json:"other,omitempty"`
	Location    string         `json:"location,omitempty"`
	Coord       world.HexCoord `json:"coord,omitzero"`
	Description string         `json:"description,omitempty"`
}

// Interaction is a relationship delta an agent wants applied. Agents never touch the social
// graph directly; the simulation forwards these to the social engine's batch.
type Interaction struct {
	From     AgentID `json:"from"`
	To       AgentID `json:"to"`
	Affinity float64 `json:"affinity"`
	Trust    float64 `json:"trust"`
	Respect  float64 `json:"respect"`
	Reason   string  `json:"reason"`
}

// Attitude is one agent's stance toward another as the social engine reports it.
type Attitude struct {
	Affinity    float64 `json:"affinity"`
	Trust       float64 `json:"trust"`
	Respect     float64 `json:"respect"`
	Familiarity float64 `json:"familiarity"`
}

// RelationshipReader is the read-only social view an agent consults while thinking.
type RelationshipReader interface {
	Attitude(from, to AgentID) (Attitude, bool)
}
