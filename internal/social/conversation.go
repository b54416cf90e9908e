package social

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// Participant is what a conversation needs from an agent. *agents.Agent satisfies it.
type Participant interface {
	AgentID() agents.AgentID
	DisplayName() string
	Traits() agents.Traits
	Remember(in agents.EpisodicInput) uint64
	Feel(ev agents.AppraisalEvent, tick uint64)
}

// ConversationContext describes the situation a conversation happens in.
type ConversationContext struct {
	Topic    string
	Location string
	Tone     float64 // -1.0 (hostile) to +1.0 (warm)
	Tick     uint64
	MaxTurns int // Defaults to phi.Completion
}

// Turn is one exchange: the speaker talks, the listener reacts.
type Turn struct {
	Index    int            `json:"index"`
	Speaker  agents.AgentID `json:"speaker"`
	Listener agents.AgentID `json:"listener"`
	Valence  float64        `json:"valence"` // -1.0 to +1.0, how the listener took it
	Depth    float64        `json:"depth"`
	Tension  float64        `json:"tension"`
	Intimacy float64        `json:"intimacy"`
}

// ConversationRecord is the result of a finished conversation.
type ConversationRecord struct {
	ID       uuid.UUID      `json:"id"`
	A        agents.AgentID `json:"a"`
	B        agents.AgentID `json:"b"`
	Topic    string         `json:"topic"`
	Location string         `json:"location"`
	Tick     uint64         `json:"tick"`
	Turns    []Turn         `json:"turns"`
	Depth    float64        `json:"depth"`    // 0.0–1.0
	Tension  float64        `json:"tension"`  // 0.0–1.0
	Intimacy float64        `json:"intimacy"` // 0.0–1.0
	Outcome  float64        `json:"outcome"`  // Mean turn valence
	Ended    string         `json:"ended"`    // "finished" or "argument"
}

// RunConversation plays out a conversation between a and b. Every turn writes a memory for
// both participants and adjusts both directions of their relationship immediately, so it must
// only be called from a serialized phase, never from inside a parallel cycle.
func (e *Engine) RunConversation(a, b Participant, cc ConversationContext) (ConversationRecord, error) {
	if a.AgentID() == b.AgentID() {
		return ConversationRecord{}, fmt.Errorf("conversation of %d: %w", a.AgentID(), ErrSelfRelationship)
	}
	turns := cc.MaxTurns
	if turns <= 0 {
		turns = phi.Completion
	}
	topic := cc.Topic
	if topic == "" {
		topic = "the weather"
	}
	tone := bounds.Signed(cc.Tone)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.conversations++
	rec := ConversationRecord{
		ID:       uuid.NewSHA1(e.ns, fmt.Appendf(nil, "conversation/%d/%d/%d/%d", cc.Tick, a.AgentID(), b.AgentID(), e.conversations)),
		A:        a.AgentID(),
		B:        b.AgentID(),
		Topic:    topic,
		Location: cc.Location,
		Tick:     cc.Tick,
		Ended:    "finished",
	}
	e.getOrCreateLocked(rec.A, rec.B, cc.Tick)

	ta, tb := a.Traits(), b.Traits()
	k := keyFor(rec.A, rec.B)
	lane := float64(k.a*31 + k.b)
	var depth, tension, intimacy, total float64

	for i := range turns {
		speaker, listener := a, b
		st, lt := ta, tb
		if i%2 == 1 {
			speaker, listener = b, a
			st, lt = tb, ta
		}

		warmth := e.stanceLocked(listener.AgentID(), speaker.AgentID()).Affinity
		noise := e.src.Noise(float64(cc.Tick)+float64(i)*phi.Psyche, lane)
		valence := bounds.Signed(tone*phi.Psyche +
			(lt.Axis(agents.Agreeableness)-0.5)*phi.Agnosis +
			warmth*phi.Agnosis +
			noise*phi.Agnosis/2)

		depth = bounds.Unit(depth + phi.Agnosis*(0.5+0.5*st.Axis(agents.Openness))*phi.Matter)
		if valence < 0 {
			tension = bounds.Unit(tension - valence*phi.Psyche)
		} else {
			tension *= phi.Matter
			intimacy = bounds.Unit(intimacy + valence*depth*(0.5+0.5*lt.Axis(agents.Extraversion)))
		}
		total += valence

		rec.Turns = append(rec.Turns, Turn{
			Index:    i,
			Speaker:  speaker.AgentID(),
			Listener: listener.AgentID(),
			Valence:  valence,
			Depth:    depth,
			Tension:  tension,
			Intimacy: intimacy,
		})

		importance := phi.Agnosis + depth*phi.Psyche
		listener.Remember(agents.EpisodicInput{
			Content:      fmt.Sprintf("%s told me about %s", speaker.DisplayName(), topic),
			Participants: []agents.AgentID{speaker.AgentID()},
			Location:     cc.Location,
			Tick:         cc.Tick,
			Valence:      valence,
			Intensity:    math.Abs(valence),
			Importance:   importance,
			Tags:         []string{"conversation", topic},
		})
		speaker.Remember(agents.EpisodicInput{
			Content:      fmt.Sprintf("I talked with %s about %s", listener.DisplayName(), topic),
			Participants: []agents.AgentID{listener.AgentID()},
			Location:     cc.Location,
			Tick:         cc.Tick,
			Valence:      valence * phi.Matter,
			Intensity:    math.Abs(valence) * phi.Matter,
			Importance:   importance,
			Tags:         []string{"conversation", topic},
		})

		// The listener judges the speaker by the turn; the speaker reads the room less sharply.
		e.adjustLocked(listener.AgentID(), speaker.AgentID(),
			valence*phi.Agnosis, max(valence, 0)*phi.Agnosis*phi.Matter, depth*phi.Agnosis*0.1, cc.Tick)
		e.adjustLocked(speaker.AgentID(), listener.AgentID(),
			valence*phi.Agnosis*phi.Matter, max(valence, 0)*phi.Agnosis*phi.Psyche, 0, cc.Tick)

		if tension > phi.Matter {
			rec.Ended = "argument"
			break
		}
	}

	rec.Depth, rec.Tension, rec.Intimacy = depth, tension, intimacy
	rec.Outcome = total / float64(len(rec.Turns))

	for _, p := range []Participant{a, b} {
		other := b
		if p.AgentID() == b.AgentID() {
			other = a
		}
		p.Feel(agents.AppraisalEvent{
			Description:    fmt.Sprintf("conversation with %s", other.DisplayName()),
			Valence:        rec.Outcome,
			Unexpectedness: tension * phi.Psyche,
			Relevance:      bounds.Unit(phi.Psyche + intimacy*phi.Matter),
		}, cc.Tick)
	}
	return rec, nil
}
