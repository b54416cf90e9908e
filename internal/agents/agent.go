package agents

import (
	"errors"
	"fmt"
	"slices"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/world"
)

// EmotionConfig seeds one emotion at creation.
type EmotionConfig struct {
	Type      string  `json:"type" yaml:"type" toml:"type"`
	Intensity float64 `json:"intensity" yaml:"intensity" toml:"intensity"`
}

// GoalConfig seeds one goal at creation.
type GoalConfig struct {
	Description string   `json:"description" yaml:"description" toml:"description"`
	Type        string   `json:"type" yaml:"type" toml:"type"`
	Seed        float64  `json:"seed" yaml:"seed" toml:"seed"`
	Deadline    uint64   `json:"deadline,omitempty" yaml:"deadline" toml:"deadline"`
	Needs       []string `json:"needs,omitempty" yaml:"needs" toml:"needs"`
	Values      []string `json:"values,omitempty" yaml:"values" toml:"values"`
}

// Config is the typed seed for one agent. Every field is range-checked by New.
type Config struct {
	ID        AgentID         `json:"id" yaml:"id" toml:"id"`
	Name      string          `json:"name" yaml:"name" toml:"name"`
	Archetype string          `json:"archetype,omitempty" yaml:"archetype" toml:"archetype"`
	Location  string          `json:"location,omitempty" yaml:"location" toml:"location"`
	Coord     world.HexCoord  `json:"coord" yaml:"coord" toml:"coord"`
	Traits    TraitConfig     `json:"traits" yaml:"traits" toml:"traits"`
	Needs     []NeedConfig    `json:"needs,omitempty" yaml:"needs" toml:"needs"`
	Emotions  []EmotionConfig `json:"emotions,omitempty" yaml:"emotions" toml:"emotions"`
	Goals     []GoalConfig    `json:"goals,omitempty" yaml:"goals" toml:"goals"`
}

// Agent is one autonomous character. Its state is only ever changed through its own
// cognitive cycle, ProcessOutcome and Remember; it is not safe for concurrent use.
type Agent struct {
	ID        AgentID
	Name      string
	Archetype string

	traits   Traits
	needs    NeedSet
	emotions EmotionState
	beliefs  *BeliefStore
	memory   *MemoryStore
	goals    *GoalManager

	location string
	coord    world.HexCoord
	gossip   []Rumor // Things worth passing on, newest last

	state      CycleState
	lastTick   uint64
	lastAction *Action
}

// New validates a seed and builds an agent. Out-of-range seeds are rejected with
// ErrInvalidConfig, never clamped.
func New(cfg Config) (*Agent, error) {
	var errs []error
	if cfg.ID == 0 {
		errs = append(errs, fmt.Errorf("%w: agent id must be non-zero", ErrInvalidConfig))
	}
	if cfg.Name == "" {
		errs = append(errs, fmt.Errorf("%w: agent %d has no name", ErrInvalidConfig, cfg.ID))
	}
	traits, err := NewTraits(cfg.Traits)
	if err != nil {
		errs = append(errs, err)
	}
	needs, err := NewNeedSet(cfg.Needs)
	if err != nil {
		errs = append(errs, err)
	}

	var emotions EmotionState
	for _, ec := range cfg.Emotions {
		t, ok := ParseEmotionType(ec.Type)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: unknown emotion %q", ErrInvalidConfig, ec.Type))
			continue
		}
		if !bounds.InUnit(ec.Intensity) {
			errs = append(errs, fmt.Errorf("%w: emotion %s intensity %v outside [0,1]", ErrInvalidConfig, t, ec.Intensity))
			continue
		}
		emotions.Set(t, ec.Intensity, 0)
	}

	goals := NewGoalManager()
	for _, gc := range cfg.Goals {
		spec, err := goalSpecFromConfig(gc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := goals.AddGoal(spec); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("agent %q: %w", cfg.Name, err)
	}

	a := &Agent{
		ID:        cfg.ID,
		Name:      cfg.Name,
		Archetype: cfg.Archetype,
		traits:    traits,
		needs:     needs,
		emotions:  emotions,
		beliefs:   NewBeliefStore(),
		memory:    NewMemoryStore(),
		goals:     goals,
		location:  cfg.Location,
		coord:     cfg.Coord,
	}
	for _, v := range traits.Values {
		a.beliefs.Add(BeliefNorm, "value:"+v.Name, "matters", v.Strength, "upbringing", 0)
	}
	return a, nil
}

func goalSpecFromConfig(gc GoalConfig) (GoalSpec, error) {
	t, ok := ParseGoalType(gc.Type)
	if !ok {
		return GoalSpec{}, fmt.Errorf("%w: unknown goal type %q", ErrInvalidConfig, gc.Type)
	}
	if !bounds.InUnit(gc.Seed) {
		return GoalSpec{}, fmt.Errorf("%w: goal %q seed %v outside [0,1]", ErrInvalidConfig, gc.Description, gc.Seed)
	}
	spec := GoalSpec{
		Description: gc.Description,
		Type:        t,
		Seed:        gc.Seed,
		Deadline:    gc.Deadline,
		Values:      slices.Clone(gc.Values),
	}
	for _, n := range gc.Needs {
		nt, ok := ParseNeedType(n)
		if !ok {
			return GoalSpec{}, fmt.Errorf("%w: goal %q names unknown need %q", ErrInvalidConfig, gc.Description, n)
		}
		spec.Needs = append(spec.Needs, nt)
	}
	return spec, nil
}

// AgentID returns the agent's identifier. It lets the agent satisfy interfaces that cannot
// name the ID field.
func (a *Agent) AgentID() AgentID { return a.ID }

// DisplayName returns the agent's name.
func (a *Agent) DisplayName() string { return a.Name }

// Traits returns a copy of the personality profile.
func (a *Agent) Traits() Traits {
	return a.traits.Clone()
}

// Needs returns a copy of the need set.
func (a *Agent) Needs() NeedSet {
	return a.needs
}

// Emotions returns a copy of the emotional state.
func (a *Agent) Emotions() EmotionState {
	return a.emotions
}

// Beliefs returns the agent's own beliefs in insertion order.
func (a *Agent) Beliefs() []Belief {
	return a.beliefs.All()
}

// BeliefsAbout returns beliefs about a subject, most confident first.
func (a *Agent) BeliefsAbout(subject string) []Belief {
	return a.beliefs.About(subject)
}

// PredictBehavior asks the agent what it expects another agent to do.
func (a *Agent) PredictBehavior(other AgentID, situation string) string {
	return a.beliefs.PredictBehavior(other, situation)
}

// Memories returns copies of every episodic memory.
func (a *Agent) Memories() []Episodic {
	return a.memory.Episodes()
}

// Knowledge returns the agent's semantic memories.
func (a *Agent) Knowledge() []Semantic {
	return a.memory.Semantic()
}

// Goals returns copies of every goal.
func (a *Agent) Goals() []Goal {
	return a.goals.Goals()
}

// ActiveGoal returns the goal the agent is currently pursuing.
func (a *Agent) ActiveGoal() (Goal, bool) {
	return a.goals.Active()
}

// AddGoal gives the agent a new goal from outside (e.g. a scripted quest hook).
func (a *Agent) AddGoal(spec GoalSpec) (GoalID, error) {
	return a.goals.AddGoal(spec)
}

// LastAction returns the most recent action the agent emitted.
func (a *Agent) LastAction() (Action, bool) {
	if a.lastAction == nil {
		return Action{}, false
	}
	return *a.lastAction, true
}

// Location returns where the agent last perceived itself to be.
func (a *Agent) Location() (string, world.HexCoord) {
	return a.location, a.coord
}

// CycleState returns where the agent is in its cognitive cycle.
func (a *Agent) CycleState() CycleState {
	return a.state
}

// LastTick is the tick of the most recent perception.
func (a *Agent) LastTick() uint64 {
	return a.lastTick
}

// MaxUrgency is the largest scaled need urgency, used by the scheduler.
func (a *Agent) MaxUrgency() float64 {
	return a.needs.MaxUrgency()
}

// EmotionalIntensity is the dominant emotion's intensity, used by the scheduler.
func (a *Agent) EmotionalIntensity() float64 {
	if e, ok := a.emotions.Dominant(); ok {
		return e.Intensity
	}
	return 0
}

// Remember stores an experience that happened to the agent outside its own cycle, such as
// a conversation turn. Returns the memory ID.
func (a *Agent) Remember(in EpisodicInput) uint64 {
	return a.memory.Add(in)
}

// Feel appraises an experience that happened to the agent outside its own cycle.
func (a *Agent) Feel(ev AppraisalEvent, tick uint64) {
	a.emotions.Appraise(ev, tick)
}

// Hear records something another agent told the agent directly.
func (a *Agent) Hear(subject, content string, confidence float64, source string, tick uint64) {
	a.beliefs.Add(BeliefFact, subject, content, confidence, source, tick)
}

// Consolidate promotes recurring episodic patterns into semantic memory.
func (a *Agent) Consolidate(minOccurrences int) int {
	return a.memory.Consolidate(minOccurrences)
}
