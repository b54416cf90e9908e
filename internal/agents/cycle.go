// Cognitive cycle: one perceive → believe → deliberate → act pass per tick.
// Learning happens in ProcessOutcome once the environment has resolved the action.

package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// CycleState is a step of the cognitive state machine.
type CycleState uint8

const (
	StateIdle CycleState = iota
	StatePerceiving
	StateBelieving
	StateDeliberating
	StateActing
	StateLearning
)

var cycleStateNames = [...]string{"idle", "perceiving", "believing", "deliberating", "acting", "learning"}

func (s CycleState) String() string {
	if int(s) < len(cycleStateNames) {
		return cycleStateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// CycleDepth is how much thinking the scheduler grants the agent this tick.
type CycleDepth uint8

const (
	DepthFull     CycleDepth = iota // Everything, including theory-of-mind modelling
	DepthStandard                   // No theory-of-mind modelling
	DepthReactive                   // Perceive and continue the current plan only
)

var cycleDepthNames = [...]string{"full", "standard", "reactive"}

func (d CycleDepth) String() string {
	if int(d) < len(cycleDepthNames) {
		return cycleDepthNames[d]
	}
	return fmt.Sprintf("depth(%d)", d)
}

// CycleOptions configures one cognitive cycle.
type CycleOptions struct {
	Depth  CycleDepth
	Social RelationshipReader // Frozen view of the social graph; may be nil
}

// CycleInputs is the snapshot of what the agent considered, recorded in decision traces.
type CycleInputs struct {
	Tick         uint64            `json:"tick"`
	Location     string            `json:"location"`
	Visible      []AgentID         `json:"visible,omitempty"`
	Needs        [NumNeeds]float64 `json:"needs"`
	Urgent       []string          `json:"urgent,omitempty"`
	Emotion      string            `json:"emotion,omitempty"`
	Intensity    float64           `json:"intensity"`
	Mood         Mood              `json:"mood"`
	Goal         GoalID            `json:"goal,omitempty"`
	GoalType     string            `json:"goal_type,omitempty"`
	GoalPriority float64           `json:"goal_priority"`
	Input        string            `json:"input,omitempty"`
	Events       []string          `json:"events,omitempty"`
	Depth        string            `json:"depth"`
}

// ConversationRequest asks the social engine to run a conversation in the commit phase.
type ConversationRequest struct {
	With  AgentID `json:"with"`
	Topic string  `json:"topic"`
}

// ArtifactDraft is a piece of culture the agent produced this tick.
type ArtifactDraft struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// CycleResult is everything one cycle produced. Action is nil when the agent does nothing
// notable this tick, which is never an error.
type CycleResult struct {
	Agent        AgentID              `json:"agent"`
	Tick         uint64               `json:"tick"`
	Depth        CycleDepth           `json:"depth"`
	Action       *Action              `json:"action,omitempty"`
	Inputs       CycleInputs          `json:"inputs"`
	Rationale    string               `json:"rationale"`
	Tags         []string             `json:"tags,omitempty"`
	Malformed    bool                 `json:"malformed,omitempty"`
	Halted       bool                 `json:"halted,omitempty"`
	Abandoned    bool                 `json:"abandoned,omitempty"`
	Conversation *ConversationRequest `json:"conversation,omitempty"`
	Gossip       *Rumor               `json:"gossip,omitempty"`
	Artifact     *ArtifactDraft       `json:"artifact,omitempty"`
	Performing   bool                 `json:"performing,omitempty"`
}

func (r *CycleResult) tag(t string) {
	r.Tags = append(r.Tags, t)
}

// CognitiveCycle runs one pass of the state machine against a perception.
//
// A malformed perception leaves the agent untouched and yields no action. Cancellation is
// checked between steps: the agent finishes the step it is in and stops, keeping its plan.
// When the context's cause is ErrCycleBudgetExceeded the cycle is reported as abandoned
// instead of halted.
func (a *Agent) CognitiveCycle(ctx context.Context, p Perception, opts CycleOptions) CycleResult {
	res := CycleResult{Agent: a.ID, Tick: p.Tick, Depth: opts.Depth}
	res.Inputs.Depth = opts.Depth.String()

	if err := p.Validate(); err != nil || (a.lastTick != 0 && p.Tick < a.lastTick) {
		res.Malformed = true
		res.Rationale = "malformed perception"
		res.tag("MalformedPerception")
		slog.Debug("malformed perception", "agent", a.ID, "tick", p.Tick, "location", p.Location)
		return res
	}
	defer func() { a.state = StateIdle }()

	steps := []func(Perception, CycleOptions, *CycleResult, *Facts){
		a.perceive,
		a.believe,
		a.deliberate,
	}
	var facts Facts
	for _, step := range steps {
		if stop(ctx, &res) {
			return res
		}
		step(p, opts, &res, &facts)
	}
	if stop(ctx, &res) {
		return res
	}
	a.act(&res, &facts)
	return res
}

// stop reports whether the context is done and records why.
func stop(ctx context.Context, res *CycleResult) bool {
	if ctx.Err() == nil {
		return false
	}
	res.Action = nil
	if errors.Is(context.Cause(ctx), ErrCycleBudgetExceeded) {
		res.Abandoned = true
		res.tag("CycleBudgetExceeded")
		res.Rationale = "cycle abandoned: time budget exceeded"
	} else {
		res.Halted = true
		res.tag("Halted")
		res.Rationale = "cycle halted: tick aborted"
	}
	return true
}

// perceive decays drives and affect by the elapsed time and appraises what is happening.
func (a *Agent) perceive(p Perception, opts CycleOptions, res *CycleResult, facts *Facts) {
	a.state = StatePerceiving

	elapsed := 1.0
	if a.lastTick != 0 {
		elapsed = float64(p.Tick - a.lastTick)
	}
	a.lastTick = p.Tick
	a.needs.Decay(elapsed)
	a.emotions.Decay(elapsed)

	a.location = p.Location
	a.coord = p.Coord

	for _, ev := range p.Events {
		rel := bounds.Unit(ev.Relevance)
		if ev.Subject == a.ID {
			rel = 1
		}
		// Anxious agents feel bad news harder; outgoing ones feel good news harder.
		if ev.Valence < 0 {
			rel = bounds.Unit(rel * (0.75 + 0.5*a.traits.Axis(Neuroticism)))
		} else {
			rel = bounds.Unit(rel * (0.75 + 0.5*a.traits.Axis(Extraversion)))
		}
		a.emotions.Appraise(AppraisalEvent{
			Description:    ev.Description,
			Valence:        ev.Valence,
			Unexpectedness: ev.Unexpectedness,
			Relevance:      rel,
		}, p.Tick)
		res.Inputs.Events = append(res.Inputs.Events, ev.Kind)
	}
	a.emotions.UpdateMood(p.Tick)

	*facts = a.facts(p, opts.Social)

	res.Inputs.Tick = p.Tick
	res.Inputs.Location = p.Location
	res.Inputs.Visible = slices.Clone(facts.Company)
	res.Inputs.Input = p.Input
	for i, n := range a.needs {
		res.Inputs.Needs[i] = n.Level
	}
	for _, n := range a.needs.UrgentNeeds() {
		res.Inputs.Urgent = append(res.Inputs.Urgent, n.Type.String())
	}
	if e, ok := a.emotions.Dominant(); ok {
		res.Inputs.Emotion = e.Type.String()
		res.Inputs.Intensity = e.Intensity
	}
	res.Inputs.Mood = a.emotions.Mood()
}

// facts derives the planning situation from a perception.
func (a *Agent) facts(p Perception, social RelationshipReader) Facts {
	f := Facts{
		Tick:      p.Tick,
		Location:  p.Location,
		Names:     make(map[AgentID]string, len(p.VisibleAgents)),
		Food:      p.HasTag("food") || p.HasEvent("food"),
		Seating:   p.HasTag("seating"),
		Stage:     p.HasTag("stage"),
		Threat:    p.HasEvent("threat") || p.HasEvent("brawl"),
		HasGossip: len(a.gossip) > 0,
	}
	for _, v := range p.VisibleAgents {
		if v.ID == 0 || v.ID == a.ID {
			continue
		}
		f.Company = append(f.Company, v.ID)
		f.Names[v.ID] = v.Name
	}
	slices.Sort(f.Company)
	f.Company = slices.Compact(f.Company)

	// Preferred partner: warmest non-rival, lowest ID on ties.
	best := math.Inf(-1)
	for _, id := range f.Company {
		aff := 0.0
		if social != nil {
			if att, ok := social.Attitude(a.ID, id); ok {
				aff = att.Affinity
			}
		}
		if aff <= -phi.Agnosis {
			continue
		}
		if aff > best {
			best, f.Partner = aff, id
		}
	}
	return f
}

// believe folds the perception into beliefs and memory.
func (a *Agent) believe(p Perception, opts CycleOptions, res *CycleResult, facts *Facts) {
	a.state = StateBelieving
	tick := p.Tick

	a.beliefs.Add(BeliefFact, "location", p.Location, 1, "perception", tick)
	if opts.Depth == DepthReactive {
		return
	}

	for _, v := range p.VisibleAgents {
		if v.ID == 0 || v.ID == a.ID {
			continue
		}
		a.beliefs.Add(BeliefFact, presenceSubject(v.ID), p.Location, 1, "perception", tick)
		if opts.Depth == DepthFull {
			a.beliefs.MindOf(v.ID, tick).Observe(v.LastCommand, p.Location, tick)
		}
	}

	if p.Input != "" {
		a.beliefs.Add(BeliefFact, "heard", p.Input, 0.8, "input", tick)
		a.memory.Add(EpisodicInput{
			Content:    fmt.Sprintf("Heard someone say %q", p.Input),
			Location:   p.Location,
			Tick:       tick,
			Intensity:  0.3,
			Importance: 0.5,
			Tags:       []string{"input"},
		})
		a.needs.Satisfy(NeedCuriosity, phi.Agnosis*0.1)
	}

	for _, r := range p.Rumors {
		trust := 0.0
		if opts.Social != nil {
			if att, ok := opts.Social.Attitude(a.ID, r.Teller); ok {
				trust = att.Trust
			}
		}
		conf := bounds.Unit(r.Confidence * (0.5 + 0.5*trust))
		a.beliefs.Add(BeliefFact, rumorSubject(r.About), r.Content, conf, "rumor from "+strconv.FormatUint(uint64(r.Teller), 10), tick)
		a.memory.Add(EpisodicInput{
			Content:      r.Content,
			Participants: nonZero(r.Teller, r.About),
			Location:     p.Location,
			Tick:         tick,
			Valence:      r.Sentiment * phi.Agnosis,
			Intensity:    math.Abs(r.Sentiment) * conf,
			Importance:   0.2 + 0.3*conf,
			Tags:         []string{"rumor"},
		})
		if conf >= phi.Agnosis && r.About != a.ID {
			heard := r
			heard.Confidence = conf
			a.keepGossip(heard)
		}
	}

	for _, ev := range p.Events {
		if bounds.Unit(ev.Relevance) < phi.AppraisalFloor && ev.Subject != a.ID {
			continue
		}
		a.memory.Add(EpisodicInput{
			Content:      ev.Description,
			Participants: nonZero(ev.Subject),
			Location:     p.Location,
			Tick:         tick,
			Valence:      ev.Valence,
			Intensity:    bounds.Unit(ev.Relevance * (0.5 + 0.5*ev.Unexpectedness)),
			Importance:   bounds.Unit(ev.Relevance * (0.5 + 0.5*math.Abs(ev.Valence))),
			Tags:         []string{ev.Kind, "event"},
		})
		if ev.Subject != 0 && ev.Subject != a.ID && math.Abs(ev.Valence) >= phi.Psyche {
			a.keepGossip(Rumor{
				Origin:     a.ID,
				About:      ev.Subject,
				Content:    ev.Description,
				Confidence: 1,
				Sentiment:  bounds.Signed(ev.Valence),
			})
		}
	}
	facts.HasGossip = len(a.gossip) > 0
}

func (a *Agent) keepGossip(r Rumor) {
	a.gossip = append(a.gossip, r)
	if len(a.gossip) > phi.Excess {
		a.gossip = a.gossip[len(a.gossip)-phi.Excess:]
	}
}

// deliberate spawns need-driven goals, rescores everything and settles on a plan step.
func (a *Agent) deliberate(p Perception, opts CycleOptions, res *CycleResult, facts *Facts) {
	a.state = StateDeliberating
	tick := p.Tick

	if opts.Depth == DepthReactive {
		if g, ok := a.goals.Active(); ok {
			if plan, ok := a.goals.ContinuePlan(g.ID, *facts); ok {
				a.choose(res, g, plan)
				res.tag("reactive")
				return
			}
		}
		res.Rationale = "reactive pass: no plan to continue"
		res.tag("idle")
		return
	}

	for _, n := range a.needs.UrgentNeeds() {
		if a.goals.HasOpenGoalFor(n.Type) {
			continue
		}
		id, err := a.goals.AddGoal(GoalSpec{
			Description: "restore " + n.Type.String(),
			Type:        GoalTypeForNeed(n.Type),
			Seed:        phi.NeedGoalSeed,
			Needs:       []NeedType{n.Type},
			Tick:        tick,
		})
		if err == nil {
			res.tag("new-goal:" + strconv.FormatUint(uint64(id), 10))
		}
	}
	a.avoidRivals(opts.Social, facts, res)

	a.goals.RecomputePriorities(&a.needs, &a.emotions, a.traits, tick)

	// Blocked goals drop out of the candidate set, so this terminates.
	for range a.goals.Len() + 1 {
		g, ok := a.goals.SelectActiveGoal()
		if !ok {
			break
		}
		plan, ok := a.goals.PlanFor(g.ID, *facts)
		if !ok {
			res.tag("blocked:" + strconv.FormatUint(uint64(g.ID), 10))
			continue
		}
		a.choose(res, g, plan)
		return
	}
	res.Rationale = "no goal worth pursuing"
	res.tag("idle")
}

// avoidRivals adds an avoidance goal for each visible agent the agent strongly dislikes.
func (a *Agent) avoidRivals(social RelationshipReader, facts *Facts, res *CycleResult) {
	if social == nil {
		return
	}
	for _, id := range facts.Company {
		att, ok := social.Attitude(a.ID, id)
		if !ok || att.Affinity > -phi.Psyche || a.hasOpenGoalAbout(id, GoalAvoidance) {
			continue
		}
		name := facts.Names[id]
		if name == "" {
			name = "agent " + strconv.FormatUint(uint64(id), 10)
		}
		gid, err := a.goals.AddGoal(GoalSpec{
			Description: "keep away from " + name,
			Type:        GoalAvoidance,
			Seed:        math.Min(1, -att.Affinity*phi.Psyche),
			Deadline:    facts.Tick + phi.Excess*10,
			About:       id,
			Tick:        facts.Tick,
		})
		if err == nil {
			res.tag("new-goal:" + strconv.FormatUint(uint64(gid), 10))
		}
	}
}

func (a *Agent) hasOpenGoalAbout(id AgentID, t GoalType) bool {
	for _, g := range a.goals.goals {
		if g.About == id && g.Type == t && !g.Status.Terminal() {
			return true
		}
	}
	return false
}

// choose records the goal and plan the agent settled on.
func (a *Agent) choose(res *CycleResult, g Goal, plan Plan) {
	res.Inputs.Goal = g.ID
	res.Inputs.GoalType = g.Type.String()
	res.Inputs.GoalPriority = g.Priority
	res.Rationale = fmt.Sprintf("pursuing %q (%s, priority %.2f) via %s", g.Description, g.Type, g.Priority, plan.Template)
	res.tag("goal:" + g.Type.String())
	res.tag("plan:" + plan.Template)
}

// act emits the next step of the chosen plan.
func (a *Agent) act(res *CycleResult, facts *Facts) {
	a.state = StateActing
	if res.Inputs.Goal == 0 {
		return
	}
	plan, ok := a.goals.Plan(res.Inputs.Goal)
	if !ok || len(plan.Steps) == 0 {
		return
	}
	step := plan.Steps[0]
	action := Action{
		Agent:       a.ID,
		Command:     step.Command,
		Description: step.describe(a.Name, facts.Names),
		Target:      step.Target,
		Goal:        res.Inputs.Goal,
		Tick:        res.Tick,
	}
	last := action
	a.lastAction = &last
	res.Action = &action

	switch step.Command {
	case CmdConverse:
		res.Conversation = &ConversationRequest{With: step.Target, Topic: a.topic()}
	case CmdShareRumor:
		if len(a.gossip) > 0 {
			r := a.gossip[len(a.gossip)-1]
			a.gossip = a.gossip[:len(a.gossip)-1]
			r.Teller = a.ID
			if r.Origin == 0 {
				r.Origin = a.ID
			}
			res.Gossip = &r
		}
	case CmdCompose:
		res.Artifact = a.compose(res.Tick)
	case CmdPerform:
		res.Performing = true
	}
}

// topic picks what the agent wants to talk about: its most accessible memory, else the
// place it is in.
func (a *Agent) topic() string {
	if top := a.memory.MostAccessible(a.lastTick, 1); len(top) > 0 {
		return top[0].Content
	}
	return "the goings-on at " + a.location
}

// compose drafts a cultural artifact shaped by the agent's strongest value and mood.
func (a *Agent) compose(tick uint64) *ArtifactDraft {
	kind := "song"
	if a.traits.Axis(Openness) < 0.5 {
		kind = "saying"
	} else if a.traits.Axis(Extraversion) < 0.5 {
		kind = "story"
	}
	theme := "the road"
	if len(a.traits.Values) > 0 {
		v := slices.MaxFunc(a.traits.Values, func(x, y Value) int {
			switch {
			case x.Strength < y.Strength:
				return -1
			case x.Strength > y.Strength:
				return 1
			}
			return strings.Compare(y.Name, x.Name)
		})
		theme = v.Name
	}
	tone := "wistful"
	if m := a.emotions.Mood(); m.Valence > 0.1 {
		tone = "merry"
	} else if m.Valence < -0.1 {
		tone = "mournful"
	}
	return &ArtifactDraft{
		Kind:    kind,
		Content: fmt.Sprintf("a %s %s about %s, first heard at %s on tick %d", tone, kind, theme, a.location, tick),
	}
}

func presenceSubject(id AgentID) string {
	return "present:" + strconv.FormatUint(uint64(id), 10)
}

func rumorSubject(id AgentID) string {
	return "rumor:" + strconv.FormatUint(uint64(id), 10)
}

func nonZero(ids ...AgentID) []AgentID {
	var out []AgentID
	for _, id := range ids {
		if id != 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
