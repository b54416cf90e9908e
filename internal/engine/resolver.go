// Resolver turns the actions agents emit into outcomes. The simulation asks the resolver
// once per action during commit; the agent learns from the outcome on its next cycle.

package engine

import (
	"fmt"
	"hash/fnv"
	"slices"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/entropy"
	"github.com/talgya/tavern-minds/internal/phi"
	"github.com/talgya/tavern-minds/internal/world"
)

// Resolver resolves an action into an outcome.
type Resolver interface {
	Resolve(action agents.Action, scene Scene) agents.Outcome
}

// requirement is a scene precondition a rule needs to succeed.
type requirement uint8

const (
	needsFood requirement = 1 << iota
	needsSeating
	needsStage
	needsTarget
	needsCompany
)

type gain struct {
	need   agents.NeedType
	amount float64
}

// rule is the fixed resolution of one command.
type rule struct {
	requires requirement
	gains    []gain
	event    float64 // Valence of the experience on success; 0 for none
	risk     float64 // Chance of failing even when the scene allows it
	move     string  // Tag of the location the actor ends up at
}

var rules = map[agents.Command]rule{
	agents.CmdIdle:      {},
	agents.CmdOrderFood: {requires: needsFood, gains: []gain{{agents.NeedSustenance, 0.15}}},
	agents.CmdEat:       {requires: needsFood, gains: []gain{{agents.NeedSustenance, 0.5}}, event: 0.2},
	agents.CmdSeekFood:  {gains: []gain{{agents.NeedSustenance, 0.3}}, risk: phi.Psyche},
	agents.CmdFindSeat:  {requires: needsSeating, gains: []gain{{agents.NeedRest, 0.1}}},
	agents.CmdRest:      {gains: []gain{{agents.NeedRest, 0.3}}},
	agents.CmdRetreat:   {gains: []gain{{agents.NeedSafety, 0.3}}, move: "refuge"},
	agents.CmdHide:      {gains: []gain{{agents.NeedSafety, 0.25}}},
	agents.CmdStayAlert: {gains: []gain{{agents.NeedSafety, 0.1}}},
	agents.CmdApproach:  {requires: needsTarget, gains: []gain{{agents.NeedBelonging, 0.05}}},
	agents.CmdConverse: {
		requires: needsTarget,
		gains:    []gain{{agents.NeedBelonging, 0.3}, {agents.NeedCuriosity, 0.05}},
		event:    0.2,
	},
	agents.CmdShareRumor: {
		requires: needsTarget,
		gains:    []gain{{agents.NeedRespect, 0.1}, {agents.NeedBelonging, 0.1}},
		event:    0.1,
	},
	agents.CmdAskAround: {requires: needsCompany, gains: []gain{{agents.NeedCuriosity, 0.3}}},
	agents.CmdWork:      {gains: []gain{{agents.NeedAchievement, 0.2}, {agents.NeedPurpose, 0.1}}, move: "work"},
	agents.CmdPerform: {
		requires: needsStage,
		gains:    []gain{{agents.NeedRespect, 0.3}, {agents.NeedPurpose, 0.2}},
		event:    0.3,
		risk:     phi.Agnosis,
	},
	agents.CmdCompose:  {gains: []gain{{agents.NeedPurpose, 0.3}, {agents.NeedAchievement, 0.1}}},
	agents.CmdWander:   {gains: []gain{{agents.NeedCuriosity, 0.2}, {agents.NeedAutonomy, 0.05}}, move: "*"},
	agents.CmdObserve:  {gains: []gain{{agents.NeedCuriosity, 0.15}}},
	agents.CmdWithdraw: {gains: []gain{{agents.NeedAutonomy, 0.2}}},
}

// baseRisk is the chance any non-idle action fails for no reason the agent can see.
var baseRisk = phi.Agnosis * 0.25

// RuleResolver resolves actions from the fixed rule table. Failures are keyed draws, so the
// same tick, agent and command always resolve the same way.
type RuleResolver struct {
	layout *world.Layout
	src    *entropy.Source
}

// NewRuleResolver creates the default resolver.
func NewRuleResolver(layout *world.Layout, src *entropy.Source) *RuleResolver {
	if layout == nil {
		layout = world.NewLayout(nil, nil)
	}
	if src == nil {
		src = entropy.NewSource(0)
	}
	return &RuleResolver{layout: layout, src: src}
}

// Resolve applies the command's rule to the scene.
func (r *RuleResolver) Resolve(action agents.Action, scene Scene) agents.Outcome {
	rl, ok := rules[action.Command]
	if !ok {
		return agents.Outcome{Success: false}
	}
	if action.Command == agents.CmdIdle {
		return agents.Outcome{Success: true}
	}

	if reason, met := r.requirementsMet(rl.requires, action, scene); !met {
		return agents.Outcome{Success: false, Effects: []agents.Effect{{
			Kind:        agents.EffectEvent,
			Amount:      -0.2,
			Description: reason,
		}}}
	}
	if r.draw(action, scene.Tick) < baseRisk+rl.risk {
		return agents.Outcome{Success: false}
	}

	out := agents.Outcome{Success: true}
	for _, g := range rl.gains {
		amount := g.amount
		if g.need == agents.NeedRest && scene.Location.HasTag("seating") {
			amount *= phi.Being
		}
		out.Effects = append(out.Effects, agents.Effect{Kind: agents.EffectNeed, Need: g.need, Amount: amount})
	}
	if rl.event != 0 {
		out.Effects = append(out.Effects, agents.Effect{
			Kind:        agents.EffectEvent,
			Amount:      rl.event,
			Other:       action.Target,
			Description: action.Description,
		})
	}
	if loc, ok := r.destination(rl.move, action, scene); ok {
		out.Effects = append(out.Effects, agents.Effect{
			Kind:        agents.EffectMove,
			Location:    loc.Name,
			Coord:       loc.Coord,
			Description: fmt.Sprintf("moved to the %s", loc.Name),
		})
	}
	return out
}

func (r *RuleResolver) requirementsMet(req requirement, action agents.Action, scene Scene) (string, bool) {
	switch {
	case req&needsFood != 0 && !scene.Location.HasTag("food") && !scene.HasEvent("food"):
		return "there was nothing to eat", false
	case req&needsSeating != 0 && !scene.Location.HasTag("seating"):
		return "there was nowhere to sit", false
	case req&needsStage != 0 && !scene.Location.HasTag("stage"):
		return "there was no stage", false
	case req&needsTarget != 0 && (action.Target == 0 || !scene.HasPresent(action.Target)):
		return "they were no longer there", false
	case req&needsCompany != 0 && len(scene.Present) == 0:
		return "nobody was around", false
	}
	return "", true
}

// destination picks where a moving action ends up: a location carrying the tag, or for "*"
// any other location. Staying put is not a move.
func (r *RuleResolver) destination(tag string, action agents.Action, scene Scene) (world.Location, bool) {
	if tag == "" {
		return world.Location{}, false
	}
	var options []world.Location
	for _, name := range r.layout.Names() {
		loc, _ := r.layout.Location(name)
		if loc.Name == scene.Location.Name {
			continue
		}
		if tag == "*" || loc.HasTag(tag) {
			options = append(options, loc)
		}
	}
	if len(options) == 0 || (tag != "*" && scene.Location.HasTag(tag)) {
		return world.Location{}, false
	}
	i := int(r.src.Keyed(scene.Tick, uint64(action.Agent), 1) * float64(len(options)))
	return options[min(i, len(options)-1)], true
}

func (r *RuleResolver) draw(action agents.Action, tick uint64) float64 {
	h := fnv.New64a()
	h.Write([]byte(action.Command))
	return r.src.Keyed(tick, uint64(action.Agent), h.Sum64())
}

// Commands lists the commands the resolver knows, sorted.
func Commands() []agents.Command {
	out := make([]agents.Command, 0, len(rules))
	for c := range rules {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
