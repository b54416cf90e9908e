// Plan templates: the closed library of goal-type → action-sequence mappings.
// Each template is pure data keyed by goal type, with a precondition drawn from a fixed
// enumeration; there are no executable predicates.

package agents

import (
	"fmt"
	"slices"
)

// Command is the token the game engine executes.
type Command string

const (
	CmdIdle       Command = "idle"
	CmdOrderFood  Command = "order_food"
	CmdEat        Command = "eat"
	CmdSeekFood   Command = "seek_food"
	CmdFindSeat   Command = "find_seat"
	CmdRest       Command = "rest"
	CmdRetreat    Command = "retreat"
	CmdHide       Command = "hide"
	CmdStayAlert  Command = "stay_alert"
	CmdApproach   Command = "approach"
	CmdConverse   Command = "converse"
	CmdShareRumor Command = "share_rumor"
	CmdAskAround  Command = "ask_around"
	CmdWork       Command = "work"
	CmdPerform    Command = "perform"
	CmdCompose    Command = "compose"
	CmdWander     Command = "wander"
	CmdObserve    Command = "observe"
	CmdWithdraw   Command = "withdraw"
)

// Condition is a precondition a template needs to hold in the current situation.
type Condition uint8

const (
	CondAlways Condition = iota
	CondCompanyPresent
	CondNoThreat
	CondThreatPresent
	CondFoodAvailable
	CondSeatingAvailable
	CondStageAvailable
	CondGossipAudience // Company present and something worth telling
)

var conditionNames = [...]string{
	"always", "company-present", "no-threat", "threat-present",
	"food-available", "seating-available", "stage-available", "gossip-audience",
}

func (c Condition) String() string {
	if int(c) < len(conditionNames) {
		return conditionNames[c]
	}
	return fmt.Sprintf("condition(%d)", c)
}

// Facts is the situation a plan is built against, derived from the current perception.
type Facts struct {
	Tick      uint64
	Location  string
	Company   []AgentID // Visible agents, ascending
	Names     map[AgentID]string
	Partner   AgentID // Preferred interlocutor among Company, 0 if none
	Threat    bool
	Food      bool
	Seating   bool
	Stage     bool
	HasGossip bool
}

// Holds evaluates the condition against the facts.
func (c Condition) Holds(f Facts) bool {
	switch c {
	case CondAlways:
		return true
	case CondCompanyPresent:
		return len(f.Company) > 0
	case CondNoThreat:
		return !f.Threat
	case CondThreatPresent:
		return f.Threat
	case CondFoodAvailable:
		return f.Food
	case CondSeatingAvailable:
		return f.Seating
	case CondStageAvailable:
		return f.Stage
	case CondGossipAudience:
		return len(f.Company) > 0 && f.HasGossip
	}
	return false
}

// StepTemplate is one action in a template. Verb is a format with the actor's name and,
// for targeted steps, the target's name.
type StepTemplate struct {
	Command  Command
	Verb     string
	Targeted bool
}

// PlanTemplate maps a goal type (optionally narrowed to motivating needs) to a step sequence.
type PlanTemplate struct {
	Name     string
	Goal     GoalType
	Needs    []NeedType // Empty matches any goal of the type
	Requires Condition
	Steps    []StepTemplate
}

var planTemplates = []PlanTemplate{
	// Survival.
	{Name: "order-meal", Goal: GoalSurvival, Needs: []NeedType{NeedSustenance}, Requires: CondFoodAvailable, Steps: []StepTemplate{
		{Command: CmdOrderFood, Verb: "%s orders a meal"},
		{Command: CmdEat, Verb: "%s eats"},
	}},
	{Name: "forage", Goal: GoalSurvival, Needs: []NeedType{NeedSustenance}, Requires: CondNoThreat, Steps: []StepTemplate{
		{Command: CmdSeekFood, Verb: "%s goes looking for something to eat"},
		{Command: CmdEat, Verb: "%s eats"},
	}},
	{Name: "sit-down", Goal: GoalSurvival, Needs: []NeedType{NeedRest}, Requires: CondSeatingAvailable, Steps: []StepTemplate{
		{Command: CmdFindSeat, Verb: "%s looks for a free seat"},
		{Command: CmdRest, Verb: "%s rests"},
	}},
	{Name: "rest-in-place", Goal: GoalSurvival, Needs: []NeedType{NeedRest}, Requires: CondNoThreat, Steps: []StepTemplate{
		{Command: CmdRest, Verb: "%s rests where they stand"},
	}},
	{Name: "flee", Goal: GoalSurvival, Needs: []NeedType{NeedSafety}, Requires: CondThreatPresent, Steps: []StepTemplate{
		{Command: CmdRetreat, Verb: "%s backs away from the trouble"},
		{Command: CmdHide, Verb: "%s keeps out of sight"},
	}},
	{Name: "keep-watch", Goal: GoalSurvival, Needs: []NeedType{NeedSafety}, Requires: CondAlways, Steps: []StepTemplate{
		{Command: CmdStayAlert, Verb: "%s keeps a wary eye on the room"},
	}},

	// Social.
	{Name: "trade-gossip", Goal: GoalSocial, Needs: []NeedType{NeedRespect}, Requires: CondGossipAudience, Steps: []StepTemplate{
		{Command: CmdApproach, Verb: "%s sidles up to %s", Targeted: true},
		{Command: CmdShareRumor, Verb: "%s shares a bit of gossip with %s", Targeted: true},
	}},
	{Name: "strike-up-conversation", Goal: GoalSocial, Requires: CondCompanyPresent, Steps: []StepTemplate{
		{Command: CmdApproach, Verb: "%s walks over to %s", Targeted: true},
		{Command: CmdConverse, Verb: "%s chats with %s", Targeted: true},
	}},

	// Achievement.
	{Name: "take-the-stage", Goal: GoalAchievement, Needs: []NeedType{NeedRespect, NeedPurpose}, Requires: CondStageAvailable, Steps: []StepTemplate{
		{Command: CmdPerform, Verb: "%s performs for the room"},
	}},
	{Name: "compose", Goal: GoalAchievement, Needs: []NeedType{NeedPurpose}, Requires: CondNoThreat, Steps: []StepTemplate{
		{Command: CmdCompose, Verb: "%s works on a new piece"},
	}},
	{Name: "work-shift", Goal: GoalAchievement, Requires: CondAlways, Steps: []StepTemplate{
		{Command: CmdWork, Verb: "%s gets to work"},
		{Command: CmdWork, Verb: "%s keeps working"},
	}},

	// Exploration.
	{Name: "ask-around", Goal: GoalExploration, Needs: []NeedType{NeedCuriosity}, Requires: CondCompanyPresent, Steps: []StepTemplate{
		{Command: CmdAskAround, Verb: "%s asks %s what's new", Targeted: true},
	}},
	{Name: "wander", Goal: GoalExploration, Requires: CondNoThreat, Steps: []StepTemplate{
		{Command: CmdWander, Verb: "%s wanders about"},
		{Command: CmdObserve, Verb: "%s takes in the scene"},
	}},

	// Avoidance.
	{Name: "withdraw", Goal: GoalAvoidance, Requires: CondAlways, Steps: []StepTemplate{
		{Command: CmdWithdraw, Verb: "%s keeps their distance"},
	}},
}

// Templates returns the template library (a copy).
func Templates() []PlanTemplate {
	return slices.Clone(planTemplates)
}

func (t PlanTemplate) matches(g *Goal) bool {
	if t.Goal != g.Type {
		return false
	}
	if len(t.Needs) == 0 {
		return true
	}
	for _, n := range t.Needs {
		if slices.Contains(g.Needs, n) {
			return true
		}
	}
	return false
}

// PlanStep is one pending action in a plan.
type PlanStep struct {
	Command  Command `json:"command"`
	Verb     string  `json:"verb"`
	Target   AgentID `json:"target,omitempty"`
	Targeted bool    `json:"targeted,omitempty"`
}

// Plan is an ordered list of steps bound to one goal.
type Plan struct {
	Goal     GoalID     `json:"goal"`
	Template string     `json:"template"`
	Requires Condition  `json:"requires"`
	Steps    []PlanStep `json:"steps"`
	Built    uint64     `json:"built"`
}

// Valid reports whether the plan still has steps and its precondition still holds.
func (p *Plan) Valid(f Facts) bool {
	if p == nil || len(p.Steps) == 0 || !p.Requires.Holds(f) {
		return false
	}
	for _, s := range p.Steps {
		if s.Targeted && !slices.Contains(f.Company, s.Target) {
			return false
		}
	}
	return true
}

func (p *Plan) clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Steps = slices.Clone(p.Steps)
	return &c
}

// describe renders a step for the event log.
func (s PlanStep) describe(actor string, names map[AgentID]string) string {
	if !s.Targeted {
		return fmt.Sprintf(s.Verb, actor)
	}
	target, ok := names[s.Target]
	if !ok {
		target = fmt.Sprintf("agent %d", s.Target)
	}
	return fmt.Sprintf(s.Verb, actor, target)
}
