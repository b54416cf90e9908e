package agents

import (
	"fmt"
	"slices"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// GoalID identifies a goal within one agent's goal set. Zero means "none".
type GoalID uint64

// GoalType is the closed set of goal categories.
type GoalType uint8

const (
	GoalSurvival GoalType = iota
	GoalAchievement
	GoalSocial
	GoalExploration
	GoalAvoidance
)

var goalTypeNames = [...]string{"survival", "achievement", "social", "exploration", "avoidance"}

func (t GoalType) String() string {
	if int(t) < len(goalTypeNames) {
		return goalTypeNames[t]
	}
	return fmt.Sprintf("goal(%d)", t)
}

// ParseGoalType resolves a goal type name.
func ParseGoalType(s string) (GoalType, bool) {
	for i, name := range goalTypeNames {
		if name == s {
			return GoalType(i), true
		}
	}
	return 0, false
}

// GoalStatus is a goal's lifecycle state. Achieved and Abandoned are terminal.
type GoalStatus uint8

const (
	GoalPending GoalStatus = iota
	GoalActive
	GoalBlocked
	GoalAchieved
	GoalAbandoned
)

var goalStatusNames = [...]string{"pending", "active", "blocked", "achieved", "abandoned"}

func (s GoalStatus) String() string {
	if int(s) < len(goalStatusNames) {
		return goalStatusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

// Terminal reports whether the goal is finished for good.
func (s GoalStatus) Terminal() bool {
	return s == GoalAchieved || s == GoalAbandoned
}

// needGoalType is the goal type spawned for an urgent need.
var needGoalType = [NumNeeds]GoalType{
	NeedSustenance:  GoalSurvival,
	NeedRest:        GoalSurvival,
	NeedSafety:      GoalSurvival,
	NeedBelonging:   GoalSocial,
	NeedAchievement: GoalAchievement,
	NeedAutonomy:    GoalAchievement,
	NeedRespect:     GoalSocial,
	NeedPurpose:     GoalAchievement,
	NeedCuriosity:   GoalExploration,
}

// GoalTypeForNeed returns the goal type that addresses a need.
func GoalTypeForNeed(n NeedType) GoalType {
	return needGoalType[n]
}

// valueAffinity is the fixed goal-type × value alignment table, each entry in [-1, 1].
var valueAffinity = map[GoalType]map[string]float64{
	GoalSurvival:    {"security": 1, "tradition": 0.3, "freedom": -0.2},
	GoalAchievement: {"ambition": 1, "knowledge": 0.4, "tradition": 0.2, "pleasure": -0.2},
	GoalSocial:      {"community": 1, "loyalty": 0.6, "honesty": 0.3, "freedom": -0.2},
	GoalExploration: {"freedom": 1, "knowledge": 0.8, "security": -0.4, "tradition": -0.5},
	GoalAvoidance:   {"security": 0.6, "freedom": 0.3, "community": -0.5},
}

// Goal is one desire in the agent's goal tree.
type Goal struct {
	ID          GoalID     `json:"id"`
	Description string     `json:"description"`
	Type        GoalType   `json:"type"`
	Seed        float64    `json:"seed"`
	Priority    float64    `json:"priority"`
	Deadline    uint64     `json:"deadline,omitempty"` // Tick; 0 = none
	Status      GoalStatus `json:"status"`
	Needs       []NeedType `json:"needs,omitempty"`  // Motivating needs
	Values      []string   `json:"values,omitempty"` // Motivating values
	About       AgentID    `json:"about,omitempty"`  // Agent the goal concerns, if any
	Parent      GoalID     `json:"parent,omitempty"`
	Subgoals    []GoalID   `json:"subgoals,omitempty"`
	Created     uint64     `json:"created"`
	Failures    int        `json:"failures"`
	Seq         int        `json:"seq"`
}

func (g *Goal) clone() Goal {
	c := *g
	c.Needs = slices.Clone(g.Needs)
	c.Values = slices.Clone(g.Values)
	c.Subgoals = slices.Clone(g.Subgoals)
	return c
}

// GoalSpec is the input to AddGoal. A zero ID asks the manager to assign one.
type GoalSpec struct {
	ID          GoalID
	Description string
	Type        GoalType
	Seed        float64
	Deadline    uint64
	Needs       []NeedType
	Values      []string
	About       AgentID
	Parent      GoalID
	Subgoals    []GoalID
	Tick        uint64
}

// GoalManager owns an agent's goals and the plans bound to them.
type GoalManager struct {
	goals  []*Goal
	index  map[GoalID]*Goal
	plans  map[GoalID]*Plan
	active GoalID
	nextID GoalID
}

// NewGoalManager creates an empty goal set.
func NewGoalManager() *GoalManager {
	return &GoalManager{
		index:  make(map[GoalID]*Goal),
		plans:  make(map[GoalID]*Plan),
		nextID: 1,
	}
}

// AddGoal inserts a goal. It fails with ErrCyclicGoalGraph if the goal would become its own
// ancestor and with ErrInvalidGoal for duplicate IDs or unknown references. A rejected
// insertion leaves the goal set untouched.
func (m *GoalManager) AddGoal(spec GoalSpec) (GoalID, error) {
	id := spec.ID
	if id != 0 {
		if spec.Parent == id || slices.Contains(spec.Subgoals, id) {
			return 0, fmt.Errorf("%w: goal %d references itself", ErrCyclicGoalGraph, id)
		}
		if _, dup := m.index[id]; dup {
			return 0, fmt.Errorf("%w: duplicate goal id %d", ErrInvalidGoal, id)
		}
	}
	if int(spec.Type) >= len(goalTypeNames) {
		return 0, fmt.Errorf("%w: unknown goal type %d", ErrInvalidGoal, spec.Type)
	}
	for _, n := range spec.Needs {
		if int(n) >= NumNeeds {
			return 0, fmt.Errorf("%w: unknown need %d", ErrInvalidGoal, n)
		}
	}
	if spec.Parent != 0 {
		if _, ok := m.index[spec.Parent]; !ok {
			return 0, fmt.Errorf("%w: unknown parent %d", ErrInvalidGoal, spec.Parent)
		}
	}
	ancestors := m.ancestors(spec.Parent)
	for _, sub := range spec.Subgoals {
		child, ok := m.index[sub]
		if !ok {
			return 0, fmt.Errorf("%w: unknown subgoal %d", ErrInvalidGoal, sub)
		}
		if ancestors[sub] {
			return 0, fmt.Errorf("%w: goal %d would become its own descendant", ErrCyclicGoalGraph, sub)
		}
		if child.Parent != 0 {
			return 0, fmt.Errorf("%w: subgoal %d already has parent %d", ErrInvalidGoal, sub, child.Parent)
		}
	}

	if id == 0 {
		id = m.nextID
	}
	m.nextID = max(m.nextID, id+1)

	g := &Goal{
		ID:          id,
		Description: spec.Description,
		Type:        spec.Type,
		Seed:        bounds.Unit(spec.Seed),
		Priority:    bounds.Unit(spec.Seed),
		Deadline:    spec.Deadline,
		Status:      GoalPending,
		Needs:       slices.Clone(spec.Needs),
		Values:      slices.Clone(spec.Values),
		About:       spec.About,
		Parent:      spec.Parent,
		Subgoals:    slices.Clone(spec.Subgoals),
		Created:     spec.Tick,
		Seq:         len(m.goals),
	}
	m.goals = append(m.goals, g)
	m.index[id] = g
	if p := m.index[spec.Parent]; p != nil {
		p.Subgoals = append(p.Subgoals, id)
	}
	for _, sub := range spec.Subgoals {
		m.index[sub].Parent = id
	}
	return id, nil
}

// AttachSubgoal makes child a subgoal of parent, with the same checks as AddGoal.
func (m *GoalManager) AttachSubgoal(parent, child GoalID) error {
	p, ok := m.index[parent]
	if !ok {
		return fmt.Errorf("%w: unknown parent %d", ErrInvalidGoal, parent)
	}
	c, ok := m.index[child]
	if !ok {
		return fmt.Errorf("%w: unknown subgoal %d", ErrInvalidGoal, child)
	}
	if parent == child || m.ancestors(parent)[child] {
		return fmt.Errorf("%w: goal %d would become its own descendant", ErrCyclicGoalGraph, child)
	}
	if c.Parent != 0 {
		return fmt.Errorf("%w: subgoal %d already has parent %d", ErrInvalidGoal, child, c.Parent)
	}
	p.Subgoals = append(p.Subgoals, child)
	c.Parent = parent
	return nil
}

// ancestors returns id and every goal above it.
func (m *GoalManager) ancestors(id GoalID) map[GoalID]bool {
	out := make(map[GoalID]bool)
	for id != 0 && !out[id] {
		out[id] = true
		g, ok := m.index[id]
		if !ok {
			break
		}
		id = g.Parent
	}
	return out
}

// Get returns a copy of a goal.
func (m *GoalManager) Get(id GoalID) (Goal, bool) {
	g, ok := m.index[id]
	if !ok {
		return Goal{}, false
	}
	return g.clone(), true
}

// Goals returns copies of every goal in insertion order.
func (m *GoalManager) Goals() []Goal {
	out := make([]Goal, len(m.goals))
	for i, g := range m.goals {
		out[i] = g.clone()
	}
	return out
}

// Len returns the number of goals, terminal ones included.
func (m *GoalManager) Len() int {
	return len(m.goals)
}

// Active returns the goal chosen by the last SelectActiveGoal, if it is still active.
func (m *GoalManager) Active() (Goal, bool) {
	g, ok := m.index[m.active]
	if !ok || g.Status != GoalActive {
		return Goal{}, false
	}
	return g.clone(), true
}

// HasOpenGoalFor reports whether a non-terminal goal is already motivated by the need.
func (m *GoalManager) HasOpenGoalFor(n NeedType) bool {
	for _, g := range m.goals {
		if !g.Status.Terminal() && slices.Contains(g.Needs, n) {
			return true
		}
	}
	return false
}

// RecomputePriorities rescales every open goal from its seed, the urgency of its motivating
// needs, its alignment with the agent's values and the agent's current emotional stance.
// Goals past their deadline are abandoned; blocked goals get another chance.
func (m *GoalManager) RecomputePriorities(needs *NeedSet, emotions *EmotionState, traits Traits, tick uint64) {
	risk, social := 1.0, 1.0
	if emotions != nil {
		risk, social = emotions.RiskTolerance(), emotions.Sociability()
	}
	for _, g := range m.goals {
		if g.Status.Terminal() {
			continue
		}
		if g.Deadline != 0 && tick > g.Deadline {
			m.abandon(g)
			continue
		}
		if g.Status == GoalBlocked {
			g.Status = GoalPending
		}

		urgency := 0.0
		if needs != nil {
			for _, n := range g.Needs {
				urgency = max(urgency, needs.Get(n).Urgency())
			}
		}

		p := g.Seed + urgency*phi.Matter + alignment(g, traits)*phi.Agnosis
		for _, v := range g.Values {
			p += traits.ValueStrength(v) * 0.1
		}
		switch g.Type {
		case GoalSurvival, GoalAvoidance:
			p += (1 - risk) * phi.Psyche
		case GoalAchievement, GoalExploration:
			p += (risk - 1) * phi.Psyche
		case GoalSocial:
			p += (social - 1) * phi.Psyche
		}
		g.Priority = bounds.Unit(p)
	}
}

// alignment is the strength-weighted mean affinity of the agent's values for the goal type.
func alignment(g *Goal, traits Traits) float64 {
	table := valueAffinity[g.Type]
	num, den := 0.0, 0.0
	for _, v := range traits.Values {
		num += v.Strength * table[v.Name]
		den += v.Strength
	}
	if den == 0 {
		return 0
	}
	return bounds.Signed(num / den)
}

// better orders goals by priority, then earliest deadline (none last), then insertion order.
func better(a, b *Goal) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Deadline != b.Deadline {
		if a.Deadline == 0 {
			return false
		}
		if b.Deadline == 0 {
			return true
		}
		return a.Deadline < b.Deadline
	}
	return a.Seq < b.Seq
}

func selectable(g *Goal) bool {
	return g.Status == GoalPending || g.Status == GoalActive
}

// Candidate returns the goal SelectActiveGoal would pick, without changing anything.
func (m *GoalManager) Candidate() (Goal, bool) {
	g := m.candidate()
	if g == nil {
		return Goal{}, false
	}
	return g.clone(), true
}

func (m *GoalManager) candidate() *Goal {
	var best *Goal
	for _, g := range m.goals {
		if selectable(g) && (best == nil || better(g, best)) {
			best = g
		}
	}
	// Work happens at the leaves: descend into the best open subgoal.
	for best != nil {
		var next *Goal
		for _, id := range best.Subgoals {
			if sub := m.index[id]; sub != nil && selectable(sub) && (next == nil || better(sub, next)) {
				next = sub
			}
		}
		if next == nil {
			break
		}
		best = next
	}
	return best
}

// SelectActiveGoal marks the best candidate active and returns it. The previously active goal,
// if different and still open, goes back to pending. Deterministic for identical state.
func (m *GoalManager) SelectActiveGoal() (Goal, bool) {
	g := m.candidate()
	if prev := m.index[m.active]; prev != nil && prev != g && prev.Status == GoalActive {
		prev.Status = GoalPending
	}
	if g == nil {
		m.active = 0
		return Goal{}, false
	}
	g.Status = GoalActive
	m.active = g.ID
	return g.clone(), true
}

// Block marks a goal blocked for this cycle.
func (m *GoalManager) Block(id GoalID) {
	if g := m.index[id]; g != nil && !g.Status.Terminal() {
		g.Status = GoalBlocked
		delete(m.plans, id)
		if m.active == id {
			m.active = 0
		}
	}
}

// Plan returns a copy of the plan currently bound to the goal.
func (m *GoalManager) Plan(id GoalID) (Plan, bool) {
	p, ok := m.plans[id]
	if !ok {
		return Plan{}, false
	}
	return *p.clone(), true
}

// PlanFor returns the goal's current plan if it is still valid under facts, otherwise builds
// a fresh one from the first applicable template. When no template applies the goal is
// blocked and ok is false.
func (m *GoalManager) PlanFor(id GoalID, facts Facts) (Plan, bool) {
	g, ok := m.index[id]
	if !ok || g.Status.Terminal() {
		return Plan{}, false
	}
	if p := m.plans[id]; p.Valid(facts) {
		return *p.clone(), true
	}
	delete(m.plans, id)

	for _, t := range planTemplates {
		if !t.matches(g) || !t.Requires.Holds(facts) {
			continue
		}
		target := g.About
		if target == 0 || !slices.Contains(facts.Company, target) {
			target = facts.Partner
		}
		if needsTarget(t) && target == 0 {
			continue
		}
		p := &Plan{Goal: id, Template: t.Name, Requires: t.Requires, Built: facts.Tick}
		for _, s := range t.Steps {
			step := PlanStep{Command: s.Command, Verb: s.Verb, Targeted: s.Targeted}
			if s.Targeted {
				step.Target = target
			}
			p.Steps = append(p.Steps, step)
		}
		m.plans[id] = p
		return *p.clone(), true
	}
	m.Block(id)
	return Plan{}, false
}

func needsTarget(t PlanTemplate) bool {
	return slices.ContainsFunc(t.Steps, func(s StepTemplate) bool { return s.Targeted })
}

// Advance records the outcome of the goal's next plan step. A failure drops the plan and
// counts against the goal, which is abandoned after phi.Completion failures. When the plan
// runs out, the goal is achieved if its condition holds; otherwise it is re-planned later.
func (m *GoalManager) Advance(id GoalID, success bool, needs *NeedSet) GoalStatus {
	g, ok := m.index[id]
	if !ok {
		return GoalAbandoned
	}
	if g.Status.Terminal() {
		return g.Status
	}
	p := m.plans[id]
	if !success {
		delete(m.plans, id)
		g.Failures++
		if g.Failures >= phi.Completion {
			m.abandon(g)
		}
		return g.Status
	}
	if p != nil && len(p.Steps) > 0 {
		p.Steps = p.Steps[1:]
	}
	if p == nil || len(p.Steps) == 0 {
		delete(m.plans, id)
		if conditionMet(g, needs) {
			g.Status = GoalAchieved
			if m.active == id {
				m.active = 0
			}
		}
	}
	return g.Status
}

// conditionMet: need-motivated goals are met once none of their needs is urgent; goals with
// no motivating need are met by completing their plan.
func conditionMet(g *Goal, needs *NeedSet) bool {
	if len(g.Needs) == 0 || needs == nil {
		return true
	}
	for _, n := range g.Needs {
		if needs.Get(n).IsUrgent() {
			return false
		}
	}
	return true
}

func (m *GoalManager) abandon(g *Goal) {
	g.Status = GoalAbandoned
	delete(m.plans, g.ID)
	if m.active == g.ID {
		m.active = 0
	}
}

// ContinuePlan returns the goal's existing plan if it is still valid, without building a new
// one. Used by reactive passes.
func (m *GoalManager) ContinuePlan(id GoalID, facts Facts) (Plan, bool) {
	g, ok := m.index[id]
	if !ok || g.Status != GoalActive {
		return Plan{}, false
	}
	p := m.plans[id]
	if !p.Valid(facts) {
		return Plan{}, false
	}
	return *p.clone(), true
}
