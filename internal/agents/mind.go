package agents

import (
	"fmt"
	"strconv"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// Observation is one remembered sighting of another agent's behaviour.
type Observation struct {
	Command   Command `json:"command"`
	Situation string  `json:"situation"`
	Tick      uint64  `json:"tick"`
}

// MindModel is an agent's theory of mind about one other agent: a nested belief store plus
// the perceived personality and observed history it is derived from.
type MindModel struct {
	Target    AgentID            `json:"target"`
	Beliefs   *BeliefStore       `json:"-"`
	Perceived [NumTraits]float64 `json:"perceived"`
	History   []Observation      `json:"history,omitempty"`
}

// traitSignals is how much each observed command says about each personality axis.
var traitSignals = map[Command][NumTraits]float64{
	CmdConverse:   {Extraversion: 1, Agreeableness: 0.5},
	CmdApproach:   {Extraversion: 0.8},
	CmdShareRumor: {Extraversion: 0.5, Agreeableness: -0.5},
	CmdWork:       {Conscientiousness: 1},
	CmdPerform:    {Extraversion: 0.8, Openness: 0.5},
	CmdCompose:    {Openness: 1},
	CmdWander:     {Openness: 0.8},
	CmdObserve:    {Openness: 0.5, Extraversion: -0.3},
	CmdWithdraw:   {Extraversion: -0.8, Neuroticism: 0.5},
	CmdRetreat:    {Neuroticism: 1},
	CmdHide:       {Neuroticism: 0.8},
	CmdStayAlert:  {Conscientiousness: 0.3, Neuroticism: 0.3},
}

func newMindModel(target AgentID, tick uint64) *MindModel {
	m := &MindModel{Target: target, Beliefs: NewBeliefStore()}
	for i := range m.Perceived {
		m.Perceived[i] = 0.5
		m.Beliefs.Add(BeliefProbability, traitSubject(TraitAxis(i)), "0.50", 0.5, "default", tick)
	}
	return m
}

func traitSubject(t TraitAxis) string {
	return "trait:" + t.String()
}

// Observe records a sighting of the target doing cmd and nudges the perceived traits.
func (m *MindModel) Observe(cmd Command, situation string, tick uint64) {
	if cmd == "" {
		return
	}
	m.History = append(m.History, Observation{Command: cmd, Situation: situation, Tick: tick})
	m.Beliefs.Add(BeliefFact, "last-seen", string(cmd), 1, situation, tick)

	signal, ok := traitSignals[cmd]
	if !ok {
		return
	}
	// Confidence in the perceived profile grows with the number of sightings.
	conf := bounds.Unit(0.5 + 0.5*(1-pow(phi.Matter, len(m.History))))
	for i, s := range signal {
		if s == 0 {
			continue
		}
		target := 0.5 + 0.5*s
		m.Perceived[i] = bounds.Unit(m.Perceived[i] + (target-m.Perceived[i])*phi.Agnosis)
		m.Beliefs.Add(BeliefProbability, traitSubject(TraitAxis(i)),
			strconv.FormatFloat(m.Perceived[i], 'f', 2, 64), conf, string(cmd), tick)
	}
}

// Predict returns a textual prediction of what the target will do in a situation.
// Pure: identical model state and situation always give the same answer.
func (m *MindModel) Predict(situation string) string {
	if cmd, n, total := m.mostFrequent(situation); n > 0 {
		return fmt.Sprintf("likely to %s (seen %d of %d times when %s)", cmd, n, total, situation)
	}
	if cmd, n, total := m.mostFrequent(""); n > 0 {
		return fmt.Sprintf("likely to %s (seen %d of %d times)", cmd, n, total)
	}

	best, bestAxis := 0.6, -1
	for i, v := range m.Perceived {
		if v > best {
			best, bestAxis = v, i
		}
	}
	switch TraitAxis(bestAxis) {
	case Extraversion:
		return "probably seeks company"
	case Conscientiousness:
		return "probably keeps working"
	case Neuroticism:
		return "probably keeps to themselves"
	case Openness:
		return "probably wanders about"
	case Agreeableness:
		return "probably goes along with others"
	}
	return "unpredictable: too little observed"
}

// mostFrequent finds the command seen most often in the situation ("" matches all).
// Ties go to the most recently seen command.
func (m *MindModel) mostFrequent(situation string) (Command, int, int) {
	counts := make(map[Command]int)
	last := make(map[Command]int)
	total := 0
	for i, o := range m.History {
		if situation != "" && o.Situation != situation {
			continue
		}
		counts[o.Command]++
		last[o.Command] = i
		total++
	}
	var best Command
	bestN := 0
	for cmd, n := range counts {
		if n > bestN || (n == bestN && last[cmd] > last[best]) {
			best, bestN = cmd, n
		}
	}
	return best, bestN, total
}

func pow(base float64, n int) float64 {
	r := 1.0
	for range n {
		r *= base
	}
	return r
}

// MindOf returns the model of another agent, creating it with neutral defaults if absent.
func (s *BeliefStore) MindOf(id AgentID, tick uint64) *MindModel {
	m, ok := s.minds[id]
	if !ok {
		m = newMindModel(id, tick)
		s.minds[id] = m
	}
	return m
}

// HasMindOf reports whether a model of the agent exists.
func (s *BeliefStore) HasMindOf(id AgentID) bool {
	_, ok := s.minds[id]
	return ok
}

// PredictBehavior predicts another agent's behaviour from the stored model.
// Does not create a model; unknown agents get a fixed answer.
func (s *BeliefStore) PredictBehavior(id AgentID, situation string) string {
	m, ok := s.minds[id]
	if !ok {
		return "unknown: never observed"
	}
	return m.Predict(situation)
}
