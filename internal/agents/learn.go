package agents

import (
	"slices"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// ProcessOutcome is the learning step: the environment reports how an action turned out and
// the agent updates needs, emotions, beliefs, memory and its plan. It returns the relationship
// changes the agent wants made; the caller forwards them to the social engine.
func (a *Agent) ProcessOutcome(action Action, out Outcome, tick uint64) []Interaction {
	a.state = StateLearning
	defer func() { a.state = StateIdle }()

	var interactions []Interaction
	sawEvent := false
	for _, e := range out.Effects {
		switch e.Kind {
		case EffectNeed:
			a.needs.Satisfy(e.Need, e.Amount)
		case EffectMove:
			if e.Location != "" {
				a.location, a.coord = e.Location, e.Coord
			}
		case EffectEvent:
			sawEvent = true
			unexpected := 0.2
			if !out.Success {
				unexpected = 0.6
			}
			a.emotions.Appraise(AppraisalEvent{
				Description:    e.Description,
				Valence:        e.Amount,
				Unexpectedness: unexpected,
				Relevance:      0.8,
			}, tick)
			if e.Other != 0 && e.Other != a.ID {
				interactions = append(interactions, Interaction{
					From:     a.ID,
					To:       e.Other,
					Affinity: bounds.Signed(e.Amount * phi.Agnosis),
					Trust:    bounds.Signed(e.Amount * phi.Agnosis * 0.5),
					Reason:   e.Description,
				})
			}
		}
	}
	if !sawEvent {
		ev := AppraisalEvent{Description: action.Description, Valence: 0.3, Unexpectedness: 0.1, Relevance: 0.4}
		if !out.Success {
			ev = AppraisalEvent{Description: action.Description, Valence: -0.3, Unexpectedness: 0.5, Relevance: 0.5}
		}
		a.emotions.Appraise(ev, tick)
	}
	a.emotions.UpdateMood(tick)

	verdict, conf := "yes", 0.8
	if !out.Success {
		verdict, conf = "no", 0.2
	}
	a.beliefs.Add(BeliefAbility, "can:"+string(action.Command), verdict, conf, "outcome", tick)

	valence, importance := 0.3, 0.3
	tags := []string{string(action.Command), "outcome", "success"}
	content := action.Description + " and it went well"
	if !out.Success {
		valence = -0.3
		tags[2] = "failure"
		content = action.Description + " but it came to nothing"
	}
	if action.Involves() {
		importance += 0.2
	}
	a.memory.Add(EpisodicInput{
		Content:      content,
		Participants: nonZero(action.Target),
		Location:     a.location,
		Tick:         tick,
		Valence:      valence,
		Intensity:    0.4,
		Importance:   importance,
		Tags:         tags,
	})

	if action.Goal != 0 {
		a.goals.Advance(action.Goal, out.Success, &a.needs)
	}

	if action.Involves() {
		sociability := a.emotions.Sociability()
		in := Interaction{From: a.ID, To: action.Target, Reason: string(action.Command)}
		if out.Success {
			in.Affinity = 0.05 * sociability
			in.Trust = 0.02
			in.Respect = 0.01
			if slices.Contains([]Command{CmdWithdraw, CmdRetreat}, action.Command) {
				in.Affinity = -0.05
			}
		} else {
			in.Affinity = -0.03
			in.Trust = -0.02
		}
		interactions = append(interactions, in)
	}
	return interactions
}
