package agents

// StateSummary is the read-only view handed to an external dialogue renderer. It carries no
// prose of its own.
type StateSummary struct {
	Agent            AgentID            `json:"agent"`
	Name             string             `json:"name"`
	Archetype        string             `json:"archetype,omitempty"`
	Tick             uint64             `json:"tick"`
	Location         string             `json:"location"`
	DominantEmotion  string             `json:"dominant_emotion,omitempty"`
	EmotionIntensity float64            `json:"emotion_intensity"`
	Mood             Mood               `json:"mood"`
	ActiveGoal       string             `json:"active_goal,omitempty"`
	GoalType         string             `json:"goal_type,omitempty"`
	Memories         []string           `json:"memories,omitempty"`
	Traits           map[string]float64 `json:"traits"`
	Values           []Value            `json:"values,omitempty"`
	Interlocutor     AgentID            `json:"interlocutor,omitempty"`
	Attitude         *Attitude          `json:"attitude,omitempty"`
	Expectation      string             `json:"expectation,omitempty"`
}

// Summary builds the dialogue view at tick now: dominant emotion, mood, active goal, the k
// most accessible memories, traits, and the attitude toward the interlocutor if one is given.
// It reads without reinforcing anything.
func (a *Agent) Summary(now uint64, interlocutor AgentID, social RelationshipReader, k int) StateSummary {
	s := StateSummary{
		Agent:     a.ID,
		Name:      a.Name,
		Archetype: a.Archetype,
		Tick:      now,
		Location:  a.location,
		Mood:      a.emotions.Mood(),
		Traits:    make(map[string]float64, NumTraits),
		Values:    a.traits.Clone().Values,
	}
	if e, ok := a.emotions.Dominant(); ok {
		s.DominantEmotion = e.Type.String()
		s.EmotionIntensity = e.Intensity
	}
	if g, ok := a.goals.Active(); ok {
		s.ActiveGoal = g.Description
		s.GoalType = g.Type.String()
	}
	for _, m := range a.memory.MostAccessible(now, k) {
		s.Memories = append(s.Memories, m.Content)
	}
	for i, v := range a.traits.Axes {
		s.Traits[TraitAxis(i).String()] = v
	}
	if interlocutor != 0 {
		s.Interlocutor = interlocutor
		if social != nil {
			if att, ok := social.Attitude(a.ID, interlocutor); ok {
				s.Attitude = &att
			}
		}
		s.Expectation = a.beliefs.PredictBehavior(interlocutor, a.location)
	}
	return s
}
