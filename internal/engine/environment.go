package engine

import (
	"slices"
	"sync"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/weather"
	"github.com/talgya/tavern-minds/internal/world"
)

// Environment is the default perception source: a static tavern layout, a schedule of ambient
// events, the weather, and a queue of player inputs. Safe for concurrent use.
type Environment struct {
	layout *world.Layout
	events []world.ScheduledEvent
	sky    *weather.Sky // nil keeps the weather out of perceptions

	mu     sync.Mutex
	inputs map[agents.AgentID][]string
	extra  map[uint64][]world.ScheduledEvent // One-off events injected at runtime, by tick
}

// NewEnvironment creates an environment over a layout and an ambient schedule.
func NewEnvironment(layout *world.Layout, events []world.ScheduledEvent) *Environment {
	if layout == nil {
		layout = world.NewLayout(nil, nil)
	}
	return &Environment{
		layout: layout,
		events: slices.Clone(events),
		inputs: make(map[agents.AgentID][]string),
		extra:  make(map[uint64][]world.ScheduledEvent),
	}
}

// SetSky lets the weather into perceptions. Each sim-hour's notable weather is heard at the
// turn of the hour.
func (e *Environment) SetSky(sky *weather.Sky) {
	e.mu.Lock()
	e.sky = sky
	e.mu.Unlock()
}

// Weather returns the conditions at tick, and false if there is no sky.
func (e *Environment) Weather(tick uint64) (weather.Conditions, bool) {
	e.mu.Lock()
	sky := e.sky
	e.mu.Unlock()
	if sky == nil {
		return weather.Conditions{}, false
	}
	return sky.At(tick), true
}

// Layout returns the static layout.
func (e *Environment) Layout() *world.Layout {
	return e.layout
}

// QueueInput queues raw player input for an agent's next perception.
func (e *Environment) QueueInput(agent agents.AgentID, text string) {
	e.mu.Lock()
	e.inputs[agent] = append(e.inputs[agent], text)
	e.mu.Unlock()
}

// Inject schedules a one-off event.
func (e *Environment) Inject(ev world.ScheduledEvent) {
	ev.Every = 0
	e.mu.Lock()
	e.extra[ev.At] = append(e.extra[ev.At], ev)
	e.mu.Unlock()
}

// takeInput pops the oldest queued input for an agent.
func (e *Environment) takeInput(agent agents.AgentID) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	q := e.inputs[agent]
	if len(q) == 0 {
		return ""
	}
	e.inputs[agent] = q[1:]
	if len(e.inputs[agent]) == 0 {
		delete(e.inputs, agent)
	}
	return q[0]
}

// EventsAt returns the ambient events perceivable at a location on a tick.
func (e *Environment) EventsAt(tick uint64, location string) []agents.AmbientEvent {
	e.mu.Lock()
	scheduled := append(slices.Clone(e.events), e.extra[tick]...)
	sky := e.sky
	e.mu.Unlock()
	if sky != nil && tick%weather.TicksPerHour == 0 {
		scheduled = append(scheduled, sky.At(tick).Events(tick)...)
	}

	loc, ok := e.layout.Location(location)
	if !ok {
		loc = world.Location{Name: location}
	}
	var out []agents.AmbientEvent
	for _, ev := range scheduled {
		if !ev.Due(tick) || !ev.AppliesTo(loc) {
			continue
		}
		out = append(out, agents.AmbientEvent{
			Kind:           ev.Kind,
			Description:    ev.Description,
			Valence:        ev.Valence,
			Unexpectedness: ev.Unexpectedness,
			Relevance:      ev.Relevance,
		})
	}
	return out
}

// Forget drops one-off events older than tick.
func (e *Environment) Forget(tick uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for t := range e.extra {
		if t < tick {
			delete(e.extra, t)
		}
	}
}

// Perceive builds an agent's perception for a tick. Visible agents and rumors come from the
// simulation's frozen snapshot.
func (e *Environment) Perceive(tick uint64, a *agents.Agent, visible []agents.VisibleAgent, rumors []agents.Rumor) agents.Perception {
	name, coord := a.Location()
	p := agents.Perception{
		Tick:          tick,
		Location:      name,
		Coord:         coord,
		VisibleAgents: visible,
		Input:         e.takeInput(a.ID),
		Events:        e.EventsAt(tick, name),
		Rumors:        rumors,
	}
	if loc, ok := e.layout.Location(name); ok {
		p.LocationTags = slices.Clone(loc.Tags)
		p.Coord = loc.Coord
	}
	return p
}

// Scene describes where an action is resolved.
type Scene struct {
	Tick     uint64
	Location world.Location
	Present  []agents.AgentID // Sorted; excludes the actor
	Events   []agents.AmbientEvent
}

// HasPresent reports whether id is at the scene.
func (s Scene) HasPresent(id agents.AgentID) bool {
	_, found := slices.BinarySearch(s.Present, id)
	return found
}

// HasEvent reports whether an event of kind is happening at the scene.
func (s Scene) HasEvent(kind string) bool {
	return slices.ContainsFunc(s.Events, func(e agents.AmbientEvent) bool { return e.Kind == kind })
}
