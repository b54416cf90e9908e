// Package engine drives the tavern forward: the tick loop, the scheduler that decides who
// thinks and how hard, the environment agents perceive, and the resolver that turns their
// actions into outcomes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Tick cadences. One tick is one sim-minute.
const (
	TicksPerSimHour = 60   // 60 ticks = 1 sim-hour
	TicksPerSimDay  = 1440 // 24 hours × 60
)

// Cadence is a callback run every Period ticks, after that tick's step.
type Cadence struct {
	Name   string
	Period uint64
	Fn     func(ctx context.Context, tick uint64) error
}

// Engine is the tick loop. Each tick calls Step, then every cadence whose period divides the
// tick, then sleeps out the rest of the interval adjusted for speed.
type Engine struct {
	Interval time.Duration // Base tick interval; zero runs as fast as possible
	MaxTicks uint64        // Stop after this many ticks; zero runs until cancelled

	// Step advances the simulation. An error wrapping ErrTickAborted ends Run quietly.
	Step func(ctx context.Context, tick uint64) error
	// OnError decides whether a step error stops the loop. Nil stops on every error.
	OnError func(tick uint64, err error) error

	mu       sync.Mutex
	tick     uint64
	speed    float64
	paused   bool
	cadences []Cadence
	wake     chan struct{}
}

// NewEngine creates an engine resuming after tick start.
func NewEngine(start uint64, step func(ctx context.Context, tick uint64) error) *Engine {
	return &Engine{
		Interval: time.Second,
		Step:     step,
		tick:     start,
		speed:    1.0,
		wake:     make(chan struct{}, 1),
	}
}

// Every registers a cadence. A zero period is ignored.
func (e *Engine) Every(name string, period uint64, fn func(ctx context.Context, tick uint64) error) {
	if period == 0 || fn == nil {
		return
	}
	e.mu.Lock()
	e.cadences = append(e.cadences, Cadence{Name: name, Period: period, Fn: fn})
	e.mu.Unlock()
}

// Tick returns the last completed tick.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// SetSpeed sets the speed multiplier: 1.0 is real time, 0 pauses.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	e.speed = max(speed, 0)
	e.mu.Unlock()
	e.poke()
}

// Speed returns the speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// Pause stops advancing ticks until Resume.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume continues after Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.poke()
}

// Paused reports whether the loop is held, by Pause or by a zero speed.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused || e.speed <= 0
}

func (e *Engine) poke() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run loops until ctx is done, MaxTicks is reached, or a step error is not absorbed by
// OnError. Cancellation is not an error.
func (e *Engine) Run(ctx context.Context) error {
	start := e.Tick()
	slog.Info("simulation engine started", "tick", start, "speed", e.Speed())
	defer func() { slog.Info("simulation engine stopped", "tick", e.Tick()) }()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if e.MaxTicks > 0 && e.Tick()-start >= e.MaxTicks {
			return nil
		}
		if e.Paused() {
			select {
			case <-ctx.Done():
				return nil
			case <-e.wake:
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		began := time.Now()
		next := e.Tick() + 1
		if err := e.step(ctx, next); err != nil {
			if errors.Is(err, ErrTickAborted) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		target := time.Duration(float64(e.Interval) / max(e.Speed(), 1e-9))
		if wait := target - time.Since(began); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
	}
}

// step advances one tick and fires the due cadences.
func (e *Engine) step(ctx context.Context, tick uint64) error {
	if e.Step != nil {
		if err := e.Step(ctx, tick); err != nil {
			if errors.Is(err, ErrTickAborted) || e.OnError == nil {
				e.setTick(tick)
				return err
			}
			if err := e.OnError(tick, err); err != nil {
				e.setTick(tick)
				return err
			}
		}
	}
	e.setTick(tick)

	e.mu.Lock()
	due := make([]Cadence, 0, len(e.cadences))
	for _, c := range e.cadences {
		if tick%c.Period == 0 {
			due = append(due, c)
		}
	}
	e.mu.Unlock()
	for _, c := range due {
		if err := c.Fn(ctx, tick); err != nil {
			return fmt.Errorf("%s at tick %d: %w", c.Name, tick, err)
		}
	}
	return nil
}

func (e *Engine) setTick(tick uint64) {
	e.mu.Lock()
	e.tick = tick
	e.mu.Unlock()
}

// SimTime renders a tick as tavern time.
func SimTime(tick uint64) string {
	minutes := tick % 60
	hours := (tick / TicksPerSimHour) % 24
	day := tick/TicksPerSimDay + 1
	return fmt.Sprintf("Day %d, %d:%02d", day, hours, minutes)
}
