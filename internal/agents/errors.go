package agents

import "errors"

var (
	// ErrInvalidConfig is returned when seed data is out of range at construction time.
	ErrInvalidConfig = errors.New("invalid agent configuration")

	// ErrCyclicGoalGraph is returned when a goal insertion would make a goal its own ancestor.
	ErrCyclicGoalGraph = errors.New("cyclic goal graph")

	// ErrInvalidGoal is returned for duplicate goal IDs or references to unknown goals.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrMalformedPerception is reported when a perception lacks its location or time.
	ErrMalformedPerception = errors.New("malformed perception")

	// ErrCycleBudgetExceeded is the cancellation cause used for a cycle's soft time budget.
	ErrCycleBudgetExceeded = errors.New("cycle time budget exceeded")
)
