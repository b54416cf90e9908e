package engine

import "errors"

// ErrTickAborted is returned by Step when the tick's context is cancelled. Agents that
// finished their cycle before the cancellation stay committed.
var ErrTickAborted = errors.New("tick aborted")
