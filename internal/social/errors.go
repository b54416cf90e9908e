package social

import "errors"

var (
	// ErrGraphCorrupt means a batch would leave a relationship or reputation value outside its
	// range. The batch is discarded and nothing in it is applied.
	ErrGraphCorrupt = errors.New("social graph corrupt")

	// ErrUnknownArtifact is returned for an artifact ID the engine has never seen.
	ErrUnknownArtifact = errors.New("unknown cultural artifact")

	// ErrSelfRelationship is returned when an agent is paired with itself.
	ErrSelfRelationship = errors.New("agent cannot relate to itself")

	// ErrUnknownGroup is returned for a reputation group ID the engine has never seen.
	ErrUnknownGroup = errors.New("unknown reputation group")
)
