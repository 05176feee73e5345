package moderation

import "errors"

var (
	// ErrStorageUnavailable aborts the requested action; nothing was recorded.
	ErrStorageUnavailable = errors.New("moderation storage unavailable")
	// ErrSchedulingFailure means the action was recorded but its expiry is not enforced.
	ErrSchedulingFailure = errors.New("moderation timeout not scheduled")
	ErrUnknownAction     = errors.New("unknown moderation action")
	ErrInvalidTimeout    = errors.New("moderation timeout must be at least one second")
)
