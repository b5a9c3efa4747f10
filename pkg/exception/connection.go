package exception

import "github.com/yanun0323/errors"

// Session errors
var (
	ErrMalformedMessage     = errors.New("session: malformed message")
	ErrSendFailure          = errors.New("session: send failure")
	ErrLockUnavailable      = errors.New("session: lock unavailable")
	ErrConnectionTerminated = errors.New("session: connection terminated")
	ErrReconnectStorm       = errors.New("session: too many fast reconnects")
	ErrInterrupted          = errors.New("session: interrupted")
)
