package exception

import "github.com/yanun0323/errors"

var (
	ErrCredentialRejected = errors.New("credential: request rejected")
	ErrCredentialExpired  = errors.New("credential: token expired")
	ErrCredentialEmpty    = errors.New("credential: empty token")
)

var (
	ErrNotifyFailed   = errors.New("notify: delivery failed")
	ErrNotifyDisabled = errors.New("notify: sender disabled")
)
