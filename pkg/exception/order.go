package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderUnknownAction = errors.New("order: unknown action")
	ErrOrderInvalidQty    = errors.New("order: invalid quantity")
	ErrAccountNotFound    = errors.New("order: account not found")
	ErrRiskRejected       = errors.New("order: rejected by risk gate")
	ErrUnknownOrder       = errors.New("order: not found")
	ErrDuplicateOrder     = errors.New("order: already exists")
	ErrInvalidTransition  = errors.New("order: invalid state transition")
)
