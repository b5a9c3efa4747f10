package exception

import "github.com/yanun0323/errors"

var (
	ErrContractNotFound = errors.New("market data: contract not found")
	ErrProductNotFound  = errors.New("market data: product not found")
)
