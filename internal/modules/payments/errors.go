package payments

import "errors"

var (
	ErrUnknownReference   = errors.New("unknown client reference")
	ErrDuplicateReference = errors.New("duplicate client reference")
	ErrConflict           = errors.New("record already transitioned")
	ErrGatewayUnavailable = errors.New("provider gateway unavailable")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidProvider    = errors.New("invalid provider")
)
