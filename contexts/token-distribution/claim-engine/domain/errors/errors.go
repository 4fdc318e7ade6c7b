package errors

import "errors"

var (
	ErrUnauthorized             = errors.New("caller is not the drop owner")
	ErrNotParticipant           = errors.New("caller has no entitlement")
	ErrClaimed                  = errors.New("entitlement already claimed")
	ErrInvalidProof             = errors.New("merkle proof does not match root")
	ErrTransferFailed           = errors.New("asset transfer failed")
	ErrInvalidInput             = errors.New("invalid input")
	ErrDropNotInitialized       = errors.New("drop is not initialized")
	ErrTokenNotSet              = errors.New("asset token is not set")
	ErrBalanceUnavailable       = errors.New("asset ledger does not report balances")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)
