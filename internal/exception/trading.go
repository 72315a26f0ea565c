package exception

import "errors"

var (
	// ErrAuthRejected means the broker refused the credential exchange for a
	// non-transient reason. Fatal to the current cycle.
	ErrAuthRejected = errors.New("broker: authentication rejected")

	// ErrUnauthorized is a per-request authorization failure. The caller
	// forces a session refresh and retries.
	ErrUnauthorized = errors.New("broker: unauthorized")

	// ErrBadDataRequest is a malformed or not-found data request. Aborts the
	// fetch immediately, no retry.
	ErrBadDataRequest = errors.New("broker: bad data request")

	ErrSizeTooSmall     = errors.New("risk: position size below minimum unit")
	ErrInvalidRiskRange = errors.New("executor: stop and target must differ")
	ErrUnknownMarket    = errors.New("executor: no metadata for market")
)
