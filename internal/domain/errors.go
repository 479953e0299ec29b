package domain

import "errors"

var (
	ErrUnsupportedValue   = errors.New("unsupported value")
	ErrMissingCommitment  = errors.New("missing commitment")
	ErrSignatureMalformed = errors.New("signature malformed")
	ErrIdentityMismatch   = errors.New("identity mismatch")
	ErrCommitmentMismatch = errors.New("commitment mismatch")
	ErrAnchorFailed       = errors.New("anchor failed")
	ErrExternalTool       = errors.New("external tool failed")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrNotFound           = errors.New("not found")
)
