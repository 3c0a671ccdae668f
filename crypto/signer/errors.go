package signer

import "errors"

var (
	// ErrMissingSignature is returned if a block carries no seal signature.
	ErrMissingSignature = errors.New("block is missing the seal signature")

	// ErrInvalidSignature is returned if the seal signature cannot be
	// recovered to a public key.
	ErrInvalidSignature = errors.New("invalid seal signature")

	// ErrUnknownSealer is returned by the production signer if the block
	// proposer has no registered public key.
	ErrUnknownSealer = errors.New("no public key registered for proposer")

	// ErrSealMismatch is returned if the seal was produced by a key other
	// than the proposer's registered one.
	ErrSealMismatch = errors.New("seal signature does not match the proposer's key")
)
