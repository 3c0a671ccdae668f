package crypto

import "errors"

var (
	// ErrInvalidSignatureLen signals a signature of the wrong byte length.
	ErrInvalidSignatureLen = errors.New("signature must be 65 bytes long")
)
