// Package homomorphic holds the capability interfaces through which the
// consensus layer consumes the vote encryption scheme. The proof and
// encryption math lives with the election authority; the node only ever
// folds opaque ciphertexts and asks whether a ballot is well formed.
package homomorphic

// Adder folds ballot ciphertexts into a running encrypted tally.
type Adder interface {
	// Add combines two ciphertexts into the encryption of the sum of their
	// plaintexts. An empty ciphertext is the neutral element, so the fold
	// over an empty chain yields an empty tally.
	Add(c1, c2 []byte) ([]byte, error)
}

// BallotVerifier checks the zero-knowledge well-formedness proof of a
// ballot ciphertext.
type BallotVerifier interface {
	VerifyBallot(ciphertext, proof []byte) bool
}

// VerifierFunc adapts a plain function to the BallotVerifier interface.
type VerifierFunc func(ciphertext, proof []byte) bool

// VerifyBallot calls f.
func (f VerifierFunc) VerifyBallot(ciphertext, proof []byte) bool {
	return f(ciphertext, proof)
}

// AcceptAll waves every ballot through. Dev networks without an election
// public key run with this.
var AcceptAll = VerifierFunc(func(ciphertext, proof []byte) bool { return true })

// NopAdder keeps the tally ciphertext empty and only lets the vote counter
// advance. Used on dev networks whose genesis configuration carries no
// election public key.
type NopAdder struct{}

// Add returns the empty ciphertext.
func (NopAdder) Add(c1, c2 []byte) ([]byte, error) { return nil, nil }
