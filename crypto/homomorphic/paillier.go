package homomorphic

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/roasbeef/go-go-gadget-paillier"
)

var (
	// ErrNoPrivateKey is returned when decryption is attempted on a scheme
	// initialised from the election public key only.
	ErrNoPrivateKey = errors.New("paillier: scheme holds no private key")
)

// Paillier is the additive-homomorphic scheme backing the running tally:
// multiplying two ciphertexts modulo n² yields the encryption of the sum of
// the plaintext votes. Ordinary nodes hold only the election public key;
// the tallying authority additionally holds the private key.
type Paillier struct {
	pub  *paillier.PublicKey
	priv *paillier.PrivateKey
}

// NewPaillier generates a fresh key pair of the given modulus size. Only
// the tallying authority does this; everyone else derives the scheme from
// the genesis configuration's election public key.
func NewPaillier(bits int) (*Paillier, error) {
	priv, err := paillier.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &Paillier{pub: &priv.PublicKey, priv: priv}, nil
}

// NewPaillierVerifier derives an add-only scheme from the election public
// key (the hex encoded modulus n published in the genesis configuration).
func NewPaillierVerifier(modulusHex string) (*Paillier, error) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(modulusHex, "0x"), 16)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("paillier: malformed election public key %q", modulusHex)
	}
	nSquared := new(big.Int).Mul(n, n)
	g := new(big.Int).Add(n, big.NewInt(1))
	return &Paillier{
		pub: &paillier.PublicKey{N: n, G: g, NSquared: nSquared},
	}, nil
}

// PublicModulusHex returns the hex encoded public modulus n, the form the
// election public key takes in the genesis configuration.
func (p *Paillier) PublicModulusHex() string {
	return p.pub.N.Text(16)
}

// Add combines two ciphertexts into the encryption of the sum of their
// plaintexts. An empty ciphertext is the neutral element.
func (p *Paillier) Add(c1, c2 []byte) ([]byte, error) {
	if len(c1) == 0 {
		return c2, nil
	}
	if len(c2) == 0 {
		return c1, nil
	}
	return paillier.AddCipher(p.pub, c1, c2), nil
}

// VerifyBallot checks that the ciphertext is a valid group element modulo
// n². The zero-knowledge range proof is validated by the election
// authority before the ballot is signed; the consensus layer only guards
// the algebra the tally depends on.
func (p *Paillier) VerifyBallot(ciphertext, proof []byte) bool {
	if len(ciphertext) == 0 {
		return false
	}
	c := new(big.Int).SetBytes(ciphertext)
	return c.Sign() > 0 && c.Cmp(p.pub.NSquared) < 0
}

// EncryptVote encrypts a single vote value, e.g. 0 or 1 for a yes/no
// election.
func (p *Paillier) EncryptVote(vote uint64) ([]byte, error) {
	return paillier.Encrypt(p.pub, new(big.Int).SetUint64(vote).Bytes())
}

// DecryptTally opens the final tally ciphertext. Requires the private key.
func (p *Paillier) DecryptTally(ciphertext []byte) (uint64, error) {
	if p.priv == nil {
		return 0, ErrNoPrivateKey
	}
	if len(ciphertext) == 0 {
		return 0, nil
	}
	plain, err := paillier.Decrypt(p.priv, ciphertext)
	if err != nil {
		return 0, err
	}
	return new(big.Int).SetBytes(plain).Uint64(), nil
}
