// Copyright © 2018 Kowala SEZC <info@kowala.tech>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/rlp"
)

// HashLength is the expected length of a digest in bytes.
const HashLength = 32

// Hash represents the 32 byte SHA-256 digest of arbitrary data.
type Hash [HashLength]byte

// BytesToHash converts b to a hash, left-padding it if necessary.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hex string representation of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements the stringer interface.
func (h Hash) String() string { return h.Hex() }

// SHA256 calculates the SHA-256 digest of the input data.
func SHA256(data ...[]byte) Hash {
	d := sha256.New()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}

// RLPHash is the SHA-256 digest of the canonical RLP encoding of x. It is
// the hashing scheme used for every chain artefact (genesis configuration,
// headers, blocks, ballots).
func RLPHash(x interface{}) (h Hash) {
	d := sha256.New()
	rlp.Encode(d, x)
	d.Sum(h[:0])
	return h
}
