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
	"crypto/ecdsa"
	"encoding/hex"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the byte length of a secp256k1 signature in the
// [R || S || V] format.
const SignatureLength = 65

// Sign calculates a secp256k1 signature of the given digest.
func Sign(digest Hash, prv *ecdsa.PrivateKey) ([]byte, error) {
	return ethcrypto.Sign(digest.Bytes(), prv)
}

// SigToPub recovers the public key that produced the given signature.
func SigToPub(digest Hash, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, ErrInvalidSignatureLen
	}
	return ethcrypto.SigToPub(digest.Bytes(), sig)
}

// VerifySignature reports whether sig is a valid signature of digest by the
// holder of pub.
func VerifySignature(pub *ecdsa.PublicKey, digest Hash, sig []byte) bool {
	if len(sig) != SignatureLength {
		return false
	}
	recovered, err := ethcrypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return false
	}
	return recovered.X.Cmp(pub.X) == 0 && recovered.Y.Cmp(pub.Y) == 0
}

// GenerateKey generates a fresh secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ethcrypto.GenerateKey()
}

// LoadECDSA loads a secp256k1 private key from the given hex encoded file.
func LoadECDSA(file string) (*ecdsa.PrivateKey, error) {
	return ethcrypto.LoadECDSA(file)
}

// PubKeyToHex encodes a public key as compressed hex, the representation
// used for sealer keys in the genesis configuration.
func PubKeyToHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(ethcrypto.CompressPubkey(pub))
}

// HexToPubKey decodes a compressed hex public key.
func HexToPubKey(s string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	return ethcrypto.DecompressPubkey(raw)
}
