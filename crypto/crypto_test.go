package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLPHashIsDeterministic(t *testing.T) {
	type payload struct {
		A uint64
		B []byte
	}
	assert.Equal(t, RLPHash(payload{1, []byte("x")}), RLPHash(payload{1, []byte("x")}))
	assert.NotEqual(t, RLPHash(payload{1, []byte("x")}), RLPHash(payload{2, []byte("x")}))
}

func TestSignAndRecover(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	digest := SHA256([]byte("payload"))
	sig, err := Sign(digest, key)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)

	assert.True(t, VerifySignature(&key.PublicKey, digest, sig))

	recovered, err := SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.X, recovered.X)
	assert.Equal(t, key.PublicKey.Y, recovered.Y)

	// a different digest must not verify under the same signature.
	assert.False(t, VerifySignature(&key.PublicKey, SHA256([]byte("other")), sig))
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	digest := SHA256([]byte("payload"))
	sig, err := Sign(digest, key)
	require.NoError(t, err)

	assert.False(t, VerifySignature(&other.PublicKey, digest, sig))
}

func TestPubKeyHexRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	hex := PubKeyToHex(&key.PublicKey)
	decoded, err := HexToPubKey(hex)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.X, decoded.X)
	assert.Equal(t, key.PublicKey.Y, decoded.Y)

	_, err = HexToPubKey("02zz")
	assert.Error(t, err)
}

func TestHashHelpers(t *testing.T) {
	h := BytesToHash([]byte{0x01, 0x02})
	// short input is left padded into the fixed width array.
	assert.Equal(t, byte(0x01), h[HashLength-2])
	assert.Equal(t, byte(0x02), h[HashLength-1])
	assert.Equal(t, h, BytesToHash(h.Bytes()))
	assert.NotEmpty(t, h.String())
}
