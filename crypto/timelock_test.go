package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/drand/kyber/pairing/bn254"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelockRoundTrip(t *testing.T) {
	secret, masterPub, err := NewMasterKey()
	require.NoError(t, err)

	tl := NewTimelockFromPoint(masterPub)
	msg := []byte("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi")

	const height = 1042
	ct, err := tl.EncryptToHeight(msg, height)
	require.NoError(t, err)
	require.Len(t, ct.V, 32)
	require.Len(t, ct.W, len(msg))

	// The network releases the identity key once the chain reaches the
	// target height; simulate that with the master secret.
	idKey := IdentityKey(secret, BlockIdentity(height))

	got, err := IBEDecrypt(bn254.NewSuite(), idKey, ct)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestTimelockWrongHeightFails(t *testing.T) {
	secret, masterPub, err := NewMasterKey()
	require.NoError(t, err)

	tl := NewTimelockFromPoint(masterPub)
	ct, err := tl.EncryptToHeight([]byte("payload"), 500)
	require.NoError(t, err)

	wrongKey := IdentityKey(secret, BlockIdentity(501))
	_, err = IBEDecrypt(bn254.NewSuite(), wrongKey, ct)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestTimelockTamperedCiphertextFails(t *testing.T) {
	secret, masterPub, err := NewMasterKey()
	require.NoError(t, err)

	tl := NewTimelockFromPoint(masterPub)
	ct, err := tl.EncryptToHeight([]byte("payload"), 7)
	require.NoError(t, err)

	ct.W[0] ^= 0x01
	idKey := IdentityKey(secret, BlockIdentity(7))
	_, err = IBEDecrypt(bn254.NewSuite(), idKey, ct)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSolidityEncoding(t *testing.T) {
	_, masterPub, err := NewMasterKey()
	require.NoError(t, err)

	tl := NewTimelockFromPoint(masterPub)
	ct, err := tl.EncryptToHeight([]byte{0xde, 0xad, 0xbe, 0xef}, 9)
	require.NoError(t, err)

	sol, err := ct.Solidity()
	require.NoError(t, err)

	for _, limb := range []string{sol.U.X[0], sol.U.X[1], sol.U.Y[0], sol.U.Y[1]} {
		assert.NotEmpty(t, limb)
	}
	assert.Equal(t, "0x", sol.V[:2])
	assert.Equal(t, "0x", sol.W[:2])
	// W carries one byte of mask output per plaintext byte.
	assert.Len(t, sol.W, 2+2*4)
}

func TestNewTimelockParsesMarshaledKey(t *testing.T) {
	_, masterPub, err := NewMasterKey()
	require.NoError(t, err)

	raw, err := masterPub.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, 128)

	tl, err := NewTimelock(hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.True(t, tl.masterPub.Equal(masterPub))
}

func TestMaskExpandCoversLongMessages(t *testing.T) {
	sigma := make([]byte, 32)
	mask := maskExpand(sigma, 100)
	assert.Len(t, mask, 100)
	// Distinct counter blocks must differ.
	assert.NotEqual(t, mask[:32], mask[32:64])
}

func TestBlockIdentityDistinct(t *testing.T) {
	assert.NotEqual(t, BlockIdentity(1), BlockIdentity(2))
	assert.Len(t, BlockIdentity(1), 32)
}
