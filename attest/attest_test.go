package attest

import (
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imdavyking/openRoots/crypto"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	signer, err := crypto.GenerateSigner()
	require.NoError(t, err)
	return New(signer, slog.Default())
}

func TestAttestationRoundTrip(t *testing.T) {
	svc := newTestService(t)

	const (
		datasetID = "0x1111111111111111111111111111111111111111111111111111111111111111"
		cid       = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
	)

	sig, err := svc.Sign(datasetID, cid)
	require.NoError(t, err)

	recovered, err := svc.Recover(Digest(datasetID, cid), sig)
	require.NoError(t, err)
	assert.Equal(t, svc.Address(), recovered)
	assert.True(t, svc.Verify(datasetID, cid, sig))
}

func TestAttestationBindsBothIdentifiers(t *testing.T) {
	svc := newTestService(t)

	sig, err := svc.Sign("dataset-a", "cid-a")
	require.NoError(t, err)

	// Replaying against a different pairing must not verify.
	assert.False(t, svc.Verify("dataset-a", "cid-b", sig))
	assert.False(t, svc.Verify("dataset-b", "cid-a", sig))
	assert.False(t, svc.Verify("cid-a", "dataset-a", sig))
}

func TestAttestationEmptyCid(t *testing.T) {
	// The encrypted upload path signs with a blanked cid.
	svc := newTestService(t)

	sig, err := svc.Sign("0xabc", "")
	require.NoError(t, err)
	assert.True(t, svc.Verify("0xabc", "", sig))
}

func TestSelfCheckDetectsWrongKey(t *testing.T) {
	signer, err := crypto.GenerateSigner()
	require.NoError(t, err)

	// Simulate a misconfigured service whose known address does not match
	// its signing key.
	svc := &Service{
		signer:  signer,
		address: common.HexToAddress("0x000000000000000000000000000000000000dead"),
		log:     slog.Default(),
	}

	_, err = svc.Sign("dataset", "cid")
	assert.ErrorIs(t, err, ErrSignatureIntegrity)
}

func TestVerifyRejectsGarbageSignature(t *testing.T) {
	svc := newTestService(t)
	assert.False(t, svc.Verify("dataset", "cid", "0xdeadbeef"))
	assert.False(t, svc.Verify("dataset", "cid", "not hex"))
}
