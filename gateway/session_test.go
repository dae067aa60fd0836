package gateway

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imdavyking/openRoots/lit"
	"github.com/Imdavyking/openRoots/testutil"
)

const testDatasetID = "0x0de0b6b3a7640000"

func TestLitSessionAuthorized(t *testing.T) {
	g := newTestGateway(t)
	claimer := g.signer.Address()
	g.chain.allowed[testDatasetID+"|"+claimer.Hex()] = true

	sig := testutil.SignDatasetClaim(t, g.signer, testDatasetID)
	w := g.postJSON(t, "/lit-session", sessionRequest{Signature: sig, Message: testDatasetID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody[struct {
		Message string                `json:"message"`
		AuthSig lit.DelegationAuthSig `json:"capacityDelegationAuthSig"`
	}](t, w)
	assert.Equal(t, "User has access to this dataset", body.Message)

	// The delegation is scoped to the recovered claimer, single use.
	payload, err := body.AuthSig.ParsePayload()
	require.NoError(t, err)
	assert.Equal(t, []string{claimer.Hex()}, payload.DelegateeAddresses)
	assert.Equal(t, "1", payload.Uses)

	assert.Equal(t, claimer, g.delegate.lastDelegatee)
	assert.Equal(t, 1, g.delegate.connects)
}

func TestLitSessionDenied(t *testing.T) {
	g := newTestGateway(t)

	// On-chain check says no for this claimer.
	sig := testutil.SignDatasetClaim(t, g.signer, testDatasetID)
	w := g.postJSON(t, "/lit-session", sessionRequest{Signature: sig, Message: testDatasetID})
	require.Equal(t, http.StatusForbidden, w.Code)

	body := decodeBody[struct {
		Error string `json:"error"`
	}](t, w)
	assert.Equal(t, "User does not have access to this dataset", body.Error)

	// No delegation was attempted.
	assert.Equal(t, 0, g.delegate.connects)
}

func TestLitSessionMalformedSignature(t *testing.T) {
	g := newTestGateway(t)

	for _, sig := range []string{
		"not hex",
		"0x1234",
		"0x" + string(make([]byte, 130)),
	} {
		w := g.postJSON(t, "/lit-session", sessionRequest{Signature: sig, Message: testDatasetID})
		assert.Equal(t, http.StatusBadRequest, w.Code, "sig %q", sig)
	}
}

func TestLitSessionWrongSignerIsDeniedNotRejected(t *testing.T) {
	g := newTestGateway(t)

	// A well-formed signature from an unauthorized key recovers fine; the
	// on-chain check is what turns it away.
	sig := testutil.SignDatasetClaim(t, g.signer, testDatasetID)
	w := g.postJSON(t, "/lit-session", sessionRequest{Signature: sig, Message: testDatasetID})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLitSessionBadDatasetID(t *testing.T) {
	g := newTestGateway(t)
	sig := testutil.SignDatasetClaim(t, g.signer, testDatasetID)

	w := g.postJSON(t, "/lit-session", sessionRequest{Signature: sig, Message: "not-a-number"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLitSessionValidation(t *testing.T) {
	g := newTestGateway(t)

	w := g.postJSON(t, "/lit-session", sessionRequest{Message: testDatasetID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = g.postJSON(t, "/lit-session", sessionRequest{Signature: "0x00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLitSessionNetworkFailures(t *testing.T) {
	g := newTestGateway(t)
	claimer := g.signer.Address()
	g.chain.allowed[testDatasetID+"|"+claimer.Hex()] = true
	sig := testutil.SignDatasetClaim(t, g.signer, testDatasetID)

	g.delegate.connectErr = errors.New("relay down")
	w := g.postJSON(t, "/lit-session", sessionRequest{Signature: sig, Message: testDatasetID})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relay down")

	g.delegate.connectErr = nil
	g.delegate.delegateErr = errors.New("mint exhausted")
	w = g.postJSON(t, "/lit-session", sessionRequest{Signature: sig, Message: testDatasetID})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "mint exhausted")
}
