package lit

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imdavyking/openRoots/crypto"
)

func newRelay(t *testing.T, mints *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /connect", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /capacity/mint", func(w http.ResponseWriter, r *http.Request) {
		mints.Add(1)
		w.Write([]byte(`{"capacityTokenId":"credit-42"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, relayURL string) *Client {
	t.Helper()
	signer, err := crypto.GenerateSigner()
	require.NoError(t, err)

	c, err := NewClient(&Config{
		RelayURL: relayURL,
		Network:  "datil-test",
		Log:      slog.Default(),
	}, signer)
	require.NoError(t, err)
	return c
}

func TestConnect(t *testing.T) {
	var mints atomic.Int64
	relay := newRelay(t, &mints)
	c := newTestClient(t, relay.URL)
	require.NoError(t, c.Connect(context.Background()))
}

func TestCapacityCreditCached(t *testing.T) {
	var mints atomic.Int64
	relay := newRelay(t, &mints)
	c := newTestClient(t, relay.URL)

	ctx := context.Background()
	id, err := c.CapacityCredit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "credit-42", id)

	// Repeated authorizations reuse the live credit instead of minting.
	for i := 0; i < 5; i++ {
		_, err = c.CapacityCredit(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), mints.Load())
}

func TestCapacityCreditRemintsAfterExpiry(t *testing.T) {
	var mints atomic.Int64
	relay := newRelay(t, &mints)
	c := newTestClient(t, relay.URL)

	ctx := context.Background()
	_, err := c.CapacityCredit(ctx)
	require.NoError(t, err)

	c.mu.Lock()
	c.creditExpiry = time.Now().Add(-time.Minute)
	c.mu.Unlock()

	_, err = c.CapacityCredit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mints.Load())
}

func TestDelegateCapacity(t *testing.T) {
	var mints atomic.Int64
	relay := newRelay(t, &mints)
	c := newTestClient(t, relay.URL)

	delegatee, err := crypto.GenerateSigner()
	require.NoError(t, err)

	authSig, err := c.DelegateCapacity(context.Background(), delegatee.Address())
	require.NoError(t, err)

	assert.Equal(t, "web3.eth.personal.sign", authSig.DerivedVia)
	assert.Equal(t, c.signer.Address().Hex(), authSig.Address)

	payload, err := authSig.ParsePayload()
	require.NoError(t, err)
	assert.Equal(t, []string{delegatee.Address().Hex()}, payload.DelegateeAddresses)
	assert.Equal(t, "1", payload.Uses)
	assert.Equal(t, "credit-42", payload.CapacityTokenID)

	issued, err := time.Parse(time.RFC3339, payload.IssuedAt)
	require.NoError(t, err)
	expires, err := time.Parse(time.RFC3339, payload.Expiration)
	require.NoError(t, err)
	assert.Equal(t, DelegationTTL, expires.Sub(issued))

	// The delegation must recover to the delegator's address.
	sig, err := hexDecode(authSig.Sig)
	require.NoError(t, err)
	recovered, err := crypto.RecoverAddress(crypto.PersonalHash([]byte(authSig.SignedMessage)), sig)
	require.NoError(t, err)
	assert.Equal(t, c.signer.Address(), recovered)
}

func TestDelegateCapacityRelayDown(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")

	delegatee, err := crypto.GenerateSigner()
	require.NoError(t, err)

	_, err = c.DelegateCapacity(context.Background(), delegatee.Address())
	assert.Error(t, err)
}

func TestEncryptWithConditions(t *testing.T) {
	_, masterPub, err := crypto.NewMasterKey()
	require.NoError(t, err)
	raw, err := masterPub.MarshalBinary()
	require.NoError(t, err)

	signer, err := crypto.GenerateSigner()
	require.NoError(t, err)
	c, err := NewClient(&Config{
		RelayURL:         "http://unused",
		NetworkPubKeyHex: hex.EncodeToString(raw),
		Log:              slog.Default(),
	}, signer)
	require.NoError(t, err)

	conditions := []EVMContractCondition{{
		ContractAddress: "0x0000000000000000000000000000000000000001",
		Chain:           "baseSepolia",
		FunctionName:    "canAccess",
		FunctionParams:  []string{"0xabc", ":userAddress"},
		ReturnValueTest: ReturnValueTest{Comparator: "=", Value: "true"},
	}}

	payload, err := c.EncryptWithConditions(conditions, []byte("col1,col2\n1,2\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, payload.Ciphertext)
	assert.Len(t, payload.DataToEncryptHash, 64)

	// Same data under different conditions must produce a different identity
	// and therefore a different wrapped key.
	conditions[0].FunctionParams[0] = "0xdef"
	other, err := c.EncryptWithConditions(conditions, []byte("col1,col2\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, payload.DataToEncryptHash, other.DataToEncryptHash)
	assert.NotEqual(t, payload.Ciphertext, other.Ciphertext)
}

func TestEncryptWithoutNetworkKey(t *testing.T) {
	var mints atomic.Int64
	relay := newRelay(t, &mints)
	c := newTestClient(t, relay.URL)

	_, err := c.EncryptWithConditions(nil, []byte("data"))
	assert.Error(t, err)
}

func hexDecode(s string) ([]byte, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
