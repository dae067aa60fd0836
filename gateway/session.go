package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Imdavyking/openRoots/chain"
	"github.com/Imdavyking/openRoots/crypto"
	"github.com/Imdavyking/openRoots/lit"
)

// CapacityDelegator is the slice of the decryption-network client the
// authorization flow needs.
type CapacityDelegator interface {
	Connect(ctx context.Context) error
	DelegateCapacity(ctx context.Context, delegatee common.Address) (*lit.DelegationAuthSig, error)
}

// SessionService converts a client-signed claim over a dataset identifier
// into a short-lived capacity delegation, after proving on-chain
// authorization. No state is kept between requests.
type SessionService struct {
	chain   chain.Reader
	network CapacityDelegator
	log     *slog.Logger
	timeout time.Duration
}

// NewSessionService wires the authorization flow. timeout bounds each
// external call, not the whole flow.
func NewSessionService(reader chain.Reader, network CapacityDelegator, timeout time.Duration, log *slog.Logger) *SessionService {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &SessionService{chain: reader, network: network, log: log, timeout: timeout}
}

// Authorize runs the claim through verification, the on-chain access check
// and delegation issuance.
//
// The claim signature is an eth personal signature over
// keccak256(uint256(datasetId)); any recovery failure rejects the claim as
// caller error. Which address signed is judged solely by the on-chain
// check that follows.
func (s *SessionService) Authorize(ctx context.Context, signatureHex, datasetID string) (*lit.DelegationAuthSig, error) {
	claimed, err := recoverClaim(signatureHex, datasetID)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "Invalid signature", Err: err}
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	allowed, err := s.chain.CanAccess(checkCtx, datasetID, claimed)
	if err != nil {
		return nil, errUpstream("Internal server error", fmt.Errorf("on-chain access check: %w", err))
	}
	if !allowed {
		s.log.Info("access denied", "datasetId", datasetID, "address", claimed.Hex())
		return nil, errAuthorization("User does not have access to this dataset")
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.network.Connect(connectCtx); err != nil {
		return nil, errUpstream("Internal server error", fmt.Errorf("decryption network handshake: %w", err))
	}

	delegateCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	authSig, err := s.network.DelegateCapacity(delegateCtx, claimed)
	if err != nil {
		return nil, errUpstream("Internal server error", fmt.Errorf("issuing capacity delegation: %w", err))
	}

	s.log.Info("issued capacity delegation", "datasetId", datasetID, "delegatee", claimed.Hex())
	return authSig, nil
}

// recoverClaim computes the claim digest for datasetID and recovers the
// signing address.
func recoverClaim(signatureHex, datasetID string) (common.Address, error) {
	digest, err := claimDigest(datasetID)
	if err != nil {
		return common.Address{}, err
	}
	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("decoding signature: %w", err)
	}
	return crypto.RecoverAddress(crypto.PersonalHash(digest[:]), sig)
}

// claimDigest hashes the dataset identifier the way the frontend does:
// solidityPackedKeccak256(["uint256"], [datasetId]), i.e. keccak256 of the
// identifier as a 32-byte big-endian integer.
func claimDigest(datasetID string) ([32]byte, error) {
	trimmed := strings.TrimPrefix(datasetID, "0x")
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return [32]byte{}, errors.New("dataset id is not a hex integer")
	}
	if n.BitLen() > 256 {
		return [32]byte{}, errors.New("dataset id exceeds 256 bits")
	}
	var buf [32]byte
	n.FillBytes(buf[:])
	return crypto.Keccak256(buf[:]), nil
}
