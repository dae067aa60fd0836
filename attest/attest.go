// Package attest produces service-signed statements binding a dataset
// identifier to a storage content identifier.
//
// The digest is keccak256(datasetId || cid) hashed again with the Ethereum
// personal-message prefix before signing, so the attestation can be verified
// on-chain or by any eth wallet library. Because the digest binds both
// identifiers, a signature cannot be replayed against a different
// dataset/content pairing.
package attest

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Imdavyking/openRoots/crypto"
)

// ErrSignatureIntegrity means the service recovered a different address
// from its own signature. That indicates a misconfigured key, not a caller
// error, and must abort the response.
var ErrSignatureIntegrity = errors.New("attest: self-verification recovered wrong address")

// Service signs dataset attestations with an injected service key.
type Service struct {
	signer  *crypto.Signer
	address common.Address
	log     *slog.Logger
}

// New creates an attestation service around the given signer.
func New(signer *crypto.Signer, log *slog.Logger) *Service {
	return &Service{signer: signer, address: signer.Address(), log: log}
}

// Address returns the address attestations recover to.
func (s *Service) Address() common.Address {
	return s.address
}

// Sign produces a hex-encoded attestation signature over (datasetID, cid).
// The service immediately recovers the signer from its own output and
// refuses to return a signature that does not recover to its address.
func (s *Service) Sign(datasetID, cid string) (string, error) {
	digest := Digest(datasetID, cid)

	sig, err := s.signer.SignPersonal(digest[:])
	if err != nil {
		return "", fmt.Errorf("signing attestation: %w", err)
	}

	recovered, err := crypto.RecoverAddress(crypto.PersonalHash(digest[:]), sig)
	if err != nil {
		return "", fmt.Errorf("recovering own signature: %w", err)
	}
	if recovered != s.address {
		s.log.Error("attestation self-check failed",
			"expected", s.address.Hex(), "recovered", recovered.Hex())
		return "", ErrSignatureIntegrity
	}

	return hexutil.Encode(sig), nil
}

// Recover returns the address that signed the given attestation digest.
func (s *Service) Recover(digest [32]byte, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("decoding signature: %w", err)
	}
	return crypto.RecoverAddress(crypto.PersonalHash(digest[:]), sig)
}

// Verify reports whether sigHex is a valid attestation for (datasetID, cid)
// from this service's key.
func (s *Service) Verify(datasetID, cid, sigHex string) bool {
	recovered, err := s.Recover(Digest(datasetID, cid), sigHex)
	return err == nil && recovered == s.address
}

// Digest computes the attestation digest keccak256(datasetId || cid),
// matching solidityPackedKeccak256(["string","string"], ...).
func Digest(datasetID, cid string) [32]byte {
	return crypto.Keccak256([]byte(datasetID), []byte(cid))
}
