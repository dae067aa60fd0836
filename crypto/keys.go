package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrMalformedSignature is returned when a signature cannot be parsed or
// public key recovery fails.
var ErrMalformedSignature = errors.New("malformed signature")

// Signer wraps a secp256k1 service key and produces Ethereum-compatible
// signatures. Construct one at process start and inject it into the
// components that sign (attestation service, capacity delegation).
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner wraps an existing private key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
	}
}

// SignerFromHex parses a hex-encoded private key, with or without the 0x prefix.
func SignerFromHex(hexKey string) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewSigner(key), nil
}

// GenerateSigner creates a signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewSigner(key), nil
}

// Address returns the Ethereum address of the service key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignDigest signs a 32-byte digest directly. The returned signature is
// r || s || v with v in {27, 28}.
func (s *Signer) SignDigest(digest [32]byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignPersonal signs message the way eth_sign / ethers signMessage does:
// the message is prefixed with "\x19Ethereum Signed Message:\n<len>" and
// keccak-hashed before signing.
func (s *Signer) SignPersonal(message []byte) ([]byte, error) {
	return s.SignDigest(PersonalHash(message))
}

// PersonalHash computes the EIP-191 personal-message hash of message.
func PersonalHash(message []byte) [32]byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return [32]byte(ethcrypto.Keccak256([]byte(prefix), message))
}

// Keccak256 hashes the concatenation of the given byte slices.
func Keccak256(data ...[]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256(data...))
}

// RecoverAddress recovers the address that produced sig over digest.
// Both v in {0, 1} and v in {27, 28} encodings are accepted.
func RecoverAddress(digest [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest[:], normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
