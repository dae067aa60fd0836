package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/drand/kyber"
	"github.com/drand/kyber/pairing/bn254"
	"golang.org/x/crypto/sha3"
)

// maxIBEMessage bounds the plaintext size for a single ciphertext. The
// payloads here are ABI-encoded content identifiers, well under this cap.
const maxIBEMessage = 1024

var (
	// ErrMessageTooLong is returned when a plaintext exceeds maxIBEMessage.
	ErrMessageTooLong = errors.New("ibe: message too long")

	// ErrInvalidCiphertext is returned when decryption fails the
	// Fujisaki-Okamoto consistency check, meaning the ciphertext was
	// tampered with or the identity key is wrong.
	ErrInvalidCiphertext = errors.New("ibe: invalid ciphertext")
)

// Ciphertext is a Boneh-Franklin IBE ciphertext with the ephemeral point on
// G2: U = r*P2, V = sigma XOR H2(e(H1(id), mpk)^r), W = M XOR H4(sigma).
type Ciphertext struct {
	U kyber.Point
	V []byte
	W []byte
}

// SolidityG2 is a BN254 G2 point in EVM precompile limb order: each
// coordinate is an Fp2 element with the imaginary limb first.
type SolidityG2 struct {
	X [2]string `json:"x"`
	Y [2]string `json:"y"`
}

// SolidityCiphertext is the on-chain encoding of a Ciphertext, with V and W
// hex-encoded. This is the shape returned to HTTP callers.
type SolidityCiphertext struct {
	U SolidityG2 `json:"u"`
	V string     `json:"v"`
	W string     `json:"w"`
}

// Solidity encodes the ciphertext for on-chain submission.
func (c *Ciphertext) Solidity() (*SolidityCiphertext, error) {
	raw, err := c.U.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal U: %w", err)
	}
	if len(raw) != 128 {
		return nil, fmt.Errorf("unexpected G2 encoding length %d", len(raw))
	}
	limb := func(i int) string {
		return new(big.Int).SetBytes(raw[i*32 : (i+1)*32]).String()
	}
	return &SolidityCiphertext{
		U: SolidityG2{
			X: [2]string{limb(0), limb(1)},
			Y: [2]string{limb(2), limb(3)},
		},
		V: "0x" + hex.EncodeToString(c.V),
		W: "0x" + hex.EncodeToString(c.W),
	}, nil
}

// IBEEncrypt encrypts msg to the holder of the identity key for identity
// under the network master public key (a G2 point). The scheme is
// Fujisaki-Okamoto transformed, so decryption is authenticated.
func IBEEncrypt(suite *bn254.Suite, masterPub kyber.Point, identity, msg []byte) (*Ciphertext, error) {
	if len(msg) > maxIBEMessage {
		return nil, ErrMessageTooLong
	}

	sigma := make([]byte, 32)
	if _, err := rand.Read(sigma); err != nil {
		return nil, fmt.Errorf("read sigma: %w", err)
	}

	r := deriveR(suite, sigma, msg)
	u := suite.G2().Point().Mul(r, nil)

	// e(H1(id), mpk)^r
	hid := suite.G1().Point().(kyber.HashablePoint).Hash(identity)
	gid := suite.GT().Point().Mul(r, suite.Pair(hid, masterPub))
	gidBytes, err := gid.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal pairing result: %w", err)
	}

	v := xorBytes(sigma, hashH2(gidBytes))
	w := xorBytes(msg, maskExpand(sigma, len(msg)))

	return &Ciphertext{U: u, V: v, W: w}, nil
}

// IBEDecrypt recovers the plaintext using the identity key (a G1 point,
// s*H1(id)). It re-derives the ephemeral scalar and rejects ciphertexts
// whose U does not match.
func IBEDecrypt(suite *bn254.Suite, identityKey kyber.Point, ct *Ciphertext) ([]byte, error) {
	if len(ct.V) != 32 {
		return nil, ErrInvalidCiphertext
	}

	gid, err := suite.Pair(identityKey, ct.U).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal pairing result: %w", err)
	}

	sigma := xorBytes(ct.V, hashH2(gid))
	msg := xorBytes(ct.W, maskExpand(sigma, len(ct.W)))

	r := deriveR(suite, sigma, msg)
	if !suite.G2().Point().Mul(r, nil).Equal(ct.U) {
		return nil, ErrInvalidCiphertext
	}
	return msg, nil
}

// NewMasterKey generates a network master key pair for tests and local
// deployments: a scalar secret and its G2 public point.
func NewMasterKey() (kyber.Scalar, kyber.Point, error) {
	suite := bn254.NewSuite()
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, nil, fmt.Errorf("read seed: %w", err)
	}
	s := suite.G2().Scalar().SetBytes(seed)
	return s, suite.G2().Point().Mul(s, nil), nil
}

// IdentityKey derives the decryption key for identity from the master
// secret. On the real network this is the threshold signature over the
// identity; here it backs tests and the reference decrypt path.
func IdentityKey(secret kyber.Scalar, identity []byte) kyber.Point {
	suite := bn254.NewSuite()
	hid := suite.G1().Point().(kyber.HashablePoint).Hash(identity)
	return suite.G1().Point().Mul(secret, hid)
}

// Timelock encrypts payloads toward a future block height under the
// time-lock network's master public key. The network releases the identity
// key for a height once the chain reaches it.
type Timelock struct {
	suite     *bn254.Suite
	masterPub kyber.Point
}

// NewTimelock parses a hex-encoded 128-byte G2 master public key.
func NewTimelock(masterPubHex string) (*Timelock, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(masterPubHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode master public key: %w", err)
	}
	suite := bn254.NewSuite()
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unmarshal master public key: %w", err)
	}
	return &Timelock{suite: suite, masterPub: p}, nil
}

// NewTimelockFromPoint wraps an already-parsed master public key.
func NewTimelockFromPoint(masterPub kyber.Point) *Timelock {
	return &Timelock{suite: bn254.NewSuite(), masterPub: masterPub}
}

// EncryptToHeight encrypts msg so it is decryptable once the chain reaches
// blockHeight.
func (t *Timelock) EncryptToHeight(msg []byte, blockHeight uint64) (*Ciphertext, error) {
	return IBEEncrypt(t.suite, t.masterPub, BlockIdentity(blockHeight), msg)
}

// BlockIdentity is the IBE identity for a block height:
// keccak256(abi.encode(uint256(height))).
func BlockIdentity(height uint64) []byte {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[24:], height)
	h := Keccak256(buf[:])
	return h[:]
}

func deriveR(suite *bn254.Suite, sigma, msg []byte) kyber.Scalar {
	h := keccak([]byte("IBE-H3"), sigma, msg)
	return suite.G2().Scalar().SetBytes(h)
}

func hashH2(gid []byte) []byte {
	return keccak([]byte("IBE-H2"), gid)
}

// maskExpand stretches sigma into n mask bytes with a counter-mode keccak.
func maskExpand(sigma []byte, n int) []byte {
	var out bytes.Buffer
	var counter [2]byte
	for i := 0; out.Len() < n; i++ {
		binary.BigEndian.PutUint16(counter[:], uint16(i))
		out.Write(keccak([]byte("IBE-H4"), sigma, counter[:]))
	}
	return out.Bytes()[:n]
}

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
