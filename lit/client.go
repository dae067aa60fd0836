// Package lit talks to the external threshold decryption network: minting
// rate-limit capacity credits, issuing capacity delegation signatures, and
// encrypting payloads under on-chain access conditions.
//
// The network enforces expiry and use counts on delegations; this client is
// responsible for setting them correctly on every issuance.
package lit

import (
	"bytes"
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/drand/kyber"
	"github.com/drand/kyber/pairing/bn254"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Imdavyking/openRoots/crypto"
)

// DelegationTTL is the lifetime of an issued capacity delegation.
const DelegationTTL = 10 * time.Minute

// delegationUses limits each delegation to a single request.
const delegationUses = "1"

// Config contains decryption-network settings.
type Config struct {
	// RelayURL is the network's HTTP endpoint for handshakes and capacity
	// credit minting.
	RelayURL string

	// Network names the target subnet, e.g. "datil-test".
	Network string

	// NetworkPubKeyHex is the network's BN254 G2 master public key used for
	// condition-bound encryption. Optional; encryption calls fail without it.
	NetworkPubKeyHex string

	// Timeout bounds each network call.
	Timeout time.Duration

	Log *slog.Logger
}

// Client is safe for concurrent use. The capacity credit is cached and
// reused until its expiry so repeated authorizations do not mint a fresh
// credit each time.
type Client struct {
	cfg    *Config
	signer *crypto.Signer
	http   *http.Client
	log    *slog.Logger

	suite      *bn254.Suite
	networkPub kyber.Point

	mu           sync.Mutex
	creditID     string
	creditExpiry time.Time
}

// NewClient creates a network client signing with the service key.
func NewClient(cfg *Config, signer *crypto.Signer) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		signer: signer,
		http:   &http.Client{Timeout: timeout},
		log:    cfg.Log,
		suite:  bn254.NewSuite(),
	}
	if cfg.NetworkPubKeyHex != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(cfg.NetworkPubKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("decoding network public key: %w", err)
		}
		p := c.suite.G2().Point()
		if err := p.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("parsing network public key: %w", err)
		}
		c.networkPub = p
	}
	return c, nil
}

// Connect performs the network handshake. Failures here mean the network is
// unreachable; callers surface that as an upstream error.
func (c *Client) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.RelayURL+"/connect", nil)
	if err != nil {
		return fmt.Errorf("building handshake request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("network handshake: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("network handshake returned status %d", resp.StatusCode)
	}
	return nil
}

// CapacityCredit returns the id of a live capacity credit, minting one only
// when none is cached or the cached one has expired.
func (c *Client) CapacityCredit(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creditID != "" && time.Now().Before(c.creditExpiry) {
		return c.creditID, nil
	}

	id, expiry, err := c.mintCapacityCredit(ctx)
	if err != nil {
		return "", err
	}
	c.creditID, c.creditExpiry = id, expiry
	c.log.Info("minted capacity credit", "tokenId", id, "expires", expiry)
	return id, nil
}

func (c *Client) mintCapacityCredit(ctx context.Context) (string, time.Time, error) {
	body, err := json.Marshal(map[string]any{
		"requestsPerKilosecond":          10,
		"daysUntilUTCMidnightExpiration": 1,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encoding mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.RelayURL+"/capacity/mint", bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("building mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("minting capacity credit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("capacity mint returned status %d", resp.StatusCode)
	}

	var minted struct {
		CapacityTokenID string `json:"capacityTokenId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&minted); err != nil {
		return "", time.Time{}, fmt.Errorf("decoding mint response: %w", err)
	}
	if minted.CapacityTokenID == "" {
		return "", time.Time{}, fmt.Errorf("capacity mint returned empty token id")
	}

	// The credit expires at the next UTC midnight per the mint parameters.
	now := time.Now().UTC()
	expiry := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return minted.CapacityTokenID, expiry, nil
}

// DelegateCapacity issues a delegation scoped to exactly one delegatee with
// a use count of one, signed by the service key. The network verifies the
// signature, the delegatee list, the use count and the expiry.
func (c *Client) DelegateCapacity(ctx context.Context, delegatee common.Address) (*DelegationAuthSig, error) {
	tokenID, err := c.CapacityCredit(ctx)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, 8)
	if _, err := cryptorand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	now := time.Now().UTC()
	payload := DelegationPayload{
		CapacityTokenID:    tokenID,
		DelegateeAddresses: []string{delegatee.Hex()},
		Uses:               delegationUses,
		DelegatorAddress:   c.signer.Address().Hex(),
		IssuedAt:           now.Format(time.RFC3339),
		Expiration:         now.Add(DelegationTTL).Format(time.RFC3339),
		Nonce:              hex.EncodeToString(nonce),
	}

	message, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding delegation payload: %w", err)
	}

	sig, err := c.signer.SignPersonal(message)
	if err != nil {
		return nil, fmt.Errorf("signing delegation: %w", err)
	}

	return &DelegationAuthSig{
		Sig:           hexutil.Encode(sig),
		DerivedVia:    "web3.eth.personal.sign",
		SignedMessage: string(message),
		Address:       c.signer.Address().Hex(),
	}, nil
}

// DelegationAuthSig is the capability object handed to the client, honored
// by the decryption network.
type DelegationAuthSig struct {
	Sig           string `json:"sig"`
	DerivedVia    string `json:"derivedVia"`
	SignedMessage string `json:"signedMessage"`
	Address       string `json:"address"`
}

// DelegationPayload is the signed body of a DelegationAuthSig.
type DelegationPayload struct {
	CapacityTokenID    string   `json:"capacityTokenId"`
	DelegateeAddresses []string `json:"delegateeAddresses"`
	Uses               string   `json:"uses"`
	DelegatorAddress   string   `json:"delegatorAddress"`
	IssuedAt           string   `json:"issuedAt"`
	Expiration         string   `json:"expiration"`
	Nonce              string   `json:"nonce"`
}

// ParsePayload decodes the signed message of an auth sig.
func (a *DelegationAuthSig) ParsePayload() (*DelegationPayload, error) {
	var p DelegationPayload
	if err := json.Unmarshal([]byte(a.SignedMessage), &p); err != nil {
		return nil, fmt.Errorf("decoding delegation payload: %w", err)
	}
	return &p, nil
}
