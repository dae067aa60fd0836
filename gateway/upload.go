package gateway

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Imdavyking/openRoots/attest"
	"github.com/Imdavyking/openRoots/chain"
	"github.com/Imdavyking/openRoots/crypto"
	"github.com/Imdavyking/openRoots/lit"
	"github.com/Imdavyking/openRoots/notify"
	"github.com/Imdavyking/openRoots/pinning"
)

// canAccessFunctionABI is the condition predicate evaluated by the
// decryption network, with :userAddress bound to the requester.
const canAccessFunctionABI = `{
	"inputs": [
		{"internalType": "string", "name": "datasetId", "type": "string"},
		{"internalType": "address", "name": "user", "type": "address"}
	],
	"name": "canAccess",
	"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
	"stateMutability": "view",
	"type": "function"
}`

// ConditionEncrypter seals data under on-chain access conditions.
type ConditionEncrypter interface {
	EncryptWithConditions(conditions []lit.EVMContractCondition, data []byte) (*lit.EncryptedPayload, error)
}

// UploaderConfig carries the deployment parameters the upload flow bakes
// into access conditions.
type UploaderConfig struct {
	// ContractAddress is the marketplace contract evaluated by canAccess.
	ContractAddress string

	// ChainName is the chain identifier the decryption network uses.
	ChainName string

	// Timeout bounds each external call.
	Timeout time.Duration
}

// Uploader orchestrates dataset ingestion: pinning, optional condition
// encryption, time-lock encryption of the content identifier, and the
// service attestation. Progress is pushed to the caller's notification
// channel best-effort.
type Uploader struct {
	pinner    pinning.Pinner
	attestor  *attest.Service
	chain     chain.Reader
	timelock  *crypto.Timelock
	encrypter ConditionEncrypter
	notifier  notify.Notifier
	cfg       *UploaderConfig
	log       *slog.Logger
}

// NewUploader wires the upload flow.
func NewUploader(
	pinner pinning.Pinner,
	attestor *attest.Service,
	reader chain.Reader,
	timelock *crypto.Timelock,
	encrypter ConditionEncrypter,
	notifier notify.Notifier,
	cfg *UploaderConfig,
	log *slog.Logger,
) *Uploader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Uploader{
		pinner:    pinner,
		attestor:  attestor,
		chain:     reader,
		timelock:  timelock,
		encrypter: encrypter,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
	}
}

// UploadRequest is a validated upload, produced by the HTTP boundary.
type UploadRequest struct {
	FileName    string
	ContentType string
	Content     []byte
	SocketID    string
	Encrypted   bool
	ExtraBlocks uint64
}

// UploadResult is the upload receipt. On the encrypted path CID is blanked:
// the identifier is recoverable only through the time-lock ciphertext once
// the target height is reached, so the attestation plus ciphertext is the
// canonical receipt.
type UploadResult struct {
	CID              string                     `json:"cid"`
	DatasetID        string                     `json:"datasetId"`
	Signature        string                     `json:"signature"`
	RandMuCiphertext *crypto.SolidityCiphertext `json:"randMuCiphertext,omitempty"`
	BlockHeight      uint64                     `json:"blockHeight,omitempty"`
}

// Upload runs the full flow for one file. Either the whole operation
// succeeds or the caller sees a single error; no partial receipt is
// returned.
func (u *Uploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	datasetID, err := newDatasetID()
	if err != nil {
		return nil, errUpstream("Internal Server Error", err)
	}
	log := u.log.With("datasetId", datasetID, "socketId", req.SocketID)

	if !req.Encrypted {
		return u.uploadPlain(ctx, req, datasetID, log)
	}
	return u.uploadEncrypted(ctx, req, datasetID, log)
}

func (u *Uploader) uploadPlain(ctx context.Context, req *UploadRequest, datasetID string, log *slog.Logger) (*UploadResult, error) {
	u.progress(ctx, req.SocketID, "Uploading to storage...", notify.StatusInfo)

	cid, err := u.pinFile(ctx, req.FileName, req.ContentType, req.Content)
	if err != nil {
		u.progress(ctx, req.SocketID, "Upload failed", notify.StatusError)
		return nil, errUpstream("Failed to upload", err)
	}
	u.progress(ctx, req.SocketID, "Upload successful", notify.StatusSuccess)

	sig, err := u.attestor.Sign(datasetID, cid)
	if err != nil {
		return nil, attestationError(err)
	}

	log.Info("dataset uploaded", "cid", cid)
	return &UploadResult{CID: cid, DatasetID: datasetID, Signature: sig}, nil
}

func (u *Uploader) uploadEncrypted(ctx context.Context, req *UploadRequest, datasetID string, log *slog.Logger) (*UploadResult, error) {
	u.progress(ctx, req.SocketID, "Generating access control conditions...", notify.StatusInfo)

	conditions := u.accessConditions(datasetID)
	payload, err := u.encrypter.EncryptWithConditions(conditions, req.Content)
	if err != nil {
		return nil, errUpstream("Internal Server Error", fmt.Errorf("encrypting dataset: %w", err))
	}
	u.progress(ctx, req.SocketID, "Data encrypted successfully", notify.StatusSuccess)

	envelope, err := json.MarshalIndent(lit.Envelope{
		Ciphertext:            payload.Ciphertext,
		DataToEncryptHash:     payload.DataToEncryptHash,
		EVMContractConditions: conditions,
	}, "", "  ")
	if err != nil {
		return nil, errUpstream("Internal Server Error", fmt.Errorf("encoding envelope: %w", err))
	}

	u.progress(ctx, req.SocketID, "Uploading to storage...", notify.StatusInfo)
	name := fmt.Sprintf("encrypted-%s.json", datasetID)
	cid, err := u.pinFile(ctx, name, "application/json", envelope)
	if err != nil {
		u.progress(ctx, req.SocketID, "Upload failed", notify.StatusError)
		return nil, errUpstream("Failed to upload", err)
	}
	u.progress(ctx, req.SocketID, "Upload successful", notify.StatusSuccess)

	heightCtx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()
	height, err := u.chain.BlockNumber(heightCtx)
	if err != nil {
		return nil, errUpstream("Internal Server Error", fmt.Errorf("fetching block height: %w", err))
	}
	target := height + req.ExtraBlocks

	ct, err := u.timelock.EncryptToHeight(abiEncodeString(cid), target)
	if err != nil {
		return nil, errUpstream("Internal Server Error", fmt.Errorf("time-lock encryption: %w", err))
	}
	sol, err := ct.Solidity()
	if err != nil {
		return nil, errUpstream("Internal Server Error", fmt.Errorf("encoding ciphertext: %w", err))
	}

	// The cid is deliberately blanked; the attestation covers the blanked
	// value so the receipt matches what the caller sees.
	sig, err := u.attestor.Sign(datasetID, "")
	if err != nil {
		return nil, attestationError(err)
	}

	log.Info("encrypted dataset uploaded", "blockHeight", target)
	return &UploadResult{
		CID:              "",
		DatasetID:        datasetID,
		Signature:        sig,
		RandMuCiphertext: sol,
		BlockHeight:      target,
	}, nil
}

// JSONUploadResult is the receipt for a pinned JSON document.
type JSONUploadResult struct {
	IpfsURL   string `json:"ipfsUrl"`
	DatasetID string `json:"datasetId"`
}

// UploadJSON pins a JSON document (dataset NFT metadata) and returns the
// gateway URL it is fetchable from. Metadata is public by design, so there
// is no encryption and no attestation on this path.
func (u *Uploader) UploadJSON(ctx context.Context, socketID string, doc []byte) (*JSONUploadResult, error) {
	datasetID, err := newDatasetID()
	if err != nil {
		return nil, errUpstream("Internal Server Error", err)
	}

	u.progress(ctx, socketID, "Uploading to storage...", notify.StatusInfo)
	cid, err := u.pinFile(ctx, "userNFTMetaData.json", "application/json", doc)
	if err != nil {
		u.progress(ctx, socketID, "Upload failed", notify.StatusError)
		return nil, errUpstream("Failed to upload", err)
	}
	u.progress(ctx, socketID, "Upload successful", notify.StatusSuccess)

	u.log.Info("metadata uploaded", "datasetId", datasetID, "cid", cid)
	return &JSONUploadResult{
		IpfsURL:   u.pinner.GatewayURL(cid),
		DatasetID: datasetID,
	}, nil
}

func (u *Uploader) pinFile(ctx context.Context, name, contentType string, content []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()
	return u.pinner.PinFile(ctx, name, contentType, content)
}

func (u *Uploader) accessConditions(datasetID string) []lit.EVMContractCondition {
	return []lit.EVMContractCondition{{
		ContractAddress: u.cfg.ContractAddress,
		Chain:           u.cfg.ChainName,
		FunctionName:    "canAccess",
		FunctionParams:  []string{datasetID, ":userAddress"},
		FunctionABI:     json.RawMessage(canAccessFunctionABI),
		ReturnValueTest: lit.ReturnValueTest{Comparator: "=", Value: "true"},
	}}
}

// progress is fire and forget; notification failure never fails an upload.
func (u *Uploader) progress(ctx context.Context, socketID, message, status string) {
	u.notifier.Notify(ctx, socketID, notify.Event{Message: message, Status: status})
}

func attestationError(err error) error {
	if errors.Is(err, attest.ErrSignatureIntegrity) {
		return errIntegrity("Internal Server Error", err)
	}
	return errUpstream("Internal Server Error", err)
}

// newDatasetID returns a fresh random 32-byte identifier, 0x-prefixed.
func newDatasetID() (string, error) {
	buf := make([]byte, 32)
	if _, err := cryptorand.Read(buf); err != nil {
		return "", fmt.Errorf("generating dataset id: %w", err)
	}
	return hexutil.Encode(buf), nil
}

// abiEncodeString is abi.encode(string): a 32-byte offset, the length, then
// the bytes padded to a 32-byte boundary. The time-lock ciphertext carries
// this encoding so the decrypted value drops straight into contract calls.
func abiEncodeString(s string) []byte {
	data := []byte(s)
	padded := (len(data) + 31) / 32 * 32

	out := make([]byte, 64+padded)
	out[31] = 0x20
	writeUint(out[32:64], uint64(len(data)))
	copy(out[64:], data)
	return out
}

func writeUint(dst []byte, v uint64) {
	for i := len(dst) - 1; v > 0 && i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}
