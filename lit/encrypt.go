package lit

import (
	"crypto/aes"
	"crypto/cipher"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Imdavyking/openRoots/crypto"
)

// EVMContractCondition gates decryption on a view-function result, evaluated
// by the decryption network with :userAddress bound to the requester.
type EVMContractCondition struct {
	ContractAddress string          `json:"contractAddress"`
	Chain           string          `json:"chain"`
	FunctionName    string          `json:"functionName"`
	FunctionParams  []string        `json:"functionParams"`
	FunctionABI     json.RawMessage `json:"functionAbi"`
	ReturnValueTest ReturnValueTest `json:"returnValueTest"`
}

// ReturnValueTest compares the function result against an expected value.
type ReturnValueTest struct {
	Key        string `json:"key"`
	Comparator string `json:"comparator"`
	Value      string `json:"value"`
}

// EncryptedPayload is the sealed form of a dataset: the data key is
// IBE-wrapped to the identity derived from the access conditions, the data
// itself is AES-256-GCM encrypted under that key.
type EncryptedPayload struct {
	// Ciphertext is base64(wrapped key || nonce || sealed data).
	Ciphertext string `json:"ciphertext"`

	// DataToEncryptHash is the hex sha256 of the plaintext, part of the
	// encryption identity so conditions cannot be swapped after the fact.
	DataToEncryptHash string `json:"dataToEncryptHash"`
}

// Envelope is the document pinned to storage for an encrypted dataset.
type Envelope struct {
	Ciphertext            string                 `json:"ciphertext"`
	DataToEncryptHash     string                 `json:"dataToEncryptHash"`
	EVMContractConditions []EVMContractCondition `json:"evmContractConditions"`
}

// EncryptWithConditions seals data so the network only releases the
// identity key to addresses passing the conditions. Hybrid scheme: a fresh
// 32-byte key encrypts the data with AES-256-GCM, and the key itself is
// IBE-encrypted to identity = keccak256(conditions || sha256(data)).
func (c *Client) EncryptWithConditions(conditions []EVMContractCondition, data []byte) (*EncryptedPayload, error) {
	if c.networkPub == nil {
		return nil, fmt.Errorf("network public key not configured")
	}

	condJSON, err := json.Marshal(conditions)
	if err != nil {
		return nil, fmt.Errorf("encoding conditions: %w", err)
	}
	dataHash := sha256.Sum256(data)
	identity := crypto.Keccak256(condJSON, dataHash[:])

	dataKey := make([]byte, 32)
	if _, err := cryptorand.Read(dataKey); err != nil {
		return nil, fmt.Errorf("generating data key: %w", err)
	}

	wrapped, err := crypto.IBEEncrypt(c.suite, c.networkPub, identity[:], dataKey)
	if err != nil {
		return nil, fmt.Errorf("wrapping data key: %w", err)
	}
	wrappedJSON, err := json.Marshal(struct {
		U []byte `json:"u"`
		V []byte `json:"v"`
		W []byte `json:"w"`
	}{mustMarshalPoint(wrapped.U), wrapped.V, wrapped.W})
	if err != nil {
		return nil, fmt.Errorf("encoding wrapped key: %w", err)
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := cryptorand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	// The identity binds the sealed data to the conditions.
	sealed := gcm.Seal(nil, nonce, data, identity[:])

	var blob []byte
	blob = append(blob, uint16ToBytes(uint16(len(wrappedJSON)))...)
	blob = append(blob, wrappedJSON...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)

	return &EncryptedPayload{
		Ciphertext:        base64.StdEncoding.EncodeToString(blob),
		DataToEncryptHash: hex.EncodeToString(dataHash[:]),
	}, nil
}

func mustMarshalPoint(p interface{ MarshalBinary() ([]byte, error) }) []byte {
	b, err := p.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

func uint16ToBytes(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}
