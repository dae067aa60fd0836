// Package chain reads marketplace authorization state from the dataset
// contract over JSON-RPC. Only view calls are made; the gateway never
// submits transactions.
package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// canAccessABI is the single read the gateway needs from the marketplace
// contract.
const canAccessABI = `[{
	"inputs": [
		{"internalType": "string", "name": "datasetId", "type": "string"},
		{"internalType": "address", "name": "user", "type": "address"}
	],
	"name": "canAccess",
	"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
	"stateMutability": "view",
	"type": "function"
}]`

// Reader answers authorization and block-height queries. Implementations
// must be safe for concurrent use.
type Reader interface {
	// CanAccess reports whether user may decrypt the dataset, per the
	// on-chain purchase/ownership state.
	CanAccess(ctx context.Context, datasetID string, user common.Address) (bool, error)

	// BlockNumber returns the current chain head height.
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client is the JSON-RPC backed Reader.
type Client struct {
	ec       *ethclient.Client
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
}

// Dial connects to the RPC endpoint and prepares the contract binding.
// Every call is bounded by timeout so a stalled RPC node cannot hang a
// request indefinitely.
func Dial(ctx context.Context, rpcURL, contractAddr string, timeout time.Duration) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(canAccessABI))
	if err != nil {
		return nil, fmt.Errorf("parsing contract ABI: %w", err)
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc %s: %w", rpcURL, err)
	}
	return &Client{
		ec:       ec,
		contract: common.HexToAddress(contractAddr),
		abi:      parsed,
		timeout:  timeout,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

func (c *Client) CanAccess(ctx context.Context, datasetID string, user common.Address) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.abi.Pack("canAccess", datasetID, user)
	if err != nil {
		return false, fmt.Errorf("packing canAccess call: %w", err)
	}

	out, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("calling canAccess: %w", err)
	}

	results, err := c.abi.Unpack("canAccess", out)
	if err != nil {
		return false, fmt.Errorf("unpacking canAccess result: %w", err)
	}
	allowed, ok := results[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected canAccess return type %T", results[0])
	}
	return allowed, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.ec.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching block number: %w", err)
	}
	return n, nil
}
