// Package cmd provides the CLI commands for openRoots services.
//
// # Commands
//
// gateway: The dataset marketplace backend. Serves the access-group and
// allow-list API, dataset listings, uploads with signed receipts, capacity
// delegations for the decryption network, and websocket upload progress.
//
//	go run ./cmd/gateway --mongo-uri=mongodb://localhost:27017 \
//	    --rpc-url=https://sepolia.base.org --contract=0x... \
//	    --lit-pubkey=<hex G2 master public key>
//
// For a local run without MongoDB or secrets:
//
//	go run ./cmd/gateway --in-memory --rpc-url=... --contract=0x... \
//	    --lit-pubkey=...
package cmd
