// Command gateway runs the openRoots dataset marketplace backend.
//
// The gateway serves the marketplace API: access-group and per-content
// allow-list management backed by MongoDB, dataset listings, signed upload
// receipts, capacity delegations for the decryption network, and a websocket
// channel for upload progress.
//
// # Usage
//
//	go run ./cmd/gateway \
//	    --mongo-uri=mongodb://localhost:27017 \
//	    --rpc-url=https://sepolia.base.org \
//	    --contract=0x... \
//	    --lit-pubkey=<hex G2 master public key>
//
// The service signing key is read from --service-key or the
// OPENROOTS_PRIVATE_KEY environment variable; an ephemeral key is generated
// when neither is set. The pinning JWT is read from --pinning-jwt or
// OPENROOTS_PINATA_JWT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Imdavyking/openRoots/api/httpserver"
	"github.com/Imdavyking/openRoots/attest"
	"github.com/Imdavyking/openRoots/chain"
	cmdcommon "github.com/Imdavyking/openRoots/cmd/common"
	"github.com/Imdavyking/openRoots/common"
	"github.com/Imdavyking/openRoots/crypto"
	"github.com/Imdavyking/openRoots/gateway"
	"github.com/Imdavyking/openRoots/lit"
	"github.com/Imdavyking/openRoots/notify"
	"github.com/Imdavyking/openRoots/pinning"
	"github.com/Imdavyking/openRoots/store"
)

func main() {
	var (
		addr        = flag.String("addr", ":3300", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		enablePprof = flag.Bool("pprof", false, "Enable pprof debugging API")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")

		mongoURI = flag.String("mongo-uri", "", "MongoDB connection URI")
		mongoDB  = flag.String("mongo-db", "openroots", "MongoDB database name")
		inMemory = flag.Bool("in-memory", false, "Use the in-memory store instead of MongoDB (local development)")

		rpcURL    = flag.String("rpc-url", "", "EVM JSON-RPC endpoint")
		contract  = flag.String("contract", "", "Marketplace contract address")
		chainName = flag.String("chain", "baseSepolia", "Chain name used in access conditions")

		litRelay   = flag.String("lit-relay", "", "Decryption network relay URL")
		litNetwork = flag.String("lit-network", "datil-test", "Decryption network name")
		litPubKey  = flag.String("lit-pubkey", "", "Network BN254 G2 master public key (hex)")

		pinningURL     = flag.String("pinning-url", "https://api.pinata.cloud", "Pinning service API URL")
		pinningGateway = flag.String("pinning-gateway", "https://gateway.pinata.cloud", "Content gateway URL")
		pinningJWT     = flag.String("pinning-jwt", "", "Pinning service JWT (or OPENROOTS_PINATA_JWT)")

		serviceKeyHex  = flag.String("service-key", "", "secp256k1 service key (hex, or OPENROOTS_PRIVATE_KEY)")
		allowedOrigins = flag.String("allowed-origins", "", "Comma-separated CORS origins for the frontend")
	)
	flag.Parse()

	log := cmdcommon.NewLogger(*logJSON, *logLevel)
	log.Info("Starting openRoots gateway", "version", common.Version)

	if *rpcURL == "" || *contract == "" {
		fmt.Fprintln(os.Stderr, "Error: --rpc-url and --contract are required")
		os.Exit(1)
	}
	if *mongoURI == "" && !*inMemory {
		fmt.Fprintln(os.Stderr, "Error: --mongo-uri is required (or pass --in-memory)")
		os.Exit(1)
	}
	if *litPubKey == "" {
		fmt.Fprintln(os.Stderr, "Error: --lit-pubkey is required")
		os.Exit(1)
	}

	signer, err := cmdcommon.LoadOrGenerateServiceKey(*serviceKeyHex, log)
	if err != nil {
		log.Error("Service key error", "err", err)
		os.Exit(1)
	}
	log.Info("Service signing key loaded", "address", signer.Address().Hex())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		groups   store.GroupStore
		ipAccess store.IPAccessStore
		datasets store.DatasetStore
	)
	if *inMemory {
		mem := store.NewMemory()
		groups, ipAccess, datasets = mem, mem, mem
		log.Warn("Using in-memory store, data will not survive a restart")
	} else {
		mongo, err := store.NewMongo(ctx, &store.MongoConfig{URI: *mongoURI, Database: *mongoDB})
		if err != nil {
			log.Error("MongoDB connection failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			if err := mongo.Close(context.Background()); err != nil {
				log.Error("MongoDB disconnect failed", "err", err)
			}
		}()
		groups, ipAccess, datasets = mongo, mongo, mongo
	}

	reader, err := chain.Dial(ctx, *rpcURL, *contract, 15*time.Second)
	if err != nil {
		log.Error("RPC connection failed", "err", err)
		os.Exit(1)
	}

	litClient, err := lit.NewClient(&lit.Config{
		RelayURL:         *litRelay,
		Network:          *litNetwork,
		NetworkPubKeyHex: *litPubKey,
		Log:              log,
	}, signer)
	if err != nil {
		log.Error("Decryption network client error", "err", err)
		os.Exit(1)
	}

	timelock, err := crypto.NewTimelock(*litPubKey)
	if err != nil {
		log.Error("Invalid network public key", "err", err)
		os.Exit(1)
	}

	pinner := pinning.New(&pinning.Config{
		BaseURL:    *pinningURL,
		GatewayURL: *pinningGateway,
		JWT:        cmdcommon.SecretFromEnv(*pinningJWT, "OPENROOTS_PINATA_JWT"),
		Log:        log,
	})

	hub := notify.NewHub(log)
	attestor := attest.New(signer, log)
	uploader := gateway.NewUploader(pinner, attestor, reader, timelock, litClient, hub,
		&gateway.UploaderConfig{
			ContractAddress: *contract,
			ChainName:       *chainName,
		}, log)
	sessions := gateway.NewSessionService(reader, litClient, 0, log)
	handler := gateway.NewHandler(groups, ipAccess, datasets, sessions, uploader, log)

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		AllowedOrigins:           splitOrigins(*allowedOrigins),
		EnablePprof:              *enablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             60 * time.Second,
	}, handler, hub)
	if err != nil {
		log.Error("Server creation failed", "err", err)
		os.Exit(1)
	}

	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gateway")
	cancel()
	srv.Shutdown()
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
