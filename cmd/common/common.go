// Package common provides shared helpers for the openRoots CLI binaries:
// structured logger construction, service key loading and secret resolution
// from the environment.
package common

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Imdavyking/openRoots/crypto"
)

// ServiceKeyEnv is the environment variable the service signing key is read
// from when the flag is empty.
const ServiceKeyEnv = "OPENROOTS_PRIVATE_KEY"

// NewLogger builds the process logger. JSON output is for deployments where
// logs are shipped; text is for terminals.
func NewLogger(json bool, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// LoadOrGenerateServiceKey resolves the secp256k1 service key: the flag
// value wins, then ServiceKeyEnv, and an ephemeral key is generated when
// both are empty. Generated keys are fine for local runs; attestations from
// them do not survive a restart.
func LoadOrGenerateServiceKey(hexKey string, log *slog.Logger) (*crypto.Signer, error) {
	if hexKey == "" {
		hexKey = os.Getenv(ServiceKeyEnv)
	}
	if hexKey != "" {
		signer, err := crypto.SignerFromHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid service key: %w", err)
		}
		return signer, nil
	}

	signer, err := crypto.GenerateSigner()
	if err != nil {
		return nil, err
	}
	log.Warn("no service key configured, generated an ephemeral one",
		"address", signer.Address().Hex())
	return signer, nil
}

// SecretFromEnv returns flagValue, or the named environment variable when
// the flag is empty. Used for credentials that should not appear in process
// listings.
func SecretFromEnv(flagValue, envName string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envName)
}
