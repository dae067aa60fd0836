package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	// KindValidation is malformed or missing caller input.
	KindValidation Kind = iota + 1

	// KindNotFound is a lookup miss on a caller-supplied key.
	KindNotFound

	// KindAuthorization is an access denial from the on-chain check or a
	// membership check.
	KindAuthorization

	// KindIntegrity is a failed internal self-check. It indicates service
	// misconfiguration, never caller error, and is logged loudly.
	KindIntegrity

	// KindUpstream is a storage, network or RPC failure. Callers see a
	// generic message; detail stays in the logs.
	KindUpstream
)

// Error carries a caller-safe message and the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func errValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func errNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func errAuthorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func errIntegrity(msg string, err error) *Error {
	return &Error{Kind: KindIntegrity, Message: msg, Err: err}
}

func errUpstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the taxonomy and writes the JSON error body.
// Only the caller-safe message crosses the wire.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var ge *Error
	if !errors.As(err, &ge) {
		ge = &Error{Kind: KindUpstream, Message: "Internal Server Error", Err: err}
	}

	switch ge.Kind {
	case KindIntegrity:
		log.Error("integrity check failed", "err", err)
	case KindUpstream:
		log.Error("upstream failure", "err", err)
	default:
		log.Info("request rejected", "err", err)
	}

	writeJSON(w, statusFor(ge.Kind), map[string]string{"error": ge.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
