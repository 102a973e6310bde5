package wallet

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

var (
	// ErrNotInitialized is returned when an account is requested from a
	// wallet whose Init has not completed.
	ErrNotInitialized = errors.New("wallet not initialized")
	// ErrUserRejected is returned when the device operator or provider user
	// declines a request.
	ErrUserRejected = errors.New("request rejected by user")
	// ErrProviderUnavailable is returned when no provider was injected.
	ErrProviderUnavailable = errors.New("no provider available")
	// ErrSignerMismatch is returned when a signature recovers to an address
	// other than the account's.
	ErrSignerMismatch = errors.New("signature does not match account address")
	// ErrAlreadyInitialized is returned by a second Set on a key store.
	ErrAlreadyInitialized = errors.New("extended key already set")
)

// InitializationError reports a backend that could not be opened.
type InitializationError struct {
	Backend  models.BackendID
	BasePath string
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s wallet at %s: %v", e.Backend, e.BasePath, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// DerivationError reports an index or path that cannot be derived.
type DerivationError struct {
	Index int
	Path  string
	Err   error
}

func (e *DerivationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("derive index %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("derive %s (index %d): %v", e.Path, e.Index, e.Err)
}

func (e *DerivationError) Unwrap() error { return e.Err }

// TransportError is a backend failure after translation. Code and Message
// keep the raw backend values for display.
type TransportError struct {
	Op      string
	Path    string
	Code    int
	Message string
	Err     error

	statusWord bool
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Code != 0 && e.statusWord:
		return fmt.Sprintf("%s %s: %s (status 0x%04x)", e.Op, e.Path, msg, e.Code)
	case e.Code != 0:
		return fmt.Sprintf("%s %s: %s (code %d)", e.Op, e.Path, msg, e.Code)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvalidNetworkIDError reports a signature that commits to a chain other
// than the one the caller asked for. Got is nil when a typed transaction's
// signature matches no known chain; Err then carries the recovery failure.
type InvalidNetworkIDError struct {
	Expected *big.Int
	Got      *big.Int
	Err      error
}

func (e *InvalidNetworkIDError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("invalid network id in signature: expected %s: %v", e.Expected, e.Err)
	}
	return fmt.Sprintf("invalid network id in signature: got %s, expected %s", e.Got, e.Expected)
}

func (e *InvalidNetworkIDError) Unwrap() error { return e.Err }

// TransactionFormatError reports a request the network rules reject.
type TransactionFormatError struct {
	Field string
	Err   error
}

func (e *TransactionFormatError) Error() string {
	return fmt.Sprintf("malformed transaction field %s: %v", e.Field, e.Err)
}

func (e *TransactionFormatError) Unwrap() error { return e.Err }
