package storage

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// ErrDuplicateKey is returned by TxStore.Put when the idempotency key already
// holds a transaction.
var ErrDuplicateKey = errors.New("idempotency key already stored")

// NonceStore manages per-address nonce state.
type NonceStore interface {
	// GetAndIncrement atomically returns the current nonce and increments it.
	GetAndIncrement(address common.Address) (uint64, error)
	// Release hands nonce back if it is still the most recently issued one
	// for address. It reports whether the nonce was returned; a nonce with
	// later ones issued after it stays consumed.
	Release(address common.Address, nonce uint64) (bool, error)
	// Reset sets the next nonce for address, e.g. after reading it from chain.
	Reset(address common.Address, next uint64) error
}

// TxStore provides idempotent storage of signed transactions.
type TxStore interface {
	// Get returns a previously stored transaction by idempotency key, or nil if not found.
	Get(idempotencyKey string) (*models.SignedTransaction, error)
	// Put stores a transaction under a fresh idempotency key. An existing
	// entry is never replaced; Put returns ErrDuplicateKey instead.
	Put(idempotencyKey string, tx *models.SignedTransaction) error
}
