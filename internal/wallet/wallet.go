// Package wallet exposes signing accounts over interchangeable key-custody
// backends: a hardware secure element reached through a Transport, and an
// injected Provider.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// Transport is the channel to a secure element. Implementations return raw
// device errors; the wallet translates them at its boundary.
//
// The core never issues concurrent calls on its own, and it relies on the
// transport to serialize commands against one physical device.
type Transport interface {
	// PublicKey returns the extended public key at path.
	PublicKey(ctx context.Context, path string) (models.RootKey, error)

	// SignTransaction asks the device to sign tx for chainID with the key at
	// path. v, r and s are returned as hex.
	SignTransaction(ctx context.Context, path string, tx *types.Transaction, chainID *big.Int) (models.SignatureComponents, error)

	// SignMessage asks the device for a personal-message signature with the
	// key at path, returned as hex.
	SignMessage(ctx context.Context, path string, msg []byte) (string, error)
}

// Provider is an injected wallet that signs with its own keys.
type Provider interface {
	// Accounts returns the addresses the provider can sign for.
	Accounts(ctx context.Context) ([]common.Address, error)

	// SendTransaction signs and submits req. req.From is always set.
	SendTransaction(ctx context.Context, req models.TxRequest) (common.Hash, error)

	// PersonalSign signs msg for addr and returns the hex signature.
	PersonalSign(ctx context.Context, msg []byte, addr common.Address) (string, error)
}

// ErrorTranslator maps raw backend errors onto the wallet error taxonomy.
type ErrorTranslator func(op, path string, err error) error

// Account is the capability shared by every backend.
type Account interface {
	// Path returns the derivation path, empty for provider accounts.
	Path() string
	// PublicKey returns the compressed public key, nil when unknown.
	PublicKey() []byte
	Address() common.Address
	IsHardware() bool
	Backend() models.BackendID
	ErrorHandler() ErrorTranslator

	// SignTransaction signs req for network.
	SignTransaction(ctx context.Context, network models.Network, req models.TxRequest) (*models.SignedTransaction, error)
	// SignMessage signs msg. Messages carry no chain id.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

var (
	_ Account = (*HardwareAccount)(nil)
	_ Account = (*ProviderAccount)(nil)
)
