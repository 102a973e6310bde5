package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// HardwareAccount is a signing handle for one derivation index of a
// hardware wallet. Handles are independent values; two handles for the same
// index carry identical keys and paths.
type HardwareAccount struct {
	backend   models.BackendID
	transport Transport
	translate ErrorTranslator
	target    signingTarget
	key       *DerivedKey
}

// Path returns the full derivation path of the account.
func (a *HardwareAccount) Path() string { return a.target.path }

// Index returns the account index below the base path.
func (a *HardwareAccount) Index() uint32 { return a.target.index }

// PublicKey returns the compressed public key.
func (a *HardwareAccount) PublicKey() []byte {
	out := make([]byte, len(a.key.PublicKey))
	copy(out, a.key.PublicKey)
	return out
}

func (a *HardwareAccount) Address() common.Address { return a.target.address }

func (a *HardwareAccount) IsHardware() bool { return true }

func (a *HardwareAccount) Backend() models.BackendID { return a.backend }

func (a *HardwareAccount) ErrorHandler() ErrorTranslator { return a.translate }

// Describe returns the account as a DerivedAddress for display.
func (a *HardwareAccount) Describe(network string) *models.DerivedAddress {
	return describe(network, a.target.path, a.key)
}

// SignTransaction has the device sign req and verifies that the signature
// commits to network's chain id. On any failure req is left untouched and
// no transaction is returned.
func (a *HardwareAccount) SignTransaction(ctx context.Context, network models.Network, req models.TxRequest) (*models.SignedTransaction, error) {
	return signTransaction(ctx, a.transport, a.translate, a.target, network, req)
}

// SignMessage has the device sign msg as a personal message.
func (a *HardwareAccount) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return signMessage(ctx, a.transport, a.translate, a.target, msg)
}
