package wallet

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/common"

	"github.com/OKaluzny/wallet-signer/internal/log"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// ProviderAccount signs through an injected provider. There is no
// derivation step: the address comes from the provider.
//
// Unlike HardwareAccount it does not check the chain id of what it signs.
// The provider signs and submits in one step, so there is no signature to
// inspect; the provider is trusted to sign for the network it is connected
// to.
type ProviderAccount struct {
	provider  Provider
	address   common.Address
	translate ErrorTranslator
}

// NewProviderAccount returns an account for address on provider.
func NewProviderAccount(provider Provider, address common.Address) (*ProviderAccount, error) {
	if isNil(provider) {
		return nil, ErrProviderUnavailable
	}
	return &ProviderAccount{
		provider:  provider,
		address:   address,
		translate: TranslateProviderError,
	}, nil
}

// ConnectProvider returns an account for the provider's first address.
func ConnectProvider(ctx context.Context, provider Provider) (*ProviderAccount, error) {
	if isNil(provider) {
		return nil, ErrProviderUnavailable
	}
	addrs, err := provider.Accounts(ctx)
	if err != nil {
		return nil, TranslateProviderError("accounts", "", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: provider exposes no accounts", ErrProviderUnavailable)
	}
	return NewProviderAccount(provider, addrs[0])
}

// isNil also catches a nil pointer stored in a non-nil interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (a *ProviderAccount) Path() string { return "" }

func (a *ProviderAccount) PublicKey() []byte { return nil }

func (a *ProviderAccount) Address() common.Address { return a.address }

func (a *ProviderAccount) IsHardware() bool { return false }

func (a *ProviderAccount) Backend() models.BackendID { return models.BackendWeb3Wallet }

func (a *ProviderAccount) ErrorHandler() ErrorTranslator { return a.translate }

// SignTransaction hands req to the provider with from set to the account
// address. The provider signs and submits it; the result carries the hash.
// network is not consulted.
func (a *ProviderAccount) SignTransaction(ctx context.Context, network models.Network, req models.TxRequest) (*models.SignedTransaction, error) {
	from := a.address
	req.From = &from

	log.Provider.Debug().
		Str("from", from.Hex()).
		Str("network", network.Name).
		Msg("chain id not verified locally for provider transaction")

	hash, err := a.provider.SendTransaction(ctx, req)
	if err != nil {
		return nil, a.translate("send transaction", from.Hex(), err)
	}
	return &models.SignedTransaction{
		Hash:      hash,
		From:      from,
		Submitted: true,
	}, nil
}

// SignMessage has the provider personal-sign msg.
func (a *ProviderAccount) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	out, err := a.provider.PersonalSign(ctx, msg, a.address)
	if err != nil {
		return nil, a.translate("sign message", a.address.Hex(), err)
	}
	sig, err := decodeHex(out)
	if err != nil {
		return nil, invalidSignature("sign message", a.address.Hex(), "signature", err)
	}
	return sig, nil
}
