// Package provider connects provider-backed accounts to an Ethereum JSON-RPC
// endpoint that manages its own keys, such as a node with unlocked accounts
// or an external signer.
package provider

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/OKaluzny/wallet-signer/internal/log"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// RPCProvider implements wallet.Provider over a JSON-RPC client.
type RPCProvider struct {
	client *rpc.Client
}

// Dial connects to the endpoint at url.
func Dial(ctx context.Context, url string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial provider %s: %w", url, err)
	}
	log.Provider.Info().Str("url", url).Msg("provider connected")
	return New(client), nil
}

// New wraps an existing client.
func New(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

// Accounts calls eth_accounts.
func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var addrs []common.Address
	if err := p.client.CallContext(ctx, &addrs, "eth_accounts"); err != nil {
		return nil, err
	}
	return addrs, nil
}

// SendTransaction calls eth_sendTransaction.
func (p *RPCProvider) SendTransaction(ctx context.Context, req models.TxRequest) (common.Hash, error) {
	var hash common.Hash
	if err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", req); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// PersonalSign calls personal_sign and returns the signature as hex.
func (p *RPCProvider) PersonalSign(ctx context.Context, msg []byte, addr common.Address) (string, error) {
	var sig hexutil.Bytes
	if err := p.client.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(msg), addr); err != nil {
		return "", err
	}
	return sig.String(), nil
}

// Close closes the underlying client.
func (p *RPCProvider) Close() {
	p.client.Close()
}
