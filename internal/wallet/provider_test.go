package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OKaluzny/wallet-signer/internal/chain"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

type rpcErr struct {
	code int
	msg  string
}

func (e *rpcErr) Error() string  { return e.msg }
func (e *rpcErr) ErrorCode() int { return e.code }

type fakeProvider struct {
	accounts []common.Address
	sendErr  error
	signErr  error
	sig      string
	sent     []models.TxRequest
}

func (p *fakeProvider) Accounts(context.Context) ([]common.Address, error) {
	return p.accounts, nil
}

func (p *fakeProvider) SendTransaction(_ context.Context, req models.TxRequest) (common.Hash, error) {
	if p.sendErr != nil {
		return common.Hash{}, p.sendErr
	}
	p.sent = append(p.sent, req)
	return common.HexToHash("0x1234"), nil
}

func (p *fakeProvider) PersonalSign(context.Context, []byte, common.Address) (string, error) {
	return p.sig, p.signErr
}

var providerAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")

func TestProviderAccount_NilProvider(t *testing.T) {
	_, err := NewProviderAccount(nil, providerAddr)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = ConnectProvider(context.Background(), nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = ConnectProvider(context.Background(), &fakeProvider{})
	assert.ErrorIs(t, err, ErrProviderUnavailable, "no accounts exposed")
}

func TestProviderAccount_TypedNilProvider(t *testing.T) {
	var p *fakeProvider
	assert.NotPanics(t, func() {
		_, err := NewProviderAccount(p, providerAddr)
		assert.ErrorIs(t, err, ErrProviderUnavailable)

		_, err = ConnectProvider(context.Background(), p)
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})
}

func TestProviderAccount_Accessors(t *testing.T) {
	acct, err := ConnectProvider(context.Background(), &fakeProvider{accounts: []common.Address{providerAddr}})
	require.NoError(t, err)

	assert.Equal(t, providerAddr, acct.Address())
	assert.Empty(t, acct.Path())
	assert.Nil(t, acct.PublicKey())
	assert.False(t, acct.IsHardware())
	assert.Equal(t, models.BackendWeb3Wallet, acct.Backend())
}

func TestProviderAccount_SignTransaction(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{providerAddr}}
	acct, err := ConnectProvider(context.Background(), p)
	require.NoError(t, err)

	req := legacyRequest(0)
	signed, err := acct.SignTransaction(context.Background(), chain.Mainnet, req)
	require.NoError(t, err)

	assert.True(t, signed.Submitted)
	assert.Equal(t, common.HexToHash("0x1234"), signed.Hash)
	assert.Equal(t, providerAddr, signed.From)
	assert.Nil(t, signed.Tx)

	require.Len(t, p.sent, 1)
	require.NotNil(t, p.sent[0].From)
	assert.Equal(t, providerAddr, *p.sent[0].From)
	assert.Nil(t, req.From, "caller's request is not modified")
}

func TestProviderAccount_UserRejected(t *testing.T) {
	p := &fakeProvider{
		accounts: []common.Address{providerAddr},
		sendErr:  &rpcErr{code: ProviderUserRejected, msg: "User denied transaction signature."},
	}
	acct, err := ConnectProvider(context.Background(), p)
	require.NoError(t, err)

	_, err = acct.SignTransaction(context.Background(), chain.Mainnet, legacyRequest(0))
	assert.ErrorIs(t, err, ErrUserRejected)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ProviderUserRejected, te.Code)
	assert.Contains(t, te.Error(), "(code 4001)")
}

func TestProviderAccount_SignMessage(t *testing.T) {
	sig := "0x" + common.Bytes2Hex(make([]byte, 64)) + "1b"
	p := &fakeProvider{accounts: []common.Address{providerAddr}, sig: sig}
	acct, err := ConnectProvider(context.Background(), p)
	require.NoError(t, err)

	out, err := acct.SignMessage(context.Background(), []byte("hi"))
	require.NoError(t, err)
	assert.Len(t, out, 65)
	assert.Equal(t, byte(27), out[64])

	p.sig = "0xnothex"
	_, err = acct.SignMessage(context.Background(), []byte("hi"))
	var te *TransportError
	assert.ErrorAs(t, err, &te)

	p.signErr = errors.New("boom")
	_, err = acct.SignMessage(context.Background(), []byte("hi"))
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "sign message", te.Op)
}
