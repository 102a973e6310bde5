package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OKaluzny/wallet-signer/internal/chain"
	"github.com/OKaluzny/wallet-signer/internal/device"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

var testRecipient = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

func legacyRequest(nonce uint64) models.TxRequest {
	gas := hexutil.Uint64(21_000)
	n := hexutil.Uint64(nonce)
	to := testRecipient
	return models.TxRequest{
		To:       &to,
		Gas:      &gas,
		GasPrice: (*hexutil.Big)(big.NewInt(20_000_000_000)),
		Value:    (*hexutil.Big)(big.NewInt(1_000_000)),
		Nonce:    &n,
	}
}

func dynamicFeeRequest(nonce uint64) models.TxRequest {
	req := legacyRequest(nonce)
	req.GasPrice = nil
	req.MaxFeePerGas = (*hexutil.Big)(big.NewInt(30_000_000_000))
	req.MaxPriorityFeePerGas = (*hexutil.Big)(big.NewInt(1_000_000_000))
	return req
}

func openTestWallet(t *testing.T, transport Transport) *HardwareWallet {
	t.Helper()
	w, err := OpenHardwareWallet(context.Background(), models.BackendSecalot, transport, "")
	require.NoError(t, err)
	return w
}

// fixedChainTransport signs every transaction for one chain id, whatever
// the caller asked for.
type fixedChainTransport struct {
	*device.Emulator
	chainID *big.Int
}

func (t fixedChainTransport) SignTransaction(ctx context.Context, path string, tx *types.Transaction, _ *big.Int) (models.SignatureComponents, error) {
	return t.Emulator.SignTransaction(ctx, path, tx, t.chainID)
}

// splitTransport reports keys from one device and signs with another.
type splitTransport struct {
	keys   *device.Emulator
	signer *device.Emulator
}

func (t splitTransport) PublicKey(ctx context.Context, path string) (models.RootKey, error) {
	return t.keys.PublicKey(ctx, path)
}

func (t splitTransport) SignTransaction(ctx context.Context, path string, tx *types.Transaction, chainID *big.Int) (models.SignatureComponents, error) {
	return t.signer.SignTransaction(ctx, path, tx, chainID)
}

func (t splitTransport) SignMessage(ctx context.Context, path string, msg []byte) (string, error) {
	return t.signer.SignMessage(ctx, path, msg)
}

func TestHardwareWallet_DefaultPath(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))
	assert.Equal(t, PathEthereum.Path, w.CurrentPath())
	assert.Equal(t, models.BackendSecalot, w.Backend())
	assert.Equal(t, SupportedPaths(models.BackendSecalot), w.SupportedPaths())

	acct, err := w.Account(0)
	require.NoError(t, err)
	assert.Equal(t, testAddress0, acct.Address())
	assert.Equal(t, "m/44'/60'/0'/0/0", acct.Path())
	assert.Equal(t, uint32(0), acct.Index())
	assert.True(t, acct.IsHardware())
	assert.NotNil(t, acct.ErrorHandler())

	d := acct.Describe("mainnet")
	assert.Equal(t, testAddress0.Hex(), d.Address)
	assert.Equal(t, "m/44'/60'/0'/0/0", d.DerivationPath)
}

func TestHardwareWallet_AccountBeforeInit(t *testing.T) {
	w := NewHardwareWallet(models.BackendSecalot, testEmulator(t, testMnemonic))
	_, err := w.Account(0)

	var de *DerivationError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = w.ExtendedKey()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestHardwareWallet_AccountIdempotent(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))
	a1, err := w.Account(3)
	require.NoError(t, err)
	a2, err := w.Account(3)
	require.NoError(t, err)
	assert.Equal(t, a1.Address(), a2.Address())
	assert.Equal(t, a1.Path(), a2.Path())

	other, err := w.Account(4)
	require.NoError(t, err)
	assert.NotEqual(t, a1.Address(), other.Address())
	assert.Equal(t, "m/44'/60'/0'/0/3", a1.Path(), "later handles leave earlier ones untouched")
}

func TestHardwareWallet_AccountIndexErrors(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))

	_, err := w.Account(-1)
	var de *DerivationError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "m/44'/60'/0'/0/-1", de.Path)

	_, err = w.Account(1 << 31)
	require.ErrorAs(t, err, &de)
}

func TestHardwareWallet_ExplicitPath(t *testing.T) {
	w, err := OpenHardwareWallet(context.Background(), models.BackendSecalot, testEmulator(t, testMnemonic), PathTestnet.Path)
	require.NoError(t, err)
	acct, err := w.Account(0)
	require.NoError(t, err)
	assert.Equal(t, "m/44'/1'/0'/0/0", acct.Path())
	assert.NotEqual(t, testAddress0, acct.Address())

	xpub, err := w.ExtendedKey()
	require.NoError(t, err)
	assert.NotEmpty(t, xpub)
}

func TestHardwareWallet_InitErrors(t *testing.T) {
	ctx := context.Background()

	w := NewHardwareWallet(models.BackendSecalot, testEmulator(t, testMnemonic))
	err := w.Init(ctx, "not/a/path")
	var ie *InitializationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "not/a/path", ie.BasePath)

	// A failed Init may be retried.
	require.NoError(t, w.Init(ctx, ""))
	err = w.Init(ctx, PathTestnet.Path)
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Equal(t, PathEthereum.Path, w.CurrentPath())

	_, err = OpenHardwareWallet(ctx, models.BackendSecalot, nil, "")
	require.ErrorAs(t, err, &ie)

	var detached *device.Emulator
	_, err = OpenHardwareWallet(ctx, models.BackendSecalot, detached, "")
	require.ErrorAs(t, err, &ie)

	_, err = OpenHardwareWallet(ctx, models.BackendWeb3Wallet, testEmulator(t, testMnemonic), "")
	require.ErrorAs(t, err, &ie, "provider backend has no hardware paths")
}

func TestHardwareWallet_WrongPassword(t *testing.T) {
	emu := testEmulator(t, testMnemonic, device.WithPIN("1234"))
	require.Error(t, emu.Unlock("0000"))

	_, err := OpenHardwareWallet(context.Background(), models.BackendSecalot, emu, "")
	var ie *InitializationError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, ErrDeviceLocked)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusSecurityNotMet, te.Code)

	require.NoError(t, emu.Unlock("1234"))
	_, err = OpenHardwareWallet(context.Background(), models.BackendSecalot, emu, "")
	assert.NoError(t, err)
}

func TestHardwareAccount_SignLegacyTransaction(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))
	acct, err := w.Account(0)
	require.NoError(t, err)

	signed, err := acct.SignTransaction(context.Background(), chain.Mainnet, legacyRequest(0))
	require.NoError(t, err)

	assert.Equal(t, testAddress0, signed.From)
	assert.False(t, signed.Submitted)
	assert.Equal(t, int64(1), chain.SignedChainID(signed.Tx).Int64())
	assert.Contains(t, []int64{37, 38}, signed.V.ToInt().Int64())

	decoded := new(types.Transaction)
	require.NoError(t, decoded.UnmarshalBinary(signed.Raw))
	assert.Equal(t, signed.Hash, decoded.Hash())
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), decoded)
	require.NoError(t, err)
	assert.Equal(t, testAddress0, from)
}

func TestHardwareAccount_SignDynamicFeeTransaction(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))
	acct, err := w.Account(1)
	require.NoError(t, err)

	signed, err := acct.SignTransaction(context.Background(), chain.Sepolia, dynamicFeeRequest(5))
	require.NoError(t, err)
	assert.Equal(t, uint8(types.DynamicFeeTxType), signed.Tx.Type())
	assert.Equal(t, chain.Sepolia.ChainID.Int64(), signed.Tx.ChainId().Int64())
	assert.Equal(t, acct.Address(), signed.From)
}

func TestHardwareAccount_ChainIDMismatch(t *testing.T) {
	emu := testEmulator(t, testMnemonic)
	w := openTestWallet(t, fixedChainTransport{Emulator: emu, chainID: big.NewInt(1)})
	acct, err := w.Account(0)
	require.NoError(t, err)

	signed, err := acct.SignTransaction(context.Background(), chain.Ropsten, legacyRequest(0))
	assert.Nil(t, signed)

	var ne *InvalidNetworkIDError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, int64(3), ne.Expected.Int64())
	assert.Equal(t, int64(1), ne.Got.Int64())
}

func TestHardwareAccount_ChainIDMismatchDynamicFee(t *testing.T) {
	emu := testEmulator(t, testMnemonic)
	w := openTestWallet(t, fixedChainTransport{Emulator: emu, chainID: big.NewInt(1)})
	acct, err := w.Account(0)
	require.NoError(t, err)

	signed, err := acct.SignTransaction(context.Background(), chain.Ropsten, dynamicFeeRequest(0))
	assert.Nil(t, signed)

	var ne *InvalidNetworkIDError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, int64(3), ne.Expected.Int64())
	require.NotNil(t, ne.Got)
	assert.Equal(t, int64(1), ne.Got.Int64())
	assert.NotErrorIs(t, err, ErrSignerMismatch)
}

func TestHardwareAccount_ChainIDUnknownDynamicFee(t *testing.T) {
	emu := testEmulator(t, testMnemonic)
	w := openTestWallet(t, fixedChainTransport{Emulator: emu, chainID: big.NewInt(999)})
	acct, err := w.Account(0)
	require.NoError(t, err)

	_, err = acct.SignTransaction(context.Background(), chain.Sepolia, dynamicFeeRequest(0))

	var ne *InvalidNetworkIDError
	require.ErrorAs(t, err, &ne)
	assert.Nil(t, ne.Got)
	assert.Equal(t, chain.Sepolia.ChainID.Int64(), ne.Expected.Int64())
	assert.ErrorIs(t, err, ErrSignerMismatch)
}

func TestHardwareAccount_SignerMismatch(t *testing.T) {
	transport := splitTransport{
		keys:   testEmulator(t, testMnemonic),
		signer: testEmulator(t, testMnemonic2),
	}
	w := openTestWallet(t, transport)
	acct, err := w.Account(0)
	require.NoError(t, err)

	_, err = acct.SignTransaction(context.Background(), chain.Mainnet, legacyRequest(0))
	assert.ErrorIs(t, err, ErrSignerMismatch)
}

func TestHardwareAccount_UserRejected(t *testing.T) {
	var seen []device.Request
	emu := testEmulator(t, testMnemonic, device.WithApprover(func(r device.Request) bool {
		seen = append(seen, r)
		return r.Op != "sign transaction"
	}))
	w := openTestWallet(t, emu)
	acct, err := w.Account(0)
	require.NoError(t, err)

	req := legacyRequest(7)
	signed, err := acct.SignTransaction(context.Background(), chain.Mainnet, req)
	assert.Nil(t, signed)
	assert.ErrorIs(t, err, ErrUserRejected)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusConditionsNotMet, te.Code)
	assert.Equal(t, acct.Path(), te.Path)

	assert.Equal(t, uint64(7), uint64(*req.Nonce))
	assert.Nil(t, req.ChainID)
	assert.Nil(t, req.From)
	require.Len(t, seen, 1)
	assert.Equal(t, int64(1), seen[0].ChainID.Int64())
}

func TestHardwareAccount_FormatErrors(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))
	acct, err := w.Account(0)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name    string
		network models.Network
		mutate  func(*models.TxRequest)
		field   string
	}{
		{"missing nonce", chain.Mainnet, func(r *models.TxRequest) { r.Nonce = nil }, "nonce"},
		{"missing gas", chain.Mainnet, func(r *models.TxRequest) { r.Gas = nil }, "gas"},
		{"chain id mismatch", chain.Mainnet, func(r *models.TxRequest) { r.ChainID = (*hexutil.Big)(big.NewInt(5)) }, "chainId"},
		{"pre replay protection", models.Network{Name: "frontier", ChainID: big.NewInt(1), Fork: models.ForkHomestead}, func(*models.TxRequest) {}, "chainId"},
		{"no chain id", models.Network{Name: "nowhere"}, func(*models.TxRequest) {}, "chainId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := legacyRequest(0)
			tt.mutate(&req)
			_, err := acct.SignTransaction(ctx, tt.network, req)
			var fe *TransactionFormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestHardwareAccount_SignMessage(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))
	acct, err := w.Account(0)
	require.NoError(t, err)

	for _, msg := range [][]byte{nil, []byte("hello world")} {
		sig, err := acct.SignMessage(context.Background(), msg)
		require.NoError(t, err)
		require.Len(t, sig, 65)
		assert.Contains(t, []byte{27, 28}, sig[64])

		raw := append([]byte(nil), sig...)
		raw[64] -= 27
		pub, err := crypto.SigToPub(accounts.TextHash(msg), raw)
		require.NoError(t, err)
		assert.Equal(t, acct.Address(), crypto.PubkeyToAddress(*pub))
	}
}

func TestHardwareAccount_ClosedDevice(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))
	acct, err := w.Account(0)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = acct.SignMessage(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrDeviceStatus)
}

func TestHardwareAccount_Canceled(t *testing.T) {
	w := openTestWallet(t, testEmulator(t, testMnemonic))
	acct, err := w.Account(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = acct.SignTransaction(ctx, chain.Mainnet, legacyRequest(0))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHardwareAccount_InvalidSignatureFromTransport(t *testing.T) {
	w := openTestWallet(t, badSigTransport{testEmulator(t, testMnemonic)})
	acct, err := w.Account(0)
	require.NoError(t, err)

	_, err = acct.SignTransaction(context.Background(), chain.Mainnet, legacyRequest(0))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "sign transaction", te.Op)
}

// badSigTransport returns malformed signature components.
type badSigTransport struct {
	*device.Emulator
}

func (badSigTransport) SignTransaction(context.Context, string, *types.Transaction, *big.Int) (models.SignatureComponents, error) {
	return models.SignatureComponents{V: "0x25", R: "0xnothex", S: "0x01"}, nil
}
