// Package device emulates a secure element that holds a BIP-32 master key
// and answers public key and signing commands over the wallet Transport
// contract. Private keys never leave the emulator.
package device

import (
	"context"
	"crypto/ecdsa"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/OKaluzny/wallet-signer/internal/log"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// Status words returned by the emulator.
const (
	StatusSecurityNotMet     uint16 = 0x6982
	StatusConditionsNotMet   uint16 = 0x6985
	StatusInvalidData        uint16 = 0x6a80
	StatusDeviceNotConnected uint16 = 0x6f00
)

// ErrInvalidMnemonic is returned by New for a mnemonic that fails the BIP-39
// checksum.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// StatusError is a command failure reported with an APDU status word.
type StatusError struct {
	Op   string
	Code uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: device returned status 0x%04x", e.Op, e.Code)
}

// StatusCode returns the status word.
func (e *StatusError) StatusCode() uint16 { return e.Code }

// Request describes a signing command waiting for user confirmation.
type Request struct {
	Op      string
	Path    string
	ChainID *big.Int
	Tx      *types.Transaction
	Message []byte
}

// ApproveFunc stands in for the user pressing confirm or reject on the
// device.
type ApproveFunc func(Request) bool

// Emulator is a software secure element. Commands are serialized the way a
// physical device serializes its command queue.
type Emulator struct {
	mu       sync.Mutex
	master   *bip32.Key
	pin      string
	unlocked bool
	closed   bool
	approve  ApproveFunc
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithPIN locks the emulator behind pin until Unlock is called with it.
func WithPIN(pin string) Option {
	return func(e *Emulator) {
		e.pin = pin
	}
}

// WithApprover installs the confirmation callback. Without one every
// request is approved.
func WithApprover(f ApproveFunc) Option {
	return func(e *Emulator) {
		e.approve = f
	}
}

// New creates an emulator seeded from a BIP-39 mnemonic.
func New(mnemonic string, opts ...Option) (*Emulator, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	e := &Emulator{master: master}
	for _, opt := range opts {
		opt(e)
	}
	e.unlocked = e.pin == ""
	return e, nil
}

// Unlock opens a PIN-protected emulator. A wrong password leaves it locked.
func (e *Emulator) Unlock(password string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if subtle.ConstantTimeCompare([]byte(password), []byte(e.pin)) != 1 {
		log.Device.Warn().Msg("unlock rejected")
		return &StatusError{Op: "unlock", Code: StatusSecurityNotMet}
	}
	e.unlocked = true
	return nil
}

// PublicKey returns the uncompressed public key and chain code at path.
func (e *Emulator) PublicKey(ctx context.Context, path string) (models.RootKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.derive(ctx, "get public key", path)
	if err != nil {
		return models.RootKey{}, err
	}
	priv, err := toECDSA(key)
	if err != nil {
		return models.RootKey{}, &StatusError{Op: "get public key", Code: StatusInvalidData}
	}
	return models.RootKey{
		PublicKey: hexutil.Encode(crypto.FromECDSAPub(&priv.PublicKey)),
		ChainCode: hexutil.Encode(key.ChainCode),
	}, nil
}

// SignTransaction signs tx for chainID. Legacy transactions get an EIP-155
// v value, typed transactions the y parity.
func (e *Emulator) SignTransaction(ctx context.Context, path string, tx *types.Transaction, chainID *big.Int) (models.SignatureComponents, error) {
	const op = "sign transaction"
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.derive(ctx, op, path)
	if err != nil {
		return models.SignatureComponents{}, err
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return models.SignatureComponents{}, &StatusError{Op: op, Code: StatusInvalidData}
	}
	if !e.confirm(Request{Op: op, Path: path, ChainID: chainID, Tx: tx}) {
		return models.SignatureComponents{}, &StatusError{Op: op, Code: StatusConditionsNotMet}
	}
	priv, err := toECDSA(key)
	if err != nil {
		return models.SignatureComponents{}, &StatusError{Op: op, Code: StatusInvalidData}
	}

	hash := types.LatestSignerForChainID(chainID).Hash(tx)
	sig, err := crypto.Sign(hash[:], priv)
	if err != nil {
		return models.SignatureComponents{}, fmt.Errorf("%s: %w", op, err)
	}

	v := new(big.Int).SetUint64(uint64(sig[64]))
	if tx.Type() == types.LegacyTxType {
		v.Add(v, big.NewInt(35))
		v.Add(v, new(big.Int).Mul(chainID, big.NewInt(2)))
	}
	log.Device.Debug().Str("path", path).Str("chain_id", chainID.String()).Msg("transaction signed")

	return models.SignatureComponents{
		V: hexutil.EncodeBig(v),
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
	}, nil
}

// SignMessage personal-signs msg and returns the 65-byte signature as hex,
// with v in the 27/28 form.
func (e *Emulator) SignMessage(ctx context.Context, path string, msg []byte) (string, error) {
	const op = "sign message"
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.derive(ctx, op, path)
	if err != nil {
		return "", err
	}
	if !e.confirm(Request{Op: op, Path: path, Message: msg}) {
		return "", &StatusError{Op: op, Code: StatusConditionsNotMet}
	}
	priv, err := toECDSA(key)
	if err != nil {
		return "", &StatusError{Op: op, Code: StatusInvalidData}
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), priv)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// Close disconnects the emulator. Later commands fail.
func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// derive walks path from the master key. Callers hold e.mu.
func (e *Emulator) derive(ctx context.Context, op, path string) (*bip32.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.closed {
		return nil, &StatusError{Op: op, Code: StatusDeviceNotConnected}
	}
	if !e.unlocked {
		return nil, &StatusError{Op: op, Code: StatusSecurityNotMet}
	}
	indices, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, &StatusError{Op: op, Code: StatusInvalidData}
	}
	key := e.master
	for _, idx := range indices {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("%s: derive %s: %w", op, path, err)
		}
	}
	return key, nil
}

func (e *Emulator) confirm(req Request) bool {
	if e.approve == nil {
		return true
	}
	return e.approve(req)
}

// toECDSA converts a private bip32 key. The key may carry a leading zero
// byte.
func toECDSA(key *bip32.Key) (*ecdsa.PrivateKey, error) {
	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	return crypto.ToECDSA(raw)
}
