package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/OKaluzny/wallet-signer/internal/log"
	"github.com/OKaluzny/wallet-signer/internal/storage"
	"github.com/OKaluzny/wallet-signer/internal/wallet"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// Broadcaster submits signed transactions to the network.
// *ethclient.Client satisfies it.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// BuilderConfig holds configurable parameters for the transaction builder.
type BuilderConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration // attempt n waits n*n*RetryBackoff
	GasPrice     *big.Int
	GasLimit     uint64
}

// Builder turns send requests into signed transactions and broadcasts them.
// It handles nonces, fee defaults, broadcast retries and idempotency.
// Signing itself is never retried.
type Builder struct {
	nonceStore  storage.NonceStore
	txStore     storage.TxStore
	broadcaster Broadcaster
	logger      zerolog.Logger
	cfg         BuilderConfig
}

// NewBuilder creates a new transaction builder with the given config and stores.
func NewBuilder(cfg BuilderConfig, nonces storage.NonceStore, txs storage.TxStore, broadcaster Broadcaster) *Builder {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.GasPrice == nil {
		cfg.GasPrice = big.NewInt(20_000_000_000) // 20 gwei
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 21_000
	}
	return &Builder{
		nonceStore:  nonces,
		txStore:     txs,
		broadcaster: broadcaster,
		logger:      log.Tx,
		cfg:         cfg,
	}
}

// SendRequest represents a request to send a transaction.
type SendRequest struct {
	IdempotencyKey string // prevents duplicate sends
	Account        wallet.Account
	Network        models.Network
	To             *common.Address
	Value          *big.Int
	Data           []byte
	GasLimit       uint64 // zero selects the configured default
}

// Send builds, signs and broadcasts a transaction. A repeated idempotency
// key returns the stored result without signing again.
func (b *Builder) Send(ctx context.Context, req SendRequest) (*models.SignedTransaction, error) {
	if req.Account == nil {
		return nil, errors.New("no account")
	}
	existing, err := b.txStore.Get(req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("tx store get: %w", err)
	}
	if existing != nil {
		b.logger.Info().
			Str("idempotency_key", req.IdempotencyKey).
			Str("tx_hash", existing.Hash.Hex()).
			Msg("duplicate request, returning existing tx")
		return existing, nil
	}

	txReq, err := b.buildRequest(req)
	if err != nil {
		return nil, err
	}

	b.logger.Info().
		Str("backend", string(req.Account.Backend())).
		Str("network", req.Network.Name).
		Str("from", req.Account.Address().Hex()).
		Str("value", txReq.Value.String()).
		Msg("building transaction")

	signed, err := req.Account.SignTransaction(ctx, req.Network, txReq)
	if err != nil {
		b.releaseNonce(req.Account, txReq)
		return nil, fmt.Errorf("sign: %w", err)
	}

	// Provider accounts submit while signing.
	if !signed.Submitted {
		if err := b.broadcastWithRetry(ctx, signed, b.cfg.MaxRetries); err != nil {
			b.releaseNonce(req.Account, txReq)
			return nil, fmt.Errorf("broadcast: %w", err)
		}
		signed.Submitted = true
	}

	if err := b.txStore.Put(req.IdempotencyKey, signed); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// A concurrent Send with the same key finished first.
			if stored, getErr := b.txStore.Get(req.IdempotencyKey); getErr == nil && stored != nil {
				b.logger.Warn().
					Str("idempotency_key", req.IdempotencyKey).
					Str("tx_hash", signed.Hash.Hex()).
					Str("stored_hash", stored.Hash.Hex()).
					Msg("idempotency key raced, returning stored tx")
				return stored, nil
			}
		}
		return nil, fmt.Errorf("tx store put: %w", err)
	}
	return signed, nil
}

// releaseNonce returns the nonce taken for a send that never reached the
// network, so the account's next send does not leave a gap.
func (b *Builder) releaseNonce(acct wallet.Account, txReq models.TxRequest) {
	if txReq.Nonce == nil {
		return
	}
	nonce := uint64(*txReq.Nonce)
	released, err := b.nonceStore.Release(acct.Address(), nonce)
	logger := b.logger.With().Str("from", acct.Address().Hex()).Uint64("nonce", nonce).Logger()
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("nonce release failed")
	case released:
		logger.Debug().Msg("nonce released")
	default:
		logger.Warn().Msg("nonce not released, later nonces outstanding")
	}
}

// buildRequest fills nonce, gas and fee. Provider accounts get no nonce;
// the provider assigns its own.
func (b *Builder) buildRequest(req SendRequest) (models.TxRequest, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	gas := req.GasLimit
	if gas == 0 {
		gas = b.cfg.GasLimit
	}
	txReq := models.TxRequest{
		To:       req.To,
		Gas:      (*hexutil.Uint64)(&gas),
		GasPrice: (*hexutil.Big)(new(big.Int).Set(b.cfg.GasPrice)),
		Value:    (*hexutil.Big)(new(big.Int).Set(value)),
		Data:     req.Data,
	}
	if req.Network.ChainID != nil {
		txReq.ChainID = (*hexutil.Big)(new(big.Int).Set(req.Network.ChainID))
	}

	if req.Account.IsHardware() {
		nonce, err := b.nonceStore.GetAndIncrement(req.Account.Address())
		if err != nil {
			return models.TxRequest{}, fmt.Errorf("nonce store: %w", err)
		}
		txReq.Nonce = (*hexutil.Uint64)(&nonce)
	}
	return txReq, nil
}

func (b *Builder) broadcastWithRetry(ctx context.Context, signed *models.SignedTransaction, maxRetries int) error {
	if b.broadcaster == nil {
		return errors.New("no broadcaster configured")
	}
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := b.broadcaster.SendTransaction(ctx, signed.Tx)
		if err == nil {
			b.logger.Info().
				Str("tx_hash", signed.Hash.Hex()).
				Int("attempt", attempt).
				Msg("transaction broadcast successful")
			return nil
		}

		lastErr = err
		b.logger.Warn().
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Err(err).
			Msg("broadcast attempt failed")

		if attempt == maxRetries {
			break
		}
		// Exponential backoff
		select {
		case <-time.After(time.Duration(attempt*attempt) * b.cfg.RetryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("all %d broadcast attempts failed: %w", maxRetries, lastErr)
}
