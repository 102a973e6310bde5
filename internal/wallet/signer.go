package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/OKaluzny/wallet-signer/internal/chain"
	"github.com/OKaluzny/wallet-signer/internal/log"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// signingTarget is the per-account state a signing call needs. It is passed
// by value so no handle shares mutable state with another.
type signingTarget struct {
	path    string
	index   uint32
	address common.Address
}

// signTransaction runs req through the network rules, has the transport sign
// it, reassembles the signature and checks the chain id it commits to.
// Nothing is returned unless every check passes.
func signTransaction(
	ctx context.Context,
	transport Transport,
	translate ErrorTranslator,
	target signingTarget,
	network models.Network,
	req models.TxRequest,
) (*models.SignedTransaction, error) {
	rules, err := chain.RulesFor(network)
	if err != nil {
		return nil, &TransactionFormatError{Field: "chainId", Err: err}
	}
	unsigned, err := rules.Wrap(req)
	if err != nil {
		var fe *chain.FieldError
		if errors.As(err, &fe) {
			return nil, &TransactionFormatError{Field: fe.Field, Err: errors.New(fe.Reason)}
		}
		return nil, &TransactionFormatError{Field: "tx", Err: err}
	}

	// Captured before dispatch; the device's answer must commit to it.
	expected := rules.ChainID

	logger := log.Wallet.With().
		Str("path", target.path).
		Str("network", network.Name).
		Str("chain_id", expected.String()).
		Logger()
	logger.Debug().Uint64("nonce", unsigned.Nonce()).Msg("requesting transaction signature")

	sig, err := transport.SignTransaction(ctx, target.path, unsigned, expected)
	if err != nil {
		return nil, translate("sign transaction", target.path, err)
	}

	v, err := decodeHexBig(sig.V)
	if err != nil {
		return nil, invalidSignature("sign transaction", target.path, "v", err)
	}
	r, err := decodeHexBig(sig.R)
	if err != nil {
		return nil, invalidSignature("sign transaction", target.path, "r", err)
	}
	s, err := decodeHexBig(sig.S)
	if err != nil {
		return nil, invalidSignature("sign transaction", target.path, "s", err)
	}
	if r.Sign() == 0 || s.Sign() == 0 {
		return nil, invalidSignature("sign transaction", target.path, "r/s", errors.New("zero value"))
	}

	signed, err := chain.Assemble(unsigned, v, r, s)
	if err != nil {
		return nil, &TransactionFormatError{Field: "type", Err: err}
	}

	got := chain.SignedChainID(signed)
	if got.Cmp(expected) != 0 {
		logger.Warn().Str("signed_chain_id", got.String()).Msg("signature chain id mismatch")
		return nil, &InvalidNetworkIDError{Expected: expected, Got: got}
	}

	from, err := types.Sender(rules.Signer(), signed)
	if signed.Type() != types.LegacyTxType && (err != nil || from != target.address) {
		// A typed payload carries the requested chain id, so a device that
		// signed for another chain only shows up as a different sender.
		return nil, typedChainMismatch(logger, signed, target, expected, from, err)
	}
	if err != nil {
		return nil, invalidSignature("sign transaction", target.path, "v/r/s", err)
	}
	if from != target.address {
		return nil, fmt.Errorf("%w: recovered %s, account %s", ErrSignerMismatch, from.Hex(), target.address.Hex())
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode signed transaction: %w", err)
	}

	logger.Info().Str("tx_hash", signed.Hash().Hex()).Msg("transaction signed")

	return &models.SignedTransaction{
		Tx:   signed,
		Raw:  raw,
		Hash: signed.Hash(),
		From: from,
		V:    (*hexutil.Big)(v),
		R:    (*hexutil.Big)(r),
		S:    (*hexutil.Big)(s),
	}, nil
}

func typedChainMismatch(
	logger zerolog.Logger,
	signed *types.Transaction,
	target signingTarget,
	expected *big.Int,
	from common.Address,
	senderErr error,
) error {
	var candidates []*big.Int
	for _, id := range chain.KnownChainIDs() {
		if id.Cmp(expected) != 0 {
			candidates = append(candidates, id)
		}
	}
	if got, ok := chain.RecoverChainID(signed, target.address, candidates); ok {
		logger.Warn().Str("signed_chain_id", got.String()).Msg("signature chain id mismatch")
		return &InvalidNetworkIDError{Expected: expected, Got: got}
	}
	cause := fmt.Errorf("%w: recovered %s, account %s", ErrSignerMismatch, from.Hex(), target.address.Hex())
	if senderErr != nil {
		cause = fmt.Errorf("%w: %v", ErrSignerMismatch, senderErr)
	}
	logger.Warn().Err(cause).Msg("typed signature does not recover to account on any known chain")
	return &InvalidNetworkIDError{Expected: expected, Err: cause}
}

// signMessage has the transport sign msg and returns the raw signature.
func signMessage(
	ctx context.Context,
	transport Transport,
	translate ErrorTranslator,
	target signingTarget,
	msg []byte,
) ([]byte, error) {
	log.Wallet.Debug().Str("path", target.path).Int("size", len(msg)).Msg("requesting message signature")

	out, err := transport.SignMessage(ctx, target.path, msg)
	if err != nil {
		return nil, translate("sign message", target.path, err)
	}
	sig, err := decodeHex(out)
	if err != nil {
		return nil, invalidSignature("sign message", target.path, "signature", err)
	}
	return sig, nil
}

func invalidSignature(op, path, field string, err error) error {
	return &TransportError{
		Op:      op,
		Path:    path,
		Message: fmt.Sprintf("invalid signature component %s: %v", field, err),
		Err:     err,
	}
}
