package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// FieldError reports a transaction request field the rules reject.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// Wrap builds the unsigned transaction for req under these rules. Nothing is
// defaulted: a missing nonce, value, gas limit or fee is an error. A dynamic
// fee transaction is built when fee caps are set and London is active,
// otherwise a legacy one.
func (r Rules) Wrap(req models.TxRequest) (*types.Transaction, error) {
	if !r.ReplayProtected() {
		return nil, &FieldError{Field: "chainId", Reason: "network rules predate replay protection"}
	}
	if req.Nonce == nil {
		return nil, &FieldError{Field: "nonce", Reason: "missing"}
	}
	if req.Value == nil {
		return nil, &FieldError{Field: "value", Reason: "missing"}
	}
	if req.Value.ToInt().Sign() < 0 {
		return nil, &FieldError{Field: "value", Reason: "negative"}
	}
	if req.To == nil && len(req.Data) == 0 {
		return nil, &FieldError{Field: "to", Reason: "missing and no contract code supplied"}
	}
	if req.Gas == nil || *req.Gas == 0 {
		return nil, &FieldError{Field: "gas", Reason: "missing"}
	}
	if req.ChainID != nil && req.ChainID.ToInt().Cmp(r.ChainID) != 0 {
		return nil, &FieldError{
			Field:  "chainId",
			Reason: fmt.Sprintf("%s does not match network chain id %s", req.ChainID.ToInt(), r.ChainID),
		}
	}

	dynamic := req.MaxFeePerGas != nil || req.MaxPriorityFeePerGas != nil
	switch {
	case dynamic && req.GasPrice != nil:
		return nil, &FieldError{Field: "gasPrice", Reason: "both gasPrice and fee caps supplied"}
	case dynamic && !r.IsActive(models.ForkLondon):
		return nil, &FieldError{Field: "maxFeePerGas", Reason: "dynamic fees are not active on this network"}
	case dynamic:
		return r.wrapDynamicFee(req)
	case req.GasPrice == nil:
		return nil, &FieldError{Field: "gasPrice", Reason: "missing"}
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    uint64(*req.Nonce),
		GasPrice: new(big.Int).Set(req.GasPrice.ToInt()),
		Gas:      uint64(*req.Gas),
		To:       req.To,
		Value:    new(big.Int).Set(req.Value.ToInt()),
		Data:     copyBytes(req.Data),
	}), nil
}

func (r Rules) wrapDynamicFee(req models.TxRequest) (*types.Transaction, error) {
	if req.MaxFeePerGas == nil {
		return nil, &FieldError{Field: "maxFeePerGas", Reason: "missing"}
	}
	if req.MaxPriorityFeePerGas == nil {
		return nil, &FieldError{Field: "maxPriorityFeePerGas", Reason: "missing"}
	}
	feeCap := req.MaxFeePerGas.ToInt()
	tipCap := req.MaxPriorityFeePerGas.ToInt()
	if tipCap.Cmp(feeCap) > 0 {
		return nil, &FieldError{Field: "maxPriorityFeePerGas", Reason: "exceeds maxFeePerGas"}
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).Set(r.ChainID),
		Nonce:     uint64(*req.Nonce),
		GasTipCap: new(big.Int).Set(tipCap),
		GasFeeCap: new(big.Int).Set(feeCap),
		Gas:       uint64(*req.Gas),
		To:        req.To,
		Value:     new(big.Int).Set(req.Value.ToInt()),
		Data:      copyBytes(req.Data),
	}), nil
}

// Assemble returns a copy of the unsigned tx carrying the given signature
// values verbatim. Unlike types.Transaction.WithSignature it does not
// re-derive v, so the chain id the signer committed to stays observable.
func Assemble(tx *types.Transaction, v, r, s *big.Int) (*types.Transaction, error) {
	return assemble(tx, tx.ChainId(), v, r, s)
}

func assemble(tx *types.Transaction, chainID, v, r, s *big.Int) (*types.Transaction, error) {
	switch tx.Type() {
	case types.LegacyTxType:
		return types.NewTx(&types.LegacyTx{
			Nonce:    tx.Nonce(),
			GasPrice: tx.GasPrice(),
			Gas:      tx.Gas(),
			To:       tx.To(),
			Value:    tx.Value(),
			Data:     tx.Data(),
			V:        v,
			R:        r,
			S:        s,
		}), nil
	case types.DynamicFeeTxType:
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:    chainID,
			Nonce:      tx.Nonce(),
			GasTipCap:  tx.GasTipCap(),
			GasFeeCap:  tx.GasFeeCap(),
			Gas:        tx.Gas(),
			To:         tx.To(),
			Value:      tx.Value(),
			Data:       tx.Data(),
			AccessList: tx.AccessList(),
			V:          v,
			R:          r,
			S:          s,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported transaction type %d", tx.Type())
	}
}

// ChainIDFromV recovers the chain id an EIP-155 legacy signature commits to:
// (v - 35) / 2 for v >= 35. Smaller values are pre-EIP-155 signatures and
// yield 0.
func ChainIDFromV(v *big.Int) *big.Int {
	if v == nil || v.Cmp(big.NewInt(35)) < 0 {
		return new(big.Int)
	}
	id := new(big.Int).Sub(v, big.NewInt(35))
	return id.Rsh(id, 1)
}

// SignedChainID returns the chain id a signed transaction commits to. Legacy
// transactions encode it in v; typed transactions carry it in the signed
// payload.
func SignedChainID(tx *types.Transaction) *big.Int {
	if tx.Type() == types.LegacyTxType {
		v, _, _ := tx.RawSignatureValues()
		return ChainIDFromV(v)
	}
	return tx.ChainId()
}

// RecoverChainID finds the chain id under which a signed typed transaction
// recovers to from, trying each candidate in turn. The payload's own chain id
// only says what was asked for; a device that signed for another chain leaves
// no other trace. Legacy transactions are answered from v.
func RecoverChainID(tx *types.Transaction, from common.Address, candidates []*big.Int) (*big.Int, bool) {
	if tx.Type() == types.LegacyTxType {
		return SignedChainID(tx), true
	}
	v, r, s := tx.RawSignatureValues()
	for _, id := range candidates {
		if id == nil || id.Sign() <= 0 {
			continue
		}
		moved, err := assemble(tx, id, v, r, s)
		if err != nil {
			return nil, false
		}
		sender, err := types.Sender(types.LatestSignerForChainID(id), moved)
		if err == nil && sender == from {
			return new(big.Int).Set(id), true
		}
	}
	return nil, false
}

// KnownChainIDs lists the chain ids of every registered network.
func KnownChainIDs() []*big.Int {
	nets := Networks()
	ids := make([]*big.Int, 0, len(nets))
	for _, n := range nets {
		ids = append(ids, n.ChainID)
	}
	return ids
}

func copyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
