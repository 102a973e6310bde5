package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// BackendID identifies the key-custody backend behind an account.
type BackendID string

// Supported backends.
const (
	BackendSecalot    BackendID = "secalot"
	BackendWeb3Wallet BackendID = "web3wallet"
)

// Fork names the consensus rule set a network signs under.
type Fork string

// Known forks, oldest first.
const (
	ForkHomestead Fork = "homestead"
	ForkEIP155    Fork = "spuriousDragon"
	ForkBerlin    Fork = "berlin"
	ForkLondon    Fork = "london"
	ForkCancun    Fork = "cancun"
)

// Network is the network the caller believes it is operating on.
type Network struct {
	Name    string   `json:"name"`
	ChainID *big.Int `json:"chain_id"`
	Fork    Fork     `json:"fork"`
}

// PathDescriptor is one entry of a backend's supported derivation paths.
type PathDescriptor struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// RootKey is the extended public key a backend reports for a base path.
// Both fields are hex encoded, with or without a 0x prefix.
type RootKey struct {
	PublicKey string `json:"public_key"`
	ChainCode string `json:"chain_code"`
}

// SignatureComponents holds a backend signature as hex strings.
type SignatureComponents struct {
	V string `json:"v"`
	R string `json:"r"`
	S string `json:"s"`
}

// DerivedAddress holds a generated address with its derivation path
type DerivedAddress struct {
	Network        string `json:"network"`
	Address        string `json:"address"`
	DerivationPath string `json:"derivation_path"`
	PublicKey      string `json:"public_key"`
}

// TxRequest is an unsigned transaction as supplied by the caller.
// Field names and encodings follow eth_sendTransaction arguments.
type TxRequest struct {
	From                 *common.Address `json:"from,omitempty"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
	ChainID              *hexutil.Big    `json:"chainId,omitempty"`
}

// SignedTransaction is the result of signing a TxRequest.
//
// Hardware accounts fill every field. Provider accounts hand the request to
// the provider, which signs and submits it itself; only From, Hash and
// Submitted are set then.
type SignedTransaction struct {
	Tx        *types.Transaction `json:"-"`
	Raw       hexutil.Bytes      `json:"raw,omitempty"`
	Hash      common.Hash        `json:"hash"`
	From      common.Address     `json:"from"`
	V         *hexutil.Big       `json:"v,omitempty"`
	R         *hexutil.Big       `json:"r,omitempty"`
	S         *hexutil.Big       `json:"s,omitempty"`
	Submitted bool               `json:"submitted"`
}
