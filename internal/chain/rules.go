// Package chain maps a network to the consensus rules used to hash, wrap and
// validate transactions for it.
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

var (
	// ErrUnknownNetwork is returned for a network name that is not in the table.
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrUnknownFork is returned for a fork name that is not supported.
	ErrUnknownFork = errors.New("unknown fork")
	// ErrMissingChainID is returned when a network carries no chain id.
	ErrMissingChainID = errors.New("network has no chain id")
)

var forkOrder = map[models.Fork]int{
	models.ForkHomestead: 0,
	models.ForkEIP155:    1,
	models.ForkBerlin:    2,
	models.ForkLondon:    3,
	models.ForkCancun:    4,
}

// Known networks by name.
var (
	Mainnet  = models.Network{Name: "mainnet", ChainID: big.NewInt(1), Fork: models.ForkCancun}
	Ropsten  = models.Network{Name: "ropsten", ChainID: big.NewInt(3), Fork: models.ForkLondon}
	Rinkeby  = models.Network{Name: "rinkeby", ChainID: big.NewInt(4), Fork: models.ForkLondon}
	Goerli   = models.Network{Name: "goerli", ChainID: big.NewInt(5), Fork: models.ForkLondon}
	Classic  = models.Network{Name: "classic", ChainID: big.NewInt(61), Fork: models.ForkBerlin}
	Holesky  = models.Network{Name: "holesky", ChainID: big.NewInt(17000), Fork: models.ForkCancun}
	Sepolia  = models.Network{Name: "sepolia", ChainID: big.NewInt(11155111), Fork: models.ForkCancun}
	networks = []models.Network{Mainnet, Ropsten, Rinkeby, Goerli, Classic, Holesky, Sepolia}
)

// Lookup returns the known network with the given name.
func Lookup(name string) (models.Network, error) {
	for _, n := range networks {
		if strings.EqualFold(n.Name, name) {
			return Copy(n), nil
		}
	}
	return models.Network{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
}

// Networks returns a copy of the known network table.
func Networks() []models.Network {
	out := make([]models.Network, len(networks))
	for i, n := range networks {
		out[i] = Copy(n)
	}
	return out
}

// Copy returns n with its chain id detached from the original.
func Copy(n models.Network) models.Network {
	if n.ChainID != nil {
		n.ChainID = new(big.Int).Set(n.ChainID)
	}
	return n
}

// Rules is the rule set of a single network.
type Rules struct {
	ChainID *big.Int
	Fork    models.Fork
}

// RulesFor returns the rules for a network. An empty fork defaults to the
// latest supported one.
func RulesFor(n models.Network) (Rules, error) {
	if n.ChainID == nil || n.ChainID.Sign() <= 0 {
		return Rules{}, fmt.Errorf("%w: %q", ErrMissingChainID, n.Name)
	}
	fork := n.Fork
	if fork == "" {
		fork = models.ForkCancun
	}
	if _, ok := forkOrder[fork]; !ok {
		return Rules{}, fmt.Errorf("%w: %q", ErrUnknownFork, fork)
	}
	return Rules{ChainID: new(big.Int).Set(n.ChainID), Fork: fork}, nil
}

// IsActive reports whether fork f is active under these rules.
func (r Rules) IsActive(f models.Fork) bool {
	return forkOrder[r.Fork] >= forkOrder[f]
}

// Signer returns the go-ethereum signer that hashes and recovers
// transactions under these rules.
func (r Rules) Signer() types.Signer {
	switch {
	case r.IsActive(models.ForkCancun):
		return types.NewCancunSigner(r.ChainID)
	case r.IsActive(models.ForkLondon):
		return types.NewLondonSigner(r.ChainID)
	case r.IsActive(models.ForkBerlin):
		return types.NewEIP2930Signer(r.ChainID)
	case r.IsActive(models.ForkEIP155):
		return types.NewEIP155Signer(r.ChainID)
	default:
		return types.HomesteadSigner{}
	}
}

// ReplayProtected reports whether signatures under these rules commit to the
// chain id.
func (r Rules) ReplayProtected() bool {
	return r.IsActive(models.ForkEIP155)
}
