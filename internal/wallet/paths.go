package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// BIP-44 base paths offered by hardware backends. The account index is
// appended as the last, non-hardened component.
var (
	PathEthereum        = models.PathDescriptor{Label: "Ethereum", Path: "m/44'/60'/0'/0"}
	PathEthereumClassic = models.PathDescriptor{Label: "Ethereum Classic", Path: "m/44'/61'/0'/0"}
	PathTestnet         = models.PathDescriptor{Label: "Testnets", Path: "m/44'/1'/0'/0"}
	PathLedgerLegacy    = models.PathDescriptor{Label: "Ledger (legacy)", Path: "m/44'/60'/0'"}
)

var supportedPaths = map[models.BackendID][]models.PathDescriptor{
	models.BackendSecalot: {PathEthereum, PathEthereumClassic, PathTestnet, PathLedgerLegacy},
}

// SupportedPaths returns the ordered path list of a backend. The first entry
// is the default base path.
func SupportedPaths(backend models.BackendID) []models.PathDescriptor {
	paths := supportedPaths[backend]
	out := make([]models.PathDescriptor, len(paths))
	copy(out, paths)
	return out
}

// AccountPath joins a base path and an account index.
func AccountPath(base string, index int) string {
	return fmt.Sprintf("%s/%d", strings.TrimSuffix(base, "/"), index)
}

// validateBasePath checks that base parses as a BIP-32 path.
func validateBasePath(base string) error {
	if _, err := accounts.ParseDerivationPath(base); err != nil {
		return fmt.Errorf("invalid base path %q: %w", base, err)
	}
	return nil
}
