package main

import (
	"github.com/urfave/cli/v2"

	"github.com/OKaluzny/wallet-signer/internal/chain"
	"github.com/OKaluzny/wallet-signer/internal/wallet"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

var paths = cli.Command{
	Name:   "paths",
	Usage:  "list the supported derivation paths and known networks",
	Action: pathsAction,
}

func pathsAction(c *cli.Context) error {
	printJSON(map[string]interface{}{
		"paths":    wallet.SupportedPaths(models.BackendSecalot),
		"networks": chain.Networks(),
	})
	return nil
}
