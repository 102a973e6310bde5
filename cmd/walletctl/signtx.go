package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

var signtx = cli.Command{
	Name:  "sign-tx",
	Usage: "sign a transaction given as eth_sendTransaction JSON",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "index",
			Usage: "hardware account index",
			Value: 0,
		},
		&cli.StringFlag{
			Name:     "tx",
			Usage:    `transaction JSON, e.g. {"to":"0x..","value":"0x1","gas":"0x5208","gasPrice":"0x1","nonce":"0x0"}`,
			Required: true,
		},
	},
	Action: signTxAction,
}

func signTxAction(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var req models.TxRequest
	if err := json.Unmarshal([]byte(c.String("tx")), &req); err != nil {
		return fmt.Errorf("invalid transaction JSON: %w", err)
	}

	ctx, cancel := withTimeout(c, cfg)
	defer cancel()

	acct, cleanup, err := openAccount(ctx, cfg, c.Int("index"))
	if err != nil {
		return err
	}
	defer cleanup()

	signed, err := acct.SignTransaction(ctx, cfg.Network, req)
	if err != nil {
		return err
	}
	printJSON(signed)
	return nil
}
