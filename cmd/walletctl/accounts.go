package main

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

var accounts = cli.Command{
	Name:  "accounts",
	Usage: "derive hardware accounts below the base path",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "from",
			Usage: "first account index",
			Value: 0,
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "number of accounts to derive",
			Value: 5,
		},
	},
	Action: accountsAction,
}

func accountsAction(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	count := c.Int("count")
	if count <= 0 {
		return errors.New("count must be positive")
	}

	ctx, cancel := withTimeout(c, cfg)
	defer cancel()

	hw, err := openHardware(ctx, cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	out := make([]*models.DerivedAddress, 0, count)
	for i := c.Int("from"); i < c.Int("from")+count; i++ {
		acct, err := hw.Account(i)
		if err != nil {
			return err
		}
		out = append(out, acct.Describe(cfg.Network.Name))
	}
	printJSON(out)
	return nil
}
