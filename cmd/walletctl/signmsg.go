package main

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

var signmsg = cli.Command{
	Name:  "sign-msg",
	Usage: "personal-sign a message",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "index",
			Usage: "hardware account index",
			Value: 0,
		},
		&cli.StringFlag{
			Name:  "message",
			Usage: "the message to sign",
			Value: "",
		},
	},
	Action: signMsgAction,
}

func signMsgAction(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, cfg)
	defer cancel()

	acct, cleanup, err := openAccount(ctx, cfg, c.Int("index"))
	if err != nil {
		return err
	}
	defer cleanup()

	sig, err := acct.SignMessage(ctx, []byte(c.String("message")))
	if err != nil {
		return err
	}
	printJSON(map[string]string{
		"address":   acct.Address().Hex(),
		"signature": hexutil.Encode(sig),
	})
	return nil
}
