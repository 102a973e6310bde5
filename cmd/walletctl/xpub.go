package main

import (
	"github.com/urfave/cli/v2"
)

var xpub = cli.Command{
	Name:   "xpub",
	Usage:  "print the extended public key of the base path for watch-only use",
	Action: xpubAction,
}

func xpubAction(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, cfg)
	defer cancel()

	hw, err := openHardware(ctx, cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	key, err := hw.ExtendedKey()
	if err != nil {
		return err
	}
	printJSON(map[string]string{
		"base_path": hw.CurrentPath(),
		"xpub":      key,
	})
	return nil
}
