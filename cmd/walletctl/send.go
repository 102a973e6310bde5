package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/OKaluzny/wallet-signer/internal/storage"
	"github.com/OKaluzny/wallet-signer/internal/tx"
)

var send = cli.Command{
	Name:  "send",
	Usage: "build, sign and broadcast a transfer",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "index",
			Usage: "hardware account index",
			Value: 0,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "recipient address",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "value",
			Usage: "amount in wei",
			Value: "0",
		},
		&cli.StringFlag{
			Name:  "data",
			Usage: "hex call data",
		},
		&cli.Uint64Flag{
			Name:  "nonce",
			Usage: "nonce for the hardware account, read from the node's pending state when unset",
		},
	},
	Action: sendAction,
}

func sendAction(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !common.IsHexAddress(c.String("to")) {
		return fmt.Errorf("invalid recipient %q", c.String("to"))
	}
	to := common.HexToAddress(c.String("to"))
	value, ok := new(big.Int).SetString(c.String("value"), 10)
	if !ok {
		return fmt.Errorf("invalid value %q", c.String("value"))
	}
	var data []byte
	if s := c.String("data"); s != "" {
		if data, err = hexutil.Decode(s); err != nil {
			return fmt.Errorf("invalid data: %w", err)
		}
	}

	ctx, cancel := withTimeout(c, cfg)
	defer cancel()

	acct, cleanup, err := openAccount(ctx, cfg, c.Int("index"))
	if err != nil {
		return err
	}
	defer cleanup()

	nonces := storage.NewMemoryNonceStore()
	var broadcaster tx.Broadcaster
	if acct.IsHardware() {
		if cfg.RPCURL == "" {
			return fmt.Errorf("WALLET_RPC_URL is required to broadcast hardware-signed transactions")
		}
		client, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("dial node: %w", err)
		}
		defer client.Close()
		broadcaster = client

		var explicit *uint64
		if c.IsSet("nonce") {
			n := c.Uint64("nonce")
			explicit = &n
		}
		next, err := startingNonce(ctx, client, acct.Address(), explicit)
		if err != nil {
			return err
		}
		if err := nonces.Reset(acct.Address(), next); err != nil {
			return err
		}
	}

	builder := tx.NewBuilder(
		tx.BuilderConfig{
			MaxRetries: cfg.BroadcastMaxRetries,
			GasPrice:   cfg.DefaultGasPrice,
			GasLimit:   cfg.DefaultGasLimit,
		},
		nonces,
		storage.NewMemoryTxStore(),
		broadcaster,
	)

	signed, err := builder.Send(ctx, tx.SendRequest{
		// Stores live for this one invocation, so the key only guards
		// against resubmission inside it.
		IdempotencyKey: uuid.NewString(),
		Account:        acct,
		Network:        cfg.Network,
		To:             &to,
		Value:          value,
		Data:           data,
	})
	if err != nil {
		return err
	}
	printJSON(signed)
	return nil
}

type pendingNonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// startingNonce prefers an explicit nonce and otherwise asks the node for
// the account's pending nonce.
func startingNonce(ctx context.Context, node pendingNonceReader, addr common.Address, explicit *uint64) (uint64, error) {
	if explicit != nil {
		return *explicit, nil
	}
	n, err := node.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("pending nonce for %s: %w", addr.Hex(), err)
	}
	return n, nil
}
