package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/OKaluzny/wallet-signer/internal/config"
	"github.com/OKaluzny/wallet-signer/internal/device"
	"github.com/OKaluzny/wallet-signer/internal/log"
	"github.com/OKaluzny/wallet-signer/internal/provider"
	"github.com/OKaluzny/wallet-signer/internal/wallet"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "walletctl"
	app.Usage = "derive accounts and sign with a hardware or provider-backed Ethereum wallet"
	app.Commands = append(
		app.Commands,
		&paths,
		&accounts,
		&xpub,
		&signtx,
		&signmsg,
		&send,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// loadConfig reads the environment and sets up logging.
func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	log.Init(cfg.LogLevel, cfg.LogJSON)
	return cfg, nil
}

// withTimeout bounds a command by the configured context timeout.
func withTimeout(c *cli.Context, cfg config.Config) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, cfg.ContextTimeout)
}

// openHardware connects the device emulator and initializes the wallet at
// the configured base path.
func openHardware(ctx context.Context, cfg config.Config) (*wallet.HardwareWallet, error) {
	if cfg.Backend != models.BackendSecalot {
		return nil, fmt.Errorf("backend %q has no hardware device", cfg.Backend)
	}
	if cfg.DeviceMnemonic == "" {
		return nil, errors.New("WALLET_DEVICE_MNEMONIC is not set")
	}
	emu, err := device.New(cfg.DeviceMnemonic, device.WithPIN(cfg.DevicePIN))
	if err != nil {
		return nil, err
	}
	if cfg.DevicePIN != "" {
		password := cfg.DevicePassword
		if password == "" {
			raw, err := readPassword("Device password: ")
			if err != nil {
				return nil, err
			}
			password = string(raw)
		}
		// A rejected password surfaces from Init as a locked device.
		if err := emu.Unlock(password); err != nil {
			log.CLI.Debug().Err(err).Msg("device unlock failed")
		}
	}

	hw, err := wallet.OpenHardwareWallet(ctx, cfg.Backend, emu, cfg.BasePath)
	if err != nil {
		_ = emu.Close()
		return nil, err
	}
	return hw, nil
}

// openAccount returns the signing account for the configured backend. For
// hardware backends index selects the account below the base path.
func openAccount(ctx context.Context, cfg config.Config, index int) (wallet.Account, func(), error) {
	switch cfg.Backend {
	case models.BackendSecalot:
		hw, err := openHardware(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		acct, err := hw.Account(index)
		if err != nil {
			_ = hw.Close()
			return nil, nil, err
		}
		return acct, func() { _ = hw.Close() }, nil

	case models.BackendWeb3Wallet:
		if cfg.ProviderURL == "" {
			return nil, nil, fmt.Errorf("%w: WALLET_PROVIDER_URL is not set", wallet.ErrProviderUnavailable)
		}
		p, err := provider.Dial(ctx, cfg.ProviderURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", wallet.ErrProviderUnavailable, err)
		}
		acct, err := wallet.ConnectProvider(ctx, p)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
		return acct, p.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func printJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to encode response: ", err)
		return
	}
	fmt.Println(string(b))
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[walletctl] %v\n", err)
	os.Exit(1)
}
