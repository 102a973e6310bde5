package config

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/viper"

	"github.com/OKaluzny/wallet-signer/internal/chain"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

const (
	// EnvPrefix is prepended to every key when read from the environment.
	EnvPrefix = "WALLET"

	// LogLevelKey is one of trace, debug, info, warn, error or disabled
	LogLevelKey = "LOG_LEVEL"
	// LogJSONKey switches log output from console to JSON
	LogJSONKey = "LOG_JSON"
	// BackendKey selects the signing backend: secalot or web3wallet
	BackendKey = "BACKEND"
	// BasePathKey is the hardware derivation base path, empty for the
	// backend default
	BasePathKey = "BASE_PATH"
	// NetworkKey is the name of a known network
	NetworkKey = "NETWORK"
	// ChainIDKey overrides the chain id of the selected network
	ChainIDKey = "CHAIN_ID"
	// ProviderURLKey is the JSON-RPC endpoint of the injected provider
	ProviderURLKey = "PROVIDER_URL"
	// RPCURLKey is the node endpoint used to broadcast hardware-signed
	// transactions
	RPCURLKey = "RPC_URL"
	// DeviceMnemonicKey seeds the device emulator
	DeviceMnemonicKey = "DEVICE_MNEMONIC"
	// DevicePINKey is the PIN the device emulator is locked with
	DevicePINKey = "DEVICE_PIN"
	// DevicePasswordKey is the password used to unlock the device; prompted
	// for when unset and the device has a PIN
	DevicePasswordKey = "DEVICE_PASSWORD"
	// ContextTimeoutKey bounds every device or provider call made by the CLI
	ContextTimeoutKey = "CONTEXT_TIMEOUT"
	// BroadcastMaxRetriesKey is the number of broadcast attempts
	BroadcastMaxRetriesKey = "BROADCAST_MAX_RETRIES"
	// DefaultGasPriceKey is the gas price in wei used by the transaction builder
	DefaultGasPriceKey = "DEFAULT_GAS_PRICE"
	// DefaultGasLimitKey is the gas limit used by the transaction builder
	DefaultGasLimitKey = "DEFAULT_GAS_LIMIT"
)

// Config holds all configurable parameters for the wallet signer.
type Config struct {
	LogLevel string
	LogJSON  bool

	// Signing backend
	Backend  models.BackendID
	BasePath string
	Network  models.Network

	// Endpoints
	ProviderURL string
	RPCURL      string

	// Device emulator
	DeviceMnemonic string
	DevicePIN      string
	DevicePassword string

	// Transaction builder
	BroadcastMaxRetries int
	ContextTimeout      time.Duration

	// Fee defaults (used when on-chain estimation is unavailable)
	DefaultGasPrice *big.Int
	DefaultGasLimit uint64
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		LogLevel: "info",

		Backend: models.BackendSecalot,
		Network: chain.Copy(chain.Mainnet),

		BroadcastMaxRetries: 3,
		ContextTimeout:      15 * time.Second,

		DefaultGasPrice: big.NewInt(20_000_000_000), // 20 gwei
		DefaultGasLimit: 21_000,
	}
}

// FromEnv returns a Config populated from WALLET_-prefixed environment
// variables, falling back to defaults for unset values.
func FromEnv() (Config, error) {
	def := Default()

	vip := viper.New()
	vip.SetEnvPrefix(EnvPrefix)
	vip.AutomaticEnv()

	vip.SetDefault(LogLevelKey, def.LogLevel)
	vip.SetDefault(LogJSONKey, false)
	vip.SetDefault(BackendKey, string(def.Backend))
	vip.SetDefault(BasePathKey, "")
	vip.SetDefault(NetworkKey, def.Network.Name)
	vip.SetDefault(ChainIDKey, "")
	vip.SetDefault(ProviderURLKey, "")
	vip.SetDefault(RPCURLKey, "")
	vip.SetDefault(DeviceMnemonicKey, "")
	vip.SetDefault(DevicePINKey, "")
	vip.SetDefault(DevicePasswordKey, "")
	vip.SetDefault(ContextTimeoutKey, def.ContextTimeout)
	vip.SetDefault(BroadcastMaxRetriesKey, def.BroadcastMaxRetries)
	vip.SetDefault(DefaultGasPriceKey, def.DefaultGasPrice.String())
	vip.SetDefault(DefaultGasLimitKey, def.DefaultGasLimit)

	cfg := Config{
		LogLevel:            vip.GetString(LogLevelKey),
		LogJSON:             vip.GetBool(LogJSONKey),
		Backend:             models.BackendID(vip.GetString(BackendKey)),
		BasePath:            vip.GetString(BasePathKey),
		ProviderURL:         vip.GetString(ProviderURLKey),
		RPCURL:              vip.GetString(RPCURLKey),
		DeviceMnemonic:      vip.GetString(DeviceMnemonicKey),
		DevicePIN:           vip.GetString(DevicePINKey),
		DevicePassword:      vip.GetString(DevicePasswordKey),
		BroadcastMaxRetries: vip.GetInt(BroadcastMaxRetriesKey),
		ContextTimeout:      vip.GetDuration(ContextTimeoutKey),
		DefaultGasLimit:     vip.GetUint64(DefaultGasLimitKey),
	}

	network, err := chain.Lookup(vip.GetString(NetworkKey))
	if err != nil {
		return Config{}, err
	}
	if v := vip.GetString(ChainIDKey); v != "" {
		id, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return Config{}, fmt.Errorf("%s: invalid chain id %q", ChainIDKey, v)
		}
		network.ChainID = id
	}
	cfg.Network = network

	price, ok := new(big.Int).SetString(vip.GetString(DefaultGasPriceKey), 10)
	if !ok {
		return Config{}, fmt.Errorf("%s: invalid gas price %q", DefaultGasPriceKey, vip.GetString(DefaultGasPriceKey))
	}
	cfg.DefaultGasPrice = price

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("error while validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration names a known backend and a usable
// network.
func (c Config) Validate() error {
	switch c.Backend {
	case models.BackendSecalot, models.BackendWeb3Wallet:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := chain.RulesFor(c.Network); err != nil {
		return err
	}
	if c.ContextTimeout <= 0 {
		return errors.New("context timeout must be positive")
	}
	if c.BroadcastMaxRetries <= 0 {
		return errors.New("broadcast max retries must be positive")
	}
	if c.DefaultGasPrice == nil || c.DefaultGasPrice.Sign() < 0 {
		return errors.New("default gas price must not be negative")
	}
	return nil
}
