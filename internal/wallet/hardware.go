package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/OKaluzny/wallet-signer/internal/log"
	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// HardwareWallet ties a Transport to an ExtendedKeyStore and hands out
// per-index accounts. Init must succeed before Account is called.
type HardwareWallet struct {
	backend        models.BackendID
	transport      Transport
	translate      ErrorTranslator
	supportedPaths []models.PathDescriptor

	mu       sync.RWMutex
	basePath string
	keys     *ExtendedKeyStore
}

// Option configures a HardwareWallet.
type Option func(*HardwareWallet)

// WithSupportedPaths overrides the backend's default path list.
func WithSupportedPaths(paths []models.PathDescriptor) Option {
	return func(w *HardwareWallet) {
		w.supportedPaths = append([]models.PathDescriptor(nil), paths...)
	}
}

// WithErrorTranslator overrides the device error translator.
func WithErrorTranslator(t ErrorTranslator) Option {
	return func(w *HardwareWallet) {
		w.translate = t
	}
}

// NewHardwareWallet returns an uninitialized wallet for backend.
func NewHardwareWallet(backend models.BackendID, transport Transport, opts ...Option) *HardwareWallet {
	w := &HardwareWallet{
		backend:        backend,
		transport:      transport,
		translate:      TranslateDeviceError,
		supportedPaths: SupportedPaths(backend),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OpenHardwareWallet creates and initializes a wallet in one step.
func OpenHardwareWallet(ctx context.Context, backend models.BackendID, transport Transport, basePath string, opts ...Option) (*HardwareWallet, error) {
	w := NewHardwareWallet(backend, transport, opts...)
	if err := w.Init(ctx, basePath); err != nil {
		return nil, err
	}
	return w, nil
}

// Init fetches the extended public key at basePath from the device. An
// empty basePath selects the first supported path. A failed Init leaves the
// wallet uninitialized; it may be retried. Once Init succeeds the base path
// is fixed for the life of the wallet.
func (w *HardwareWallet) Init(ctx context.Context, basePath string) error {
	w.mu.RLock()
	initialized := w.keys != nil
	w.mu.RUnlock()
	if initialized {
		return &InitializationError{Backend: w.backend, BasePath: basePath, Err: ErrAlreadyInitialized}
	}
	if basePath == "" {
		if len(w.supportedPaths) == 0 {
			return &InitializationError{Backend: w.backend, Err: fmt.Errorf("no supported paths for backend %q", w.backend)}
		}
		basePath = w.supportedPaths[0].Path
	}
	if isNil(w.transport) {
		return &InitializationError{Backend: w.backend, BasePath: basePath, Err: fmt.Errorf("no transport")}
	}
	if err := validateBasePath(basePath); err != nil {
		return &InitializationError{Backend: w.backend, BasePath: basePath, Err: err}
	}

	logger := log.Wallet.With().Str("backend", string(w.backend)).Str("base_path", basePath).Logger()
	logger.Debug().Msg("fetching root public key")

	root, err := w.transport.PublicKey(ctx, basePath)
	if err != nil {
		return &InitializationError{Backend: w.backend, BasePath: basePath, Err: w.translate("get public key", basePath, err)}
	}
	keys := NewExtendedKeyStore()
	if err := keys.Set(root); err != nil {
		return &InitializationError{Backend: w.backend, BasePath: basePath, Err: err}
	}

	w.mu.Lock()
	if w.keys != nil {
		w.mu.Unlock()
		return &InitializationError{Backend: w.backend, BasePath: basePath, Err: ErrAlreadyInitialized}
	}
	w.basePath = basePath
	w.keys = keys
	w.mu.Unlock()

	logger.Info().Msg("hardware wallet initialized")
	return nil
}

// Account derives the account at index below the current base path.
func (w *HardwareWallet) Account(index int) (*HardwareAccount, error) {
	w.mu.RLock()
	keys, basePath := w.keys, w.basePath
	w.mu.RUnlock()

	if keys == nil {
		return nil, &DerivationError{Index: index, Err: ErrNotInitialized}
	}
	key, err := keys.Derive(index)
	if err != nil {
		var de *DerivationError
		if errors.As(err, &de) {
			de.Path = AccountPath(basePath, index)
		}
		return nil, err
	}

	return &HardwareAccount{
		backend:   w.backend,
		transport: w.transport,
		translate: w.translate,
		target: signingTarget{
			path:    AccountPath(basePath, int(key.Index)),
			index:   key.Index,
			address: key.Address,
		},
		key: key,
	}, nil
}

// CurrentPath returns the base path chosen at Init.
func (w *HardwareWallet) CurrentPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.basePath
}

// SupportedPaths returns the backend's path list.
func (w *HardwareWallet) SupportedPaths() []models.PathDescriptor {
	return append([]models.PathDescriptor(nil), w.supportedPaths...)
}

// Backend returns the backend identifier.
func (w *HardwareWallet) Backend() models.BackendID { return w.backend }

// ExtendedKey returns the base path's extended public key for watch-only use.
func (w *HardwareWallet) ExtendedKey() (string, error) {
	w.mu.RLock()
	keys := w.keys
	w.mu.RUnlock()
	if keys == nil {
		return "", ErrNotInitialized
	}
	return keys.ExtendedKey()
}

// Close releases the transport if it holds resources.
func (w *HardwareWallet) Close() error {
	if c, ok := w.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
