package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tyler-smith/go-bip32"
	"golang.org/x/crypto/sha3"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// ChainCodeSize is the BIP-32 chain code length.
const ChainCodeSize = 32

var errHardenedIndex = errors.New("index is in the hardened range and cannot be derived from a public key")

// DerivedKey is a child public key of the store's root.
type DerivedKey struct {
	Index        uint32
	PublicKey    []byte // compressed, 33 bytes
	Uncompressed []byte // 65 bytes, 0x04 prefix
	Address      common.Address
}

// ExtendedKeyStore holds a backend-reported extended public key and derives
// non-hardened children from it. It never holds private key material.
// The root is set once; after that the store is read-only.
type ExtendedKeyStore struct {
	mu   sync.RWMutex
	root *bip32.Key
}

// NewExtendedKeyStore returns an empty store.
func NewExtendedKeyStore() *ExtendedKeyStore {
	return &ExtendedKeyStore{}
}

// Set parses and stores the root key. The public key may be compressed or
// uncompressed.
func (s *ExtendedKeyStore) Set(root models.RootKey) error {
	pub, err := decodeHex(root.PublicKey)
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	chainCode, err := decodeHex(root.ChainCode)
	if err != nil {
		return fmt.Errorf("decode chain code: %w", err)
	}
	if len(chainCode) != ChainCodeSize {
		return fmt.Errorf("chain code must be %d bytes, got %d", ChainCodeSize, len(chainCode))
	}
	parsed, err := btcec.ParsePubKey(pub)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != nil {
		return ErrAlreadyInitialized
	}
	s.root = &bip32.Key{
		Version:     bip32.PublicWalletVersion,
		Depth:       0,
		ChildNumber: []byte{0, 0, 0, 0},
		FingerPrint: []byte{0, 0, 0, 0},
		ChainCode:   chainCode,
		Key:         parsed.SerializeCompressed(),
		IsPrivate:   false,
	}
	return nil
}

// Initialized reports whether Set has succeeded.
func (s *ExtendedKeyStore) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root != nil
}

// Derive returns the child key at index. The same index always yields the
// same key.
func (s *ExtendedKeyStore) Derive(index int) (*DerivedKey, error) {
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()
	if root == nil {
		return nil, &DerivationError{Index: index, Err: ErrNotInitialized}
	}
	if index < 0 {
		return nil, &DerivationError{Index: index, Err: errors.New("index must not be negative")}
	}
	if uint64(index) >= uint64(bip32.FirstHardenedChild) {
		return nil, &DerivationError{Index: index, Err: errHardenedIndex}
	}

	child, err := root.NewChildKey(uint32(index))
	if err != nil {
		return nil, &DerivationError{Index: index, Err: err}
	}
	pub, err := btcec.ParsePubKey(child.Key)
	if err != nil {
		return nil, &DerivationError{Index: index, Err: fmt.Errorf("parse child key: %w", err)}
	}
	uncompressed := pub.SerializeUncompressed()

	return &DerivedKey{
		Index:        uint32(index),
		PublicKey:    pub.SerializeCompressed(),
		Uncompressed: uncompressed,
		Address:      pubkeyToAddress(uncompressed),
	}, nil
}

// ExtendedKey returns the serialized root extended public key. Devices do
// not report the parent fingerprint, so the key serializes as a depth-0 root.
func (s *ExtendedKeyStore) ExtendedKey() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.root == nil {
		return "", ErrNotInitialized
	}
	return s.root.B58Serialize(), nil
}

// pubkeyToAddress returns the last 20 bytes of Keccak256 over the
// uncompressed key without its 0x04 prefix.
func pubkeyToAddress(uncompressed []byte) common.Address {
	hash := keccak256(uncompressed[1:])
	return common.BytesToAddress(hash[12:])
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// describe renders a derived key as a DerivedAddress.
func describe(network, path string, key *DerivedKey) *models.DerivedAddress {
	return &models.DerivedAddress{
		Network:        network,
		Address:        key.Address.Hex(),
		DerivationPath: path,
		PublicKey:      hex.EncodeToString(key.Uncompressed),
	}
}
