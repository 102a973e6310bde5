package storage

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/OKaluzny/wallet-signer/pkg/models"
)

// MemoryNonceStore is an in-memory NonceStore. State lives for the life of
// the process.
type MemoryNonceStore struct {
	mu   sync.Mutex
	next map[common.Address]uint64
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{next: make(map[common.Address]uint64)}
}

func (s *MemoryNonceStore) GetAndIncrement(address common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next[address]
	s.next[address] = n + 1
	return n, nil
}

func (s *MemoryNonceStore) Release(address common.Address, nonce uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.next[address]
	if !ok || next != nonce+1 {
		return false, nil
	}
	s.next[address] = nonce
	return true, nil
}

func (s *MemoryNonceStore) Reset(address common.Address, next uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[address] = next
	return nil
}

// MemoryTxStore is an in-memory TxStore. Entries are write-once.
type MemoryTxStore struct {
	mu  sync.RWMutex
	txs map[string]*models.SignedTransaction
}

func NewMemoryTxStore() *MemoryTxStore {
	return &MemoryTxStore{txs: make(map[string]*models.SignedTransaction)}
}

func (s *MemoryTxStore) Get(idempotencyKey string) (*models.SignedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.txs[idempotencyKey], nil
}

func (s *MemoryTxStore) Put(idempotencyKey string, tx *models.SignedTransaction) error {
	if tx == nil {
		return fmt.Errorf("store %q: nil transaction", idempotencyKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.txs[idempotencyKey]; ok {
		return fmt.Errorf("%w: %q holds %s", ErrDuplicateKey, idempotencyKey, prev.Hash.Hex())
	}
	s.txs[idempotencyKey] = tx
	return nil
}
