// Package receipt stores deposit receipts.
package receipt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"sdr-go/internal/sdr"
)

// MemoryStore keeps receipts in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	receipts map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{receipts: make(map[string][]byte)}
}

func (m *MemoryStore) PutReceipt(_ context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read receipt: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[key] = data
	return nil
}

func (m *MemoryStore) GetReceipt(_ context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.receipts[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("receipt not found: %s", key)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// Keys returns the stored keys, sorted.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.receipts))
	for k := range m.receipts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(context.Context) error {
	return nil
}

// Compile-time check that MemoryStore implements sdr.ReceiptStore interface
var _ sdr.ReceiptStore = (*MemoryStore)(nil)
