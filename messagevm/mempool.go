// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"errors"
	"fmt"
	"sync"
)

var errEmptyMempool = errors.New("empty mempool")

// mempool holds proposed writes in arrival order until they are built into a
// block.
type mempool struct {
	lock sync.Mutex
	size int
	txs  []WriteTx

	pending chan struct{}
}

func newMempool(size int) *mempool {
	return &mempool{
		size:    size,
		txs:     make([]WriteTx, 0, size),
		pending: make(chan struct{}, 1),
	}
}

func (m *mempool) Add(tx WriteTx) error {
	m.lock.Lock()
	if len(m.txs) >= m.size {
		m.lock.Unlock()
		return fmt.Errorf("failed to add tx to mempool due to full at size (%d)", m.size)
	}
	m.txs = append(m.txs, tx)
	m.lock.Unlock()

	m.signal()
	return nil
}

func (m *mempool) Next() (WriteTx, error) {
	txs := m.Take(1)
	if len(txs) == 0 {
		return WriteTx{}, errEmptyMempool
	}
	return txs[0], nil
}

// Take removes up to [limit] txs, oldest first.
func (m *mempool) Take(limit int) []WriteTx {
	m.lock.Lock()
	defer m.lock.Unlock()

	if limit > len(m.txs) {
		limit = len(m.txs)
	}
	txs := make([]WriteTx, limit)
	copy(txs, m.txs)
	m.txs = m.txs[limit:]
	return txs
}

// Requeue puts [txs] back in front of the pending txs, in order. It may
// exceed the mempool size, since [txs] were admitted before.
func (m *mempool) Requeue(txs []WriteTx) {
	if len(txs) == 0 {
		return
	}

	m.lock.Lock()
	requeued := make([]WriteTx, 0, len(txs)+len(m.txs))
	requeued = append(requeued, txs...)
	m.txs = append(requeued, m.txs...)
	m.lock.Unlock()

	m.signal()
}

// Pending is signalled whenever txs are added.
func (m *mempool) Pending() <-chan struct{} {
	return m.pending
}

func (m *mempool) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.txs)
}

func (m *mempool) signal() {
	select {
	case m.pending <- struct{}{}:
	default:
	}
}
