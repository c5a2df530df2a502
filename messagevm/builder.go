// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/inconshreveable/log15"
)

// retryDelay is the minimum wait before retrying txs whose block failed
const retryDelay = time.Second

// builder turns proposed writes into accepted blocks in the background.
type builder struct {
	vm       *VM
	interval time.Duration

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

func newBuilder(vm *VM, interval time.Duration) *builder {
	return &builder{
		vm:           vm,
		interval:     interval,
		shutdownChan: make(chan struct{}),
	}
}

func (b *builder) start() {
	b.wg.Add(1)
	go b.run()
}

func (b *builder) run() {
	defer b.wg.Done()

	for {
		select {
		case <-b.shutdownChan:
			return
		case <-b.vm.mempool.Pending():
		}

		// Give concurrent proposals a chance to land in the same block
		if !b.wait(b.interval) {
			return
		}

		// Requeued txs are retried after [retryDelay]
		if !b.drain() && !b.wait(retryDelay) {
			return
		}
	}
}

// wait returns false if the builder is shut down within [d].
func (b *builder) wait(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-b.shutdownChan:
		return false
	case <-timer.C:
		return true
	}
}

// drain builds blocks until the mempool is empty. Returns false if a block
// failed.
func (b *builder) drain() bool {
	for b.vm.mempool.Len() > 0 {
		blk, err := b.vm.buildAndAccept(context.Background())
		if errors.Is(err, errNoPendingTxs) {
			return true
		}
		if err != nil {
			log.Error("failed to build block", "pendingTxs", b.vm.mempool.Len(), "err", err)
			return false
		}
		log.Debug("built block", "blkID", blk.ID(), "height", blk.Height(), "txs", len(blk.Txs))
	}
	return true
}

func (b *builder) stop() {
	b.shutdownOnce.Do(func() {
		close(b.shutdownChan)
	})
	b.wg.Wait()
}
