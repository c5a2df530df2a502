// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/rpc/v2"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

const (
	Name = "messagevm"

	futureBlockLimit = time.Minute // Maximum amount of time that a block can be in the future
)

var (
	// ID is a unique identifier for this VM
	ID = ids.ID{'m', 'e', 's', 's', 'a', 'g', 'e', 'v', 'm'}

	Version = "v1.0.0"

	timeZero = time.Unix(0, 0)

	errNoPendingTxs   = errors.New("there is no tx to build a block from")
	errNotInitialized = errors.New("vm is not initialized")
	errEmptyBlock     = errors.New("block contains no txs")
	errBlockTooLarge  = errors.New("block contains too many txs")
)

// VM hosts a single message registry.
// Writes are ordered into blocks; each block is committed to the database
// before its writes are applied to the registry.
type VM struct {
	config Config

	// Clock used for block building and verification
	clock func() time.Time

	state    State
	registry *Registry
	mempool  *mempool
	builder  *builder

	// lock serializes block production and guards [lastAccepted]
	lock         sync.Mutex
	lastAccepted *Block
}

// Initialize this vm
// [db] is the database this vm persists its chain and record in
// The initial message and its creator are in [genesisBytes]
// [configBytes] is the JSON repr. of Config; empty means DefaultConfig
func (vm *VM) Initialize(
	ctx context.Context,
	db database.Database,
	genesisBytes []byte,
	configBytes []byte,
) error {
	log.Info("Initializing Message VM", "Version", Version)

	config, err := ParseConfig(configBytes)
	if err != nil {
		return err
	}
	vm.config = config
	if vm.clock == nil {
		vm.clock = time.Now
	}

	vm.state = NewState(db)
	vm.mempool = newMempool(config.MempoolSize)

	initialized, err := vm.state.IsInitialized()
	if err != nil {
		return fmt.Errorf("failed to read initialization status: %w", err)
	}
	if initialized {
		err = vm.restore()
	} else {
		err = vm.initGenesis(genesisBytes)
	}
	if err != nil {
		return err
	}

	vm.builder = newBuilder(vm, time.Duration(config.BuildInterval))
	vm.builder.start()
	return nil
}

func (vm *VM) initGenesis(genesisBytes []byte) error {
	genesis, err := ParseGenesis(genesisBytes)
	if err != nil {
		return fmt.Errorf("failed to parse genesis: %w", err)
	}
	genesisBlock, err := genesis.Block()
	if err != nil {
		return fmt.Errorf("failed to create genesis block: %w", err)
	}

	registry := NewRegistry(genesis.Text, genesis.Author)
	snapshot := &Snapshot{
		Record:  registry.Read(),
		Tmstmp:  genesisBlock.Tmstmp,
		BlockID: genesisBlock.ID(),
	}

	if err := vm.putBlock(genesisBlock, []*Snapshot{snapshot}); err != nil {
		vm.state.Abort()
		return err
	}
	if err := vm.state.SetInitialized(); err != nil {
		vm.state.Abort()
		return fmt.Errorf("error while setting db to initialized: %w", err)
	}
	if err := vm.state.Commit(); err != nil {
		vm.state.Abort()
		return fmt.Errorf("failed to commit genesis block: %w", err)
	}

	vm.registry = registry
	vm.lastAccepted = genesisBlock
	log.Info("Accepted genesis block", "blkID", genesisBlock.ID(), "author", genesis.Author)
	return nil
}

// restore loads the registry and chain tip from an initialized database.
func (vm *VM) restore() error {
	lastAcceptedID, err := vm.state.GetLastAccepted()
	if err != nil {
		return fmt.Errorf("failed to get last accepted blockID: %w", err)
	}
	lastAccepted, err := vm.state.GetBlock(lastAcceptedID)
	if err != nil {
		return fmt.Errorf("failed to get last accepted block %s: %w", lastAcceptedID, err)
	}
	snapshot, err := vm.state.GetLatestSnapshot()
	if err != nil {
		return fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	vm.registry = restoreRegistry(snapshot.Record)
	vm.lastAccepted = lastAccepted
	log.Info("Restored message registry", "revision", snapshot.Record.Revision, "height", lastAccepted.Height())
	return nil
}

// Write applies [text] written by [author] in a block of its own and returns
// the resulting snapshot. An empty [text] returns ErrEmptyText and produces
// no block.
func (vm *VM) Write(ctx context.Context, author ids.ShortID, text string) (*Snapshot, error) {
	tx, err := NewWriteTx(author, text)
	if err != nil {
		return nil, err
	}

	vm.lock.Lock()
	defer vm.lock.Unlock()

	block, err := vm.buildBlock([]WriteTx{*tx})
	if err != nil {
		return nil, err
	}
	if err := vm.verify(block); err != nil {
		return nil, err
	}
	snapshots, err := vm.accept(block)
	if err != nil {
		return nil, err
	}
	return snapshots[len(snapshots)-1], nil
}

// ProposeWrite validates the write and queues it for the builder.
// Returns the ID of the queued tx.
func (vm *VM) ProposeWrite(ctx context.Context, author ids.ShortID, text string) (ids.ID, error) {
	tx, err := NewWriteTx(author, text)
	if err != nil {
		return ids.Empty, err
	}
	txID, err := tx.ID()
	if err != nil {
		return ids.Empty, err
	}
	if err := vm.mempool.Add(*tx); err != nil {
		return ids.Empty, err
	}
	log.Debug("proposed write", "txID", txID, "author", author)
	return txID, nil
}

// BuildBlock returns a block on top of the last accepted block holding the
// oldest pending txs.
func (vm *VM) BuildBlock(ctx context.Context) (*Block, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.buildPending()
}

// Verify returns nil iff [block] can be accepted on top of the last accepted
// block.
func (vm *VM) Verify(ctx context.Context, block *Block) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.verify(block)
}

// Accept verifies [block], commits it and applies its writes to the registry.
func (vm *VM) Accept(ctx context.Context, block *Block) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.verify(block); err != nil {
		return err
	}
	_, err := vm.accept(block)
	return err
}

// buildAndAccept moves pending txs into an accepted block. Txs of a block
// that fails to build, verify or commit are returned to the mempool.
func (vm *VM) buildAndAccept(ctx context.Context) (*Block, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	txs := vm.mempool.Take(vm.config.MaxBlockTxs)
	if len(txs) == 0 {
		return nil, errNoPendingTxs
	}

	block, err := vm.buildBlock(txs)
	if err == nil {
		err = vm.verify(block)
	}
	if err == nil {
		_, err = vm.accept(block)
	}
	if err != nil {
		vm.mempool.Requeue(txs)
		return nil, err
	}
	return block, nil
}

// assumes [vm.lock] is held
func (vm *VM) buildPending() (*Block, error) {
	txs := vm.mempool.Take(vm.config.MaxBlockTxs)
	if len(txs) == 0 {
		return nil, errNoPendingTxs
	}
	return vm.buildBlock(txs)
}

// assumes [vm.lock] is held
func (vm *VM) buildBlock(txs []WriteTx) (*Block, error) {
	parent := vm.lastAccepted

	// Block time never goes backwards
	timestamp := vm.clock()
	if parentTime := parent.Timestamp(); timestamp.Before(parentTime) {
		timestamp = parentTime
	}
	return newBlock(parent.ID(), parent.Height()+1, timestamp, txs)
}

// assumes [vm.lock] is held
func (vm *VM) verify(block *Block) error {
	parent := vm.lastAccepted
	if block.Parent() != parent.ID() {
		return fmt.Errorf("block %s has parent %s, expected last accepted block %s", block.ID(), block.Parent(), parent.ID())
	}

	// Ensure [block]'s height comes right after its parent's height
	if expectedHeight := parent.Height() + 1; expectedHeight != block.Height() {
		return fmt.Errorf(
			"expected block to have height %d, but found %d",
			expectedHeight,
			block.Height(),
		)
	}

	// Ensure [block]'s timestamp is >= its parent's timestamp.
	if block.Timestamp().Unix() < parent.Timestamp().Unix() {
		return fmt.Errorf("block cannot have timestamp (%s) < parent timestamp (%s)", block.Timestamp(), parent.Timestamp())
	}

	// Ensure [block]'s timestamp is not too far ahead of this node's time.
	// Blocks never go back in time, so the parent's time bounds a clock that
	// stepped back.
	now := vm.clock()
	if parentTime := parent.Timestamp(); now.Before(parentTime) {
		now = parentTime
	}
	if block.Timestamp().Unix() >= now.Add(futureBlockLimit).Unix() {
		return fmt.Errorf("block cannot have timestamp (%s) further than (%s) past current time (%s)", block.Timestamp(), futureBlockLimit, now)
	}

	switch {
	case len(block.Txs) == 0:
		return errEmptyBlock
	case len(block.Txs) > vm.config.MaxBlockTxs:
		return fmt.Errorf("%w: %d > %d", errBlockTooLarge, len(block.Txs), vm.config.MaxBlockTxs)
	}
	for i := range block.Txs {
		if err := block.Txs[i].SyntacticVerify(); err != nil {
			return fmt.Errorf("invalid tx %d in block %s: %w", i, block.ID(), err)
		}
	}
	return nil
}

// accept commits [block] and then applies its writes to the registry.
// assumes [vm.lock] is held and [block] is verified
func (vm *VM) accept(block *Block) ([]*Snapshot, error) {
	record := vm.registry.Read()
	snapshots := make([]*Snapshot, 0, len(block.Txs))
	for _, tx := range block.Txs {
		next, err := record.Next(tx.Text, tx.Author)
		if err != nil {
			return nil, err
		}
		record = next
		snapshots = append(snapshots, &Snapshot{
			Record:  record,
			Tmstmp:  block.Tmstmp,
			BlockID: block.ID(),
		})
	}

	if err := vm.putBlock(block, snapshots); err != nil {
		vm.state.Abort()
		return nil, err
	}
	if err := vm.state.Commit(); err != nil {
		vm.state.Abort()
		return nil, fmt.Errorf("failed to commit database accepting block %s: %w", block.ID(), err)
	}
	vm.lastAccepted = block

	for _, tx := range block.Txs {
		if _, err := vm.registry.Write(tx.Text, tx.Author, block.Timestamp()); err != nil {
			return nil, fmt.Errorf("failed to apply committed block %s: %w", block.ID(), err)
		}
	}
	log.Debug("accepted block", "blkID", block.ID(), "height", block.Height(), "revision", record.Revision)
	return snapshots, nil
}

// putBlock writes [block], its snapshots and the new chain tip without
// committing.
func (vm *VM) putBlock(block *Block, snapshots []*Snapshot) error {
	if err := vm.state.PutBlock(block); err != nil {
		return err
	}
	for _, snapshot := range snapshots {
		if err := vm.state.PutSnapshot(snapshot); err != nil {
			return err
		}
	}
	if err := vm.state.SetLastAccepted(block.ID()); err != nil {
		return fmt.Errorf("failed to update last accepted block to %s: %w", block.ID(), err)
	}
	return nil
}

// Read returns the current record.
func (vm *VM) Read(ctx context.Context) (Record, error) {
	if vm.registry == nil {
		return Record{}, errNotInitialized
	}
	return vm.registry.Read(), nil
}

// GetSnapshot returns the record as of [revision].
func (vm *VM) GetSnapshot(ctx context.Context, revision uint64) (*Snapshot, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	snapshot, err := vm.state.GetSnapshot(revision)
	if err != nil {
		return nil, fmt.Errorf("failed to get revision %d: %w", revision, err)
	}
	return snapshot, nil
}

// GetBlock returns the accepted block with ID [blkID].
func (vm *VM) GetBlock(ctx context.Context, blkID ids.ID) (*Block, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	blk, err := vm.state.GetBlock(blkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", blkID, err)
	}
	return blk, nil
}

// GetBlockIDAtHeight returns the ID of the accepted block at [height].
func (vm *VM) GetBlockIDAtHeight(ctx context.Context, height uint64) (ids.ID, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	blkID, err := vm.state.GetBlockIDAtHeight(height)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to get height index at %d: %w", height, err)
	}
	return blkID, nil
}

// LastAccepted returns the ID of the last accepted block.
func (vm *VM) LastAccepted(ctx context.Context) (ids.ID, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.lastAccepted == nil {
		return ids.Empty, errNotInitialized
	}
	return vm.lastAccepted.ID(), nil
}

// Subscribe registers [observer] for every accepted write.
func (vm *VM) Subscribe(observer Observer) (uuid.UUID, error) {
	if vm.registry == nil {
		return uuid.Nil, errNotInitialized
	}
	return vm.registry.Subscribe(observer), nil
}

// Unsubscribe removes the observer registered under [id]. Returns false if
// there was no such observer.
func (vm *VM) Unsubscribe(id uuid.UUID) bool {
	if vm.registry == nil {
		return false
	}
	return vm.registry.Unsubscribe(id)
}

// HealthCheck reports the registry revision and chain tip.
func (vm *VM) HealthCheck(ctx context.Context) (interface{}, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.lastAccepted == nil {
		return nil, errNotInitialized
	}
	return map[string]interface{}{
		"revision":     vm.registry.Read().Revision,
		"lastAccepted": vm.lastAccepted.ID(),
		"height":       vm.lastAccepted.Height(),
		"pendingTxs":   vm.mempool.Len(),
		"subscribers":  vm.registry.Subscribers(),
	}, nil
}

// CreateHandlers returns a map where:
// Keys: The path extension for this VM's API (empty in this case)
// Values: The handler for the API
func (vm *VM) CreateHandlers() (map[string]http.Handler, error) {
	handler, err := newHandler(Name, &Service{vm: vm})
	return map[string]http.Handler{
		"": handler,
	}, err
}

// CreateStaticHandlers returns a map where:
// Keys: The path extension for this VM's static API
// Values: The handler for that static API
func (vm *VM) CreateStaticHandlers() (map[string]http.Handler, error) {
	handler, err := newHandler(Name, CreateStaticService())
	return map[string]http.Handler{
		"": handler,
	}, err
}

func newHandler(name string, service interface{}) (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(service, name)
}

// Shutdown stops the builder and closes the state.
func (vm *VM) Shutdown(ctx context.Context) error {
	if vm.builder != nil {
		vm.builder.stop()
	}

	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.state == nil {
		return nil
	}
	return vm.state.Close()
}

// Version returns this VM's version
func (vm *VM) Version(ctx context.Context) (string, error) {
	return Version, nil
}
