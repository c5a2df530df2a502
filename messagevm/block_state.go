// (c) 2021, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	blockCacheSize = 8192
)

var (
	blockPrefix  = []byte("block")
	heightPrefix = []byte("height")

	_ BlockState = &blockState{}
)

// BlockState indexes accepted blocks by ID and by height.
type BlockState interface {
	GetBlock(blkID ids.ID) (*Block, error)
	PutBlock(blk *Block) error

	GetBlockIDAtHeight(height uint64) (ids.ID, error)

	ClearCache()
}

type blockState struct {
	blkCache    cache.Cacher
	blockDB     database.Database
	heightIndex database.Database
}

func NewBlockState(db database.Database) BlockState {
	return &blockState{
		blkCache:    &cache.LRU{Size: blockCacheSize},
		blockDB:     prefixdb.New(blockPrefix, db),
		heightIndex: prefixdb.New(heightPrefix, db),
	}
}

func (s *blockState) GetBlock(blkID ids.ID) (*Block, error) {
	if blkIntf, ok := s.blkCache.Get(blkID); ok {
		return blkIntf.(*Block), nil
	}

	blkBytes, err := s.blockDB.Get(blkID[:])
	if err != nil {
		return nil, err
	}

	blk, err := ParseBlock(blkBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block %s: %w", blkID, err)
	}

	s.blkCache.Put(blkID, blk)
	return blk, nil
}

func (s *blockState) PutBlock(blk *Block) error {
	blkID := blk.ID()
	if err := s.blockDB.Put(blkID[:], blk.Bytes()); err != nil {
		return fmt.Errorf("failed to put block %s into block index: %w", blkID, err)
	}
	if err := s.heightIndex.Put(heightKey(blk.Height()), blkID[:]); err != nil {
		return fmt.Errorf("failed to put block %s into height index: %w", blkID, err)
	}
	s.blkCache.Put(blkID, blk)
	return nil
}

func (s *blockState) GetBlockIDAtHeight(height uint64) (ids.ID, error) {
	blkIDBytes, err := s.heightIndex.Get(heightKey(height))
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(blkIDBytes)
}

func (s *blockState) ClearCache() {
	s.blkCache.Flush()
}

func heightKey(height uint64) []byte {
	key := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(key, height)
	return key
}
