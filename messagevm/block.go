// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// Block is a block on the chain.
// Each block contains:
// 1) The writes it applies to the registry, in order
// 2) A timestamp, which becomes the time of every write in the block
type Block struct {
	PrntID ids.ID    `serialize:"true" json:"parentID"`  // parent's ID
	Hght   uint64    `serialize:"true" json:"height"`    // This block's height. The genesis block is at height 0.
	Tmstmp int64     `serialize:"true" json:"timestamp"` // Time this block was proposed at
	Txs    []WriteTx `serialize:"true" json:"txs"`       // Writes applied by this block

	id    ids.ID // hold this block's ID
	bytes []byte // this block's encoded bytes
}

func newBlock(parentID ids.ID, height uint64, timestamp time.Time, txs []WriteTx) (*Block, error) {
	block := &Block{
		PrntID: parentID,
		Hght:   height,
		Tmstmp: timestamp.Unix(),
		Txs:    txs,
	}

	bytes, err := Codec.Marshal(CodecVersion, block)
	if err != nil {
		return nil, err
	}
	block.bytes = bytes
	block.id = hashing.ComputeHash256Array(bytes)
	return block, nil
}

// ParseBlock decodes a block from its byte repr.
func ParseBlock(b []byte) (*Block, error) {
	block := &Block{}
	if _, err := Codec.Unmarshal(b, block); err != nil {
		return nil, err
	}

	block.id = hashing.ComputeHash256Array(b)
	block.bytes = b
	return block, nil
}

// ID returns the ID of this block
func (b *Block) ID() ids.ID { return b.id }

// Parent returns [b]'s parent's ID
func (b *Block) Parent() ids.ID { return b.PrntID }

// Height returns this block's height. The genesis block has height 0.
func (b *Block) Height() uint64 { return b.Hght }

// Timestamp returns this block's time. The genesis block has time 0.
func (b *Block) Timestamp() time.Time { return time.Unix(b.Tmstmp, 0) }

// Bytes returns the byte repr. of this block
func (b *Block) Bytes() []byte { return b.bytes }
