// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"errors"
	"math"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// MaxTextLen is the longest text the codec can encode in a single string.
const MaxTextLen = math.MaxUint16

var errTextTooLong = errors.New("text exceeds maximum length")

// WriteTx asks the registry to replace its message with [Text] on behalf of
// [Author].
type WriteTx struct {
	Author ids.ShortID `serialize:"true" json:"author"`
	Text   string      `serialize:"true" json:"text"`
}

// NewWriteTx returns a syntactically valid write tx.
func NewWriteTx(author ids.ShortID, text string) (*WriteTx, error) {
	tx := &WriteTx{
		Author: author,
		Text:   text,
	}
	if err := tx.SyntacticVerify(); err != nil {
		return nil, err
	}
	return tx, nil
}

// SyntacticVerify returns nil iff [tx] could be accepted by the registry and
// encoded in a block.
func (tx *WriteTx) SyntacticVerify() error {
	switch {
	case len(tx.Text) == 0:
		return ErrEmptyText
	case len(tx.Text) > MaxTextLen:
		return errTextTooLong
	default:
		return nil
	}
}

// ID returns the hash of [tx]'s encoded bytes.
func (tx *WriteTx) ID() (ids.ID, error) {
	bytes, err := Codec.Marshal(CodecVersion, tx)
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(bytes), nil
}
