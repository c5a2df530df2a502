// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"
)

func TestStateCommitAndAbort(t *testing.T) {
	require := require.New(t)
	db := memdb.New()
	s := NewState(db)

	block, err := newBlock(ids.Empty, 0, testTime, []WriteTx{{Author: creator, Text: "Hello Monad!"}})
	require.NoError(err)

	require.NoError(s.PutBlock(block))
	require.NoError(s.SetLastAccepted(block.ID()))
	s.Abort()

	_, err = s.GetBlock(block.ID())
	require.ErrorIs(err, database.ErrNotFound)
	_, err = s.GetLastAccepted()
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(s.PutBlock(block))
	require.NoError(s.SetLastAccepted(block.ID()))
	require.NoError(s.SetInitialized())
	require.NoError(s.Commit())

	// A fresh state over the same db sees the committed values
	reopened := NewState(db)
	initialized, err := reopened.IsInitialized()
	require.NoError(err)
	require.True(initialized)

	lastAccepted, err := reopened.GetLastAccepted()
	require.NoError(err)
	require.Equal(block.ID(), lastAccepted)

	fetched, err := reopened.GetBlock(block.ID())
	require.NoError(err)
	require.Equal(block.Bytes(), fetched.Bytes())
	require.Equal(block.Txs, fetched.Txs)

	blockID, err := reopened.GetBlockIDAtHeight(0)
	require.NoError(err)
	require.Equal(block.ID(), blockID)
}

func TestSnapshotState(t *testing.T) {
	require := require.New(t)
	s := NewSnapshotState(memdb.New())

	_, err := s.GetLatestSnapshot()
	require.ErrorIs(err, database.ErrNotFound)

	first := &Snapshot{
		Record:  Record{Text: "Hello Monad!", Author: creator, Revision: 1},
		BlockID: ids.ID{1},
	}
	second := &Snapshot{
		Record:  Record{Text: "New message from user1", Author: user1, Revision: 2},
		Tmstmp:  testTime.Unix(),
		BlockID: ids.ID{2},
	}
	require.NoError(s.PutSnapshot(first))
	require.NoError(s.PutSnapshot(second))

	latest, err := s.GetLatestSnapshot()
	require.NoError(err)
	require.Equal(second, latest)
	require.Equal(testTime, latest.Timestamp())

	fetched, err := s.GetSnapshot(1)
	require.NoError(err)
	require.Equal(first, fetched)
}

func TestParseBlock(t *testing.T) {
	require := require.New(t)

	block, err := newBlock(ids.ID{1}, 4, testTime, []WriteTx{
		{Author: user1, Text: "one"},
		{Author: user2, Text: "two"},
	})
	require.NoError(err)

	parsed, err := ParseBlock(block.Bytes())
	require.NoError(err)
	require.Equal(block.ID(), parsed.ID())
	require.Equal(ids.ID{1}, parsed.Parent())
	require.Equal(uint64(4), parsed.Height())
	require.Equal(testTime, parsed.Timestamp())
	require.Equal(block.Txs, parsed.Txs)

	_, err = ParseBlock([]byte{0, 1, 2})
	require.Error(err)
}

func TestWriteTx(t *testing.T) {
	require := require.New(t)

	tx, err := NewWriteTx(user1, "hello")
	require.NoError(err)
	id1, err := tx.ID()
	require.NoError(err)

	other, err := NewWriteTx(user2, "hello")
	require.NoError(err)
	id2, err := other.ID()
	require.NoError(err)
	require.NotEqual(id1, id2)

	_, err = NewWriteTx(user1, "")
	require.ErrorIs(err, ErrEmptyText)
}
