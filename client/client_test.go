// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/messagevm/messagevm"
	"github.com/ava-labs/messagevm/server"
)

var (
	creator = ids.ShortID{1}
	user1   = ids.ShortID{2}
	user2   = ids.ShortID{3}
)

func newTestClient(t *testing.T, config string) Client {
	genesis := &messagevm.Genesis{Text: "Hello Monad!", Author: creator}
	genesisBytes, err := genesis.Bytes()
	require.NoError(t, err)

	vm := &messagevm.VM{}
	require.NoError(t, vm.Initialize(context.Background(), memdb.New(), genesisBytes, []byte(config)))

	s, err := server.New(vm)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, vm.Shutdown(context.Background()))
	})
	return New(ts.URL)
}

func TestScenarios(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cli := newTestClient(t, `{"buildInterval":"1h"}`)

	record, err := cli.Read(ctx)
	require.NoError(err)
	require.Equal(&messagevm.ReadReply{Text: "Hello Monad!", Author: creator, Revision: 1}, record)

	snapshot, err := cli.Write(ctx, user1, "New message from user1")
	require.NoError(err)
	require.Equal("New message from user1", snapshot.Text)
	require.Equal(user1, snapshot.Author)
	require.Equal(cjson.Uint64(2), snapshot.Revision)

	snapshot, err = cli.Write(ctx, user2, "Second update")
	require.NoError(err)
	require.Equal(cjson.Uint64(3), snapshot.Revision)

	_, err = cli.Write(ctx, user1, "")
	require.ErrorContains(err, "text must not be empty")

	record, err = cli.Read(ctx)
	require.NoError(err)
	require.Equal(&messagevm.ReadReply{Text: "Second update", Author: user2, Revision: 3}, record)

	// Read is idempotent
	again, err := cli.Read(ctx)
	require.NoError(err)
	require.Equal(record, again)
}

func TestGetRevisionAndBlock(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cli := newTestClient(t, `{"buildInterval":"1h"}`)

	written, err := cli.Write(ctx, user1, "New message from user1")
	require.NoError(err)

	first, err := cli.GetRevision(ctx, 1)
	require.NoError(err)
	require.Equal("Hello Monad!", first.Text)
	require.Equal(creator, first.Author)

	latest, err := cli.GetRevision(ctx, 0)
	require.NoError(err)
	require.Equal(written, latest)

	_, err = cli.GetRevision(ctx, 7)
	require.Error(err)

	block, err := cli.GetBlock(ctx, ids.Empty)
	require.NoError(err)
	require.Equal(written.BlockID, block.ID)
	require.Equal(cjson.Uint64(1), block.Height)
	require.Equal([]messagevm.TxReply{{Author: user1, Text: "New message from user1"}}, block.Txs)

	genesis, err := cli.GetBlock(ctx, block.ParentID)
	require.NoError(err)
	require.Equal(first.BlockID, genesis.ID)
	require.Equal(ids.Empty, genesis.ParentID)
}

func TestProposeWriteAndSubscribe(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cli := newTestClient(t, `{"buildInterval":"50ms"}`)

	events, err := cli.Subscribe(ctx)
	require.NoError(err)

	_, err = cli.ProposeWrite(ctx, user1, "")
	require.ErrorContains(err, "text must not be empty")

	txID1, err := cli.ProposeWrite(ctx, user1, "New message from user1")
	require.NoError(err)
	txID2, err := cli.ProposeWrite(ctx, user2, "Second update")
	require.NoError(err)
	require.NotEqual(txID1, txID2)

	for _, expected := range []messagevm.EventMessage{
		{Author: user1, Text: "New message from user1", Revision: 2},
		{Author: user2, Text: "Second update", Revision: 3},
	} {
		select {
		case msg, ok := <-events:
			require.True(ok)
			msg.Timestamp = 0
			require.Equal(expected, msg)
		case <-ctx.Done():
			require.FailNow("timed out waiting for event")
		}
	}

	record, err := cli.Read(ctx)
	require.NoError(err)
	require.Equal(cjson.Uint64(3), record.Revision)

	cancel()
	for range events {
	}
}
