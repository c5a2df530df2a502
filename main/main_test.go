// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/messagevm/messagevm"
)

func TestOpenDatabaseInMemory(t *testing.T) {
	require := require.New(t)

	db, err := openDatabase("")
	require.NoError(err)
	require.IsType(&memdb.Database{}, db)
	require.NoError(db.Close())
}

func TestRestartRestoresRecord(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	config := []byte(`{"buildInterval":"1h"}`)

	genesis := &messagevm.Genesis{Text: "Hello Monad!", Author: ids.ShortID{1}}
	genesisBytes, err := genesis.Bytes()
	require.NoError(err)

	db, err := openDatabase(dir)
	require.NoError(err)
	vm := &messagevm.VM{}
	require.NoError(vm.Initialize(ctx, db, genesisBytes, config))
	_, err = vm.Write(ctx, ids.ShortID{2}, "New message from user1")
	require.NoError(err)
	require.NoError(vm.Shutdown(ctx))
	require.NoError(db.Close())

	db, err = openDatabase(dir)
	require.NoError(err)
	defer func() { require.NoError(db.Close()) }()
	restored := &messagevm.VM{}
	require.NoError(restored.Initialize(ctx, db, genesisBytes, config))
	defer func() { require.NoError(restored.Shutdown(ctx)) }()

	record, err := restored.Read(ctx)
	require.NoError(err)
	require.Equal(messagevm.Record{Text: "New message from user1", Author: ids.ShortID{2}, Revision: 2}, record)
}
