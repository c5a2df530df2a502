// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/messagevm/messagevm"
	"github.com/ava-labs/messagevm/server"
)

func main() {
	config, err := BuildConfig()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if config.PrintVersion {
		fmt.Printf("%s@%s\n", messagevm.Name, messagevm.Version)
		os.Exit(0)
	}

	log.Root().SetHandler(log.LvlFilterHandler(config.LogLevel, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, config)
	stop()
	if err != nil {
		log.Error("messagevm exited with error", "err", err)
		os.Exit(1)
	}
}

// openDatabase opens the leveldb database in [dir], or an in-memory
// database if [dir] is empty.
func openDatabase(dir string) (database.Database, error) {
	if dir == "" {
		log.Warn("no db-dir set, state will not survive a restart")
		return memdb.New(), nil
	}
	db, err := leveldb.New(dir, nil, logging.NoLog{})
	if err != nil {
		return nil, fmt.Errorf("couldn't open database at %s: %w", dir, err)
	}
	log.Info("Opened database", "dir", dir)
	return db, nil
}

func run(ctx context.Context, config Config) error {
	db, err := openDatabase(config.DBDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", "err", err)
		}
	}()

	vm := &messagevm.VM{}
	if err := vm.Initialize(ctx, db, config.GenesisBytes, config.ConfigBytes); err != nil {
		return fmt.Errorf("couldn't initialize vm: %w", err)
	}
	defer func() {
		if err := vm.Shutdown(context.Background()); err != nil {
			log.Error("error shutting down vm", "err", err)
		}
	}()

	s, err := server.New(vm)
	if err != nil {
		return fmt.Errorf("couldn't create server: %w", err)
	}
	return s.Serve(ctx, config.HTTPAddr)
}
