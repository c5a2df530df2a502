// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"
)

var (
	revisionPrefix = []byte("revision")
	latestKey      = []byte("latest")

	errSnapshotWrongVersion = errors.New("wrong version")

	_ SnapshotState = &snapshotState{}
)

// Snapshot is the record as of one revision, with the time and block at
// which that revision was accepted.
type Snapshot struct {
	Record  Record `serialize:"true" json:"record"`
	Tmstmp  int64  `serialize:"true" json:"timestamp"`
	BlockID ids.ID `serialize:"true" json:"blockID"`
}

// Timestamp returns the time the revision was written.
func (s *Snapshot) Timestamp() time.Time { return time.Unix(s.Tmstmp, 0) }

// SnapshotState persists one snapshot per revision and tracks the latest.
type SnapshotState interface {
	GetSnapshot(revision uint64) (*Snapshot, error)
	GetLatestSnapshot() (*Snapshot, error)
	PutSnapshot(*Snapshot) error
}

type snapshotState struct {
	revisionDB database.Database
	latestDB   database.Database
}

func NewSnapshotState(db database.Database) SnapshotState {
	return &snapshotState{
		revisionDB: prefixdb.New(revisionPrefix, db),
		latestDB:   db,
	}
}

func (s *snapshotState) GetSnapshot(revision uint64) (*Snapshot, error) {
	snapshotBytes, err := s.revisionDB.Get(heightKey(revision))
	if err != nil {
		return nil, err
	}
	return parseSnapshot(snapshotBytes)
}

func (s *snapshotState) GetLatestSnapshot() (*Snapshot, error) {
	snapshotBytes, err := s.latestDB.Get(latestKey)
	if err != nil {
		return nil, err
	}
	return parseSnapshot(snapshotBytes)
}

// PutSnapshot stores [snapshot] under its revision and makes it the latest.
func (s *snapshotState) PutSnapshot(snapshot *Snapshot) error {
	bytes, err := Codec.Marshal(CodecVersion, snapshot)
	if err != nil {
		return err
	}

	revision := snapshot.Record.Revision
	if err := s.revisionDB.Put(heightKey(revision), bytes); err != nil {
		return fmt.Errorf("failed to put snapshot at revision %d: %w", revision, err)
	}
	return s.latestDB.Put(latestKey, bytes)
}

func parseSnapshot(b []byte) (*Snapshot, error) {
	snapshot := &Snapshot{}
	parsedVersion, err := Codec.Unmarshal(b, snapshot)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errSnapshotWrongVersion
	}
	return snapshot, nil
}
