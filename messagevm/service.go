// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"errors"
	"net/http"

	"github.com/samber/lo"

	"github.com/ava-labs/avalanchego/ids"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

var (
	errCannotGetLastAccepted = errors.New("cannot get last accepted block")
	errNoSuchBlock           = errors.New("couldn't get block from database. Does it exist?")
	errNoSuchRevision        = errors.New("couldn't get revision from database. Does it exist?")
)

// Service is the API service for this VM
type Service struct{ vm *VM }

// WriteArgs are the arguments to Write and ProposeWrite
type WriteArgs struct {
	Author ids.ShortID `json:"author"` // Who is writing
	Text   string      `json:"text"`   // The new message
}

// SnapshotReply is the record as of one revision
type SnapshotReply struct {
	Text      string       `json:"text"`
	Author    ids.ShortID  `json:"author"`
	Revision  cjson.Uint64 `json:"revision"`
	Timestamp cjson.Uint64 `json:"timestamp"` // Unix time of the write
	BlockID   ids.ID       `json:"blockID"`   // Block that applied the write
}

// Write is an API method to replace the message with [args].Text.
// The reply holds the record after the write.
func (s *Service) Write(r *http.Request, args *WriteArgs, reply *SnapshotReply) error {
	snapshot, err := s.vm.Write(r.Context(), args.Author, args.Text)
	if err != nil {
		return err
	}
	fillSnapshotReply(reply, snapshot)
	return nil
}

// ProposeWriteReply is the reply from ProposeWrite
type ProposeWriteReply struct {
	TxID ids.ID `json:"txID"`
}

// ProposeWrite is an API method to queue a write for a future block.
// The write is validated before it is queued.
func (s *Service) ProposeWrite(r *http.Request, args *WriteArgs, reply *ProposeWriteReply) error {
	txID, err := s.vm.ProposeWrite(r.Context(), args.Author, args.Text)
	if err != nil {
		return err
	}
	reply.TxID = txID
	return nil
}

// ReadArgs are the arguments to Read
type ReadArgs struct{}

// ReadReply is the reply from Read
type ReadReply struct {
	Text     string       `json:"text"`
	Author   ids.ShortID  `json:"author"`
	Revision cjson.Uint64 `json:"revision"`
}

// Read returns the current message
func (s *Service) Read(r *http.Request, _ *ReadArgs, reply *ReadReply) error {
	record, err := s.vm.Read(r.Context())
	if err != nil {
		return err
	}
	reply.Text = record.Text
	reply.Author = record.Author
	reply.Revision = cjson.Uint64(record.Revision)
	return nil
}

// GetRevisionArgs are the arguments to GetRevision
type GetRevisionArgs struct {
	// Revision to fetch. If zero, gets the latest revision
	Revision cjson.Uint64 `json:"revision"`
}

// GetRevision returns the message as of [args].Revision
func (s *Service) GetRevision(r *http.Request, args *GetRevisionArgs, reply *SnapshotReply) error {
	revision := uint64(args.Revision)
	if revision == 0 {
		record, err := s.vm.Read(r.Context())
		if err != nil {
			return err
		}
		revision = record.Revision
	}
	snapshot, err := s.vm.GetSnapshot(r.Context(), revision)
	if err != nil {
		return errNoSuchRevision
	}
	fillSnapshotReply(reply, snapshot)
	return nil
}

// GetBlockArgs are the arguments to GetBlock
type GetBlockArgs struct {
	// ID of the block we're getting.
	// If left blank, gets the latest block
	ID ids.ID `json:"id"`
}

// TxReply is a write as it appears in a block
type TxReply struct {
	Author ids.ShortID `json:"author"`
	Text   string      `json:"text"`
}

// GetBlockReply is the reply from GetBlock
type GetBlockReply struct {
	ID        ids.ID       `json:"id"`        // String repr. of ID of block
	ParentID  ids.ID       `json:"parentID"`  // String repr. of ID of block's parent
	Height    cjson.Uint64 `json:"height"`    // Height of block
	Timestamp cjson.Uint64 `json:"timestamp"` // Timestamp of block
	Txs       []TxReply    `json:"txs"`       // Writes in block
}

// GetBlock gets the block whose ID is [args.ID]
// If [args.ID] is empty, get the latest block
func (s *Service) GetBlock(r *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	var (
		requestedBlockID = args.ID
		err              error
	)
	if requestedBlockID == ids.Empty {
		requestedBlockID, err = s.vm.LastAccepted(r.Context())
		if err != nil {
			return errCannotGetLastAccepted
		}
	}

	block, err := s.vm.GetBlock(r.Context(), requestedBlockID)
	if err != nil {
		return errNoSuchBlock
	}

	reply.ID = block.ID()
	reply.ParentID = block.Parent()
	reply.Height = cjson.Uint64(block.Height())
	reply.Timestamp = cjson.Uint64(block.Tmstmp)
	reply.Txs = lo.Map(block.Txs, func(tx WriteTx, _ int) TxReply {
		return TxReply{
			Author: tx.Author,
			Text:   tx.Text,
		}
	})
	return nil
}

func fillSnapshotReply(reply *SnapshotReply, snapshot *Snapshot) {
	reply.Text = snapshot.Record.Text
	reply.Author = snapshot.Record.Author
	reply.Revision = cjson.Uint64(snapshot.Record.Revision)
	reply.Timestamp = cjson.Uint64(snapshot.Tmstmp)
	reply.BlockID = snapshot.BlockID
}

// EventMessage is the JSON repr. of an Event streamed to remote subscribers
type EventMessage struct {
	Author    ids.ShortID  `json:"author"`
	Text      string       `json:"text"`
	Revision  cjson.Uint64 `json:"revision"`
	Timestamp cjson.Uint64 `json:"timestamp"` // Unix time of the write
}

// NewEventMessage returns the JSON repr. of [e]
func NewEventMessage(e Event) EventMessage {
	return EventMessage{
		Author:    e.Author,
		Text:      e.Text,
		Revision:  cjson.Uint64(e.Revision),
		Timestamp: cjson.Uint64(e.Timestamp.Unix()),
	}
}
