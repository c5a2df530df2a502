// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
)

// StaticService defines the static API for the message vm
type StaticService struct{}

// CreateStaticService ...
func CreateStaticService() *StaticService {
	return &StaticService{}
}

// BuildGenesisArgs are arguments for BuildGenesis
type BuildGenesisArgs struct {
	Text     string              `json:"text"`
	Author   ids.ShortID         `json:"author"`
	Encoding formatting.Encoding `json:"encoding"`
}

// BuildGenesisReply is the reply from BuildGenesis
type BuildGenesisReply struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// BuildGenesis returns the encoded genesis bytes for an initial message
func (ss *StaticService) BuildGenesis(_ *http.Request, args *BuildGenesisArgs, reply *BuildGenesisReply) error {
	genesis := &Genesis{
		Text:   args.Text,
		Author: args.Author,
	}
	genesisBytes, err := genesis.Bytes()
	if err != nil {
		return fmt.Errorf("couldn't marshal genesis: %w", err)
	}
	bytes, err := formatting.EncodeWithChecksum(args.Encoding, genesisBytes)
	if err != nil {
		return fmt.Errorf("couldn't encode genesis as string: %w", err)
	}
	reply.Bytes = bytes
	reply.Encoding = args.Encoding
	return nil
}

// DecodeGenesisArgs are arguments for DecodeGenesis
type DecodeGenesisArgs struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// DecodeGenesisReply is the reply from DecodeGenesis
type DecodeGenesisReply struct {
	Text   string      `json:"text"`
	Author ids.ShortID `json:"author"`
}

// DecodeGenesis returns the initial message held in encoded genesis bytes
func (ss *StaticService) DecodeGenesis(_ *http.Request, args *DecodeGenesisArgs, reply *DecodeGenesisReply) error {
	genesisBytes, err := formatting.Decode(args.Encoding, args.Bytes)
	if err != nil {
		return fmt.Errorf("couldn't decode genesis bytes: %w", err)
	}
	genesis, err := ParseGenesis(genesisBytes)
	if err != nil {
		return err
	}
	reply.Text = genesis.Text
	reply.Author = genesis.Author
	return nil
}
