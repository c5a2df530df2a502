// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

var errEmptyGenesis = errors.New("genesis bytes must not be empty")

// Genesis holds the initial message and its creator.
type Genesis struct {
	Text   string      `json:"text"`
	Author ids.ShortID `json:"author"`
}

// Bytes returns the JSON repr. of [g] handed to Initialize.
func (g *Genesis) Bytes() ([]byte, error) {
	return json.Marshal(g)
}

// ParseGenesis decodes genesis bytes. The initial text is not validated.
func ParseGenesis(genesisBytes []byte) (*Genesis, error) {
	if len(genesisBytes) == 0 {
		return nil, errEmptyGenesis
	}
	genesis := &Genesis{}
	if err := json.Unmarshal(genesisBytes, genesis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genesis: %w", err)
	}
	if len(genesis.Text) > MaxTextLen {
		return nil, errTextTooLong
	}
	return genesis, nil
}

// Block returns the genesis block: height 0, no parent, time 0 and a single
// tx carrying the initial message.
func (g *Genesis) Block() (*Block, error) {
	return newBlock(ids.Empty, 0, timeZero, []WriteTx{{
		Author: g.Author,
		Text:   g.Text,
	}})
}
