// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/gorilla/websocket"

	"github.com/ava-labs/avalanchego/ids"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/messagevm/messagevm"
	"github.com/ava-labs/messagevm/server"
)

// Client defines messagevm client operations.
type Client interface {
	// Write replaces the message and returns the record after the write
	Write(ctx context.Context, author ids.ShortID, text string) (*messagevm.SnapshotReply, error)

	// ProposeWrite queues a write for a future block and returns its tx ID
	ProposeWrite(ctx context.Context, author ids.ShortID, text string) (ids.ID, error)

	// Read fetches the current message
	Read(ctx context.Context) (*messagevm.ReadReply, error)

	// GetRevision fetches the message as of [revision].
	// Fetches the latest revision if [revision] is 0
	GetRevision(ctx context.Context, revision uint64) (*messagevm.SnapshotReply, error)

	// GetBlock fetches the block corresponding to [blockID].
	// Fetches the last accepted block if [blockID] is the empty ID
	GetBlock(ctx context.Context, blockID ids.ID) (*messagevm.GetBlockReply, error)

	// Subscribe streams every write accepted after it returns.
	// The channel is closed when [ctx] is done or the connection drops.
	Subscribe(ctx context.Context) (<-chan messagevm.EventMessage, error)
}

// New creates a new client object for the node at [uri], e.g.
// http://127.0.0.1:9650
func New(uri string) Client {
	uri = strings.TrimSuffix(uri, "/")
	return &client{
		endpoint:   uri + server.ChainPath,
		eventsURL:  "ws" + strings.TrimPrefix(uri, "http") + server.EventsPath,
		httpClient: http.DefaultClient,
	}
}

type client struct {
	endpoint   string
	eventsURL  string
	httpClient *http.Client
}

func (c *client) Write(ctx context.Context, author ids.ShortID, text string) (*messagevm.SnapshotReply, error) {
	reply := new(messagevm.SnapshotReply)
	return reply, c.sendRequest(ctx,
		"messagevm.write",
		&messagevm.WriteArgs{Author: author, Text: text},
		reply,
	)
}

func (c *client) ProposeWrite(ctx context.Context, author ids.ShortID, text string) (ids.ID, error) {
	reply := new(messagevm.ProposeWriteReply)
	err := c.sendRequest(ctx,
		"messagevm.proposeWrite",
		&messagevm.WriteArgs{Author: author, Text: text},
		reply,
	)
	return reply.TxID, err
}

func (c *client) Read(ctx context.Context) (*messagevm.ReadReply, error) {
	reply := new(messagevm.ReadReply)
	return reply, c.sendRequest(ctx,
		"messagevm.read",
		&messagevm.ReadArgs{},
		reply,
	)
}

func (c *client) GetRevision(ctx context.Context, revision uint64) (*messagevm.SnapshotReply, error) {
	reply := new(messagevm.SnapshotReply)
	return reply, c.sendRequest(ctx,
		"messagevm.getRevision",
		&messagevm.GetRevisionArgs{Revision: cjson.Uint64(revision)},
		reply,
	)
}

func (c *client) GetBlock(ctx context.Context, blockID ids.ID) (*messagevm.GetBlockReply, error) {
	reply := new(messagevm.GetBlockReply)
	return reply, c.sendRequest(ctx,
		"messagevm.getBlock",
		&messagevm.GetBlockArgs{ID: blockID},
		reply,
	)
}

func (c *client) Subscribe(ctx context.Context) (<-chan messagevm.EventMessage, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.eventsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.eventsURL, err)
	}

	events := make(chan messagevm.EventMessage)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer close(done)
		for {
			var msg messagevm.EventMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case events <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *client) sendRequest(ctx context.Context, method string, args interface{}, reply interface{}) error {
	body, err := json2.EncodeClientRequest(method, args)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to issue %s request: %w", method, err)
	}
	defer resp.Body.Close()

	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s failed with status code %d: %w", method, resp.StatusCode, err)
		}
		return err
	}
	return nil
}
