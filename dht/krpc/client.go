// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package krpc

import (
	"context"
	"errors"
	"net"

	"github.com/andres-erbsen/clock"
)

// ErrTimeout is returned when a call's transaction times out without a
// matching response.
var ErrTimeout = errors.New("krpc: call timed out")

// Client issues outbound KRPC queries over a shared UDP socket and
// resolves them against a TransactionManager fed by the caller's read
// loop. The four supported methods are checked against a static set of
// method names rather than duck-typed reflection.
type Client struct {
	conn *net.UDPConn
	tx   *TransactionManager
	clk  clock.Clock
}

// NewClient wraps conn for outbound calls, sharing tx with the server's
// inbound dispatch loop.
func NewClient(conn *net.UDPConn, tx *TransactionManager, clk clock.Clock) *Client {
	return &Client{conn: conn, tx: tx, clk: clk}
}

// call dispatches method by name per the static table below, sends the
// query, and awaits its response or timeout.
func (c *Client) call(ctx context.Context, addr *net.UDPAddr, method string, args *Args) (*Return, error) {
	if _, ok := queryEncoders[method]; !ok {
		return nil, errors.New("krpc: unknown query method " + method)
	}

	txid, respCh, err := c.tx.Register()
	if err != nil {
		return nil, err
	}

	msg := &Msg{T: txid, Y: TypeQuery, Q: method, A: args}
	data, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.WriteToUDP(data, addr); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-respCh:
		if !ok || resp == nil {
			return nil, ErrTimeout
		}
		if resp.E != nil {
			return nil, resp.E
		}
		if resp.R == nil {
			return nil, errors.New("krpc: response missing both r and e")
		}
		return resp.R, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// queryEncoders is the static dispatch table spec.md §9 asks for in
// place of duck-typed method resolution: every supported query name
// resolves here before a call is attempted.
var queryEncoders = map[string]struct{}{
	MethodPing:         {},
	MethodFindNode:     {},
	MethodGetPeers:     {},
	MethodAnnouncePeer: {},
}

// Ping sends a ping query.
func (c *Client) Ping(ctx context.Context, addr *net.UDPAddr, selfID [20]byte) (*Return, error) {
	return c.call(ctx, addr, MethodPing, &Args{ID: selfID})
}

// FindNode sends a find_node query for target.
func (c *Client) FindNode(ctx context.Context, addr *net.UDPAddr, selfID, target [20]byte) (*Return, error) {
	return c.call(ctx, addr, MethodFindNode, &Args{ID: selfID, Target: target})
}

// GetPeers sends a get_peers query for infoHash.
func (c *Client) GetPeers(ctx context.Context, addr *net.UDPAddr, selfID, infoHash [20]byte) (*Return, error) {
	return c.call(ctx, addr, MethodGetPeers, &Args{ID: selfID, InfoHash: infoHash})
}

// AnnouncePeer sends an announce_peer query using a token obtained from
// an earlier get_peers response.
func (c *Client) AnnouncePeer(ctx context.Context, addr *net.UDPAddr, selfID, infoHash [20]byte, port int, token string, impliedPort bool) (*Return, error) {
	ip := 0
	if impliedPort {
		ip = 1
	}
	return c.call(ctx, addr, MethodAnnouncePeer, &Args{
		ID:          selfID,
		InfoHash:    infoHash,
		Port:        port,
		Token:       token,
		ImpliedPort: ip,
	})
}
