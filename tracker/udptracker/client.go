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

// Package udptracker implements the BEP 15 UDP tracker protocol: a
// two-step connect/announce state machine over a single datagram
// socket.
package udptracker

import (
	"context"
	"encoding/binary"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/mxfetch/magnet2torrent/core"
	"github.com/mxfetch/magnet2torrent/dht/node"
)

// protocolMagic identifies the initial connect request per BEP 15.
const protocolMagic = 0x41727101980

const (
	actionConnect  = 0
	actionAnnounce = 1
)

// Timeout is the overall budget for the connect+announce exchange.
const Timeout = 12 * time.Second

// NumWant is the number of peers requested in the announce.
const NumWant = 100

var errBadResponse = errors.New("udptracker: malformed or mismatched response")

// Client runs the BEP 15 state machine against a single tracker address.
type Client struct{}

// New creates a Client.
func New() *Client {
	return &Client{}
}

// Announce connects then announces to addr, returning whatever peers the
// tracker reports. Any DNS, transport, or protocol failure yields zero
// peers per the error handling design -- trackers are best-effort.
func (c *Client) Announce(ctx context.Context, addr string, infoHash core.InfoHash, peerID core.PeerID, port int) []node.CompactPeer {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil
	}
	conn, err := net.DialUDP("udp4", nil, udpAddr)
	if err != nil {
		return nil
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	connID, err := c.connect(conn)
	if err != nil {
		return nil
	}

	peers, err := c.announce(conn, connID, infoHash, peerID, port)
	if err != nil {
		return nil
	}
	return peers
}

func (c *Client) connect(conn *net.UDPConn) (uint64, error) {
	txID := rand.Uint32()

	req := make([]byte, 16)
	binary.BigEndian.PutUint64(req[0:8], protocolMagic)
	binary.BigEndian.PutUint32(req[8:12], actionConnect)
	binary.BigEndian.PutUint32(req[12:16], txID)
	if _, err := conn.Write(req); err != nil {
		return 0, err
	}

	resp := make([]byte, 16)
	n, err := conn.Read(resp)
	if err != nil {
		return 0, err
	}
	if n < 16 {
		return 0, errBadResponse
	}
	if binary.BigEndian.Uint32(resp[0:4]) != actionConnect {
		return 0, errBadResponse
	}
	if binary.BigEndian.Uint32(resp[4:8]) != txID {
		return 0, errBadResponse
	}
	return binary.BigEndian.Uint64(resp[8:16]), nil
}

func (c *Client) announce(conn *net.UDPConn, connID uint64, infoHash core.InfoHash, peerID core.PeerID, port int) ([]node.CompactPeer, error) {
	txID := rand.Uint32()

	req := make([]byte, 98)
	binary.BigEndian.PutUint64(req[0:8], connID)
	binary.BigEndian.PutUint32(req[8:12], actionAnnounce)
	binary.BigEndian.PutUint32(req[12:16], txID)
	copy(req[16:36], infoHash.Bytes())
	copy(req[36:56], peerID[:])
	binary.BigEndian.PutUint64(req[56:64], 0)  // downloaded
	binary.BigEndian.PutUint64(req[64:72], 0)  // left
	binary.BigEndian.PutUint64(req[72:80], 0)  // uploaded
	binary.BigEndian.PutUint32(req[80:84], 0)  // event
	binary.BigEndian.PutUint32(req[84:88], 0)  // ip
	binary.BigEndian.PutUint32(req[88:92], rand.Uint32()) // key
	binary.BigEndian.PutUint32(req[92:96], NumWant)
	binary.BigEndian.PutUint16(req[96:98], uint16(port))

	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	resp := make([]byte, 20+6*NumWant)
	n, err := conn.Read(resp)
	if err != nil {
		return nil, err
	}
	if n < 20 {
		return nil, errBadResponse
	}
	if binary.BigEndian.Uint32(resp[0:4]) != actionAnnounce {
		return nil, errBadResponse
	}
	if binary.BigEndian.Uint32(resp[4:8]) != txID {
		return nil, errBadResponse
	}

	peerBytes := resp[20:n]
	return node.DecodeCompactPeers(peerBytes[:len(peerBytes)-len(peerBytes)%6])
}
