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

package udptracker

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mxfetch/magnet2torrent/core"
	"github.com/mxfetch/magnet2torrent/dht/node"
)

// fakeTracker is a minimal BEP 15 responder: it answers one connect and
// one announce datagram, then stops.
func fakeTracker(t *testing.T, peer node.CompactPeer) *net.UDPConn {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 2048)

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil || n < 16 {
			return
		}
		txID := binary.BigEndian.Uint32(buf[12:16])
		resp := make([]byte, 16)
		binary.BigEndian.PutUint32(resp[0:4], actionConnect)
		binary.BigEndian.PutUint32(resp[4:8], txID)
		binary.BigEndian.PutUint64(resp[8:16], 0xdeadbeef)
		conn.WriteToUDP(resp, addr)

		n, addr, err = conn.ReadFromUDP(buf)
		if err != nil || n < 98 {
			return
		}
		txID = binary.BigEndian.Uint32(buf[12:16])
		resp2 := make([]byte, 20+6)
		binary.BigEndian.PutUint32(resp2[0:4], actionAnnounce)
		binary.BigEndian.PutUint32(resp2[4:8], txID)
		copy(resp2[20:26], peer[:])
		conn.WriteToUDP(resp2, addr)
	}()

	return conn
}

func TestAnnounceRoundTrip(t *testing.T) {
	require := require.New(t)

	p, err := node.NewCompactPeer(net.IPv4(9, 8, 7, 6), 51413)
	require.NoError(err)

	srv := fakeTracker(t, p)
	defer srv.Close()

	c := New()
	peers := c.Announce(context.Background(), srv.LocalAddr().String(), core.InfoHashFixture(), core.PeerIDFixture(), 6881)
	require.Len(peers, 1)
	require.Equal(p, peers[0])
}

func TestAnnounceUnreachableYieldsNoPeers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	c := New()
	peers := c.Announce(ctx, "127.0.0.1:1", core.InfoHashFixture(), core.PeerIDFixture(), 6881)
	require.Empty(t, peers)
}
