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

package spider

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mxfetch/magnet2torrent/dht/krpc"
	"github.com/mxfetch/magnet2torrent/dht/node"
)

// fakeClient simulates a tiny DHT swarm: a fixed set of nodes, one of
// which holds peers for the target info-hash, each of which returns the
// next node in the chain on every find_node/get_peers call.
type fakeClient struct {
	mu    sync.Mutex
	nodes map[node.ID]node.Node
	// chain[i] refers the caller to chain[i+1]
	chain       []node.ID
	peerHolder  node.ID
	peerValue   node.CompactPeer
}

func (f *fakeClient) nextAfter(id [20]byte) []node.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.chain {
		if c == node.ID(id) && i+1 < len(f.chain) {
			return []node.Node{f.nodes[f.chain[i+1]]}
		}
	}
	return nil
}

func (f *fakeClient) FindNode(ctx context.Context, addr *net.UDPAddr, selfID, target [20]byte) (*krpc.Return, error) {
	next := f.nextAfter(addrToID(f, addr))
	return &krpc.Return{ID: addrToID(f, addr), Nodes: node.EncodeCompactList(next)}, nil
}

func (f *fakeClient) GetPeers(ctx context.Context, addr *net.UDPAddr, selfID, infoHash [20]byte) (*krpc.Return, error) {
	id := addrToID(f, addr)
	ret := &krpc.Return{ID: id}
	if id == f.peerHolder {
		b := make([]byte, 6)
		copy(b, f.peerValue[:])
		ret.Values = [][]byte{b}
		return ret, nil
	}
	next := f.nextAfter(id)
	ret.Nodes = node.EncodeCompactList(next)
	return ret, nil
}

func addrToID(f *fakeClient, addr *net.UDPAddr) [20]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.nodes {
		if n.Port == addr.Port {
			return id
		}
	}
	return [20]byte{}
}

func buildChain(t *testing.T, n int) (*fakeClient, []node.Node) {
	f := &fakeClient{nodes: make(map[node.ID]node.Node)}
	var seeds []node.Node
	for i := 0; i < n; i++ {
		id, err := node.RandomID()
		require.NoError(t, err)
		nd := node.Node{ID: id, IP: net.IPv4(127, 0, 0, 1), Port: 10000 + i}
		f.nodes[id] = nd
		f.chain = append(f.chain, id)
		if i == 0 {
			seeds = append(seeds, nd)
		}
	}
	return f, seeds
}

func TestNodeSpiderFollowsChain(t *testing.T) {
	require := require.New(t)

	f, seeds := buildChain(t, 3)
	self, _ := node.RandomID()
	var target node.ID

	got := NodeSpider(context.Background(), f, Config{K: 8, Alpha: 4}, self, target, seeds)
	require.NotEmpty(got)
}

func TestPeerSpiderFindsPeerAndTerminates(t *testing.T) {
	require := require.New(t)

	f, seeds := buildChain(t, 3)
	f.peerHolder = f.chain[len(f.chain)-1]
	p, err := node.NewCompactPeer(net.IPv4(5, 6, 7, 8), 6881)
	require.NoError(err)
	f.peerValue = p

	self, _ := node.RandomID()
	var infoHash node.ID

	ch := PeerSpider(context.Background(), f, Config{K: 8, Alpha: 4}, self, infoHash, seeds)

	var found bool
	var lastDone bool
	for batch := range ch {
		if len(batch.Peers) > 0 {
			require.Equal(p, batch.Peers[0])
			found = true
		}
		lastDone = batch.Done
	}
	require.True(found)
	require.True(lastDone)
}

func TestPeerSpiderTerminatesOnCancel(t *testing.T) {
	require := require.New(t)

	f, seeds := buildChain(t, 1)
	self, _ := node.RandomID()
	var infoHash node.ID

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := PeerSpider(ctx, f, Config{K: 8, Alpha: 4}, self, infoHash, seeds)

	select {
	case batch, ok := <-ch:
		require.True(ok)
		require.True(batch.Done)
	case <-time.After(2 * time.Second):
		t.Fatal("PeerSpider did not terminate promptly on cancellation")
	}
}
