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

// Package spider implements Kademlia's iterative lookup: NodeSpider
// (find_node, used for bootstrap and bucket refresh) and PeerSpider
// (get_peers, streaming discovered peers as they arrive).
package spider

import (
	"context"
	"net"
	"sync"

	"github.com/mxfetch/magnet2torrent/dht/krpc"
	"github.com/mxfetch/magnet2torrent/dht/node"
)

// Client is the subset of krpc.Client a lookup needs.
type Client interface {
	FindNode(ctx context.Context, addr *net.UDPAddr, selfID, target [20]byte) (*krpc.Return, error)
	GetPeers(ctx context.Context, addr *net.UDPAddr, selfID, infoHash [20]byte) (*krpc.Return, error)
}

// Config holds the two Kademlia lookup parameters: k (result width) and
// alpha (in-flight concurrency).
type Config struct {
	K     int
	Alpha int
}

func mergeNodes(heap *node.Heap, raw []byte) {
	nodes, err := node.DecodeCompactList(raw)
	if err != nil {
		return
	}
	for _, n := range nodes {
		heap.Push(n)
	}
}

// NodeSpider runs an iterative find_node lookup toward target, seeded by
// seeds, and returns the k nodes closest to target that answered.
func NodeSpider(ctx context.Context, c Client, cfg Config, selfID node.ID, target node.ID, seeds []node.Node) []node.Node {
	h := node.NewHeap(target, cfg.K)
	for _, s := range seeds {
		h.Push(s)
	}

	runLookup(ctx, cfg, h, func(ctx context.Context, n node.Node) {
		ret, err := c.FindNode(ctx, n.Addr(), selfID, target)
		if err != nil {
			h.Remove(n.ID)
			return
		}
		mergeNodes(h, ret.Nodes)
	})

	return h.Nodes()
}

// PeerBatch is one delivery from a PeerSpider: either a batch of
// discovered peers, or the single terminal empty batch marking
// completion (Done is true only on that last batch).
type PeerBatch struct {
	Peers []node.CompactPeer
	Done  bool
}

// PeerSpider runs an iterative get_peers lookup toward infoHash, pushing
// each batch of discovered peers onto the returned channel as it
// arrives. Exactly one terminal batch with Done=true is sent, after
// which the channel is closed; this holds even under ctx cancellation.
func PeerSpider(ctx context.Context, c Client, cfg Config, selfID node.ID, infoHash node.ID, seeds []node.Node) <-chan PeerBatch {
	out := make(chan PeerBatch, 16)

	go func() {
		defer func() {
			out <- PeerBatch{Done: true}
			close(out)
		}()

		h := node.NewHeap(infoHash, cfg.K)
		for _, s := range seeds {
			h.Push(s)
		}

		runLookup(ctx, cfg, h, func(ctx context.Context, n node.Node) {
			ret, err := c.GetPeers(ctx, n.Addr(), selfID, infoHash)
			if err != nil {
				h.Remove(n.ID)
				return
			}
			if len(ret.Values) > 0 {
				peers := make([]node.CompactPeer, 0, len(ret.Values))
				for _, v := range ret.Values {
					if len(v) != 6 {
						continue
					}
					var p node.CompactPeer
					copy(p[:], v)
					peers = append(peers, p)
				}
				if len(peers) > 0 {
					select {
					case out <- PeerBatch{Peers: peers}:
					case <-ctx.Done():
					}
				}
			}
			mergeNodes(h, ret.Nodes)
		})
	}()

	return out
}

// runLookup drives the shared NodeSpider/PeerSpider skeleton: keep at
// most alpha RPCs in flight, dispatched from the heap's uncontacted
// members, until every heap member is contacted and no RPC remains in
// flight, or ctx is cancelled.
func runLookup(ctx context.Context, cfg Config, h *node.Heap, query func(ctx context.Context, n node.Node)) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.Alpha)

	for {
		if ctx.Err() != nil {
			break
		}
		batch := h.Uncontacted(cfg.Alpha)
		if len(batch) == 0 {
			if h.HaveContactedAll() {
				break
			}
			// nothing left to dispatch, and every earlier batch was
			// awaited below, so no RPC is in flight either.
			break
		}
		for _, n := range batch {
			h.MarkContacted(n.ID)
			wg.Add(1)
			sem <- struct{}{}
			go func(n node.Node) {
				defer wg.Done()
				defer func() { <-sem }()
				query(ctx, n)
			}(n)
		}
		wg.Wait()
		if h.HaveContactedAll() {
			break
		}
	}
	wg.Wait()
}
