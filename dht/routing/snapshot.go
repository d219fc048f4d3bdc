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

package routing

import (
	"math/big"

	"github.com/andres-erbsen/clock"

	"github.com/mxfetch/magnet2torrent/dht/node"
)

// BucketSnapshot is the language-neutral on-disk form of one bucket, per
// spec.md §9's state-persistence redesign note.
type BucketSnapshot struct {
	Lo    []byte `bencode:"lo"`
	Hi    []byte `bencode:"hi"`
	Nodes []byte `bencode:"nodes"` // concatenated compact26 entries
}

// Snapshot is the full serializable routing table state.
type Snapshot struct {
	KSize   int              `bencode:"ksize"`
	ID      [20]byte         `bencode:"id"`
	Buckets []BucketSnapshot `bencode:"buckets"`
}

// Snapshot captures the table's current bucket layout and live contacts.
// last_updated is deliberately not carried across restarts: a restored
// bucket starts fresh and re-earns its staleness clock.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{KSize: t.k, ID: t.self}
	for _, b := range t.buckets {
		s.Buckets = append(s.Buckets, BucketSnapshot{
			Lo:    padTo20(b.lo),
			Hi:    padTo20(b.hi),
			Nodes: node.EncodeCompactList(b.Nodes()),
		})
	}
	return s
}

func padTo20(i *big.Int) []byte {
	b := i.Bytes()
	out := make([]byte, 20)
	copy(out[20-len(b):], b)
	return out
}

// LoadSnapshot restores a Table from a previously captured Snapshot. k
// falls back to s.KSize when non-positive.
func LoadSnapshot(s Snapshot, k int, clk clock.Clock) (*Table, error) {
	if k <= 0 {
		k = s.KSize
	}
	self, err := node.IDFromBytes(s.ID[:])
	if err != nil {
		return nil, err
	}
	t := NewTable(self, k, clk)
	t.buckets = t.buckets[:0]

	for _, bs := range s.Buckets {
		lo := new(big.Int).SetBytes(bs.Lo)
		hi := new(big.Int).SetBytes(bs.Hi)
		b := newBucket(lo, hi, k, clk)
		nodes, err := node.DecodeCompactList(bs.Nodes)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			b.live = append(b.live, &liveNode{node: n, lastSeen: clk.Now()})
		}
		t.buckets = append(t.buckets, b)
	}
	if len(t.buckets) == 0 {
		t.buckets = append(t.buckets, newBucket(bucketMin, bucketMax, k, clk))
	}
	return t, nil
}
