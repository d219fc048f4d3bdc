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

// Package routing implements the Kademlia k-bucket routing table: an
// ordered partition of the 160-bit ID space, each range holding up to k
// live contacts plus a replacement cache for the overflow.
package routing

import (
	"crypto/rand"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/mxfetch/magnet2torrent/dht/node"
)

func randBigInt(max *big.Int) (*big.Int, error) {
	return rand.Int(rand.Reader, max)
}

const idBits = node.IDLength * 8

// bucketMin and bucketMax bound the half-open ID space [0, 2^160);
// bucketMax is exclusive.
var (
	bucketMin = new(big.Int)
	bucketMax = new(big.Int).Lsh(big.NewInt(1), idBits)
)

func idToInt(id node.ID) *big.Int {
	return new(big.Int).SetBytes(id[:])
}

func intToID(i *big.Int) node.ID {
	var id node.ID
	b := i.Bytes()
	copy(id[node.IDLength-len(b):], b)
	return id
}

// liveNode is a contact held in a bucket, with its last-seen time for
// staleness and eviction decisions.
type liveNode struct {
	node     node.Node
	lastSeen time.Time
}

// Bucket covers the half-open range [lo, hi) of the ID space.
type Bucket struct {
	lo, hi      *big.Int
	k           int
	live        []*liveNode
	replacement []*liveNode
	lastUpdated time.Time
}

func newBucket(lo, hi *big.Int, k int, clk clock.Clock) *Bucket {
	return &Bucket{lo: lo, hi: hi, k: k, lastUpdated: clk.Now()}
}

// Contains reports whether id falls within the bucket's range.
func (b *Bucket) Contains(id node.ID) bool {
	i := idToInt(id)
	return i.Cmp(b.lo) >= 0 && i.Cmp(b.hi) < 0
}

func (b *Bucket) indexOf(id node.ID) int {
	for i, n := range b.live {
		if n.node.ID == id {
			return i
		}
	}
	return -1
}

// Nodes returns the bucket's live contacts.
func (b *Bucket) Nodes() []node.Node {
	out := make([]node.Node, len(b.live))
	for i, n := range b.live {
		out[i] = n.node
	}
	return out
}

// Table is the full routing table for our local node ID.
type Table struct {
	mu      sync.Mutex
	self    node.ID
	k       int
	clk     clock.Clock
	buckets []*Bucket
}

// NewTable creates a Table for self with bucket width k, covering the
// full ID space as a single bucket that splits lazily as it fills.
func NewTable(self node.ID, k int, clk clock.Clock) *Table {
	return &Table{
		self:    self,
		k:       k,
		clk:     clk,
		buckets: []*Bucket{newBucket(bucketMin, bucketMax, k, clk)},
	}
}

func (t *Table) bucketIndexFor(id node.ID) int {
	i := idToInt(id)
	// buckets are kept sorted by lo, so a linear scan is fine at the
	// shallow depths a single peer's table ever reaches.
	for idx, b := range t.buckets {
		if i.Cmp(b.lo) >= 0 && i.Cmp(b.hi) < 0 {
			return idx
		}
	}
	return len(t.buckets) - 1
}

// AddContact inserts or refreshes n. If its bucket is full and splittable
// (our own ID falls in range), the bucket splits and insertion retries;
// otherwise n is pushed to the bucket's replacement cache.
func (t *Table) AddContact(n node.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addContactLocked(n)
}

func (t *Table) addContactLocked(n node.Node) {
	idx := t.bucketIndexFor(n.ID)
	b := t.buckets[idx]

	if i := b.indexOf(n.ID); i != -1 {
		b.live[i].lastSeen = t.clk.Now()
		b.lastUpdated = t.clk.Now()
		return
	}

	if len(b.live) < b.k {
		b.live = append(b.live, &liveNode{node: n, lastSeen: t.clk.Now()})
		b.lastUpdated = t.clk.Now()
		return
	}

	if b.Contains(t.self) {
		t.splitLocked(idx)
		t.addContactLocked(n)
		return
	}

	b.replacement = append(b.replacement, &liveNode{node: n, lastSeen: t.clk.Now()})
	if len(b.replacement) > b.k {
		b.replacement = b.replacement[1:]
	}
}

func (t *Table) splitLocked(idx int) {
	b := t.buckets[idx]
	mid := new(big.Int).Add(b.lo, b.hi)
	mid.Rsh(mid, 1)

	lower := newBucket(b.lo, mid, b.k, t.clk)
	upper := newBucket(mid, b.hi, b.k, t.clk)

	for _, ln := range b.live {
		target := lower
		if idToInt(ln.node.ID).Cmp(mid) >= 0 {
			target = upper
		}
		target.live = append(target.live, ln)
	}
	for _, ln := range b.replacement {
		target := lower
		if idToInt(ln.node.ID).Cmp(mid) >= 0 {
			target = upper
		}
		if len(target.live) < target.k {
			target.live = append(target.live, ln)
		}
	}

	t.buckets = append(t.buckets[:idx], append([]*Bucket{lower, upper}, t.buckets[idx+1:]...)...)
}

// RemoveContact evicts id from its bucket. If a replacement is queued, it
// is promoted to fill the slot; this is the "ping-replace" policy's
// eviction half (the ping itself is the caller's responsibility).
func (t *Table) RemoveContact(id node.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.bucketIndexFor(id)
	b := t.buckets[idx]
	i := b.indexOf(id)
	if i == -1 {
		return
	}
	b.live = append(b.live[:i], b.live[i+1:]...)
	if len(b.replacement) > 0 {
		promoted := b.replacement[len(b.replacement)-1]
		b.replacement = b.replacement[:len(b.replacement)-1]
		b.live = append(b.live, promoted)
	}
}

// IsNewNode reports whether id is not currently a live contact.
func (t *Table) IsNewNode(id node.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.buckets[t.bucketIndexFor(id)]
	return b.indexOf(id) == -1
}

// BucketFull reports whether id's bucket is at capacity and unsplittable
// (our own ID is outside its range), meaning a new contact there can only
// be admitted by the ping-replace policy rather than a plain append.
func (t *Table) BucketFull(id node.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.buckets[t.bucketIndexFor(id)]
	return len(b.live) >= b.k && !b.Contains(t.self)
}

// FindNeighbors returns the k nodes in the table closest to target,
// excluding any ID present in exclude.
func (t *Table) FindNeighbors(target node.ID, k int, exclude map[node.ID]bool) []node.Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	var all []node.Node
	for _, b := range t.buckets {
		for _, ln := range b.live {
			if exclude != nil && exclude[ln.node.ID] {
				continue
			}
			all = append(all, ln.node)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return node.CloserThan(target, all[i].ID, all[j].ID)
	})
	if len(all) > k {
		all = all[:k]
	}
	return all
}

// LeastRecentlySeen returns the stalest live contact in id's bucket, used
// by the ping-replace policy before evicting on overflow.
func (t *Table) LeastRecentlySeen(id node.ID) (node.Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.buckets[t.bucketIndexFor(id)]
	if len(b.live) == 0 {
		return node.Node{}, false
	}
	oldest := b.live[0]
	for _, ln := range b.live[1:] {
		if ln.lastSeen.Before(oldest.lastSeen) {
			oldest = ln
		}
	}
	return oldest.node, true
}

// LonelyBuckets returns buckets not updated within staleness (e.g. 1h).
func (t *Table) LonelyBuckets(staleness time.Duration) []*Bucket {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clk.Now()
	var stale []*Bucket
	for _, b := range t.buckets {
		if now.Sub(b.lastUpdated) >= staleness {
			stale = append(stale, b)
		}
	}
	return stale
}

// RandomIDInBucket returns a random ID in b's range, for targeting a
// refresh lookup.
func (b *Bucket) RandomIDInBucket() node.ID {
	span := new(big.Int).Sub(b.hi, b.lo)
	if span.Sign() <= 0 {
		return intToID(b.lo)
	}
	r, err := randBigInt(span)
	if err != nil {
		return intToID(b.lo)
	}
	return intToID(new(big.Int).Add(b.lo, r))
}

// Self returns the table's own node ID.
func (t *Table) Self() node.ID {
	return t.self
}

// Len returns the total number of live contacts across all buckets.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, b := range t.buckets {
		n += len(b.live)
	}
	return n
}
