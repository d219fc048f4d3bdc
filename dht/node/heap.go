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

package node

import "sort"

// entry is a single node tracked by a Heap, along with whether it has
// already been contacted during the current lookup.
type entry struct {
	node      Node
	contacted bool
}

// Heap is a bounded collection of the k nodes closest to a target seen so
// far during an iterative lookup, deduplicated by ID. It is not a
// container/heap in the strict sense -- entries are kept sorted by
// distance on every insert, which is cheap at the small capacity (k) this
// is used at.
type Heap struct {
	target   ID
	capacity int
	entries  []*entry
	index    map[ID]*entry
}

// NewHeap creates a Heap bounded at capacity, keyed by distance to target.
func NewHeap(target ID, capacity int) *Heap {
	return &Heap{
		target:   target,
		capacity: capacity,
		index:    make(map[ID]*entry),
	}
}

// Push inserts node if it is among the capacity closest nodes seen so
// far. Re-pushing a known ID is a no-op (idempotent by NodeID).
func (h *Heap) Push(n Node) {
	if _, ok := h.index[n.ID]; ok {
		return
	}
	e := &entry{node: n}
	h.entries = append(h.entries, e)
	h.index[n.ID] = e
	h.sort()
	if len(h.entries) > h.capacity {
		dropped := h.entries[h.capacity:]
		h.entries = h.entries[:h.capacity]
		for _, d := range dropped {
			delete(h.index, d.node.ID)
		}
	}
}

func (h *Heap) sort() {
	sort.Slice(h.entries, func(i, j int) bool {
		return CloserThan(h.target, h.entries[i].node.ID, h.entries[j].node.ID)
	})
}

// Remove drops id from the heap entirely, e.g. after an RPC failure.
func (h *Heap) Remove(id ID) {
	if _, ok := h.index[id]; !ok {
		return
	}
	delete(h.index, id)
	for i, e := range h.entries {
		if e.node.ID == id {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
}

// MarkContacted flags id as contacted.
func (h *Heap) MarkContacted(id ID) {
	if e, ok := h.index[id]; ok {
		e.contacted = true
	}
}

// Uncontacted returns up to n nodes that have not yet been contacted,
// closest first.
func (h *Heap) Uncontacted(n int) []Node {
	var out []Node
	for _, e := range h.entries {
		if len(out) == n {
			break
		}
		if !e.contacted {
			out = append(out, e.node)
		}
	}
	return out
}

// HaveContactedAll reports whether every node currently in the heap has
// been contacted.
func (h *Heap) HaveContactedAll() bool {
	for _, e := range h.entries {
		if !e.contacted {
			return false
		}
	}
	return true
}

// Nodes returns the heap's contents, closest first.
func (h *Heap) Nodes() []Node {
	out := make([]Node, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.node
	}
	return out
}

// Len returns the number of nodes currently held.
func (h *Heap) Len() int {
	return len(h.entries)
}
