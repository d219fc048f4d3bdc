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

// Package node defines Kademlia node identity, XOR distance, and the
// compact wire encoding KRPC uses to pack nodes into a single bytestring.
package node

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
)

// IDLength is the size in bytes of a node ID (160 bits).
const IDLength = 20

// CompactLength is the size in bytes of a packed Node: ID + IPv4 + port.
const CompactLength = IDLength + 4 + 2

// ID is a 160-bit Kademlia node identifier, treated as an unsigned
// big-endian integer for distance computation.
type ID [IDLength]byte

// RandomID generates a randomly distributed node ID.
func RandomID() (ID, error) {
	var id ID
	_, err := rand.Read(id[:])
	return id, err
}

// RandomIDInRange returns a random ID whose big-endian integer value falls
// within [lo, hi). Used to target a refresh lookup at a specific bucket.
func RandomIDInRange(lo, hi ID) (ID, error) {
	var out ID
	if _, err := rand.Read(out[:]); err != nil {
		return out, err
	}
	// Clamp by copying lo's prefix up to the first byte where lo and hi
	// differ, which keeps the result inside [lo, hi) with high probability
	// for the bucket-sized ranges this is used with; a rare out-of-range
	// draw returns lo instead.
	for i := 0; i < IDLength; i++ {
		if lo[i] == hi[i] {
			out[i] = lo[i]
			continue
		}
		break
	}
	if compare(out, lo) < 0 || compare(out, hi) >= 0 {
		return lo, nil
	}
	return out, nil
}

// String returns the hex encoding of id.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw bytes of id.
func (id ID) Bytes() []byte {
	return id[:]
}

// IDFromBytes parses a 20-byte slice into an ID.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDLength {
		return id, fmt.Errorf("node id must be %d bytes, got %d", IDLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Distance returns the XOR distance between id and other.
func (id ID) Distance(other ID) ID {
	var d ID
	for i := 0; i < IDLength; i++ {
		d[i] = id[i] ^ other[i]
	}
	return d
}

// Less reports whether id, as a big-endian integer, is less than other.
// It gives lookups a deterministic tie-break when two nodes are
// equidistant from a target.
func (id ID) Less(other ID) bool {
	return compare(id, other) < 0
}

func compare(a, b ID) int {
	for i := 0; i < IDLength; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// CloserThan reports whether a is closer to target than b is.
func CloserThan(target, a, b ID) bool {
	da := target.Distance(a)
	db := target.Distance(b)
	c := compare(da, db)
	if c != 0 {
		return c < 0
	}
	return a.Less(b)
}

// ErrInvalidNode is returned when a compact node encoding is malformed or
// the IP is not a 4-byte IPv4 address (IPv6 peers are out of scope).
var ErrInvalidNode = errors.New("node: invalid or non-IPv4 compact encoding")

// Node is a Kademlia contact: an ID plus the IPv4 address and port it
// answers on. A Node constructed to represent only a lookup target has a
// zero IP and Port.
type Node struct {
	ID   ID
	IP   net.IP
	Port int
}

// Addr returns the UDP address of n.
func (n Node) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: n.IP, Port: n.Port}
}

// Compact encodes n as the 26-byte ID‖IPv4‖port wire form.
func (n Node) Compact() ([]byte, error) {
	ip4 := n.IP.To4()
	if ip4 == nil {
		return nil, ErrInvalidNode
	}
	b := make([]byte, CompactLength)
	copy(b[:IDLength], n.ID[:])
	copy(b[IDLength:IDLength+4], ip4)
	binary.BigEndian.PutUint16(b[IDLength+4:], uint16(n.Port))
	return b, nil
}

// DecodeCompact parses a 26-byte compact node.
func DecodeCompact(b []byte) (Node, error) {
	var n Node
	if len(b) != CompactLength {
		return n, ErrInvalidNode
	}
	id, err := IDFromBytes(b[:IDLength])
	if err != nil {
		return n, err
	}
	n.ID = id
	n.IP = net.IPv4(b[IDLength], b[IDLength+1], b[IDLength+2], b[IDLength+3])
	n.Port = int(binary.BigEndian.Uint16(b[IDLength+4:]))
	return n, nil
}

// DecodeCompactList parses a concatenated sequence of compact nodes.
func DecodeCompactList(b []byte) ([]Node, error) {
	if len(b)%CompactLength != 0 {
		return nil, ErrInvalidNode
	}
	nodes := make([]Node, 0, len(b)/CompactLength)
	for i := 0; i < len(b); i += CompactLength {
		n, err := DecodeCompact(b[i : i+CompactLength])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// EncodeCompactList packs nodes into their concatenated compact form,
// skipping any that cannot be encoded (e.g. non-IPv4).
func EncodeCompactList(nodes []Node) []byte {
	out := make([]byte, 0, len(nodes)*CompactLength)
	for _, n := range nodes {
		c, err := n.Compact()
		if err != nil {
			continue
		}
		out = append(out, c...)
	}
	return out
}

// CompactPeer is the 6-byte (IPv4, port) form used by get_peers "values"
// and by BEP 23 tracker responses.
type CompactPeer [6]byte

// NewCompactPeer packs an IPv4 address and port.
func NewCompactPeer(ip net.IP, port int) (CompactPeer, error) {
	var p CompactPeer
	ip4 := ip.To4()
	if ip4 == nil {
		return p, ErrInvalidNode
	}
	copy(p[:4], ip4)
	binary.BigEndian.PutUint16(p[4:], uint16(port))
	return p, nil
}

// IP returns the peer's IPv4 address.
func (p CompactPeer) IP() net.IP {
	return net.IPv4(p[0], p[1], p[2], p[3])
}

// Port returns the peer's port.
func (p CompactPeer) Port() int {
	return int(binary.BigEndian.Uint16(p[4:]))
}

// String renders the peer as "ip:port".
func (p CompactPeer) String() string {
	return fmt.Sprintf("%s:%d", p.IP(), p.Port())
}

// DecodeCompactPeers splits a concatenated sequence of 6-byte peers.
func DecodeCompactPeers(b []byte) ([]CompactPeer, error) {
	if len(b)%6 != 0 {
		return nil, errors.New("node: compact peer list length not a multiple of 6")
	}
	peers := make([]CompactPeer, 0, len(b)/6)
	for i := 0; i < len(b); i += 6 {
		var p CompactPeer
		copy(p[:], b[i:i+6])
		peers = append(peers, p)
	}
	return peers, nil
}
