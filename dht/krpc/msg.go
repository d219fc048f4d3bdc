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

// Package krpc implements BEP 5's KRPC message envelope: a bencoded
// dictionary with a transaction id, a type discriminator, and a payload
// that depends on the type.
package krpc

import "github.com/mxfetch/magnet2torrent/lib/torrent/bencode"

// Message types, the value of the "y" key.
const (
	TypeQuery    = "q"
	TypeResponse = "r"
	TypeError    = "e"
)

// Query method names, the value of the "q" key.
const (
	MethodPing         = "ping"
	MethodFindNode     = "find_node"
	MethodGetPeers     = "get_peers"
	MethodAnnouncePeer = "announce_peer"
)

// Standard KRPC error codes (BEP 5 §ERRORS).
const (
	ErrGeneric       = 201
	ErrServer        = 202
	ErrProtocol      = 203
	ErrMethodUnknown = 204
)

// Error is the two-element [code, message] list carried by the "e" key.
type Error struct {
	Code    int
	Message string
}

// MarshalBencode encodes e as a bencode list [code, message].
func (e Error) MarshalBencode() ([]byte, error) {
	return bencode.Marshal([]interface{}{e.Code, e.Message})
}

// UnmarshalBencode decodes e from a bencode list [code, message].
func (e *Error) UnmarshalBencode(data []byte) error {
	var pair []interface{}
	if err := bencode.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) > 0 {
		if n, ok := pair[0].(int64); ok {
			e.Code = int(n)
		}
	}
	if len(pair) > 1 {
		if s, ok := pair[1].(string); ok {
			e.Message = s
		}
	}
	return nil
}

func (e *Error) Error() string {
	return e.Message
}

// Args carries the named arguments of a query, or the query-derived
// portion of an announce_peer.
type Args struct {
	ID          [20]byte `bencode:"id"`
	InfoHash    [20]byte `bencode:"info_hash,omitempty"`
	Target      [20]byte `bencode:"target,omitempty"`
	Token       string   `bencode:"token,omitempty"`
	Port        int      `bencode:"port,omitempty"`
	ImpliedPort int      `bencode:"implied_port,omitempty"`
}

// Return carries the payload of a successful response.
type Return struct {
	ID     [20]byte `bencode:"id"`
	Nodes  []byte   `bencode:"nodes,omitempty"`
	Token  string   `bencode:"token,omitempty"`
	Values [][]byte `bencode:"values,omitempty"`
}

// Msg is the full KRPC envelope.
type Msg struct {
	T string  `bencode:"t"`
	Y string  `bencode:"y"`
	Q string  `bencode:"q,omitempty"`
	A *Args   `bencode:"a,omitempty"`
	R *Return `bencode:"r,omitempty"`
	E *Error  `bencode:"e,omitempty"`
}

// Encode serializes m to its bencoded wire form.
func (m *Msg) Encode() ([]byte, error) {
	return bencode.Marshal(m)
}

// Decode parses a bencoded KRPC datagram.
func Decode(data []byte) (*Msg, error) {
	var m Msg
	if err := bencode.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
