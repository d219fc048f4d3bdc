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

package peerwire

import (
	"crypto/sha1"
	"fmt"

	"github.com/mxfetch/magnet2torrent/lib/torrent/bencode"
)

// MetadataPieceSize is the fixed size of every ut_metadata piece except
// possibly the last.
const MetadataPieceSize = 16 * 1024

// MaxMetadataSize hard-caps metadata_size before a buffer is allocated
// for it, per settings.py's defaults -- a deliberate hardening beyond
// the original, which trusted the peer's declared size outright.
const MaxMetadataSize = 4 * 1024 * 1024

type extHandshakePayload struct {
	M            map[string]int `bencode:"m"`
	MetadataSize int            `bencode:"metadata_size,omitempty"`
}

type metadataRequest struct {
	MsgType int `bencode:"msg_type"`
	Piece   int `bencode:"piece"`
}

type metadataPieceHeader struct {
	MsgType   int `bencode:"msg_type"`
	Piece     int `bencode:"piece"`
	TotalSize int `bencode:"total_size,omitempty"`
}

const (
	metadataMsgRequest = 0
	metadataMsgData    = 1
	metadataMsgReject  = 2
)

// MetadataBuffer accumulates ut_metadata pieces for one connection and
// verifies the assembled result against the target info-hash.
type MetadataBuffer struct {
	size   int
	pieces map[int][]byte
}

// NewMetadataBuffer creates a buffer for a metadata blob of the given
// declared size. An error is returned if size exceeds MaxMetadataSize.
func NewMetadataBuffer(size int) (*MetadataBuffer, error) {
	if size <= 0 || size > MaxMetadataSize {
		return nil, fmt.Errorf("peerwire: metadata_size %d exceeds cap %d", size, MaxMetadataSize)
	}
	return &MetadataBuffer{size: size, pieces: make(map[int][]byte)}, nil
}

// NumPieces returns how many pieces the buffer expects.
func (b *MetadataBuffer) NumPieces() int {
	n := b.size / MetadataPieceSize
	if b.size%MetadataPieceSize != 0 {
		n++
	}
	return n
}

// Put stores piece i's payload.
func (b *MetadataBuffer) Put(i int, data []byte) {
	b.pieces[i] = data
}

// Complete reports whether every expected piece has arrived.
func (b *MetadataBuffer) Complete() bool {
	total := 0
	for i := 0; i < b.NumPieces(); i++ {
		p, ok := b.pieces[i]
		if !ok {
			return false
		}
		total += len(p)
	}
	return total >= b.size
}

// Assemble concatenates pieces in ascending order. Caller must check
// Complete first.
func (b *MetadataBuffer) Assemble() []byte {
	out := make([]byte, 0, b.size)
	for i := 0; i < b.NumPieces(); i++ {
		out = append(out, b.pieces[i]...)
	}
	if len(out) > b.size {
		out = out[:b.size]
	}
	return out
}

// Verify reports whether the assembled metadata's SHA-1 equals
// infoHash.
func (b *MetadataBuffer) Verify(infoHash [20]byte) ([]byte, bool) {
	data := b.Assemble()
	sum := sha1.Sum(data)
	return data, sum == infoHash
}

func encodeExtHandshake() ([]byte, error) {
	return bencode.Marshal(extHandshakePayload{M: map[string]int{"ut_metadata": extMetadataDecl}})
}

func decodeExtHandshake(payload []byte) (*extHandshakePayload, error) {
	var h extHandshakePayload
	if err := bencode.Unmarshal(payload, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func encodeMetadataRequest(piece int) ([]byte, error) {
	return bencode.Marshal(metadataRequest{MsgType: metadataMsgRequest, Piece: piece})
}

func decodeMetadataMessage(payload []byte) (*metadataPieceHeader, []byte, error) {
	head, rest, err := bencode.SplitValue(payload)
	if err != nil {
		return nil, nil, err
	}
	var h metadataPieceHeader
	if err := bencode.Unmarshal(head, &h); err != nil {
		return nil, nil, err
	}
	return &h, rest, nil
}
