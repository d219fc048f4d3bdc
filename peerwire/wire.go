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

// Package peerwire implements the BitTorrent peer wire protocol (BEP 3)
// handshake, the extension protocol handshake (BEP 10), and ut_metadata
// piece pulling (BEP 9), enough to recover an "info" dictionary from a
// single peer without exchanging any file data.
package peerwire

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"
)

// MaxPacketSize bounds a single peer-wire message; oversized frames are
// a protocol violation and terminate the connection.
const MaxPacketSize = 32768

// ConnectTimeout bounds the TCP dial; the handshakes that follow run
// under OverallBudget.
const ConnectTimeout = 7 * time.Second

// OverallBudget is the total time allowed from handshake to a completed
// (or abandoned) metadata transfer.
const OverallBudget = 30 * time.Second

const (
	pstr            = "BitTorrent protocol"
	msgExtended     = 20
	extHandshakeID  = 0
	extMetadataDecl = 1 // the id we advertise for ut_metadata in our handshake
)

// extensionByteIndex and extensionBitMask locate the BEP 10 bit in the
// handshake's reserved bytes (reserved[5] & 0x10).
const extensionByteIndex = 5
const extensionBitMask = 0x10

// ErrOversizedFrame is a protocol violation: a peer sent a frame larger
// than MaxPacketSize.
var ErrOversizedFrame = errors.New("peerwire: frame exceeds max packet size")

// ErrHandshakeMismatch means the peer's handshake didn't match what we
// expect (wrong info-hash, missing extension bit, bad pstr).
var ErrHandshakeMismatch = errors.New("peerwire: handshake mismatch")

// ErrNoMetadataExtension means the peer's extension handshake lacked
// ut_metadata.
var ErrNoMetadataExtension = errors.New("peerwire: peer does not support ut_metadata")

// ErrRejected is a protocol violation: the peer sent msg_type:2 (reject)
// for a requested piece.
var ErrRejected = errors.New("peerwire: peer rejected metadata piece")

// buildHandshake builds our outbound 68-byte BEP 3 handshake.
func buildHandshake(infoHash, peerID [20]byte) []byte {
	b := make([]byte, 68)
	b[0] = byte(len(pstr))
	copy(b[1:20], pstr)
	b[1+19+extensionByteIndex] |= extensionBitMask
	copy(b[28:48], infoHash[:])
	copy(b[48:68], peerID[:])
	return b
}

type peerHandshake struct {
	reserved        [8]byte
	infoHash        [20]byte
	peerID          [20]byte
	supportsExtProt bool
}

func readHandshake(r io.Reader) (*peerHandshake, error) {
	b := make([]byte, 68)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	if int(b[0]) != len(pstr) || string(b[1:20]) != pstr {
		return nil, ErrHandshakeMismatch
	}
	var h peerHandshake
	copy(h.reserved[:], b[20:28])
	copy(h.infoHash[:], b[28:48])
	copy(h.peerID[:], b[48:68])
	h.supportsExtProt = h.reserved[extensionByteIndex]&extensionBitMask != 0
	return &h, nil
}

// sendMessage writes a length-prefixed peer-wire message: msgID followed
// by payload.
func sendMessage(conn net.Conn, msgID byte, payload []byte) error {
	if len(payload)+1 > MaxPacketSize {
		return ErrOversizedFrame
	}
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = msgID
	copy(buf[5:], payload)
	_, err := conn.Write(buf)
	return err
}

// readMessage reads one length-prefixed peer-wire message, returning its
// message ID and payload. A zero-length message (keep-alive) returns
// msgID -1.
func readMessage(conn net.Conn) (int, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return -1, nil, nil
	}
	if length > MaxPacketSize {
		return 0, nil, ErrOversizedFrame
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, nil, err
	}
	return int(payload[0]), payload[1:], nil
}
