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
	"context"
	"net"

	"go.uber.org/zap"
)

// Fetch connects to addr, performs the BEP 3 handshake and BEP 10
// extension handshake, then requests every ut_metadata piece up front and
// reads pieces until all have arrived. The assembled info dictionary is
// checked once against infoHash; a mismatch returns ErrVerificationFailed.
// The whole exchange is bounded by OverallBudget from the moment the TCP
// connection is established.
func Fetch(ctx context.Context, addr *net.TCPAddr, infoHash, peerID [20]byte, log *zap.SugaredLogger) ([]byte, error) {
	dialCtx, cancelDial := context.WithTimeout(ctx, ConnectTimeout)
	defer cancelDial()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp4", addr.String())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	budgetCtx, cancelBudget := context.WithTimeout(ctx, OverallBudget)
	defer cancelBudget()
	if dl, ok := budgetCtx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	go func() {
		<-budgetCtx.Done()
		conn.Close()
	}()

	if _, err := conn.Write(buildHandshake(infoHash, peerID)); err != nil {
		return nil, err
	}
	peerHS, err := readHandshake(conn)
	if err != nil {
		return nil, err
	}
	if !peerHS.supportsExtProt || peerHS.infoHash != infoHash {
		return nil, ErrHandshakeMismatch
	}

	extPayload, err := encodeExtHandshake()
	if err != nil {
		return nil, err
	}
	if err := sendMessage(conn, msgExtended, append([]byte{extHandshakeID}, extPayload...)); err != nil {
		return nil, err
	}

	peerMetadataID, metadataSize, err := readExtHandshake(conn)
	if err != nil {
		return nil, err
	}

	buf, err := NewMetadataBuffer(metadataSize)
	if err != nil {
		return nil, err
	}

	for i := 0; i < buf.NumPieces(); i++ {
		if err := requestPiece(conn, peerMetadataID, i); err != nil {
			return nil, err
		}
	}

	for !buf.Complete() {
		msgID, payload, err := readMessage(conn)
		if err != nil {
			return nil, err
		}
		if msgID != msgExtended || len(payload) == 0 {
			continue
		}
		subID := int(payload[0])
		if subID != extMetadataDecl {
			continue
		}
		head, rest, err := decodeMetadataMessage(payload[1:])
		if err != nil {
			return nil, err
		}
		switch head.MsgType {
		case metadataMsgData:
			buf.Put(head.Piece, rest)
		case metadataMsgReject:
			log.Debugw("metadata piece rejected, aborting", "piece", head.Piece)
			return nil, ErrRejected
		}
	}

	data, ok := buf.Verify(infoHash)
	if !ok {
		return nil, ErrVerificationFailed
	}
	return data, nil
}

// ErrVerificationFailed is raised when the assembled metadata's SHA-1
// does not match the magnet's info-hash.
var ErrVerificationFailed = errVerification{}

type errVerification struct{}

func (errVerification) Error() string { return "peerwire: metadata SHA-1 mismatch" }

func requestPiece(conn net.Conn, peerMetadataID, piece int) error {
	req, err := encodeMetadataRequest(piece)
	if err != nil {
		return err
	}
	return sendMessage(conn, msgExtended, append([]byte{byte(peerMetadataID)}, req...))
}

func readExtHandshake(conn net.Conn) (peerMetadataID int, metadataSize int, err error) {
	for {
		msgID, payload, err := readMessage(conn)
		if err != nil {
			return 0, 0, err
		}
		if msgID != msgExtended || len(payload) == 0 {
			continue
		}
		if int(payload[0]) != extHandshakeID {
			continue
		}
		hs, err := decodeExtHandshake(payload[1:])
		if err != nil {
			return 0, 0, err
		}
		id, ok := hs.M["ut_metadata"]
		if !ok {
			return 0, 0, ErrNoMetadataExtension
		}
		return id, hs.MetadataSize, nil
	}
}
