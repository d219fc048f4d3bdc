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
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndReadHandshake(t *testing.T) {
	require := require.New(t)

	var infoHash, peerID [20]byte
	infoHash[0] = 1
	peerID[0] = 2

	b := buildHandshake(infoHash, peerID)
	require.Len(b, 68)
	require.Equal(byte(len(pstr)), b[0])
	require.True(bytes.Equal(b[1:20], []byte(pstr)))

	hs, err := readHandshake(bytes.NewReader(b))
	require.NoError(err)
	require.Equal(infoHash, hs.infoHash)
	require.Equal(peerID, hs.peerID)
	require.True(hs.supportsExtProt)
}

func TestReadHandshakeRejectsBadPstr(t *testing.T) {
	b := make([]byte, 68)
	b[0] = 19
	copy(b[1:20], "not bittorrent prot")
	_, err := readHandshake(bytes.NewReader(b))
	require.ErrorIs(t, err, ErrHandshakeMismatch)
}

func TestSendAndReadMessageRoundTrip(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go sendMessage(client, 7, []byte("payload"))

	msgID, payload, err := readMessage(server)
	require.NoError(err)
	require.Equal(7, msgID)
	require.Equal([]byte("payload"), payload)
}

func TestSendMessageRejectsOversizedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	err := sendMessage(client, 1, make([]byte, MaxPacketSize))
	require.ErrorIs(t, err, ErrOversizedFrame)
}

func TestReadMessageKeepAlive(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go client.Write([]byte{0, 0, 0, 0})

	msgID, payload, err := readMessage(server)
	require.NoError(err)
	require.Equal(-1, msgID)
	require.Nil(payload)
}
