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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataBufferRejectsOversizedDeclaration(t *testing.T) {
	_, err := NewMetadataBuffer(MaxMetadataSize + 1)
	require.Error(t, err)
}

func TestMetadataBufferAssembleAndVerify(t *testing.T) {
	require := require.New(t)

	data := bytes(MetadataPieceSize + 100)
	buf, err := NewMetadataBuffer(len(data))
	require.NoError(err)
	require.Equal(2, buf.NumPieces())

	require.False(buf.Complete())
	buf.Put(0, data[:MetadataPieceSize])
	require.False(buf.Complete())
	buf.Put(1, data[MetadataPieceSize:])
	require.True(buf.Complete())

	require.Equal(data, buf.Assemble())

	sum := sha1.Sum(data)
	got, ok := buf.Verify(sum)
	require.True(ok)
	require.Equal(data, got)

	var wrong [20]byte
	_, ok = buf.Verify(wrong)
	require.False(ok)
}

func TestEncodeDecodeExtHandshake(t *testing.T) {
	require := require.New(t)

	payload, err := encodeExtHandshake()
	require.NoError(err)

	hs, err := decodeExtHandshake(payload)
	require.NoError(err)
	require.Equal(extMetadataDecl, hs.M["ut_metadata"])
}

func TestEncodeDecodeMetadataRequest(t *testing.T) {
	require := require.New(t)

	req, err := encodeMetadataRequest(3)
	require.NoError(err)

	head, rest, err := decodeMetadataMessage(req)
	require.NoError(err)
	require.Equal(metadataMsgRequest, head.MsgType)
	require.Equal(3, head.Piece)
	require.Empty(rest)
}

func bytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}
