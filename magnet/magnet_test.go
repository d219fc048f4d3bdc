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

package magnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	require := require.New(t)

	m, err := Parse("magnet:?xt=urn:btih:0123456789ABCDEF0123456789ABCDEF01234567&dn=hello")
	require.NoError(err)
	require.Equal("0123456789abcdef0123456789abcdef01234567", m.InfoHash.Hex())
	require.Equal("hello", m.Name)
	require.Empty(m.Trackers)
}

func TestParseBase32(t *testing.T) {
	require := require.New(t)

	m, err := Parse("magnet:?xt=urn:btih:AIJDIZ3HE7AH4ATSITBHTI6V4D54GI2H")
	require.NoError(err)
	require.Len(m.InfoHash.Bytes(), 20)
	// With no dn=, Name defaults to lowercase hex.
	require.Equal(m.InfoHash.Hex(), m.Name)
}

func TestParseMultipleTrackers(t *testing.T) {
	require := require.New(t)

	m, err := Parse("magnet:?xt=urn:btih:0123456789ABCDEF0123456789ABCDEF01234567" +
		"&tr=http://a.example/announce&tr=udp://b.example:80")
	require.NoError(err)
	require.Equal([]string{"http://a.example/announce", "udp://b.example:80"}, m.Trackers)
}

func TestParseNotMagnet(t *testing.T) {
	_, err := Parse("http://example.com")
	require.ErrorIs(t, err, ErrNotMagnet)
}

func TestParseMissingInfoHash(t *testing.T) {
	_, err := Parse("magnet:?dn=hello")
	require.ErrorIs(t, err, ErrMissingInfoHash)
}

func TestParseInvalidHashLength(t *testing.T) {
	_, err := Parse("magnet:?xt=urn:btih:deadbeef")
	require.Error(t, err)
}
