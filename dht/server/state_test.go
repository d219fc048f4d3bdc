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

package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mxfetch/magnet2torrent/dht/node"
)

func TestSaveLoadStateRoundTrip(t *testing.T) {
	require := require.New(t)

	s1 := newTestServer(t)
	for i := 0; i < 4; i++ {
		id, err := node.RandomID()
		require.NoError(err)
		s1.table.AddContact(node.Node{ID: id, IP: net.IPv4(1, 2, 3, byte(i)), Port: 6881 + i})
	}

	data, err := s1.SaveState()
	require.NoError(err)

	s2 := newTestServer(t)
	require.NoError(s2.LoadState(data))
	require.Equal(s1.SelfID(), s2.SelfID())
	require.Equal(s1.table.Len(), s2.table.Len())
}
