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

package httptracker

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mxfetch/magnet2torrent/core"
	"github.com/mxfetch/magnet2torrent/dht/node"
)

func TestAnnounceParsesCompactPeers(t *testing.T) {
	require := require.New(t)

	p, err := node.NewCompactPeer(net.IPv4(1, 2, 3, 4), 6881)
	require.NoError(err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d5:peers6:" + string(p[:]) + "e"))
	}))
	defer srv.Close()

	c := New()
	peers := c.Announce(context.Background(), srv.URL, core.InfoHashFixture(), core.PeerIDFixture(), 6881)
	require.Len(peers, 1)
	require.Equal(p, peers[0])
}

func TestAnnounceFailureReasonYieldsNoPeers(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d14:failure reason9:not founde"))
	}))
	defer srv.Close()

	c := New()
	peers := c.Announce(context.Background(), srv.URL, core.InfoHashFixture(), core.PeerIDFixture(), 6881)
	require.Empty(peers)
}

func TestAnnounceNonOKStatusYieldsNoPeers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New()
	peers := c.Announce(context.Background(), srv.URL, core.InfoHashFixture(), core.PeerIDFixture(), 6881)
	require.Empty(t, peers)
}

func TestAnnounceUnreachableYieldsNoPeers(t *testing.T) {
	c := New()
	peers := c.Announce(context.Background(), "http://127.0.0.1:1", core.InfoHashFixture(), core.PeerIDFixture(), 6881)
	require.Empty(t, peers)
}
