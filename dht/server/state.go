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
	"github.com/mxfetch/magnet2torrent/dht/routing"
	"github.com/mxfetch/magnet2torrent/lib/torrent/bencode"
)

// SaveState serializes the routing table to the bencoded snapshot format
// described in spec.md §9 (state persistence redesign note). The only
// contract is round-trip equality of the restored routing state; the
// format itself is implementation-defined.
func (s *Server) SaveState() ([]byte, error) {
	return bencode.Marshal(s.table.Snapshot())
}

// LoadState restores the routing table from a previously saved
// snapshot, replacing the server's current table. It must be called
// before Listen.
func (s *Server) LoadState(data []byte) error {
	var snap routing.Snapshot
	if err := bencode.Unmarshal(data, &snap); err != nil {
		return err
	}
	t, err := routing.LoadSnapshot(snap, s.config.K, s.clk)
	if err != nil {
		return err
	}
	s.selfID = t.Self()
	s.table = t
	return nil
}
