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

package engine

import "github.com/mxfetch/magnet2torrent/lib/torrent/bencode"

// Envelope is the final .torrent structure: a verified, verbatim "info"
// dictionary wrapped with the trackers it was found through.
type Envelope struct {
	Info         bencode.RawMessage `bencode:"info"`
	Announce     string             `bencode:"announce,omitempty"`
	AnnounceList [][]string         `bencode:"announce-list,omitempty"`
}

// buildEnvelope wraps verified info bytes with trackers. When trackers
// is empty, the encoded envelope carries only "info".
func buildEnvelope(info []byte, trackers []string) ([]byte, error) {
	env := Envelope{Info: bencode.RawMessage(info)}
	if len(trackers) > 0 {
		env.AnnounceList = make([][]string, len(trackers))
		for i, t := range trackers {
			env.AnnounceList[i] = []string{t}
		}
		env.Announce = trackers[0]
	}
	return bencode.Marshal(env)
}
