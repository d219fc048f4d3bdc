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

// Package httptracker implements the classic BitTorrent tracker GET
// announce (BEP 3) with a compact peer list response (BEP 23).
package httptracker

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mxfetch/magnet2torrent/core"
	"github.com/mxfetch/magnet2torrent/dht/node"
	"github.com/mxfetch/magnet2torrent/lib/torrent/bencode"
)

// Timeout is the request deadline for a single announce.
const Timeout = 7 * time.Second

// NumWant is the number of peers requested per announce.
const NumWant = 200

// Client announces to a single HTTP tracker URL and parses its compact
// peer list response.
type Client struct {
	httpClient *http.Client
}

// New creates a Client using http.DefaultTransport with Timeout applied
// per request via the request context, not the client's own Timeout
// field, so a caller-supplied context can shorten it further.
func New() *Client {
	return &Client{httpClient: &http.Client{}}
}

type announceResponse struct {
	FailureReason string `bencode:"failure reason"`
	Peers         []byte `bencode:"peers"`
}

// Announce issues the tracker GET for trackerURL. Per the error handling
// design, any transport error, non-200 status, or an explicit "failure
// reason" in the body yields zero peers rather than an error -- trackers
// are advisory sources the orchestrator treats as fire-and-forget.
func (c *Client) Announce(ctx context.Context, trackerURL string, infoHash core.InfoHash, peerID core.PeerID, port int) []node.CompactPeer {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	u, err := buildURL(trackerURL, infoHash, peerID, port)
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var body announceResponse
	dec := bencode.NewDecoder(resp.Body)
	if err := dec.Decode(&body); err != nil {
		return nil
	}
	if body.FailureReason != "" {
		return nil
	}

	peers, err := node.DecodeCompactPeers(body.Peers)
	if err != nil {
		return nil
	}
	return peers
}

func buildURL(trackerURL string, infoHash core.InfoHash, peerID core.PeerID, port int) (string, error) {
	base, err := url.Parse(trackerURL)
	if err != nil {
		return "", err
	}
	q := base.Query()
	q.Set("info_hash", string(infoHash.Bytes()))
	q.Set("peer_id", string(peerID[:]))
	q.Set("port", strconv.Itoa(port))
	q.Set("uploaded", "0")
	q.Set("downloaded", "0")
	q.Set("left", "16384")
	q.Set("compact", "1")
	q.Set("event", "started")
	q.Set("numwant", strconv.Itoa(NumWant))
	base.RawQuery = q.Encode()
	return base.String(), nil
}
