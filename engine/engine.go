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

// Package engine orchestrates a magnet-link fetch: it fans out to every
// configured tracker and, optionally, a running DHT node, discovers
// candidate peers, races them for a verified metadata exchange, and
// wraps the winner into a .torrent envelope. It is the only package
// that knows about all of trackers, DHT, and peer wire at once.
package engine

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/mxfetch/magnet2torrent/cache"
	"github.com/mxfetch/magnet2torrent/core"
	"github.com/mxfetch/magnet2torrent/dht/node"
	"github.com/mxfetch/magnet2torrent/dht/server"
	"github.com/mxfetch/magnet2torrent/magnet"
	"github.com/mxfetch/magnet2torrent/peerwire"
	"github.com/mxfetch/magnet2torrent/tracker/httptracker"
	"github.com/mxfetch/magnet2torrent/tracker/udptracker"
)

// DefaultBittorrentPort is used when Config.BittorrentPort is unset.
const DefaultBittorrentPort = 6881

// ErrFailedToFetch is the orchestrator's terminal error: every tracker,
// DHT lookup, and peer has been exhausted without a verified info dict.
var ErrFailedToFetch = errors.New("engine: failed to fetch torrent info")

// DHT is the subset of dht/server.Server the orchestrator needs. It is
// satisfied by *server.Server; tests substitute a fake.
type DHT interface {
	FindPeers(ctx context.Context, infoHash node.ID) <-chan server.PeerBatch
}

// Config carries every globally-mutable setting spec.md §9 calls out
// (peer ID, default trackers, cache path, serve API key) as
// an explicit record threaded into the orchestrator, rather than
// package-level state.
type Config struct {
	UseTrackers           bool     `yaml:"use_trackers"`
	UseAdditionalTrackers bool     `yaml:"use_additional_trackers"`
	AdditionalTrackers    []string `yaml:"additional_trackers"`
	TorrentCacheFolder    string   `yaml:"torrent_cache_folder"`
	PeerID                core.PeerID
	BittorrentPort        int    `yaml:"bittorrent_port"`
	ServeAPIKey           string `yaml:"serve_apikey"`
}

func (c *Config) applyDefaults() error {
	if c.BittorrentPort <= 0 {
		c.BittorrentPort = DefaultBittorrentPort
	}
	var zero core.PeerID
	if c.PeerID == zero {
		p, err := core.RandomPeerID()
		if err != nil {
			return err
		}
		c.PeerID = p
	}
	return nil
}

// Engine retrieves torrent metadata for a magnet URI.
type Engine struct {
	config Config
	cache  cache.Cache
	dht    DHT
	http   *httptracker.Client
	udp    *udptracker.Client
	log    *zap.SugaredLogger
}

// New constructs an Engine. cache and dht are both optional (nil
// disables them).
func New(config Config, c cache.Cache, dht DHT, log *zap.SugaredLogger) (*Engine, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	return &Engine{
		config: config,
		cache:  c,
		dht:    dht,
		http:   httptracker.New(),
		udp:    udptracker.New(),
		log:    log,
	}, nil
}

// Retrieve fetches, assembles, and verifies the .torrent file for a
// magnet URI, returning its suggested filename and bencoded bytes.
func (e *Engine) Retrieve(ctx context.Context, magnetURI string) (string, []byte, error) {
	m, err := magnet.Parse(magnetURI)
	if err != nil {
		return "", nil, err
	}
	name := sanitizeName(m.Name)
	trackers := e.trackerList(m.Trackers)

	if e.cache != nil {
		if info, ok, err := e.cache.Get(m.InfoHash); err == nil && ok {
			data, err := buildEnvelope(info, trackers)
			if err != nil {
				return "", nil, err
			}
			return name + ".torrent", data, nil
		}
	}

	info, err := e.discover(ctx, m.InfoHash, trackers)
	if err != nil {
		return "", nil, err
	}

	if e.cache != nil {
		if err := e.cache.Put(m.InfoHash, info); err != nil {
			e.log.Warnw("failed to write cache", "info_hash", m.InfoHash, "error", err)
		}
	}

	data, err := buildEnvelope(info, trackers)
	if err != nil {
		return "", nil, err
	}
	return name + ".torrent", data, nil
}

// discover races every tracker-discovered and DHT-discovered peer for a
// verified metadata exchange, returning the first winner's raw info
// bytes. Every other in-flight task is cancelled the moment one wins.
func (e *Engine) discover(ctx context.Context, infoHash core.InfoHash, trackers []string) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addrCh := make(chan *net.TCPAddr, 256)
	resultCh := make(chan fetchResult, 16)

	// The tracker/DHT fan-out has no failure of its own to propagate --
	// every source degrades to "no peers" rather than erroring -- so
	// errgroup here buys just its Wait()-then-close bookkeeping, not its
	// error-cancellation behavior.
	var producers errgroup.Group
	for _, t := range trackers {
		t := t
		producers.Go(func() error {
			e.announceTracker(ctx, t, infoHash, addrCh)
			return nil
		})
	}
	if e.dht != nil {
		producers.Go(func() error {
			e.drainDHT(ctx, infoHash, addrCh)
			return nil
		})
	}
	go func() {
		producers.Wait()
		close(addrCh)
	}()

	handled := make(map[string]bool)
	pending := 0

	for {
		select {
		case addr, ok := <-addrCh:
			if !ok {
				addrCh = nil
				break
			}
			key := addr.String()
			if handled[key] {
				break
			}
			handled[key] = true
			pending++
			go e.fetchPeer(ctx, addr, infoHash, resultCh)
		case res := <-resultCh:
			pending--
			if res.err == nil {
				return res.info, nil
			}
		case <-ctx.Done():
			return nil, ErrFailedToFetch
		}
		if addrCh == nil && pending == 0 {
			return nil, ErrFailedToFetch
		}
	}
}

type fetchResult struct {
	info []byte
	err  error
}

func (e *Engine) fetchPeer(ctx context.Context, addr *net.TCPAddr, infoHash core.InfoHash, out chan<- fetchResult) {
	info, err := peerwire.Fetch(ctx, addr, [20]byte(infoHash), [20]byte(e.config.PeerID), e.log)
	select {
	case out <- fetchResult{info: info, err: err}:
	case <-ctx.Done():
	}
}

func (e *Engine) announceTracker(ctx context.Context, trackerURL string, infoHash core.InfoHash, out chan<- *net.TCPAddr) {
	u, err := url.Parse(trackerURL)
	if err != nil {
		return
	}

	var peers []node.CompactPeer
	switch u.Scheme {
	case "udp":
		peers = e.udp.Announce(ctx, u.Host, infoHash, e.config.PeerID, e.config.BittorrentPort)
	case "http", "https":
		peers = e.http.Announce(ctx, trackerURL, infoHash, e.config.PeerID, e.config.BittorrentPort)
	default:
		return
	}

	for _, p := range peers {
		addr := &net.TCPAddr{IP: p.IP(), Port: p.Port()}
		select {
		case out <- addr:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) drainDHT(ctx context.Context, infoHash core.InfoHash, out chan<- *net.TCPAddr) {
	id, err := node.IDFromBytes(infoHash.Bytes())
	if err != nil {
		return
	}
	for batch := range e.dht.FindPeers(ctx, id) {
		for _, p := range batch.Peers {
			addr := &net.TCPAddr{IP: p.IP(), Port: p.Port()}
			select {
			case out <- addr:
			case <-ctx.Done():
				return
			}
		}
	}
}

// trackerList merges the magnet's own trackers with any configured
// defaults, per the UseTrackers/UseAdditionalTrackers options.
func (e *Engine) trackerList(magnetTrackers []string) []string {
	var out []string
	if e.config.UseTrackers {
		out = append(out, magnetTrackers...)
	}
	if e.config.UseAdditionalTrackers {
		out = append(out, e.config.AdditionalTrackers...)
	}
	return out
}

// sanitizeName strips leading/trailing dots and path-hostile characters
// from a magnet's display name before it is used as a filename.
func sanitizeName(name string) string {
	name = strings.Trim(name, ".")
	return strings.NewReplacer("/", "", "\\", "", ":", "").Replace(name)
}
