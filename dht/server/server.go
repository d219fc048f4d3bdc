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

// Package server ties the routing table, KRPC transport, and iterative
// lookups together into a runnable Mainline DHT node: bootstrap,
// periodic bucket refresh, the get_peers/find_node/ping/announce_peer
// responder, and a streaming find_peers entry point for the
// orchestrator.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"go.uber.org/zap"

	"github.com/mxfetch/magnet2torrent/dht/krpc"
	"github.com/mxfetch/magnet2torrent/dht/node"
	"github.com/mxfetch/magnet2torrent/dht/routing"
	"github.com/mxfetch/magnet2torrent/dht/spider"
)

// Default Kademlia parameters, per spec.md's glossary.
const (
	DefaultK     = 8
	DefaultAlpha = 100
)

// RefreshInterval is how often lonely buckets are refreshed.
const RefreshInterval = 900 * time.Second

// BucketStaleness is how long since a bucket's last update before it is
// considered lonely and due for a refresh lookup.
const BucketStaleness = 1 * time.Hour

// Config configures a Server. Threading it explicitly (rather than
// reaching for package-level settings) is deliberate: see the
// configuration redesign note for this component.
type Config struct {
	K           int           `yaml:"k"`
	Alpha       int           `yaml:"alpha"`
	Port        int           `yaml:"port"`
	Bootstrap   []string      `yaml:"bootstrap_addrs"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

func (c *Config) applyDefaults() {
	if c.K <= 0 {
		c.K = DefaultK
	}
	if c.Alpha <= 0 {
		c.Alpha = DefaultAlpha
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = krpc.DefaultTimeout
	}
	if len(c.Bootstrap) == 0 {
		c.Bootstrap = []string{
			"router.bittorrent.com:6881",
			"router.utorrent.com:6881",
			"dht.transmissionbt.com:6881",
		}
	}
}

// Server is a running Mainline DHT node.
type Server struct {
	config Config
	clk    clock.Clock
	log    *zap.SugaredLogger

	selfID  node.ID
	conn    *net.UDPConn
	table   *routing.Table
	client  *krpc.Client
	tx      *krpc.TransactionManager
	peers   *PeerStorage
	tokens  *TokenStorage

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Server bound to a fresh or restored NodeID. Call
// Listen to bind the UDP socket and start background goroutines.
func New(config Config, selfID node.ID, clk clock.Clock, log *zap.SugaredLogger) *Server {
	config.applyDefaults()
	return &Server{
		config: config,
		clk:    clk,
		log:    log,
		selfID: selfID,
		table:  routing.NewTable(selfID, config.K, clk),
		peers:  NewPeerStorage(clk),
		tokens: NewTokenStorage(clk),
	}
}

// Listen binds the UDP socket, starts the read loop and the periodic
// refresh loop, then bootstraps against the configured router nodes.
func (s *Server) Listen(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: s.config.Port})
	if err != nil {
		return err
	}
	s.conn = conn
	s.tx = krpc.NewTransactionManager(s.clk, s.config.CallTimeout)
	s.client = krpc.NewClient(conn, s.tx, s.clk)

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	s.wg.Add(2)
	go func() { defer s.wg.Done(); s.readLoop(ctx) }()
	go func() { defer s.wg.Done(); s.refreshLoop(ctx) }()

	go s.Bootstrap(ctx, s.config.Bootstrap)

	return nil
}

// Stop cancels all background work and closes the socket.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
	if s.tx != nil {
		s.tx.CancelAll()
	}
	s.wg.Wait()
}

// SelfID returns the server's own node ID.
func (s *Server) SelfID() node.ID {
	return s.selfID
}

// Port returns the bound UDP port.
func (s *Server) Port() int {
	if s.conn == nil {
		return s.config.Port
	}
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

func (s *Server) readLoop(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.conn.SetReadDeadline(s.clk.Now().Add(1 * time.Second))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		udpAddr := addr
		go s.handleDatagram(data, udpAddr)
	}
}

func (s *Server) handleDatagram(data []byte, addr *net.UDPAddr) {
	msg, err := krpc.Decode(data)
	if err != nil {
		s.log.Debugw("dropping malformed KRPC datagram", "addr", addr, "error", err)
		return
	}
	switch msg.Y {
	case krpc.TypeQuery:
		s.handleQuery(msg, addr)
	case krpc.TypeResponse, krpc.TypeError:
		s.tx.Resolve(msg.T, msg)
		if msg.R != nil {
			s.admit(msg.R.ID, addr)
		}
	}
}

// admit validates a sender's node ID before adding it to the routing
// table: it must be non-zero (0 < long_id < 2^160). If id's bucket is
// already full and unsplittable, the ping-replace policy decides whether
// it is admitted at all: the bucket's least-recently-seen contact is
// pinged, and only evicted in favor of the new node if it fails to
// answer.
func (s *Server) admit(id node.ID, addr *net.UDPAddr) {
	var zero node.ID
	if id == zero {
		return
	}
	n := node.Node{ID: id, IP: addr.IP, Port: addr.Port}

	if !s.table.IsNewNode(id) || !s.table.BucketFull(id) {
		s.table.AddContact(n)
		return
	}

	stalest, ok := s.table.LeastRecentlySeen(id)
	if !ok {
		s.table.AddContact(n)
		return
	}
	go s.pingReplace(stalest, n)
}

// pingReplace implements the ping-replace half of admit: the stalest live
// contact in the candidate's bucket is pinged, and evicted in favor of
// the candidate only if it does not answer.
func (s *Server) pingReplace(stalest, candidate node.Node) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.CallTimeout)
	defer cancel()

	addr := &net.UDPAddr{IP: stalest.IP, Port: stalest.Port}
	if _, err := s.client.Ping(ctx, addr, s.selfID); err != nil {
		s.table.RemoveContact(stalest.ID)
		s.table.AddContact(candidate)
		return
	}
	s.table.AddContact(stalest)
	s.table.AddContact(candidate)
}

// refreshLoop periodically runs a NodeSpider toward a random ID in each
// lonely bucket's range.
func (s *Server) refreshLoop(ctx context.Context) {
	ticker := s.clk.Ticker(RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, b := range s.table.LonelyBuckets(BucketStaleness) {
				target := b.RandomIDInBucket()
				seeds := s.table.FindNeighbors(target, s.config.K, nil)
				spider.NodeSpider(ctx, s.client, spider.Config{K: s.config.K, Alpha: s.config.Alpha}, s.selfID, target, seeds)
			}
		}
	}
}

// Bootstrap pings every address in addrs, admits responders, then runs a
// NodeSpider toward our own ID to populate the routing table.
func (s *Server) Bootstrap(ctx context.Context, addrs []string) {
	var seeds []node.Node
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, a := range addrs {
		udpAddr, err := net.ResolveUDPAddr("udp4", a)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func(addr *net.UDPAddr) {
			defer wg.Done()
			ret, err := s.client.Ping(ctx, addr, s.selfID)
			if err != nil {
				return
			}
			mu.Lock()
			seeds = append(seeds, node.Node{ID: ret.ID, IP: addr.IP, Port: addr.Port})
			mu.Unlock()
			s.admit(ret.ID, addr)
		}(udpAddr)
	}
	wg.Wait()

	if len(seeds) == 0 {
		return
	}
	spider.NodeSpider(ctx, s.client, spider.Config{K: s.config.K, Alpha: s.config.Alpha}, s.selfID, s.selfID, seeds)
}

// PeerBatch is one delivery from FindPeers.
type PeerBatch = spider.PeerBatch

// FindPeers runs an iterative get_peers lookup for infoHash, streaming
// batches of discovered peers on the returned channel. Exactly one
// terminal batch (Done=true) is sent before the channel closes.
func (s *Server) FindPeers(ctx context.Context, infoHash node.ID) <-chan PeerBatch {
	seeds := s.table.FindNeighbors(infoHash, s.config.K, nil)
	return spider.PeerSpider(ctx, s.client, spider.Config{K: s.config.K, Alpha: s.config.Alpha}, s.selfID, infoHash, seeds)
}

// LocalPeers returns peers we have stored for infoHash via announce_peer,
// for our own get_peers responder.
func (s *Server) LocalPeers(infoHash node.ID) []node.CompactPeer {
	return s.peers.GetPeers(infoHash)
}
