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
	"crypto/rand"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/mxfetch/magnet2torrent/dht/node"
)

func randomToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return string(b[:]), nil
}

// PeerStorageTTL is how long an announced peer is retained.
const PeerStorageTTL = 1 * time.Hour

// MaxInfoHashes bounds the number of distinct info-hashes PeerStorage
// tracks; the oldest is evicted first past this cap.
const MaxInfoHashes = 2000

// PeerStorage is a "forgetful" store of InfoHash -> announced peers,
// mirroring the original's two ForgetfulStorage variants as a single
// type taking (InfoHash, peer) -- the signature spec.md's open question
// says matches announce_peer's needs.
type PeerStorage struct {
	mu    sync.Mutex
	clk   clock.Clock
	order []node.ID // insertion order of info-hashes, oldest first
	peers map[node.ID]map[node.CompactPeer]time.Time
}

// NewPeerStorage creates an empty PeerStorage.
func NewPeerStorage(clk clock.Clock) *PeerStorage {
	return &PeerStorage{
		clk:   clk,
		peers: make(map[node.ID]map[node.CompactPeer]time.Time),
	}
}

// InsertPeer records that peer is serving infoHash.
func (s *PeerStorage) InsertPeer(infoHash node.ID, peer node.CompactPeer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.peers[infoHash]; !ok {
		s.order = append(s.order, infoHash)
		s.peers[infoHash] = make(map[node.CompactPeer]time.Time)
		if len(s.order) > MaxInfoHashes {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.peers, oldest)
		}
	}
	s.peers[infoHash][peer] = s.clk.Now()
}

// GetPeers returns the live (non-expired) peers announced for infoHash.
func (s *PeerStorage) GetPeers(infoHash node.ID) []node.CompactPeer {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.peers[infoHash]
	if !ok {
		return nil
	}
	now := s.clk.Now()
	var out []node.CompactPeer
	for p, seen := range set {
		if now.Sub(seen) > PeerStorageTTL {
			delete(set, p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// TokenStorageTTL is how long a get_peers token remains valid for a
// following announce_peer.
const TokenStorageTTL = 10 * time.Minute

// tokenEntry is what a token authenticates: the sender's address and the
// info-hash the get_peers query that minted it was about.
type tokenEntry struct {
	ip       string
	nodeID   node.ID
	infoHash node.ID
	issued   time.Time
}

// TokenStorage mints and validates the 16-byte announce_peer tokens
// handed out in get_peers responses.
type TokenStorage struct {
	mu     sync.Mutex
	clk    clock.Clock
	tokens map[string]tokenEntry
}

// NewTokenStorage creates an empty TokenStorage.
func NewTokenStorage(clk clock.Clock) *TokenStorage {
	return &TokenStorage{clk: clk, tokens: make(map[string]tokenEntry)}
}

// Issue mints a fresh token bound to (ip, nodeID, infoHash).
func (s *TokenStorage) Issue(ip string, nodeID, infoHash node.ID) (string, error) {
	tok, err := randomToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[tok] = tokenEntry{ip: ip, nodeID: nodeID, infoHash: infoHash, issued: s.clk.Now()}
	s.mu.Unlock()
	return tok, nil
}

// Validate reports whether token is live and was issued to (ip,
// infoHash); a mismatched sender IP or info-hash, or an expired or
// unknown token, fails validation.
func (s *TokenStorage) Validate(token, ip string, infoHash node.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tokens[token]
	if !ok {
		return false
	}
	if s.clk.Now().Sub(e.issued) > TokenStorageTTL {
		delete(s.tokens, token)
		return false
	}
	return e.ip == ip && e.infoHash == infoHash
}
