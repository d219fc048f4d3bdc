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

// Package magnet parses BitTorrent magnet URIs
// (magnet:?xt=urn:btih:<hash>&tr=<url>&dn=<name>).
package magnet

import (
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mxfetch/magnet2torrent/core"
)

// ErrNotMagnet is returned when the input isn't a magnet: URI.
var ErrNotMagnet = errors.New("magnet: not a magnet URI")

// ErrMissingInfoHash is returned when no xt=urn:btih: parameter is found.
var ErrMissingInfoHash = errors.New("magnet: missing xt=urn:btih: parameter")

// Magnet is a parsed magnet link.
type Magnet struct {
	InfoHash core.InfoHash
	Trackers []string
	Name     string
}

const btihPrefix = "urn:btih:"

// Parse parses raw as a magnet URI. The info-hash must be 40 hex
// characters or 32 base32 characters; any other length fails. When no
// dn= is present, Name defaults to the info-hash in lowercase hex.
func Parse(raw string) (*Magnet, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMagnet, err)
	}
	if u.Scheme != "magnet" {
		return nil, ErrNotMagnet
	}

	q := u.Query()

	xt := q.Get("xt")
	if !strings.HasPrefix(xt, btihPrefix) {
		return nil, ErrMissingInfoHash
	}
	hash := strings.TrimPrefix(xt, btihPrefix)

	infoHash, err := decodeHash(hash)
	if err != nil {
		return nil, err
	}

	m := &Magnet{
		InfoHash: infoHash,
		Trackers: q["tr"],
		Name:     q.Get("dn"),
	}
	if m.Name == "" {
		m.Name = infoHash.Hex()
	}
	return m, nil
}

func decodeHash(hash string) (core.InfoHash, error) {
	switch len(hash) {
	case 40:
		return core.NewInfoHashFromHex(strings.ToLower(hash))
	case 32:
		b, err := base32.StdEncoding.DecodeString(strings.ToUpper(hash))
		if err != nil {
			return core.InfoHash{}, fmt.Errorf("magnet: invalid base32 info-hash: %s", err)
		}
		var h core.InfoHash
		if len(b) != 20 {
			return core.InfoHash{}, fmt.Errorf("magnet: base32 info-hash decoded to %d bytes, want 20", len(b))
		}
		copy(h[:], b)
		return h, nil
	default:
		return core.InfoHash{}, fmt.Errorf("magnet: info-hash must be 40 hex or 32 base32 characters, got %d", len(hash))
	}
}
