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

package main

import (
	"go.uber.org/zap"

	"github.com/mxfetch/magnet2torrent/dht/server"
	"github.com/mxfetch/magnet2torrent/engine"
	"github.com/mxfetch/magnet2torrent/metrics"
	"github.com/mxfetch/magnet2torrent/service"
)

// Config defines magnet2torrent configuration.
type Config struct {
	ZapLogging zap.Config     `yaml:"zap"`
	Metrics    metrics.Config `yaml:"metrics"`
	Engine     engine.Config  `yaml:"engine"`
	DHT        DHTConfig      `yaml:"dht"`
	Service    service.Config `yaml:"service"`
}

// DHTConfig toggles and configures the optional Mainline DHT source.
type DHTConfig struct {
	Enabled bool          `yaml:"enabled"`
	Server  server.Config `yaml:"server"`
}

func zapConfigOrDefault(c zap.Config) zap.Config {
	if c.Encoding == "" {
		return zap.NewProductionConfig()
	}
	return c
}
