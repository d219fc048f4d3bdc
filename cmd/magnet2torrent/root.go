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

// Command magnet2torrent implements the CLI: a "fetch" subcommand for
// one-shot conversion and a "serve" subcommand hosting the HTTP
// endpoint.
package main

import (
	"context"

	"github.com/andres-erbsen/clock"
	"github.com/spf13/cobra"

	"github.com/mxfetch/magnet2torrent/cache"
	"github.com/mxfetch/magnet2torrent/dht/node"
	"github.com/mxfetch/magnet2torrent/dht/server"
	"github.com/mxfetch/magnet2torrent/engine"
	"github.com/mxfetch/magnet2torrent/metrics"
	"github.com/mxfetch/magnet2torrent/utils/configutil"
	"github.com/mxfetch/magnet2torrent/utils/log"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "magnet2torrent",
	Short: "magnet2torrent resolves a magnet link into a standalone .torrent file.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFile, "config", "", "", "configuration file path")
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (Config, error) {
	var config Config
	if configFile != "" {
		if err := configutil.Load(configFile, &config); err != nil {
			return config, err
		}
	}
	config.ZapLogging = zapConfigOrDefault(config.ZapLogging)
	return config, nil
}

// buildEngine wires an *engine.Engine from config: an optional
// filesystem cache, an optional DHT node, and the tracker clients the
// engine always carries. The returned func tears down everything it
// started.
func buildEngine(config Config) (*engine.Engine, func(), error) {
	if err := log.ConfigureLogger(config.ZapLogging); err != nil {
		return nil, nil, err
	}

	stats, statsCloser, err := metrics.New(config.Metrics, "magnet2torrent")
	if err != nil {
		return nil, nil, err
	}
	go metrics.EmitVersion(stats)

	var c cache.Cache
	if config.Engine.TorrentCacheFolder != "" {
		fc, err := cache.NewFSCache(config.Engine.TorrentCacheFolder)
		if err != nil {
			statsCloser.Close()
			return nil, nil, err
		}
		c = fc
	}

	var dht engine.DHT
	var dhtServer *server.Server
	if config.DHT.Enabled {
		selfID, err := node.RandomID()
		if err != nil {
			statsCloser.Close()
			return nil, nil, err
		}
		dhtServer = server.New(config.DHT.Server, selfID, clock.New(), log.Sugar())
		if err := dhtServer.Listen(context.Background()); err != nil {
			statsCloser.Close()
			return nil, nil, err
		}
		dht = dhtServer
	}

	e, err := engine.New(config.Engine, c, dht, log.Sugar())
	if err != nil {
		statsCloser.Close()
		if dhtServer != nil {
			dhtServer.Stop()
		}
		return nil, nil, err
	}

	closer := func() {
		statsCloser.Close()
		if dhtServer != nil {
			dhtServer.Stop()
		}
	}
	return e, closer, nil
}
