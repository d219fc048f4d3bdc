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
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mxfetch/magnet2torrent/utils/log"
)

// overallFetchTimeout bounds a single `fetch` invocation end-to-end.
const overallFetchTimeout = 2 * time.Minute

var fetchCmd = &cobra.Command{
	Use:   "fetch <magnet>",
	Short: "Fetch a .torrent file for a magnet URI and write it to the working directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		e, closer, err := buildEngine(config)
		if err != nil {
			return err
		}
		defer closer()

		ctx, cancel := context.WithTimeout(context.Background(), overallFetchTimeout)
		defer cancel()

		filename, data, err := e.Retrieve(ctx, args[0])
		if err != nil {
			log.Errorf("fetch failed: %s", err)
			os.Exit(1)
		}
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return err
		}
		log.Infof("wrote %s", filename)
		return nil
	},
}
