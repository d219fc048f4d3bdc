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
	"github.com/spf13/cobra"

	"github.com/mxfetch/magnet2torrent/service"
	"github.com/mxfetch/magnet2torrent/utils/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host an HTTP endpoint that converts magnet URIs to .torrent files on demand.",
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

		svc := service.New(config.Service, e, log.Sugar())
		log.Infof("serving on %s", config.Service.Addr)
		return svc.ListenAndServe()
	},
}
