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

// Package service exposes the engine over HTTP: GET /?magnet=<URI> fetches
// a .torrent and returns it either as a JSON envelope or a direct
// attachment download.
package service

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mxfetch/magnet2torrent/engine"
)

// Config configures the HTTP service.
type Config struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"apikey"`
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":7000"
	}
}

// Service hosts the magnet-to-torrent HTTP endpoint.
type Service struct {
	config Config
	engine *engine.Engine
	log    *zap.SugaredLogger
	router *mux.Router
}

// New constructs a Service backed by e.
func New(config Config, e *engine.Engine, log *zap.SugaredLogger) *Service {
	config.applyDefaults()
	s := &Service{config: config, engine: e, log: log}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/", s.handleFetch).Methods(http.MethodGet)
	return s
}

// ListenAndServe blocks serving HTTP on the configured address.
func (s *Service) ListenAndServe() error {
	return http.ListenAndServe(s.config.Addr, s.router)
}

type fetchResponse struct {
	Filename string `json:"filename"`
	Payload  string `json:"payload"`
}

func (s *Service) handleFetch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if s.config.APIKey != "" && q.Get("apikey") != s.config.APIKey {
		http.Error(w, "invalid apikey", http.StatusUnauthorized)
		return
	}

	magnetURI := q.Get("magnet")
	if magnetURI == "" {
		http.Error(w, "missing magnet parameter", http.StatusBadRequest)
		return
	}

	filename, data, err := s.engine.Retrieve(r.Context(), magnetURI)
	if err != nil {
		s.log.Infow("fetch failed", "magnet", magnetURI, "error", err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if q.Get("direct") == "1" {
		w.Header().Set("Content-Type", "application/x-bittorrent")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.Write(data)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fetchResponse{
		Filename: filename,
		Payload:  base64.StdEncoding.EncodeToString(data),
	})
}
