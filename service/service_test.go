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

package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mxfetch/magnet2torrent/engine"
	mockcache "github.com/mxfetch/magnet2torrent/mocks/cache"
)

const rawTestMagnet = "magnet:?xt=urn:btih:0123456789ABCDEF0123456789ABCDEF01234567&dn=hello"

var testMagnet = url.QueryEscape(rawTestMagnet)

func newTestService(t *testing.T, apikey string) *Service {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	c := mockcache.NewMockCache(ctrl)
	c.EXPECT().Get(gomock.Any()).Return([]byte("d4:name3:fooe"), true, nil).AnyTimes()

	e, err := engine.New(engine.Config{}, c, nil, zap.NewNop().Sugar())
	require.NoError(t, err)

	return New(Config{APIKey: apikey}, e, zap.NewNop().Sugar())
}

func TestHandleFetchMissingMagnet(t *testing.T) {
	s := newTestService(t, "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleFetchWrongAPIKey(t *testing.T) {
	s := newTestService(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/?magnet="+testMagnet+"&apikey=wrong", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleFetchJSON(t *testing.T) {
	require := require.New(t)

	s := newTestService(t, "")
	req := httptest.NewRequest(http.MethodGet, "/?magnet="+testMagnet, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(http.StatusOK, w.Code)
	var body fetchResponse
	require.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal("hello.torrent", body.Filename)
	require.NotEmpty(body.Payload)
}

func TestHandleFetchDirect(t *testing.T) {
	require := require.New(t)

	s := newTestService(t, "")
	req := httptest.NewRequest(http.MethodGet, "/?magnet="+testMagnet+"&direct=1", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(http.StatusOK, w.Code)
	require.Equal("application/x-bittorrent", w.Header().Get("Content-Type"))
	require.Contains(w.Header().Get("Content-Disposition"), "hello.torrent")
	require.NotEmpty(w.Body.Bytes())
}
