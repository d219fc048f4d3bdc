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

package krpc

import (
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
)

func TestTransactionManagerResolveDeliversResponse(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	m := NewTransactionManager(clk, time.Second)

	txid, resp, err := m.Register()
	require.NoError(err)

	reply := &Msg{T: txid, Y: TypeResponse}
	require.True(m.Resolve(txid, reply))

	got := <-resp
	require.Same(reply, got)
}

func TestTransactionManagerUnknownTxIDReturnsFalse(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	m := NewTransactionManager(clk, time.Second)
	require.False(m.Resolve("nope", &Msg{}))
}

func TestTransactionManagerTimeout(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	m := NewTransactionManager(clk, time.Second)

	_, resp, err := m.Register()
	require.NoError(err)

	clk.Add(2 * time.Second)

	select {
	case got := <-resp:
		require.Nil(got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for transaction to resolve")
	}
}

func TestTransactionManagerCancelAll(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	m := NewTransactionManager(clk, time.Second)

	_, resp1, err := m.Register()
	require.NoError(err)
	_, resp2, err := m.Register()
	require.NoError(err)

	m.CancelAll()

	require.Nil(<-resp1)
	require.Nil(<-resp2)
}
