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

	"github.com/stretchr/testify/require"
)

func TestQueryEncodeDecode(t *testing.T) {
	require := require.New(t)

	var id [20]byte
	id[0] = 0x42
	m := &Msg{
		T: "aa",
		Y: TypeQuery,
		Q: MethodPing,
		A: &Args{ID: id},
	}
	data, err := m.Encode()
	require.NoError(err)

	got, err := Decode(data)
	require.NoError(err)
	require.Equal("aa", got.T)
	require.Equal(TypeQuery, got.Y)
	require.Equal(MethodPing, got.Q)
	require.Equal(id, got.A.ID)
}

func TestErrorMarshalUnmarshalBencode(t *testing.T) {
	require := require.New(t)

	e := Error{Code: ErrProtocol, Message: "bad token"}
	data, err := e.MarshalBencode()
	require.NoError(err)

	var got Error
	require.NoError(got.UnmarshalBencode(data))
	require.Equal(ErrProtocol, got.Code)
	require.Equal("bad token", got.Message)
	require.Equal("bad token", got.Error())
}

func TestResponseRoundTrip(t *testing.T) {
	require := require.New(t)

	m := &Msg{
		T: "bb",
		Y: TypeResponse,
		R: &Return{Token: "tok", Values: [][]byte{[]byte("peer1")}},
	}
	data, err := m.Encode()
	require.NoError(err)

	got, err := Decode(data)
	require.NoError(err)
	require.Equal(TypeResponse, got.Y)
	require.Equal("tok", got.R.Token)
	require.Equal([][]byte{[]byte("peer1")}, got.R.Values)
}
