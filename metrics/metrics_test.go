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

package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToDisabledBackend(t *testing.T) {
	require := require.New(t)

	scope, closer, err := New(Config{}, "test")
	require.NoError(err)
	require.NotNil(scope)
	defer closer.Close()
}

func TestNewStdoutBackend(t *testing.T) {
	require := require.New(t)

	scope, closer, err := New(Config{Backend: "stdout"}, "test")
	require.NoError(err)
	require.NotNil(scope)
	defer closer.Close()
}

func TestNewStatsdBackend(t *testing.T) {
	require := require.New(t)

	scope, closer, err := New(Config{Backend: "statsd", Statsd: StatsdConfig{HostPort: "127.0.0.1:8125"}}, "test")
	require.NoError(err)
	require.NotNil(scope)
	defer closer.Close()
}

func TestNewUnknownBackendErrors(t *testing.T) {
	_, _, err := New(Config{Backend: "bogus"}, "test")
	require.Error(t, err)
}
