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

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSugarDefaultsToNop(t *testing.T) {
	require.NotNil(t, Sugar())
}

func TestConfigureLoggerInstallsNewLogger(t *testing.T) {
	require := require.New(t)

	before := Sugar()
	require.NoError(ConfigureLogger(zap.NewDevelopmentConfig()))
	after := Sugar()
	require.NotSame(before, after)

	// Restore a no-op logger so other tests in this package aren't
	// affected by ordering.
	require.NoError(ConfigureLogger(zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.FatalLevel),
		Encoding: "json",
		OutputPaths: []string{"/dev/null"},
	}))
}

func TestWithAttachesFields(t *testing.T) {
	require.NotNil(t, With("key", "value"))
}
