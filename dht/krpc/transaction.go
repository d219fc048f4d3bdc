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
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
)

// TxIDLength is the size in bytes of a transaction ID.
const TxIDLength = 20

// DefaultTimeout is the time a call waits for a matching response before
// resolving as a timeout.
const DefaultTimeout = 5 * time.Second

func newTxID() (string, error) {
	var b [TxIDLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return string(b[:]), nil
}

// TxString renders a transaction ID for logging.
func TxString(t string) string {
	return hex.EncodeToString([]byte(t))
}

type pendingCall struct {
	resp  chan *Msg
	timer *clock.Timer
}

// TransactionManager tracks outstanding queries by transaction ID, with
// exactly one scheduled timeout per entry; resolution (by response or by
// timeout) removes the entry.
type TransactionManager struct {
	mu      sync.Mutex
	clk     clock.Clock
	timeout time.Duration
	pending map[string]*pendingCall
}

// NewTransactionManager creates a manager using timeout for every call.
func NewTransactionManager(clk clock.Clock, timeout time.Duration) *TransactionManager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TransactionManager{
		clk:     clk,
		timeout: timeout,
		pending: make(map[string]*pendingCall),
	}
}

// Register allocates a new transaction ID and returns a channel that
// receives the matching response, or is closed (nil msg) on timeout.
func (m *TransactionManager) Register() (string, <-chan *Msg, error) {
	txid, err := newTxID()
	if err != nil {
		return "", nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp := make(chan *Msg, 1)
	pc := &pendingCall{resp: resp}
	pc.timer = m.clk.AfterFunc(m.timeout, func() {
		m.resolve(txid, nil)
	})
	m.pending[txid] = pc
	return txid, resp, nil
}

// Resolve delivers msg to the waiter registered for txid, if any. It
// reports whether a matching transaction was found; unmatched responses
// are dropped by the caller.
func (m *TransactionManager) Resolve(txid string, msg *Msg) bool {
	return m.resolve(txid, msg)
}

func (m *TransactionManager) resolve(txid string, msg *Msg) bool {
	m.mu.Lock()
	pc, ok := m.pending[txid]
	if ok {
		delete(m.pending, txid)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	pc.timer.Stop()
	pc.resp <- msg
	close(pc.resp)
	return true
}

// CancelAll resolves every outstanding transaction with a timeout,
// unblocking any goroutine waiting on its response channel.
func (m *TransactionManager) CancelAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.resolve(id, nil)
	}
}
