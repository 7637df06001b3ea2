/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package fetch

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsutil"
)

func notifReq(uid uint32) *Request {
	return &Request{
		Kind:      KIND_NOTIF_ATTRS,
		Uid:       uid,
		AttrSpecs: ancsdefs.DefaultAttrSpecs(),
	}
}

// Builds a complete Data Source response carrying one record per requested
// attribute.
func completeRsp(uid uint32) []byte {
	b := []byte{byte(ancsdefs.CMD_ID_GET_NOTIF_ATTRS)}
	b = binary.LittleEndian.AppendUint32(b, uid)
	for _, spec := range ancsdefs.DefaultAttrSpecs() {
		val := fmt.Sprintf("%s-%d", spec.Id.String(), uid)
		b = append(b, byte(spec.Id))
		b = binary.LittleEndian.AppendUint16(b, uint16(len(val)))
		b = append(b, val...)
	}
	return b
}

func awaitResult(t *testing.T, q *Queue) Result {
	t.Helper()

	select {
	case res := <-q.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for fetch result")
		return Result{}
	}
}

// N requests enqueued concurrently must never produce more than one
// unresolved Control Point write at a time, and must resolve in FIFO order.
func TestQueueSingleFlight(t *testing.T) {
	const n = 8

	var outstanding atomic.Int32
	var violations atomic.Int32
	writeCh := make(chan []byte, n*2)

	tx := func(b []byte) error {
		if outstanding.Add(1) != 1 {
			violations.Add(1)
		}
		writeCh <- b
		return nil
	}

	q := NewQueue(NewQueueCfg(), tx)
	defer q.Stop()

	for uid := uint32(0); uid < n; uid++ {
		go q.Enqueue(notifReq(uid))
	}

	seen := map[uint32]bool{}
	for i := 0; i < n; i++ {
		var cmd []byte
		select {
		case cmd = <-writeCh:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for write %d", i)
		}

		uid := binary.LittleEndian.Uint32(cmd[1:5])
		require.False(t, seen[uid], "uid %d written twice", uid)
		seen[uid] = true

		outstanding.Add(-1)
		q.DataIn(completeRsp(uid))

		res := awaitResult(t, q)
		require.NoError(t, res.Err)
		require.Equal(t, uid, res.Req.Uid)

		title, ok := res.Attrs.Get(ancsdefs.NOTIF_ATTR_ID_TITLE)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("title-%d", uid), title)
	}

	require.Zero(t, violations.Load(),
		"observed more than one outstanding control point write")
}

// A request whose responses never arrive resolves degraded after exactly
// three attempts: the initial write plus two retries.
func TestQueueRetryBound(t *testing.T) {
	var writes atomic.Int32
	tx := func(b []byte) error {
		writes.Add(1)
		return nil
	}

	cfg := NewQueueCfg()
	cfg.RspTimeout = 20 * time.Millisecond

	q := NewQueue(cfg, tx)
	defer q.Stop()

	q.Enqueue(notifReq(5))

	res := awaitResult(t, q)
	require.True(t, ancsutil.IsMaxRetries(res.Err),
		"error %v, want MaxRetriesError", res.Err)
	require.Nil(t, res.Attrs)
	require.Equal(t, int32(3), writes.Load())
}

// A rejected write is an immediate retry trigger; the queue must not wait
// out the response timer.
func TestQueueWriteFailure(t *testing.T) {
	var writes atomic.Int32
	tx := func(b []byte) error {
		writes.Add(1)
		return ancsutil.NewXportError("simulated write failure")
	}

	cfg := NewQueueCfg()
	cfg.RspTimeout = time.Hour

	q := NewQueue(cfg, tx)
	defer q.Stop()

	start := time.Now()
	q.Enqueue(notifReq(5))

	res := awaitResult(t, q)
	require.True(t, ancsutil.IsMaxRetries(res.Err))
	require.Equal(t, int32(3), writes.Load())
	require.Less(t, time.Since(start), time.Hour)
}

// A mismatched response counts toward the retry budget instead of crashing
// the engine.
func TestQueueProtocolErrorCountsAsAttempt(t *testing.T) {
	writeCh := make(chan struct{}, 8)
	tx := func(b []byte) error {
		writeCh <- struct{}{}
		return nil
	}

	cfg := NewQueueCfg()
	cfg.RspTimeout = time.Hour

	q := NewQueue(cfg, tx)
	defer q.Stop()

	q.Enqueue(notifReq(5))

	for i := 0; i < 3; i++ {
		select {
		case <-writeCh:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for attempt %d", i+1)
		}
		q.DataIn(completeRsp(6)) // wrong uid
	}

	res := awaitResult(t, q)
	require.True(t, ancsutil.IsMaxRetries(res.Err))
}

// Connection loss resolves the in-flight request and every backlog entry
// with the drain cause; nothing is written afterward.
func TestQueueDrain(t *testing.T) {
	writeCh := make(chan struct{}, 8)
	tx := func(b []byte) error {
		writeCh <- struct{}{}
		return nil
	}

	cfg := NewQueueCfg()
	cfg.RspTimeout = time.Hour

	q := NewQueue(cfg, tx)
	defer q.Stop()

	q.Enqueue(notifReq(1))
	q.Enqueue(notifReq(2))
	q.Enqueue(notifReq(3))

	select {
	case <-writeCh:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for first write")
	}

	cause := ancsutil.NewSesnDisconnectError(0, "link dropped")
	drained := q.Drain(cause)

	require.Len(t, drained, 2)
	require.Equal(t, uint32(2), drained[0].Req.Uid)
	require.Equal(t, uint32(3), drained[1].Req.Uid)
	for _, res := range drained {
		require.Equal(t, cause, res.Err)
	}

	res := awaitResult(t, q)
	require.Equal(t, uint32(1), res.Req.Uid)
	require.Equal(t, cause, res.Err)

	// No stale command may be issued against the dead session.
	select {
	case <-writeCh:
		t.Fatalf("write issued after drain")
	case <-time.After(50 * time.Millisecond):
	}
}

// A drain that arrives while the in-flight attempt is inside a failing
// write must resolve that request, not linger and poison the next one.
func TestQueueDrainDuringWriteFailure(t *testing.T) {
	var mtx sync.Mutex
	healthy := false
	entered := make(chan struct{})
	release := make(chan struct{})
	var enteredOnce sync.Once

	writeCh := make(chan []byte, 8)
	tx := func(b []byte) error {
		mtx.Lock()
		ok := healthy
		mtx.Unlock()

		if ok {
			writeCh <- b
			return nil
		}

		enteredOnce.Do(func() { close(entered) })
		<-release
		return ancsutil.NewXportError("simulated write failure")
	}

	cfg := NewQueueCfg()
	cfg.RspTimeout = time.Hour

	q := NewQueue(cfg, tx)
	defer q.Stop()

	q.Enqueue(notifReq(1))

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for first write attempt")
	}

	cause := ancsutil.NewSesnDisconnectError(0, "link dropped")
	require.Empty(t, q.Drain(cause))
	close(release)

	res := awaitResult(t, q)
	require.Equal(t, uint32(1), res.Req.Uid)
	require.Equal(t, cause, res.Err)

	// The link is back; a fresh request must run its full course.
	mtx.Lock()
	healthy = true
	mtx.Unlock()

	q.Enqueue(notifReq(2))

	select {
	case <-writeCh:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for post-drain write")
	}
	q.DataIn(completeRsp(2))

	res = awaitResult(t, q)
	require.Equal(t, uint32(2), res.Req.Uid)
	require.NoError(t, res.Err)
}

// Late deliveries with nothing in flight are dropped, not queued.
func TestQueueDataInIdle(t *testing.T) {
	q := NewQueue(NewQueueCfg(), func(b []byte) error { return nil })
	defer q.Stop()

	q.DataIn(completeRsp(9))

	select {
	case res := <-q.Results():
		t.Fatalf("unexpected result %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueueAppAttrs(t *testing.T) {
	writeCh := make(chan []byte, 1)
	tx := func(b []byte) error {
		writeCh <- b
		return nil
	}

	q := NewQueue(NewQueueCfg(), tx)
	defer q.Stop()

	q.Enqueue(&Request{
		Kind:       KIND_APP_ATTRS,
		AppId:      "com.apple.MobileSMS",
		AppAttrIds: []ancsdefs.AppAttrId{ancsdefs.APP_ATTR_ID_DISPLAY_NAME},
	})

	select {
	case cmd := <-writeCh:
		require.Equal(t, byte(ancsdefs.CMD_ID_GET_APP_ATTRS), cmd[0])
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for write")
	}

	rsp := []byte{byte(ancsdefs.CMD_ID_GET_APP_ATTRS)}
	rsp = append(rsp, "com.apple.MobileSMS"...)
	rsp = append(rsp, 0, 0x00, 0x08, 0x00)
	rsp = append(rsp, "Messages"...)
	q.DataIn(rsp)

	res := awaitResult(t, q)
	require.NoError(t, res.Err)
	require.Equal(t, "Messages",
		res.AppAttrs[ancsdefs.APP_ATTR_ID_DISPLAY_NAME])
}
