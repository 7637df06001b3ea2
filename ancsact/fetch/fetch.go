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

// Package fetch implements the Control Point request queue.  ANCS permits
// only one outstanding Control Point transaction at a time; the queue
// enforces that with a single worker goroutine that writes a command, feeds
// Data Source deliveries to a reassembler, and only then advances to the
// next backlog entry.  Failed attempts are retried a bounded number of
// times, after which the request resolves degraded rather than stalling the
// queue.
package fetch

import (
	"encoding/hex"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsp"
	"github.com/ancslink/ancslink/ancsact/ancsutil"
)

type Kind int

const (
	KIND_NOTIF_ATTRS Kind = iota
	KIND_APP_ATTRS
)

// One queued or in-flight Control Point transaction.
type Request struct {
	Kind Kind

	// KIND_NOTIF_ATTRS.
	Uid       uint32
	AttrSpecs []ancsdefs.AttrSpec

	// KIND_APP_ATTRS.
	AppId      string
	AppAttrIds []ancsdefs.AppAttrId

	// Opaque caller payload, returned untouched in the Result.
	Token interface{}
}

// The terminal outcome of one Request.  Err is nil on success; a
// MaxRetriesError when every attempt was exhausted; the drain cause when
// the connection went away underneath the request.
type Result struct {
	Req      *Request
	Attrs    *ancsp.AttrSet
	AppAttrs map[ancsdefs.AppAttrId]string
	Err      error
}

// Writes one encoded command to the Control Point characteristic.
type TxFn func(b []byte) error

type QueueCfg struct {
	// Per-attempt response timeout.
	RspTimeout time.Duration

	// Total attempts per request (initial plus retries).
	MaxTries int
}

func NewQueueCfg() QueueCfg {
	return QueueCfg{
		RspTimeout: 5 * time.Second,
		MaxTries:   3,
	}
}

type Queue struct {
	cfg QueueCfg
	tx  TxFn

	resCh   chan Result
	dataCh  chan []byte
	kickCh  chan struct{}
	abortCh chan error
	stopCh  chan struct{}

	// Protects backlog and inflight.
	mtx      sync.Mutex
	backlog  []*Request
	inflight *Request

	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewQueue(cfg QueueCfg, tx TxFn) *Queue {
	q := &Queue{
		cfg:     cfg,
		tx:      tx,
		resCh:   make(chan Result, 64),
		dataCh:  make(chan []byte, 32),
		kickCh:  make(chan struct{}, 1),
		abortCh: make(chan error, 1),
		stopCh:  make(chan struct{}),
	}

	q.wg.Add(1)
	go q.loop()

	return q
}

// Terminal outcomes, in request order.  Closed when the queue stops.
func (q *Queue) Results() <-chan Result {
	return q.resCh
}

// Appends a request.  If nothing is in flight the worker promotes it
// immediately.
func (q *Queue) Enqueue(req *Request) {
	q.mtx.Lock()
	q.backlog = append(q.backlog, req)
	q.mtx.Unlock()

	select {
	case q.kickCh <- struct{}{}:
	default:
	}
}

// Forwards one Data Source delivery to the in-flight reassembly.  A no-op
// when nothing is in flight; late or duplicate deliveries are expected and
// harmless.
func (q *Queue) DataIn(b []byte) {
	q.mtx.Lock()
	active := q.inflight != nil
	q.mtx.Unlock()

	if !active {
		log.Debugf("dropping data source delivery with no request in flight; "+
			"len=%d", len(b))
		return
	}

	select {
	case q.dataCh <- b:
	case <-q.stopCh:
	}
}

// Resolves every queued request with the specified cause and aborts the
// in-flight one.  Returns the resolutions for the backlog; the in-flight
// request resolves through Results.  Called on connection loss so no stale
// command is ever issued against a dead session.
func (q *Queue) Drain(cause error) []Result {
	q.mtx.Lock()
	backlog := q.backlog
	q.backlog = nil
	active := q.inflight != nil
	q.mtx.Unlock()

	if active {
		select {
		case q.abortCh <- cause:
		default:
		}
	}

	results := make([]Result, len(backlog))
	for i, req := range backlog {
		results[i] = Result{Req: req, Err: cause}
	}
	return results
}

// Stops the worker and closes the result channel.  Pending requests are
// discarded; callers wanting them resolved must Drain first.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
		close(q.resCh)
	})
}

// Reports whether a request is currently in flight.
func (q *Queue) InFlight() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	return q.inflight != nil
}

func (q *Queue) pop() *Request {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if len(q.backlog) == 0 {
		return nil
	}

	req := q.backlog[0]
	q.backlog = q.backlog[1:]
	q.inflight = req
	return req
}

func (q *Queue) clear() {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	q.inflight = nil
}

func (q *Queue) loop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case <-q.kickCh:
		}

		for {
			req := q.pop()
			if req == nil {
				break
			}

			res := q.service(req)
			q.clear()

			if res == nil {
				// Queue stopped mid-request.
				return
			}

			select {
			case q.resCh <- *res:
			case <-q.stopCh:
				return
			}
		}
	}
}

// A reassembler for either request kind.
type feeder interface {
	Feed(b []byte) (ancsp.ReasmStatus, error)
}

func (q *Queue) encode(req *Request) []byte {
	switch req.Kind {
	case KIND_APP_ATTRS:
		return ancsp.EncodeGetAppAttrs(req.AppId, req.AppAttrIds)
	default:
		return ancsp.EncodeGetNotifAttrs(req.Uid, req.AttrSpecs)
	}
}

func (q *Queue) newFeeder(req *Request) (feeder, func() *Result) {
	switch req.Kind {
	case KIND_APP_ATTRS:
		r := ancsp.NewAppReassembler(req.AppId, len(req.AppAttrIds))
		return r, func() *Result {
			return &Result{Req: req, AppAttrs: r.Vals()}
		}
	default:
		r := ancsp.NewReassembler(req.Uid, len(req.AttrSpecs))
		return r, func() *Result {
			return &Result{Req: req, Attrs: r.Attrs()}
		}
	}
}

// Discards deliveries that straggled in from a previous attempt.
func (q *Queue) flushData() {
	for {
		select {
		case <-q.dataCh:
		default:
			return
		}
	}
}

func (q *Queue) flushAbort() {
	select {
	case <-q.abortCh:
	default:
	}
}

// Runs all attempts for one request.  Returns nil only if the queue was
// stopped while the request was in flight.
func (q *Queue) service(req *Request) *Result {
	cmd := q.encode(req)

	// An abort cause belonging to an earlier request that resolved before
	// consuming it must not leak into this one.
	q.flushAbort()

	for attempt := 1; attempt <= q.cfg.MaxTries; attempt++ {
		if attempt > 1 {
			log.Debugf("retrying control point request; attempt=%d/%d cmd=%s",
				attempt, q.cfg.MaxTries, hex.EncodeToString(cmd))
		}

		res, terminal := q.attemptOnce(req, cmd)
		if terminal {
			return res
		}

		// A drain that landed while the attempt was inside tx never reached
		// the select; it still owns this request.
		select {
		case cause := <-q.abortCh:
			return &Result{Req: req, Err: cause}
		default:
		}
	}

	return &Result{
		Req: req,
		Err: ancsutil.NewMaxRetriesError(q.cfg.MaxTries,
			"control point request abandoned after exhausting retries"),
	}
}

// Performs one write-and-wait attempt.  terminal=false means the attempt
// failed (timeout, write failure, or protocol error) and retry logic
// applies.
func (q *Queue) attemptOnce(req *Request, cmd []byte) (res *Result, terminal bool) {
	// The reassembly buffer starts empty on every attempt.
	f, mkResult := q.newFeeder(req)
	q.flushData()

	if err := q.tx(cmd); err != nil {
		// A rejected write resolves like an instant timeout; no point
		// arming the timer.
		log.Debugf("control point write failed: %s", err.Error())
		return nil, false
	}

	timer := time.NewTimer(q.cfg.RspTimeout)
	defer timer.Stop()

	for {
		select {
		case cause := <-q.abortCh:
			return &Result{Req: req, Err: cause}, true

		case <-q.stopCh:
			return nil, true

		case b := <-q.dataCh:
			st, err := f.Feed(b)
			if err != nil {
				// Counts as a failed attempt, never a crash.
				log.Debugf("data source protocol error: %s", err.Error())
				return nil, false
			}
			if st == ancsp.REASM_COMPLETE {
				return mkResult(), true
			}

		case <-timer.C:
			return nil, false
		}
	}
}
