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

// Package engine ties the transport, the codec, and the fetch queue into a
// notification client.  All engine state lives behind a serial task queue;
// transport goroutines and the fetch worker only ever submit jobs to it, so
// state transitions need no further locking.
package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsp"
	"github.com/ancslink/ancslink/ancsact/ancsutil"
	"github.com/ancslink/ancslink/ancsact/fetch"
	"github.com/ancslink/ancslink/ancsact/task"
	"github.com/ancslink/ancslink/ancsact/xport"
)

// Resolves app identifiers to human-readable names.  Implementations must be
// safe for concurrent use.  A nil cache disables app name resolution.
type AppNameCache interface {
	Lookup(appId string) (string, bool)
	Insert(appId string, name string)
}

type Cfg struct {
	// Covers dialing, discovery, and the initial subscriptions.
	ConnectTimeout time.Duration

	FetchCfg  fetch.QueueCfg
	AttrSpecs []ancsdefs.AttrSpec

	// Reconnect policy: delay doubles from BackoffBase up to BackoffCap;
	// after ReconnectMaxTries failed attempts the engine gives up and waits
	// for a manual Connect.
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	ReconnectMaxTries int

	// Buffer depth of subscriber event channels.
	EventDepth int
}

func NewCfg() Cfg {
	return Cfg{
		ConnectTimeout:    10 * time.Second,
		FetchCfg:          fetch.NewQueueCfg(),
		AttrSpecs:         ancsdefs.DefaultAttrSpecs(),
		BackoffBase:       time.Second,
		BackoffCap:        30 * time.Second,
		ReconnectMaxTries: 8,
		EventDepth:        64,
	}
}

type Engine struct {
	cfg   Cfg
	x     xport.Xport
	cache AppNameCache

	tq   task.TaskQueue
	fq   *fetch.Queue
	evts *ancsutil.Bcaster

	// The fields below are owned by the task queue.
	state             ConnState
	peer              xport.Peer
	wantRetry         bool
	abortConnect      bool
	reconnectAttempts int
	stopped           bool
	appFetches        map[string]bool

	// sesn is also read by the fetch worker; it gets its own lock.
	sesn    xport.Sesn
	sesnMtx sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEngine(cfg Cfg, x xport.Xport, cache AppNameCache) *Engine {
	return &Engine{
		cfg:        cfg,
		x:          x,
		cache:      cache,
		tq:         task.NewTaskQueue("engine"),
		evts:       ancsutil.NewBcaster(),
		appFetches: map[string]bool{},
		stopCh:     make(chan struct{}),
	}
}

func (e *Engine) Start() error {
	if err := e.x.Start(); err != nil {
		return err
	}

	if err := e.tq.Start(e.cfg.EventDepth); err != nil {
		e.x.Stop()
		return err
	}

	e.fq = fetch.NewQueue(e.cfg.FetchCfg, e.writeCtlPt)

	e.wg.Add(1)
	go e.resultLoop()

	return nil
}

// Registers an event subscriber.  Subscribers must keep draining their
// channel until it closes; NotificationEvent and ConnStateEvent deliveries
// block on a full buffer rather than dropping.
func (e *Engine) Listen() chan interface{} {
	return e.evts.Listen(e.cfg.EventDepth)
}

func (e *Engine) Unlisten(ch chan interface{}) {
	e.evts.Unlisten(ch)
}

// Dials the peer, discovers ANCS, and subscribes.  Returns AlreadyError if
// the engine is not disconnected.  A failed connect leaves the engine
// disconnected without engaging the reconnect policy; connection loss after
// a successful connect does engage it.
func (e *Engine) Connect(peer xport.Peer) error {
	if err := e.tq.Run(func() error {
		if e.state != CONN_STATE_DISCONNECTED {
			return ancsutil.NewAlreadyError(fmt.Sprintf(
				"connect to %s attempted while %s", peer.String(),
				e.state.String()))
		}

		e.peer = peer
		e.wantRetry = false
		e.abortConnect = false
		e.reconnectAttempts = 0
		e.setState(CONN_STATE_CONNECTING, nil)
		return nil
	}); err != nil {
		return err
	}

	sesn, dialErr := e.dial(peer)

	return e.tq.Run(func() error {
		if e.abortConnect {
			// A Disconnect arrived while the dial was in flight.
			e.abortConnect = false
			if sesn != nil {
				sesn.Close()
			}
			e.setState(CONN_STATE_DISCONNECTED, nil)
			return ancsutil.NewSesnClosedError("connect aborted by disconnect")
		}

		if dialErr != nil {
			e.setState(CONN_STATE_DISCONNECTED, dialErr)
			return dialErr
		}
		return e.commitSesn(sesn)
	})
}

// Closes the active session and suppresses automatic reconnection until the
// next Connect.
func (e *Engine) Disconnect() error {
	return e.tq.Run(func() error {
		e.wantRetry = false

		s := e.curSesn()
		if s == nil {
			if e.state == CONN_STATE_CONNECTING {
				// A dial is in flight; its commit must not proceed.
				e.abortConnect = true
			}
			return nil
		}

		// The state transition arrives through the disconnect watcher.
		return s.Close()
	})
}

// Writes a Perform Notification Action command for the record.  The record
// must advertise the corresponding action flag; the phone ignores actions on
// notifications that lack them.  Fire and forget.
func (e *Engine) PerformAction(rec NotificationRecord,
	action ancsdefs.ActionId) error {

	switch action {
	case ancsdefs.ACTION_ID_POSITIVE:
		if !rec.EventFlags.PositiveAction() {
			return fmt.Errorf("notification %d advertises no positive action",
				rec.Uid)
		}
	case ancsdefs.ACTION_ID_NEGATIVE:
		if !rec.EventFlags.NegativeAction() {
			return fmt.Errorf("notification %d advertises no negative action",
				rec.Uid)
		}
	default:
		return fmt.Errorf("invalid action id: %d", action)
	}

	return e.tq.Run(func() error {
		if e.state != CONN_STATE_CONNECTED {
			return ancsutil.NewSesnClosedError(
				"perform action attempted while disconnected")
		}
		return e.writeCtlPt(ancsp.EncodePerformAction(rec.Uid, action))
	})
}

func (e *Engine) State() ConnState {
	var st ConnState
	e.tq.Run(func() error {
		st = e.state
		return nil
	})
	return st
}

// Tears the engine down: session closed, pending fetches discarded, all
// subscriber channels closed.  The engine cannot be restarted.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		e.tq.Run(func() error {
			e.stopped = true
			e.wantRetry = false

			if s := e.curSesn(); s != nil {
				s.Close()
				e.setSesn(nil)
			}
			e.state = CONN_STATE_DISCONNECTED
			return nil
		})

		close(e.stopCh)
		e.fq.Stop()
		e.wg.Wait()
		e.tq.Stop(ancsutil.NewSesnClosedError("engine shut down"))
		e.evts.Close()
		e.x.Stop()
	})
}

func (e *Engine) setSesn(s xport.Sesn) {
	e.sesnMtx.Lock()
	defer e.sesnMtx.Unlock()

	e.sesn = s
}

func (e *Engine) curSesn() xport.Sesn {
	e.sesnMtx.Lock()
	defer e.sesnMtx.Unlock()

	return e.sesn
}

// Task queue context only.
func (e *Engine) setState(st ConnState, cause error) {
	e.state = st
	e.evts.Send(ConnStateEvent{
		State: st,
		Peer:  e.peer,
		Err:   cause,
	})
}

func (e *Engine) debugf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Debugf("%s", msg)
	e.evts.TrySend(DebugEvent{Msg: msg})
}

// The fetch queue's transmit function; runs on the fetch worker goroutine.
func (e *Engine) writeCtlPt(b []byte) error {
	s := e.curSesn()
	if s == nil {
		return ancsutil.NewSesnClosedError("no active session")
	}
	return s.WriteChr(xport.CHR_ID_CONTROL_POINT, b)
}

// Dials and prepares a session.  Blocks up to ConnectTimeout; runs off the
// task queue so event handling is never stalled behind a slow dial.
func (e *Engine) dial(peer xport.Peer) (xport.Sesn, error) {
	ctx, cancel := context.WithTimeout(context.Background(),
		e.cfg.ConnectTimeout)
	defer cancel()

	s, err := e.x.Connect(ctx, peer)
	if err != nil {
		return nil, err
	}

	if err := s.Discover(); err != nil {
		s.Close()
		return nil, err
	}

	// Data Source before Notification Source: a notification that arrives
	// before its attribute channel is live could never be enriched.
	if err := s.Subscribe(xport.CHR_ID_DATA_SRC); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Subscribe(xport.CHR_ID_NOTIF_SRC); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Installs a freshly dialed session.  Task queue context only.
func (e *Engine) commitSesn(s xport.Sesn) error {
	if e.stopped {
		s.Close()
		return ancsutil.NewSesnClosedError("engine shut down")
	}

	e.setSesn(s)
	e.wantRetry = true
	e.reconnectAttempts = 0
	e.setState(CONN_STATE_CONNECTED, nil)

	log.Infof("connected to %s", e.peer.String())

	e.wg.Add(2)
	go e.rxLoop(s)
	go e.disconnectLoop(s)

	return nil
}

// Routes notify deliveries for one session.  Notification Source events are
// funneled through the task queue; Data Source fragments go straight to the
// fetch queue, which serializes them itself.
func (e *Engine) rxLoop(s xport.Sesn) {
	defer e.wg.Done()

	for n := range s.NotifyChan() {
		switch n.Chr {
		case xport.CHR_ID_NOTIF_SRC:
			data := n.Data
			e.tq.Enqueue(func() error {
				return e.handleNotifSrc(data)
			})

		case xport.CHR_ID_DATA_SRC:
			log.Debugf("data source rx: %s", hex.EncodeToString(n.Data))
			e.fq.DataIn(n.Data)

		default:
			e.debugf("dropping delivery from unexpected characteristic: %s",
				n.Chr.String())
		}
	}
}

func (e *Engine) disconnectLoop(s xport.Sesn) {
	defer e.wg.Done()

	cause := <-s.DisconnectChan()
	e.tq.Enqueue(func() error {
		return e.onDisconnect(s, cause)
	})
}

// Task queue context only.
func (e *Engine) handleNotifSrc(b []byte) error {
	log.Debugf("notification source rx: %s", hex.EncodeToString(b))

	ev, err := ancsp.DecodeNotifSrc(b)
	if err != nil {
		e.debugf("dropping notification source packet: %s", err.Error())
		return nil
	}

	if !ancsdefs.EventIdIsValid(ev.EventId) {
		e.debugf("dropping notification source event with unknown event id "+
			"%d; uid=%d", ev.EventId, ev.Uid)
		return nil
	}

	rec := newRecord(ev)

	// Removed events carry no attributes worth fetching; the notification
	// is already gone from the phone.
	if ev.EventId == ancsdefs.EVENT_ID_NOTIFICATION_REMOVED {
		e.emitRecord(rec)
		return nil
	}

	if e.state != CONN_STATE_CONNECTED {
		// The session died between delivery and processing.
		e.emitRecord(rec)
		return nil
	}

	e.fq.Enqueue(&fetch.Request{
		Kind:      fetch.KIND_NOTIF_ATTRS,
		Uid:       ev.Uid,
		AttrSpecs: e.cfg.AttrSpecs,
		Token:     rec,
	})

	return nil
}

// Task queue context only.
func (e *Engine) emitRecord(rec *NotificationRecord) {
	if rec.AppId != "" && e.cache != nil {
		if name, ok := e.cache.Lookup(rec.AppId); ok {
			rec.AppName = name
		} else {
			e.requestAppName(rec.AppId)
		}
	}

	e.evts.Send(NotificationEvent{Record: *rec})
}

// Enqueues at most one Get App Attributes fetch per app identifier.  The
// result only populates the cache; records already emitted are not amended.
func (e *Engine) requestAppName(appId string) {
	if e.appFetches[appId] || e.state != CONN_STATE_CONNECTED {
		return
	}
	e.appFetches[appId] = true

	e.fq.Enqueue(&fetch.Request{
		Kind:       fetch.KIND_APP_ATTRS,
		AppId:      appId,
		AppAttrIds: []ancsdefs.AppAttrId{ancsdefs.APP_ATTR_ID_DISPLAY_NAME},
	})
}

// Task queue context only.
func (e *Engine) handleFetchResult(res fetch.Result) error {
	switch res.Req.Kind {
	case fetch.KIND_NOTIF_ATTRS:
		rec := res.Req.Token.(*NotificationRecord)
		if res.Err == nil {
			rec.mergeAttrs(res.Attrs)
		} else {
			// Degrade and continue; an unenriched record beats a lost one.
			e.debugf("delivering unenriched notification %d: %s",
				rec.Uid, res.Err.Error())
		}
		e.emitRecord(rec)

	case fetch.KIND_APP_ATTRS:
		delete(e.appFetches, res.Req.AppId)
		if res.Err != nil {
			e.debugf("app attribute fetch for %q failed: %s",
				res.Req.AppId, res.Err.Error())
			return nil
		}
		if name, ok := res.AppAttrs[ancsdefs.APP_ATTR_ID_DISPLAY_NAME]; ok &&
			e.cache != nil {

			e.cache.Insert(res.Req.AppId, name)
		}
	}

	return nil
}

func (e *Engine) resultLoop() {
	defer e.wg.Done()

	for res := range e.fq.Results() {
		res := res
		e.tq.Enqueue(func() error {
			return e.handleFetchResult(res)
		})
	}
}

// Task queue context only.
func (e *Engine) onDisconnect(s xport.Sesn, cause error) error {
	if s != e.curSesn() {
		// A watcher for a session that was already replaced or torn down.
		return nil
	}

	if cause == nil {
		cause = ancsutil.NewSesnDisconnectError(0, "connection lost")
	}

	log.Infof("disconnected from %s: %s", e.peer.String(), cause.Error())

	e.setSesn(nil)

	// The backlog resolves here; the in-flight request resolves through the
	// result loop with the same cause.
	for _, res := range e.fq.Drain(cause) {
		e.handleFetchResult(res)
	}

	e.setState(CONN_STATE_DISCONNECTED, cause)

	if e.wantRetry {
		e.scheduleReconnect()
	}

	return nil
}

func (e *Engine) backoff(attempt int) time.Duration {
	delay := e.cfg.BackoffBase
	for i := 1; i < attempt && delay < e.cfg.BackoffCap; i++ {
		delay *= 2
	}
	if delay > e.cfg.BackoffCap {
		delay = e.cfg.BackoffCap
	}
	return delay
}

// Task queue context only.
func (e *Engine) scheduleReconnect() {
	e.reconnectAttempts++
	if e.reconnectAttempts > e.cfg.ReconnectMaxTries {
		e.wantRetry = false
		err := ancsutil.NewReconnectGiveUpError(e.cfg.ReconnectMaxTries,
			fmt.Sprintf("giving up on %s after %d reconnect attempts",
				e.peer.String(), e.cfg.ReconnectMaxTries))

		log.Warnf("%s", err.Error())
		e.evts.Send(ConnStateEvent{
			State: e.state,
			Peer:  e.peer,
			Err:   err,
		})
		return
	}

	delay := e.backoff(e.reconnectAttempts)
	log.Infof("reconnecting to %s in %s; attempt=%d/%d", e.peer.String(),
		delay.String(), e.reconnectAttempts, e.cfg.ReconnectMaxTries)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		select {
		case <-time.After(delay):
		case <-e.stopCh:
			return
		}

		e.retryConnect()
	}()
}

// One automatic reconnect attempt.  Runs on its own goroutine; failures
// schedule the next attempt rather than surfacing to a caller.
func (e *Engine) retryConnect() {
	if err := e.tq.Run(func() error {
		if !e.wantRetry || e.state != CONN_STATE_DISCONNECTED {
			return ancsutil.NewAlreadyError("reconnect superseded")
		}
		e.setState(CONN_STATE_CONNECTING, nil)
		return nil
	}); err != nil {
		return
	}

	sesn, dialErr := e.dial(e.peer)

	e.tq.Run(func() error {
		if !e.wantRetry {
			if sesn != nil {
				sesn.Close()
			}
			e.setState(CONN_STATE_DISCONNECTED, nil)
			return nil
		}

		if dialErr != nil {
			e.setState(CONN_STATE_DISCONNECTED, dialErr)
			e.scheduleReconnect()
			return dialErr
		}

		return e.commitSesn(sesn)
	})
}
