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

// Package feed re-broadcasts engine events to WebSocket clients as JSON.
// Delivery is best effort: a client that stops reading loses messages, not
// the engine.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ancslink/ancslink/ancsact/engine"
)

const (
	writeTimeout = 10 * time.Second
	sendDepth    = 32
)

// One JSON frame on the feed.
type Frame struct {
	Type         string                     `json:"type"`
	Notification *engine.NotificationRecord `json:"notification,omitempty"`
	ConnState    string                     `json:"conn_state,omitempty"`
	Peer         string                     `json:"peer,omitempty"`
	Error        string                     `json:"error,omitempty"`
	Msg          string                     `json:"msg,omitempty"`
}

type Hub struct {
	upgrader websocket.Upgrader

	mtx    sync.Mutex
	conns  map[*websocket.Conn]chan []byte
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed binds to loopback; no cross-origin story needed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]chan []byte{},
	}
}

// Upgrades the request and streams frames until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("websocket upgrade failed: %s", err.Error())
		return
	}

	sendCh := make(chan []byte, sendDepth)

	h.mtx.Lock()
	if h.closed {
		h.mtx.Unlock()
		conn.Close()
		return
	}
	h.conns[conn] = sendCh
	n := len(h.conns)
	h.mtx.Unlock()

	log.Debugf("feed client connected: %s; total=%d",
		conn.RemoteAddr().String(), n)

	// Reader: we never expect client frames, but reading is how close and
	// ping/pong get processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.detach(conn)
				return
			}
		}
	}()

	for msg := range sendCh {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.detach(conn)
			break
		}
	}

	conn.Close()
}

func (h *Hub) detach(conn *websocket.Conn) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if ch, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(ch)
	}
}

func (h *Hub) ClientCount() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return len(h.conns)
}

// Translates one engine event into a frame and queues it to every client.
// Messages to clients with full buffers are dropped.
func (h *Hub) BroadcastEvent(ev interface{}) {
	var frame Frame

	switch e := ev.(type) {
	case engine.NotificationEvent:
		rec := e.Record
		frame = Frame{
			Type:         "notification",
			Notification: &rec,
		}

	case engine.ConnStateEvent:
		frame = Frame{
			Type:      "conn_state",
			ConnState: e.State.String(),
			Peer:      e.Peer.String(),
		}
		if e.Err != nil {
			frame.Error = e.Err.Error()
		}

	case engine.DebugEvent:
		frame = Frame{
			Type: "debug",
			Msg:  e.Msg,
		}

	default:
		return
	}

	msg, err := json.Marshal(frame)
	if err != nil {
		log.Errorf("failed to encode feed frame: %s", err.Error())
		return
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	for conn, ch := range h.conns {
		select {
		case ch <- msg:
		default:
			log.Debugf("dropping feed frame for slow client %s",
				conn.RemoteAddr().String())
		}
	}
}

// Disconnects every client.  Subsequent connections are refused.
func (h *Hub) Close() {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for conn, ch := range h.conns {
		close(ch)
		delete(h.conns, conn)
	}
}
