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

package engine

import (
	"github.com/ancslink/ancslink/ancsact/xport"
)

type ConnState int

const (
	CONN_STATE_DISCONNECTED ConnState = iota
	CONN_STATE_CONNECTING
	CONN_STATE_CONNECTED
)

var connStateStringMap = map[ConnState]string{
	CONN_STATE_DISCONNECTED: "disconnected",
	CONN_STATE_CONNECTING:   "connecting",
	CONN_STATE_CONNECTED:    "connected",
}

func (s ConnState) String() string {
	return connStateStringMap[s]
}

// Carries one notification record to consumers.  Removed records are
// delivered unenriched; added and modified records carry whatever attributes
// the fetch produced.
type NotificationEvent struct {
	Record NotificationRecord
}

// Announces a connection state transition.  Err is the cause of an
// involuntary transition: the disconnect reason, a failed dial, or a
// ReconnectGiveUpError when the retry policy is exhausted.
type ConnStateEvent struct {
	State ConnState
	Peer  xport.Peer
	Err   error
}

// Best-effort diagnostics (dropped packets, failed fetches).  Delivered
// only to subscribers with buffer room; never stalls the engine.
type DebugEvent struct {
	Msg string
}
