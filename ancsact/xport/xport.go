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

// Package xport defines the boundary between the engine and the platform
// Bluetooth stack.  The engine never touches a GATT handle directly; it
// drives whatever implements these interfaces.
package xport

import (
	"context"
)

// The remote phone, as the caller identifies it.  The id is opaque to the
// engine (a MAC address on Linux, a CoreBluetooth UUID on Darwin).
type Peer struct {
	Id   string
	Name string
}

func (p Peer) String() string {
	if p.Name == "" {
		return p.Id
	}
	return p.Name + " (" + p.Id + ")"
}

// The three ANCS characteristics, by role.
type ChrId int

const (
	CHR_ID_NOTIF_SRC ChrId = iota
	CHR_ID_CONTROL_POINT
	CHR_ID_DATA_SRC
)

var chrIdStringMap = map[ChrId]string{
	CHR_ID_NOTIF_SRC:     "notification-source",
	CHR_ID_CONTROL_POINT: "control-point",
	CHR_ID_DATA_SRC:      "data-source",
}

func (c ChrId) String() string {
	return chrIdStringMap[c]
}

// One notify delivery from a subscribed characteristic.
type Notification struct {
	Chr  ChrId
	Data []byte
}

// An established GATT link to the peer.  A Sesn must never be reused after
// its disconnect channel fires; reconnecting means dialing a new one.
type Sesn interface {
	// Resolves the ANCS service and its three characteristics.  Must be
	// called before Subscribe or WriteChr.
	Discover() error

	// Writes the CCCD of the specified characteristic to enable notify
	// delivery.
	Subscribe(chr ChrId) error

	// Writes the specified characteristic with response.
	WriteChr(chr ChrId, b []byte) error

	// Delivers notify payloads for all subscribed characteristics.  Closed
	// when the session ends.
	NotifyChan() <-chan Notification

	// Yields exactly one error when the link drops, spontaneously or via
	// Close.
	DisconnectChan() <-chan error

	// Tears the link down.  Idempotent.
	Close() error
}

// A dialer for GATT sessions.  Implementations wrap a platform BLE stack.
type Xport interface {
	Start() error
	Stop() error

	// Dials the peer.  Honors ctx for cancellation and connect timeout;
	// the returned Sesn has not yet been discovered or subscribed.
	Connect(ctx context.Context, peer Peer) (Sesn, error)
}
