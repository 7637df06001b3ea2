// +build !windows

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

package bll

import (
	"sync"

	"github.com/go-ble/ble"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsutil"
	"github.com/ancslink/ancslink/ancsact/xport"
)

var ancsSvcUuid = ble.MustParse(ancsdefs.ANCS_SVC_UUID)

var chrUuids = map[xport.ChrId]ble.UUID{
	xport.CHR_ID_NOTIF_SRC:     ble.MustParse(ancsdefs.NOTIF_SRC_CHR_UUID),
	xport.CHR_ID_CONTROL_POINT: ble.MustParse(ancsdefs.CONTROL_POINT_CHR_UUID),
	xport.CHR_ID_DATA_SRC:      ble.MustParse(ancsdefs.DATA_SRC_CHR_UUID),
}

// A session that uses the host machine's native BLE support.
type BllSesn struct {
	cln ble.Client

	mtx    sync.Mutex
	chrs   map[xport.ChrId]*ble.Characteristic
	closed bool

	notifyCh chan xport.Notification
	dconCh   chan error
}

func newBllSesn(cln ble.Client) *BllSesn {
	s := &BllSesn{
		cln:      cln,
		chrs:     map[xport.ChrId]*ble.Characteristic{},
		notifyCh: make(chan xport.Notification, 64),
		dconCh:   make(chan error, 1),
	}

	go func() {
		<-cln.Disconnected()
		s.shutdown(ancsutil.NewSesnDisconnectError(0, "BLE connection lost"))
	}()

	return s
}

// Runs once per session, on whichever goroutine observes the end first.
func (s *BllSesn) shutdown(cause error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	close(s.notifyCh)
	s.dconCh <- cause
}

func (s *BllSesn) Discover() error {
	p, err := s.cln.DiscoverProfile(true)
	if err != nil {
		return ancsutil.FmtXportError("failed to discover profile: %s",
			err.Error())
	}

	for _, svc := range p.Services {
		if !svc.UUID.Equal(ancsSvcUuid) {
			continue
		}

		for _, chr := range svc.Characteristics {
			for id, uuid := range chrUuids {
				if chr.UUID.Equal(uuid) {
					s.mtx.Lock()
					s.chrs[id] = chr
					s.mtx.Unlock()
				}
			}
		}
	}

	for id := range chrUuids {
		if _, ok := s.findChr(id); !ok {
			return ancsutil.FmtXportError(
				"peer does not expose the %s characteristic; "+
					"is this an iOS device with notifications enabled?",
				id.String())
		}
	}

	return nil
}

func (s *BllSesn) findChr(id xport.ChrId) (*ble.Characteristic, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	chr, ok := s.chrs[id]
	return chr, ok
}

func (s *BllSesn) deliver(n xport.Notification) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed {
		return
	}

	select {
	case s.notifyCh <- n:
	default:
		// The engine is not keeping up; dropping beats blocking the BLE
		// stack's delivery goroutine.
	}
}

func (s *BllSesn) Subscribe(id xport.ChrId) error {
	chr, ok := s.findChr(id)
	if !ok {
		return ancsutil.FmtXportError("no discovered characteristic: %s",
			id.String())
	}

	err := s.cln.Subscribe(chr, false, func(b []byte) {
		// The stack reuses its buffer after the handler returns.
		data := make([]byte, len(b))
		copy(data, b)

		s.deliver(xport.Notification{
			Chr:  id,
			Data: data,
		})
	})
	if err != nil {
		return ancsutil.FmtXportError("failed to subscribe to %s: %s",
			id.String(), err.Error())
	}

	return nil
}

func (s *BllSesn) WriteChr(id xport.ChrId, b []byte) error {
	chr, ok := s.findChr(id)
	if !ok {
		return ancsutil.FmtXportError("no discovered characteristic: %s",
			id.String())
	}

	if err := s.cln.WriteCharacteristic(chr, b, false); err != nil {
		return ancsutil.FmtXportError("failed to write %s: %s",
			id.String(), err.Error())
	}

	return nil
}

func (s *BllSesn) NotifyChan() <-chan xport.Notification {
	return s.notifyCh
}

func (s *BllSesn) DisconnectChan() <-chan error {
	return s.dconCh
}

func (s *BllSesn) Close() error {
	if err := s.cln.CancelConnection(); err != nil {
		return ancsutil.FmtXportError("failed to close connection: %s",
			err.Error())
	}

	return nil
}
