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
	"context"
	"strings"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/examples/lib/dev"
	log "github.com/sirupsen/logrus"

	"github.com/ancslink/ancslink/ancsact/ancsutil"
	"github.com/ancslink/ancslink/ancsact/xport"
	"github.com/ancslink/ancslink/ancslink/lnkutil"
)

type BllXport struct {
	cfg XportCfg
}

func NewBllXport(cfg XportCfg) (xport.Xport, error) {
	return &BllXport{
		cfg: cfg,
	}, nil
}

func (bx *BllXport) Start() error {
	d, err := dev.NewDevice(bx.cfg.CtlrName)
	if err != nil {
		return ancsutil.FmtXportError("failed to open BLE controller: %s",
			err.Error())
	}

	ble.SetDefaultDevice(d)
	return nil
}

func (bx *BllXport) Stop() error {
	if err := ble.Stop(); err != nil {
		return ancsutil.FmtXportError("failed to stop BLE controller: %s",
			err.Error())
	}

	return nil
}

// Matches the peer by address when an id is configured, by advertised name
// otherwise.
func advFilter(peer xport.Peer) ble.AdvFilter {
	if peer.Id != "" {
		want := strings.ToLower(peer.Id)
		return func(a ble.Advertisement) bool {
			return strings.ToLower(a.Addr().String()) == want
		}
	}

	return func(a ble.Advertisement) bool {
		return a.LocalName() == peer.Name
	}
}

func (bx *BllXport) Connect(ctx context.Context,
	peer xport.Peer) (xport.Sesn, error) {

	log.Debugf("connecting to peer %s", peer.String())

	var cln ble.Client
	var err error
	if peer.Id != "" {
		cln, err = ble.Dial(ctx, ble.NewAddr(peer.Id))
	} else {
		cln, err = ble.Connect(ctx, advFilter(peer))
	}

	if err != nil {
		if lnkutil.ErrorCausedBy(err, context.DeadlineExceeded) {
			return nil, ancsutil.FmtXportError(
				"failed to connect to %s before deadline", peer.String())
		}
		return nil, ancsutil.FmtXportError("failed to connect to %s: %s",
			peer.String(), err.Error())
	}

	return newBllSesn(cln), nil
}
