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

package ancsp

import (
	"bytes"
	"encoding/binary"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsutil"
)

type ReasmStatus int

const (
	// More Data Source deliveries are required.
	REASM_INCOMPLETE ReasmStatus = iota

	// Every requested attribute has been decoded.
	REASM_COMPLETE
)

// Notification response header: one byte command id plus four byte UID.
const notifRspHdrSz = 5

// Reassembler accumulates Data Source fragments for one in-flight Get
// Notification Attributes request.  ANCS has no end-of-response marker; the
// response is complete when as many attribute records have been decoded as
// were requested.  A fresh Reassembler is required for each attempt.
type Reassembler struct {
	expUid   uint32
	expCount int
	cur      []byte
	off      int
	nDecoded int
	attrs    *AttrSet
}

func NewReassembler(uid uint32, attrCount int) *Reassembler {
	return &Reassembler{
		expUid:   uid,
		expCount: attrCount,
		off:      notifRspHdrSz,
		attrs:    NewAttrSet(),
	}
}

// Appends one Data Source delivery and attempts to finish the response.
// A header that names the wrong command or the wrong UID is a
// ProtocolError, never silently ignored.
func (r *Reassembler) Feed(b []byte) (ReasmStatus, error) {
	r.cur = append(r.cur, b...)

	if len(r.cur) < notifRspHdrSz {
		return REASM_INCOMPLETE, nil
	}

	if cmd := ancsdefs.CommandId(r.cur[0]); cmd != ancsdefs.CMD_ID_GET_NOTIF_ATTRS {
		return 0, ancsutil.FmtProtocolError(
			"data source response names command %s, want %s",
			cmd.String(), ancsdefs.CMD_ID_GET_NOTIF_ATTRS.String())
	}

	if uid := binary.LittleEndian.Uint32(r.cur[1:5]); uid != r.expUid {
		return 0, ancsutil.FmtProtocolError(
			"data source response names uid %d, want %d", uid, r.expUid)
	}

	for r.nDecoded < r.expCount {
		c, newOff, ok := decodeAttrChunk(r.cur, r.off)
		if !ok {
			return REASM_INCOMPLETE, nil
		}

		// Attribute ids outside the known set are length-consumed and
		// counted, but not retained.
		id := ancsdefs.NotifAttrId(c.id)
		if ancsdefs.NotifAttrIdIsValid(id) {
			r.attrs.set(id, string(c.val))
		}

		r.off = newOff
		r.nDecoded++
	}

	return REASM_COMPLETE, nil
}

// The attribute set decoded so far.  Only meaningful after Feed has
// reported REASM_COMPLETE.
func (r *Reassembler) Attrs() *AttrSet {
	return r.attrs
}

// AppReassembler accumulates Data Source fragments for one in-flight Get
// App Attributes request.  The response echoes the NUL-terminated app
// identifier before the attribute records.
type AppReassembler struct {
	expAppId string
	expCount int
	cur      []byte
	off      int
	nDecoded int
	vals     map[ancsdefs.AppAttrId]string
}

func NewAppReassembler(appId string, attrCount int) *AppReassembler {
	return &AppReassembler{
		expAppId: appId,
		expCount: attrCount,
		vals:     map[ancsdefs.AppAttrId]string{},
	}
}

func (r *AppReassembler) Feed(b []byte) (ReasmStatus, error) {
	r.cur = append(r.cur, b...)

	if r.off == 0 {
		// Header: command id plus NUL-terminated app identifier.
		if len(r.cur) < 1 {
			return REASM_INCOMPLETE, nil
		}

		if cmd := ancsdefs.CommandId(r.cur[0]); cmd != ancsdefs.CMD_ID_GET_APP_ATTRS {
			return 0, ancsutil.FmtProtocolError(
				"data source response names command %s, want %s",
				cmd.String(), ancsdefs.CMD_ID_GET_APP_ATTRS.String())
		}

		nul := bytes.IndexByte(r.cur[1:], 0)
		if nul == -1 {
			return REASM_INCOMPLETE, nil
		}

		if appId := string(r.cur[1 : 1+nul]); appId != r.expAppId {
			return 0, ancsutil.FmtProtocolError(
				"data source response names app %q, want %q",
				appId, r.expAppId)
		}

		r.off = 2 + nul
	}

	for r.nDecoded < r.expCount {
		c, newOff, ok := decodeAttrChunk(r.cur, r.off)
		if !ok {
			return REASM_INCOMPLETE, nil
		}

		r.vals[ancsdefs.AppAttrId(c.id)] = string(c.val)
		r.off = newOff
		r.nDecoded++
	}

	return REASM_COMPLETE, nil
}

func (r *AppReassembler) Get(id ancsdefs.AppAttrId) (string, bool) {
	v, ok := r.vals[id]
	return v, ok
}

// The app attributes decoded so far.  Only meaningful after Feed has
// reported REASM_COMPLETE.
func (r *AppReassembler) Vals() map[ancsdefs.AppAttrId]string {
	return r.vals
}
