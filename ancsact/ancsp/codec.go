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

// Package ancsp implements the ANCS wire format: Control Point command
// encoding, Notification Source decoding, and Data Source response
// reassembly.  Everything here is stateless except the reassemblers.
package ancsp

import (
	"encoding/binary"
	"time"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsutil"
)

// One parsed Notification Source event.
type NotifEvent struct {
	EventId       ancsdefs.EventId
	EventFlags    ancsdefs.EventFlags
	CategoryId    ancsdefs.CategoryId
	CategoryCount uint8
	Uid           uint32
}

// Builds a Get Notification Attributes command.  Field order and byte order
// are exact protocol requirements: one byte command id, four byte UID
// little-endian, then per attribute one byte id plus, for variable-length
// attributes only, a two-byte little-endian maximum length.
func EncodeGetNotifAttrs(uid uint32, specs []ancsdefs.AttrSpec) []byte {
	b := make([]byte, 0, 5+3*len(specs))

	b = append(b, byte(ancsdefs.CMD_ID_GET_NOTIF_ATTRS))
	b = binary.LittleEndian.AppendUint32(b, uid)

	for _, spec := range specs {
		b = append(b, byte(spec.Id))
		if spec.HasMaxLen {
			b = binary.LittleEndian.AppendUint16(b, spec.MaxLen)
		}
	}

	return b
}

// Builds a Get App Attributes command: one byte command id, the app
// identifier as a NUL-terminated UTF-8 string, then one attribute id per
// requested attribute.  App Display Name takes no length parameter.
func EncodeGetAppAttrs(appId string, attrIds []ancsdefs.AppAttrId) []byte {
	b := make([]byte, 0, 2+len(appId)+len(attrIds))

	b = append(b, byte(ancsdefs.CMD_ID_GET_APP_ATTRS))
	b = append(b, appId...)
	b = append(b, 0)

	for _, id := range attrIds {
		b = append(b, byte(id))
	}

	return b
}

// Builds a Perform Notification Action command.  Fire and forget; the phone
// sends no Data Source response.
func EncodePerformAction(uid uint32, action ancsdefs.ActionId) []byte {
	b := make([]byte, 0, 6)

	b = append(b, byte(ancsdefs.CMD_ID_PERFORM_NOTIF_ACTION))
	b = binary.LittleEndian.AppendUint32(b, uid)
	b = append(b, byte(action))

	return b
}

// Parses an eight-byte Notification Source event.  Shorter buffers yield a
// MalformedPacketError; trailing bytes beyond the eighth are ignored.
// Field values are not validated here; the engine decides what to do with
// event ids it does not recognize.
func DecodeNotifSrc(b []byte) (NotifEvent, error) {
	if len(b) < ancsdefs.NOTIF_SRC_EVENT_SZ {
		return NotifEvent{}, ancsutil.FmtMalformedPacketError(
			"truncated notification source event: have %d bytes, want %d",
			len(b), ancsdefs.NOTIF_SRC_EVENT_SZ)
	}

	return NotifEvent{
		EventId:       ancsdefs.EventId(b[0]),
		EventFlags:    ancsdefs.EventFlags(b[1]),
		CategoryId:    ancsdefs.CategoryId(b[2]),
		CategoryCount: b[3],
		Uid:           binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// One attribute record decoded from a Data Source response.
type attrChunk struct {
	id  uint8
	val []byte
}

// Attempts to decode one attribute record (one byte id, two byte
// little-endian length, then the value) starting at off.  ok is false when
// the buffer is too short to hold the complete record; that is not an
// error, the caller retains the bytes and waits for more input.
func decodeAttrChunk(b []byte, off int) (attrChunk, int, bool) {
	if len(b)-off < 3 {
		return attrChunk{}, off, false
	}

	id := b[off]
	vlen := int(binary.LittleEndian.Uint16(b[off+1 : off+3]))

	if len(b)-off-3 < vlen {
		return attrChunk{}, off, false
	}

	c := attrChunk{
		id:  id,
		val: b[off+3 : off+3+vlen],
	}
	return c, off + 3 + vlen, true
}

// Parses the Date attribute's fixed yyyyMMdd'T'HHmmSS format.
func ParseDateAttr(s string) (time.Time, error) {
	return time.ParseInLocation(ancsdefs.DATE_ATTR_FORMAT, s, time.Local)
}
