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
	"math/rand"
	"testing"
	"time"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsutil"
)

func TestEncodeGetNotifAttrs(t *testing.T) {
	b := EncodeGetNotifAttrs(42, ancsdefs.DefaultAttrSpecs())

	exp := []byte{
		0x00,                   // command id
		0x2a, 0x00, 0x00, 0x00, // uid, little-endian
		0x00,             // app identifier, no max length
		0x01, 0x80, 0x00, // title, max 128
		0x02, 0x80, 0x00, // subtitle, max 128
		0x03, 0x00, 0x04, // message, max 1024
		0x05, // date, no max length
	}

	if !bytes.Equal(b, exp) {
		t.Fatalf("encoded command mismatch:\nhave %x\nwant %x", b, exp)
	}
}

// Encoding a command for any UID and decoding just its header must recover
// command id 0 and the same UID.
func TestEncodeGetNotifAttrsHeaderRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(0x5eed))

	for i := 0; i < 1000; i++ {
		uid := rng.Uint32()
		b := EncodeGetNotifAttrs(uid, ancsdefs.DefaultAttrSpecs())

		if b[0] != byte(ancsdefs.CMD_ID_GET_NOTIF_ATTRS) {
			t.Fatalf("uid %d: command id %d, want 0", uid, b[0])
		}
		if got := binary.LittleEndian.Uint32(b[1:5]); got != uid {
			t.Fatalf("uid round trip failed: have %d, want %d", got, uid)
		}
	}
}

func TestEncodeGetAppAttrs(t *testing.T) {
	b := EncodeGetAppAttrs("com.apple.MobileSMS",
		[]ancsdefs.AppAttrId{ancsdefs.APP_ATTR_ID_DISPLAY_NAME})

	if b[0] != byte(ancsdefs.CMD_ID_GET_APP_ATTRS) {
		t.Fatalf("command id %d, want 1", b[0])
	}

	nul := bytes.IndexByte(b[1:], 0)
	if nul == -1 {
		t.Fatalf("app identifier not NUL-terminated: %x", b)
	}
	if got := string(b[1 : 1+nul]); got != "com.apple.MobileSMS" {
		t.Fatalf("app identifier %q", got)
	}
	if b[len(b)-1] != byte(ancsdefs.APP_ATTR_ID_DISPLAY_NAME) {
		t.Fatalf("trailing attribute id %d", b[len(b)-1])
	}
}

func TestEncodePerformAction(t *testing.T) {
	b := EncodePerformAction(7, ancsdefs.ACTION_ID_NEGATIVE)

	exp := []byte{0x02, 0x07, 0x00, 0x00, 0x00, 0x01}
	if !bytes.Equal(b, exp) {
		t.Fatalf("encoded action mismatch:\nhave %x\nwant %x", b, exp)
	}
}

func TestDecodeNotifSrc(t *testing.T) {
	// EventId=Added, no flags, CategoryId=Email, CategoryCount=1, UID=42.
	ev, err := DecodeNotifSrc([]byte{0x00, 0x00, 0x06, 0x01, 0x2a, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if ev.EventId != ancsdefs.EVENT_ID_NOTIFICATION_ADDED {
		t.Fatalf("event id %v", ev.EventId)
	}
	if ev.EventFlags != 0 {
		t.Fatalf("event flags %#x", ev.EventFlags)
	}
	if ev.CategoryId != ancsdefs.CATEGORY_ID_EMAIL {
		t.Fatalf("category id %v", ev.CategoryId)
	}
	if ev.CategoryCount != 1 {
		t.Fatalf("category count %d", ev.CategoryCount)
	}
	if ev.Uid != 42 {
		t.Fatalf("uid %d, want 42", ev.Uid)
	}
}

// The UID is always the little-endian unsigned integer of bytes 4-7,
// independent of every other field.
func TestDecodeNotifSrcUidExtraction(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		b := make([]byte, 8+rng.Intn(4))
		rng.Read(b)

		ev, err := DecodeNotifSrc(b)
		if err != nil {
			t.Fatalf("decode of %x failed: %v", b, err)
		}

		if exp := binary.LittleEndian.Uint32(b[4:8]); ev.Uid != exp {
			t.Fatalf("uid %d, want %d (packet %x)", ev.Uid, exp, b)
		}
	}
}

func TestDecodeNotifSrcShort(t *testing.T) {
	for n := 0; n < 8; n++ {
		b := make([]byte, n)

		_, err := DecodeNotifSrc(b)
		if err == nil {
			t.Fatalf("%d-byte packet decoded without error", n)
		}
		if !ancsutil.IsMalformedPacket(err) {
			t.Fatalf("%d-byte packet: error %T, want MalformedPacketError",
				n, err)
		}
	}
}

func TestDecodeAttrChunk(t *testing.T) {
	b := []byte{0x01, 0x05, 0x00, 'H', 'e', 'l', 'l', 'o'}

	c, off, ok := decodeAttrChunk(b, 0)
	if !ok {
		t.Fatalf("complete chunk reported as incomplete")
	}
	if c.id != 1 || string(c.val) != "Hello" || off != 8 {
		t.Fatalf("chunk id=%d val=%q off=%d", c.id, c.val, off)
	}

	// Every strict prefix is incomplete, not malformed.
	for n := 0; n < len(b); n++ {
		if _, _, ok := decodeAttrChunk(b[:n], 0); ok {
			t.Fatalf("%d-byte prefix decoded as complete", n)
		}
	}
}

func TestDecodeAttrChunkZeroLength(t *testing.T) {
	c, off, ok := decodeAttrChunk([]byte{0x02, 0x00, 0x00}, 0)
	if !ok {
		t.Fatalf("zero-length chunk reported as incomplete")
	}
	if c.id != 2 || len(c.val) != 0 || off != 3 {
		t.Fatalf("chunk id=%d val=%q off=%d", c.id, c.val, off)
	}
}

func TestParseDateAttr(t *testing.T) {
	d, err := ParseDateAttr("20240131T093005")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	exp := time.Date(2024, 1, 31, 9, 30, 5, 0, time.Local)
	if !d.Equal(exp) {
		t.Fatalf("parsed %v, want %v", d, exp)
	}

	if _, err := ParseDateAttr("tomorrow-ish"); err == nil {
		t.Fatalf("garbage date parsed without error")
	}
}
