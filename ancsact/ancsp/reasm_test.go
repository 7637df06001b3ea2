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
	"encoding/binary"
	"testing"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsutil"
)

func notifRsp(uid uint32, attrs ...[]byte) []byte {
	b := []byte{byte(ancsdefs.CMD_ID_GET_NOTIF_ATTRS)}
	b = binary.LittleEndian.AppendUint32(b, uid)
	for _, a := range attrs {
		b = append(b, a...)
	}
	return b
}

func attrRec(id ancsdefs.NotifAttrId, val string) []byte {
	b := []byte{byte(id)}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(val)))
	return append(b, val...)
}

func TestReassemblerSplitDelivery(t *testing.T) {
	// Title="Hello" split mid-value across two deliveries.
	first := []byte{0x00, 0x2a, 0x00, 0x00, 0x00,
		0x01, 0x05, 0x00, 'H', 'e', 'l', 'l'}
	second := []byte{'o'}

	r := NewReassembler(42, 1)

	st, err := r.Feed(first)
	if err != nil {
		t.Fatalf("first feed failed: %v", err)
	}
	if st != REASM_INCOMPLETE {
		t.Fatalf("first feed status %v, want incomplete", st)
	}

	st, err = r.Feed(second)
	if err != nil {
		t.Fatalf("second feed failed: %v", err)
	}
	if st != REASM_COMPLETE {
		t.Fatalf("second feed status %v, want complete", st)
	}

	title, ok := r.Attrs().Get(ancsdefs.NOTIF_ATTR_ID_TITLE)
	if !ok || title != "Hello" {
		t.Fatalf("title %q present=%v, want \"Hello\"", title, ok)
	}
}

// Feeding a complete response whole must produce the same result as feeding
// the identical bytes split at every possible boundary.
func TestReassemblerFragmentationIdempotence(t *testing.T) {
	rsp := notifRsp(7,
		attrRec(ancsdefs.NOTIF_ATTR_ID_APP_IDENTIFIER, "com.example.app"),
		attrRec(ancsdefs.NOTIF_ATTR_ID_TITLE, "Lunch?"),
		attrRec(ancsdefs.NOTIF_ATTR_ID_SUBTITLE, ""),
		attrRec(ancsdefs.NOTIF_ATTR_ID_MESSAGE, "Sushi at noon\x00\x00"),
		attrRec(ancsdefs.NOTIF_ATTR_ID_DATE, "20240131T120000"),
	)

	whole := NewReassembler(7, 5)
	st, err := whole.Feed(rsp)
	if err != nil || st != REASM_COMPLETE {
		t.Fatalf("whole feed: status=%v err=%v", st, err)
	}

	for split := 1; split < len(rsp); split++ {
		r := NewReassembler(7, 5)

		st, err := r.Feed(rsp[:split])
		if err != nil {
			t.Fatalf("split %d: first feed failed: %v", split, err)
		}
		if st == REASM_COMPLETE {
			t.Fatalf("split %d: complete before all bytes fed", split)
		}

		st, err = r.Feed(rsp[split:])
		if err != nil {
			t.Fatalf("split %d: second feed failed: %v", split, err)
		}
		if st != REASM_COMPLETE {
			t.Fatalf("split %d: status %v, want complete", split, st)
		}

		for id := range whole.Attrs().vals {
			wv, _ := whole.Attrs().Get(id)
			sv, ok := r.Attrs().Get(id)
			if !ok || sv != wv {
				t.Fatalf("split %d: attr %s = %q present=%v, want %q",
					split, id.String(), sv, ok, wv)
			}
		}
		if r.Attrs().Len() != whole.Attrs().Len() {
			t.Fatalf("split %d: %d attrs, want %d",
				split, r.Attrs().Len(), whole.Attrs().Len())
		}
	}
}

func TestReassemblerZeroLengthVsAbsent(t *testing.T) {
	rsp := notifRsp(9, attrRec(ancsdefs.NOTIF_ATTR_ID_SUBTITLE, ""))

	r := NewReassembler(9, 1)
	st, err := r.Feed(rsp)
	if err != nil || st != REASM_COMPLETE {
		t.Fatalf("feed: status=%v err=%v", st, err)
	}

	if v, ok := r.Attrs().Get(ancsdefs.NOTIF_ATTR_ID_SUBTITLE); !ok || v != "" {
		t.Fatalf("zero-length subtitle: %q present=%v", v, ok)
	}
	if _, ok := r.Attrs().Get(ancsdefs.NOTIF_ATTR_ID_TITLE); ok {
		t.Fatalf("never-decoded title reported as present")
	}
}

func TestReassemblerUidMismatch(t *testing.T) {
	rsp := notifRsp(1000, attrRec(ancsdefs.NOTIF_ATTR_ID_TITLE, "hi"))

	r := NewReassembler(1001, 1)
	_, err := r.Feed(rsp)
	if !ancsutil.IsProtocol(err) {
		t.Fatalf("uid mismatch: error %v, want ProtocolError", err)
	}
}

func TestReassemblerCommandMismatch(t *testing.T) {
	rsp := []byte{0x02, 0x01, 0x00, 0x00, 0x00}

	r := NewReassembler(1, 1)
	_, err := r.Feed(rsp)
	if !ancsutil.IsProtocol(err) {
		t.Fatalf("command mismatch: error %v, want ProtocolError", err)
	}
}

func TestReassemblerUnknownAttrSkipped(t *testing.T) {
	rsp := notifRsp(3,
		[]byte{0xee, 0x02, 0x00, 0xab, 0xcd}, // unrecognized attribute id
		attrRec(ancsdefs.NOTIF_ATTR_ID_TITLE, "kept"),
	)

	r := NewReassembler(3, 2)
	st, err := r.Feed(rsp)
	if err != nil || st != REASM_COMPLETE {
		t.Fatalf("feed: status=%v err=%v", st, err)
	}

	if title, ok := r.Attrs().Get(ancsdefs.NOTIF_ATTR_ID_TITLE); !ok || title != "kept" {
		t.Fatalf("title %q present=%v", title, ok)
	}
	if r.Attrs().Len() != 1 {
		t.Fatalf("%d attrs retained, want 1", r.Attrs().Len())
	}
}

func TestAppReassembler(t *testing.T) {
	rsp := []byte{byte(ancsdefs.CMD_ID_GET_APP_ATTRS)}
	rsp = append(rsp, "com.apple.MobileSMS"...)
	rsp = append(rsp, 0)
	rsp = append(rsp, 0x00, 0x08, 0x00)
	rsp = append(rsp, "Messages"...)

	// Whole and byte-by-byte deliveries must agree.
	for _, stride := range []int{len(rsp), 1} {
		r := NewAppReassembler("com.apple.MobileSMS", 1)

		var st ReasmStatus
		var err error
		for off := 0; off < len(rsp); off += stride {
			end := off + stride
			if end > len(rsp) {
				end = len(rsp)
			}
			st, err = r.Feed(rsp[off:end])
			if err != nil {
				t.Fatalf("stride %d: feed failed: %v", stride, err)
			}
		}

		if st != REASM_COMPLETE {
			t.Fatalf("stride %d: status %v, want complete", stride, st)
		}
		if name, ok := r.Get(ancsdefs.APP_ATTR_ID_DISPLAY_NAME); !ok || name != "Messages" {
			t.Fatalf("stride %d: display name %q present=%v", stride, name, ok)
		}
	}
}

func TestAppReassemblerAppIdMismatch(t *testing.T) {
	rsp := []byte{byte(ancsdefs.CMD_ID_GET_APP_ATTRS)}
	rsp = append(rsp, "com.other.app"...)
	rsp = append(rsp, 0)

	r := NewAppReassembler("com.apple.MobileSMS", 1)
	_, err := r.Feed(rsp)
	if !ancsutil.IsProtocol(err) {
		t.Fatalf("app id mismatch: error %v, want ProtocolError", err)
	}
}
