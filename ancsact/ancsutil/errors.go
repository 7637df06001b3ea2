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

package ancsutil

import (
	"fmt"
)

// Indicates a Notification Source packet that is too short to parse.  These
// are dropped at the transport boundary; they never abort the engine.
type MalformedPacketError struct {
	Text string
}

func NewMalformedPacketError(text string) *MalformedPacketError {
	return &MalformedPacketError{
		Text: text,
	}
}

func FmtMalformedPacketError(format string,
	args ...interface{}) *MalformedPacketError {

	return NewMalformedPacketError(fmt.Sprintf(format, args...))
}

func (e *MalformedPacketError) Error() string {
	return e.Text
}

func IsMalformedPacket(err error) bool {
	_, ok := err.(*MalformedPacketError)
	return ok
}

// Indicates a Data Source response that contradicts the in-flight request
// (wrong command id or wrong notification UID).  Counts as a failed fetch
// attempt.
type ProtocolError struct {
	Text string
}

func NewProtocolError(text string) *ProtocolError {
	return &ProtocolError{
		Text: text,
	}
}

func FmtProtocolError(format string, args ...interface{}) *ProtocolError {
	return NewProtocolError(fmt.Sprintf(format, args...))
}

func (e *ProtocolError) Error() string {
	return e.Text
}

func IsProtocol(err error) bool {
	_, ok := err.(*ProtocolError)
	return ok
}

// Represents an attribute-fetch timeout; command written, but no complete
// response received.
type RspTimeoutError struct {
	Text string
}

func NewRspTimeoutError(text string) *RspTimeoutError {
	return &RspTimeoutError{
		Text: text,
	}
}

func FmtRspTimeoutError(format string, args ...interface{}) *RspTimeoutError {
	return NewRspTimeoutError(fmt.Sprintf(format, args...))
}

func (e *RspTimeoutError) Error() string {
	return e.Text
}

func IsRspTimeout(err error) bool {
	_, ok := err.(*RspTimeoutError)
	return ok
}

// Indicates that all attempts for one fetch were exhausted.  The associated
// record is still delivered, just unenriched.
type MaxRetriesError struct {
	Text     string
	Attempts int
}

func NewMaxRetriesError(attempts int, text string) *MaxRetriesError {
	return &MaxRetriesError{
		Attempts: attempts,
		Text:     text,
	}
}

func (e *MaxRetriesError) Error() string {
	return e.Text
}

func IsMaxRetries(err error) bool {
	_, ok := err.(*MaxRetriesError)
	return ok
}

// Represents a low-level transport error (failed write, failed subscribe,
// failed dial).
type XportError struct {
	Text string
}

func NewXportError(text string) *XportError {
	return &XportError{text}
}

func FmtXportError(format string, args ...interface{}) *XportError {
	return NewXportError(fmt.Sprintf(format, args...))
}

func (e *XportError) Error() string {
	return e.Text
}

func IsXport(err error) bool {
	if err == nil {
		return false
	}

	_, ok := err.(*XportError)
	return ok
}

// Indicates an attempt to connect while a connection attempt or session is
// already active.
type AlreadyError struct {
	Text string
}

func NewAlreadyError(text string) *AlreadyError {
	return &AlreadyError{text}
}

func (err *AlreadyError) Error() string {
	return err.Text
}

func IsAlready(err error) bool {
	if err == nil {
		return false
	}

	_, ok := err.(*AlreadyError)
	return ok
}

// Indicates an attempt to use a session that is not open.
type SesnClosedError struct {
	Text string
}

func NewSesnClosedError(text string) *SesnClosedError {
	return &SesnClosedError{
		Text: text,
	}
}

func (e *SesnClosedError) Error() string {
	return e.Text
}

func IsSesnClosed(err error) bool {
	_, ok := err.(*SesnClosedError)
	return ok
}

// Represents a dropped BLE session; carried on the disconnect channel and
// used as the drain cause for pending fetches.
type SesnDisconnectError struct {
	Text   string
	Reason int
}

func NewSesnDisconnectError(reason int, text string) *SesnDisconnectError {
	return &SesnDisconnectError{
		Reason: reason,
		Text:   text,
	}
}

func (e *SesnDisconnectError) Error() string {
	return e.Text
}

func IsSesnDisconnect(err error) bool {
	_, ok := err.(*SesnDisconnectError)
	return ok
}

// Escalated to the caller when the reconnect policy gives up.  Requires user
// intervention (re-pair, toggle radio).
type ReconnectGiveUpError struct {
	Text     string
	Attempts int
}

func NewReconnectGiveUpError(attempts int, text string) *ReconnectGiveUpError {
	return &ReconnectGiveUpError{
		Attempts: attempts,
		Text:     text,
	}
}

func (e *ReconnectGiveUpError) Error() string {
	return e.Text
}

func IsReconnectGiveUp(err error) bool {
	_, ok := err.(*ReconnectGiveUpError)
	return ok
}
