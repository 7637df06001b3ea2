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
	"sync"
)

// Fans values out to a dynamic set of subscriber channels.  Unlike a single
// mutable callback slot, subscribers cannot overwrite each other's
// registration, and per-subscriber ordering follows send order.
type Bcaster struct {
	chs    map[chan interface{}]struct{}
	closed bool
	mtx    sync.Mutex
}

func NewBcaster() *Bcaster {
	return &Bcaster{
		chs: map[chan interface{}]struct{}{},
	}
}

// Registers a new subscriber.  The returned channel is buffered with the
// specified depth and is closed when the broadcaster shuts down.
func (b *Bcaster) Listen(depth int) chan interface{} {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	ch := make(chan interface{}, depth)
	if b.closed {
		close(ch)
		return ch
	}

	b.chs[ch] = struct{}{}
	return ch
}

func (b *Bcaster) Unlisten(ch chan interface{}) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if _, ok := b.chs[ch]; ok {
		delete(b.chs, ch)
		close(ch)
	}
}

func (b *Bcaster) snapshot() []chan interface{} {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	chs := make([]chan interface{}, 0, len(b.chs))
	for ch := range b.chs {
		chs = append(chs, ch)
	}
	return chs
}

// Delivers val to every subscriber, blocking on full buffers.
func (b *Bcaster) Send(val interface{}) {
	for _, ch := range b.snapshot() {
		ch <- val
	}
}

// Delivers val to every subscriber whose buffer has room.  Used for
// best-effort diagnostics that must never stall the engine.
func (b *Bcaster) TrySend(val interface{}) {
	for _, ch := range b.snapshot() {
		select {
		case ch <- val:
		default:
		}
	}
}

// Closes every subscriber channel.  Subsequent Listen calls yield closed
// channels.
func (b *Bcaster) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for ch := range b.chs {
		close(ch)
	}
	b.chs = map[chan interface{}]struct{}{}
}
