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

package task

import (
	"fmt"
	"sync"
)

// One unit of work plus the channel its result is delivered on.
type job struct {
	fn func() error
	ch chan error
}

// TaskQueue runs submitted jobs one at a time on a single goroutine.  It is
// the engine's single logical execution context: everything that mutates
// engine state is funneled through one of these.  Submission never blocks;
// pending jobs accumulate in a list the runner works through in order.
type TaskQueue struct {
	name string

	mtx     sync.Mutex
	cond    *sync.Cond
	pending []job
	active  bool
	cause   error
	wg      sync.WaitGroup
}

var InactiveError = fmt.Errorf("inactive task queue")

func NewTaskQueue(name string) TaskQueue {
	return TaskQueue{
		name: name,
	}
}

// Submits a job.  The result is delivered on the returned channel when the
// job runs, or InactiveError immediately if the queue is not running.
func (q *TaskQueue) Enqueue(fn func() error) chan error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	ch := make(chan error, 1)
	if !q.active {
		ch <- InactiveError
		return ch
	}

	q.pending = append(q.pending, job{fn: fn, ch: ch})
	q.cond.Signal()
	return ch
}

// Submits a job and blocks until it has run.
func (q *TaskQueue) Run(fn func() error) error {
	return <-q.Enqueue(fn)
}

func (q *TaskQueue) Start(depth int) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if q.active {
		return fmt.Errorf("task queue \"%s\" started twice", q.name)
	}

	q.active = true
	q.cause = nil
	q.pending = make([]job, 0, depth)
	if q.cond == nil {
		q.cond = sync.NewCond(&q.mtx)
	}

	q.wg.Add(1)
	go q.loop()

	return nil
}

func (q *TaskQueue) loop() {
	defer q.wg.Done()

	for {
		q.mtx.Lock()
		for q.active && len(q.pending) == 0 {
			q.cond.Wait()
		}

		if !q.active {
			// Fail whatever never got to run.
			rem := q.pending
			cause := q.cause
			q.pending = nil
			q.mtx.Unlock()

			for _, j := range rem {
				j.ch <- cause
				close(j.ch)
			}
			return
		}

		j := q.pending[0]
		q.pending = q.pending[1:]
		q.mtx.Unlock()

		j.ch <- j.fn()
		close(j.ch)
	}
}

// Stops the queue and fails all unprocessed jobs with the specified cause.
// Blocks until the runner has exited, so calling this from within a job
// deadlocks; jobs must use StopNoWait.
func (q *TaskQueue) Stop(cause error) error {
	if err := q.StopNoWait(cause); err != nil {
		return err
	}

	q.wg.Wait()
	return nil
}

// Initiates a stop without waiting for the runner to exit.  The runner
// fails the remaining pending jobs with the cause on its way out.
func (q *TaskQueue) StopNoWait(cause error) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if !q.active {
		return fmt.Errorf("task queue \"%s\" stopped twice", q.name)
	}

	q.active = false
	q.cause = cause
	q.cond.Signal()

	return nil
}

func (q *TaskQueue) Active() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	return q.active
}
