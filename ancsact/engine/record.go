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

package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/ancsp"
)

// NotificationRecord is one notification as the engine presents it to
// consumers.  A record is built from an eight-byte Notification Source event
// and, for added and modified events, enriched with fetched attributes
// before delivery.  The UID is only unique per connection; Id is a stable
// identity that survives reconnects.
type NotificationRecord struct {
	Id            string
	Uid           uint32
	EventId       ancsdefs.EventId
	EventFlags    ancsdefs.EventFlags
	CategoryId    ancsdefs.CategoryId
	CategoryCount uint8
	Category      string
	Received      time.Time

	// Fetched attributes; zero values until Enriched is true.
	AppId    string
	AppName  string
	Title    string
	Subtitle string
	Message  string
	RawDate  string
	Date     time.Time

	Enriched bool
}

func newRecord(ev ancsp.NotifEvent) *NotificationRecord {
	return &NotificationRecord{
		Id:            uuid.NewString(),
		Uid:           ev.Uid,
		EventId:       ev.EventId,
		EventFlags:    ev.EventFlags,
		CategoryId:    ev.CategoryId,
		CategoryCount: ev.CategoryCount,
		Category:      ev.CategoryId.String(),
		Received:      time.Now(),
	}
}

// Incoming calls are treated as important regardless of whether the phone
// set the important flag.
func (r *NotificationRecord) Important() bool {
	return r.EventFlags.Important() ||
		r.CategoryId == ancsdefs.CATEGORY_ID_INCOMING_CALL
}

func (r *NotificationRecord) Silent() bool {
	return r.EventFlags.Silent()
}

func (r *NotificationRecord) PreExisting() bool {
	return r.EventFlags.PreExisting()
}

// Folds a completed attribute fetch into the record.  A malformed date
// leaves the raw string in place; it never fails the record.
func (r *NotificationRecord) mergeAttrs(attrs *ancsp.AttrSet) {
	if v, ok := attrs.Get(ancsdefs.NOTIF_ATTR_ID_APP_IDENTIFIER); ok {
		r.AppId = v
	}
	if v, ok := attrs.Get(ancsdefs.NOTIF_ATTR_ID_TITLE); ok {
		r.Title = v
	}
	if v, ok := attrs.Get(ancsdefs.NOTIF_ATTR_ID_SUBTITLE); ok {
		r.Subtitle = v
	}
	if v, ok := attrs.Get(ancsdefs.NOTIF_ATTR_ID_MESSAGE); ok {
		r.Message = v
	}
	if v, ok := attrs.Get(ancsdefs.NOTIF_ATTR_ID_DATE); ok {
		r.RawDate = v
		if t, err := ancsp.ParseDateAttr(v); err == nil {
			r.Date = t
		}
	}

	r.Enriched = true
}
