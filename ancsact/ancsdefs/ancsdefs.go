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

// Package ancsdefs holds the fixed constants of the Apple Notification
// Center Service.  All values are dictated by the ANCS specification; none
// are negotiable.
package ancsdefs

import (
	"fmt"
)

// GATT identifiers of the ANCS service and its three characteristics.
const (
	ANCS_SVC_UUID          = "7905f431-b5ce-4e99-a40f-4b1e122d00d0"
	NOTIF_SRC_CHR_UUID     = "9fbf120d-6301-42d9-8c58-25e699a21dbd"
	CONTROL_POINT_CHR_UUID = "69d1d8f3-45e1-49a8-9821-9bbdfdaad9d9"
	DATA_SRC_CHR_UUID      = "22eac6e9-24d6-4bb5-be44-b36ace7c7bfb"
)

// A Notification Source event is always exactly eight bytes.
const NOTIF_SRC_EVENT_SZ = 8

// Wire format of the Date attribute.
const DATE_ATTR_FORMAT = "20060102T150405"

type EventId uint8

const (
	EVENT_ID_NOTIFICATION_ADDED EventId = iota
	EVENT_ID_NOTIFICATION_MODIFIED
	EVENT_ID_NOTIFICATION_REMOVED
)

var eventIdStringMap = map[EventId]string{
	EVENT_ID_NOTIFICATION_ADDED:    "added",
	EVENT_ID_NOTIFICATION_MODIFIED: "modified",
	EVENT_ID_NOTIFICATION_REMOVED:  "removed",
}

func (e EventId) String() string {
	s := eventIdStringMap[e]
	if s == "" {
		return fmt.Sprintf("event(%d)", uint8(e))
	}
	return s
}

func EventIdIsValid(e EventId) bool {
	_, ok := eventIdStringMap[e]
	return ok
}

type EventFlags uint8

const (
	EVENT_FLAG_SILENT          EventFlags = 1 << 0
	EVENT_FLAG_IMPORTANT       EventFlags = 1 << 1
	EVENT_FLAG_PRE_EXISTING    EventFlags = 1 << 2
	EVENT_FLAG_POSITIVE_ACTION EventFlags = 1 << 3
	EVENT_FLAG_NEGATIVE_ACTION EventFlags = 1 << 4
)

func (f EventFlags) Silent() bool         { return f&EVENT_FLAG_SILENT != 0 }
func (f EventFlags) Important() bool      { return f&EVENT_FLAG_IMPORTANT != 0 }
func (f EventFlags) PreExisting() bool    { return f&EVENT_FLAG_PRE_EXISTING != 0 }
func (f EventFlags) PositiveAction() bool { return f&EVENT_FLAG_POSITIVE_ACTION != 0 }
func (f EventFlags) NegativeAction() bool { return f&EVENT_FLAG_NEGATIVE_ACTION != 0 }

type CategoryId uint8

const (
	CATEGORY_ID_OTHER CategoryId = iota
	CATEGORY_ID_INCOMING_CALL
	CATEGORY_ID_MISSED_CALL
	CATEGORY_ID_VOICEMAIL
	CATEGORY_ID_SOCIAL
	CATEGORY_ID_SCHEDULE
	CATEGORY_ID_EMAIL
	CATEGORY_ID_NEWS
	CATEGORY_ID_HEALTH_AND_FITNESS
	CATEGORY_ID_BUSINESS_AND_FINANCE
	CATEGORY_ID_LOCATION
	CATEGORY_ID_ENTERTAINMENT
)

var categoryIdStringMap = map[CategoryId]string{
	CATEGORY_ID_OTHER:                "other",
	CATEGORY_ID_INCOMING_CALL:        "incoming-call",
	CATEGORY_ID_MISSED_CALL:          "missed-call",
	CATEGORY_ID_VOICEMAIL:            "voicemail",
	CATEGORY_ID_SOCIAL:               "social",
	CATEGORY_ID_SCHEDULE:             "schedule",
	CATEGORY_ID_EMAIL:                "email",
	CATEGORY_ID_NEWS:                 "news",
	CATEGORY_ID_HEALTH_AND_FITNESS:   "health-and-fitness",
	CATEGORY_ID_BUSINESS_AND_FINANCE: "business-and-finance",
	CATEGORY_ID_LOCATION:             "location",
	CATEGORY_ID_ENTERTAINMENT:        "entertainment",
}

// Unknown categories map to "other" rather than failing; new phone OS
// releases add categories without warning.
func (c CategoryId) String() string {
	s := categoryIdStringMap[c]
	if s == "" {
		return categoryIdStringMap[CATEGORY_ID_OTHER]
	}
	return s
}

type CommandId uint8

const (
	CMD_ID_GET_NOTIF_ATTRS CommandId = iota
	CMD_ID_GET_APP_ATTRS
	CMD_ID_PERFORM_NOTIF_ACTION
)

var commandIdStringMap = map[CommandId]string{
	CMD_ID_GET_NOTIF_ATTRS:      "get-notification-attributes",
	CMD_ID_GET_APP_ATTRS:        "get-app-attributes",
	CMD_ID_PERFORM_NOTIF_ACTION: "perform-notification-action",
}

func (c CommandId) String() string {
	s := commandIdStringMap[c]
	if s == "" {
		return fmt.Sprintf("command(%d)", uint8(c))
	}
	return s
}

type NotifAttrId uint8

const (
	NOTIF_ATTR_ID_APP_IDENTIFIER NotifAttrId = iota
	NOTIF_ATTR_ID_TITLE
	NOTIF_ATTR_ID_SUBTITLE
	NOTIF_ATTR_ID_MESSAGE
	NOTIF_ATTR_ID_MESSAGE_SIZE
	NOTIF_ATTR_ID_DATE
	NOTIF_ATTR_ID_POSITIVE_ACTION_LABEL
	NOTIF_ATTR_ID_NEGATIVE_ACTION_LABEL
)

var notifAttrIdStringMap = map[NotifAttrId]string{
	NOTIF_ATTR_ID_APP_IDENTIFIER:        "app-identifier",
	NOTIF_ATTR_ID_TITLE:                 "title",
	NOTIF_ATTR_ID_SUBTITLE:              "subtitle",
	NOTIF_ATTR_ID_MESSAGE:               "message",
	NOTIF_ATTR_ID_MESSAGE_SIZE:          "message-size",
	NOTIF_ATTR_ID_DATE:                  "date",
	NOTIF_ATTR_ID_POSITIVE_ACTION_LABEL: "positive-action-label",
	NOTIF_ATTR_ID_NEGATIVE_ACTION_LABEL: "negative-action-label",
}

func (a NotifAttrId) String() string {
	s := notifAttrIdStringMap[a]
	if s == "" {
		return fmt.Sprintf("attr(%d)", uint8(a))
	}
	return s
}

func NotifAttrIdIsValid(a NotifAttrId) bool {
	_, ok := notifAttrIdStringMap[a]
	return ok
}

type AppAttrId uint8

const (
	APP_ATTR_ID_DISPLAY_NAME AppAttrId = iota
)

type ActionId uint8

const (
	ACTION_ID_POSITIVE ActionId = iota
	ACTION_ID_NEGATIVE
)

// One attribute requested in a Get Notification Attributes command.  Only
// variable-length attributes carry a two-byte maximum length on the wire;
// the others are requested by id alone.
type AttrSpec struct {
	Id        NotifAttrId
	MaxLen    uint16
	HasMaxLen bool
}

// The fixed attribute set the engine requests for every notification.  The
// length of this slice is the reassembly termination count; ANCS has no
// end-of-response marker.
func DefaultAttrSpecs() []AttrSpec {
	return []AttrSpec{
		{Id: NOTIF_ATTR_ID_APP_IDENTIFIER},
		{Id: NOTIF_ATTR_ID_TITLE, MaxLen: 128, HasMaxLen: true},
		{Id: NOTIF_ATTR_ID_SUBTITLE, MaxLen: 128, HasMaxLen: true},
		{Id: NOTIF_ATTR_ID_MESSAGE, MaxLen: 1024, HasMaxLen: true},
		{Id: NOTIF_ATTR_ID_DATE},
	}
}
