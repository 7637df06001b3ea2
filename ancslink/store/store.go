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

// Package store persists notification history to SQLite.  Removal never
// deletes a row; removed notifications stay queryable with a removal
// timestamp until pruned.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	uid         INTEGER NOT NULL,
	event       TEXT NOT NULL,
	category    TEXT NOT NULL,
	app_id      TEXT NOT NULL DEFAULT '',
	app_name    TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	subtitle    TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	date        TEXT NOT NULL DEFAULT '',
	important   INTEGER NOT NULL DEFAULT 0,
	silent      INTEGER NOT NULL DEFAULT 0,
	enriched    INTEGER NOT NULL DEFAULT 0,
	received    INTEGER NOT NULL,
	removed_at  INTEGER
);
CREATE INDEX IF NOT EXISTS notifications_uid ON notifications (uid);
CREATE INDEX IF NOT EXISTS notifications_received ON notifications (received);
`

// One persisted notification.
type Row struct {
	Record    engine.NotificationRecord
	RemovedAt time.Time
	Removed   bool
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create database directory "+
			"\"%s\"", filepath.Dir(path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database \"%s\"", path)
	}

	// SQLite allows one writer; everything goes through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply database schema")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Records one added or modified notification.
func (s *Store) Insert(rec engine.NotificationRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO notifications
			(id, uid, event, category, app_id, app_name, title, subtitle,
			 message, date, important, silent, enriched, received)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Id, rec.Uid, rec.EventId.String(), rec.Category, rec.AppId,
		rec.AppName, rec.Title, rec.Subtitle, rec.Message, rec.RawDate,
		rec.Important(), rec.Silent(), rec.Enriched,
		rec.Received.UnixMilli())
	if err != nil {
		return errors.Wrapf(err, "failed to insert notification %d", rec.Uid)
	}

	return nil
}

// Marks every live row with the UID as removed.  Returns the number of rows
// affected; zero is normal for notifications that predate this run.
func (s *Store) MarkRemoved(uid uint32, at time.Time) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE notifications SET removed_at = ?
		WHERE uid = ? AND removed_at IS NULL`,
		at.UnixMilli(), uid)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to mark notification %d removed",
			uid)
	}

	return res.RowsAffected()
}

// The most recent notifications, newest first.
func (s *Store) Recent(limit int) ([]Row, error) {
	rows, err := s.db.Query(`
		SELECT id, uid, event, category, app_id, app_name, title, subtitle,
		       message, date, important, silent, enriched, received,
		       removed_at
		FROM notifications
		ORDER BY received DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query notification history")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var event string
		var important, silent bool
		var received int64
		var removedAt sql.NullInt64

		err := rows.Scan(&r.Record.Id, &r.Record.Uid, &event,
			&r.Record.Category, &r.Record.AppId, &r.Record.AppName,
			&r.Record.Title, &r.Record.Subtitle, &r.Record.Message,
			&r.Record.RawDate, &important, &silent, &r.Record.Enriched,
			&received, &removedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan notification row")
		}

		r.Record.EventId = eventIdFromString(event)
		if important {
			r.Record.EventFlags |= ancsdefs.EVENT_FLAG_IMPORTANT
		}
		if silent {
			r.Record.EventFlags |= ancsdefs.EVENT_FLAG_SILENT
		}
		r.Record.Received = time.UnixMilli(received)
		if removedAt.Valid {
			r.Removed = true
			r.RemovedAt = time.UnixMilli(removedAt.Int64)
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

// Deletes the oldest rows beyond keep.  Returns the number of rows deleted.
func (s *Store) Prune(keep int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM notifications WHERE id NOT IN (
			SELECT id FROM notifications
			ORDER BY received DESC, id DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune notification history")
	}

	return res.RowsAffected()
}

func eventIdFromString(s string) ancsdefs.EventId {
	for _, id := range []ancsdefs.EventId{
		ancsdefs.EVENT_ID_NOTIFICATION_ADDED,
		ancsdefs.EVENT_ID_NOTIFICATION_MODIFIED,
		ancsdefs.EVENT_ID_NOTIFICATION_REMOVED,
	} {
		if id.String() == s {
			return id
		}
	}
	return ancsdefs.EVENT_ID_NOTIFICATION_ADDED
}
