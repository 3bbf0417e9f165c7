// Copyright (c) 2026 Medica Movil
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pgstore implements the store contracts on postgres.
//
// Idempotence is enforced by the unique index on
// (room_id, sender_id, correlation_id) - a resend after an ambiguous failure
// hits the index, and SaveMessage returns the existing row with
// store.ErrDuplicateMessage.
//
// sent_at is assigned inside the INSERT : GREATEST(now(), last + 1 microsecond)
// per room, so it is strictly increasing per room regardless of client clocks
// or clock stalls on the database host.
package pgstore

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/store"
)

// Schema is the DDL for the chat tables
const Schema = `
CREATE TABLE IF NOT EXISTS chat_rooms (
	id         text PRIMARY KEY,
	patient_id text NOT NULL,
	doctor_id  text NOT NULL,
	active     boolean NOT NULL DEFAULT true,
	started_at timestamptz NOT NULL DEFAULT now(),
	ended_at   timestamptz
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id              uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	room_id         text NOT NULL REFERENCES chat_rooms (id),
	sender_id       text NOT NULL,
	correlation_id  text NOT NULL,
	content         text NOT NULL DEFAULT '',
	kind            smallint NOT NULL DEFAULT 0,
	attachment_url  text,
	attachment_name text,
	attachment_size bigint,
	read            boolean NOT NULL DEFAULT false,
	sender_class    smallint NOT NULL DEFAULT 0,
	sent_at         timestamptz NOT NULL,

	CONSTRAINT chat_messages_dedupe UNIQUE (room_id, sender_id, correlation_id)
);

CREATE INDEX IF NOT EXISTS chat_messages_room_sent_at ON chat_messages (room_id, sent_at);
`

// pgerrcode for unique_violation
const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// New creates the postgres backed stores sharing one connection pool
func New(pool *pgxpool.Pool) (*MessageStore, *RoomStore) {
	return &MessageStore{pool: pool}, &RoomStore{pool: pool}
}

// EnsureSchema creates the chat tables if they do not exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return &chat.PersistenceError{Err: err}
	}
	return nil
}

// MessageStore implements store.MessageStore on postgres
type MessageStore struct {
	pool *pgxpool.Pool
}

// SaveMessage implements store.MessageStore
func (a *MessageStore) SaveMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if err := msg.RoomID.Validate(); err != nil {
		return chat.Message{}, err
	}
	if err := msg.SenderID.Validate(); err != nil {
		return chat.Message{}, err
	}
	if err := msg.CorrelationID.Validate(); err != nil {
		return chat.Message{}, err
	}

	var attachmentURL, attachmentName *string
	var attachmentSize *int64
	if msg.Attachment != nil {
		attachmentURL = &msg.Attachment.URL
		attachmentName = &msg.Attachment.Name
		attachmentSize = &msg.Attachment.Size
	}

	builder := psql.Insert("chat_messages").
		Columns("room_id", "sender_id", "correlation_id", "content", "kind",
			"attachment_url", "attachment_name", "attachment_size", "read", "sender_class", "sent_at").
		Values(msg.RoomID, msg.SenderID, msg.CorrelationID, msg.Content, int16(msg.Kind),
			attachmentURL, attachmentName, attachmentSize, false, int16(msg.SenderClass),
			sq.Expr(`GREATEST(now(), (SELECT COALESCE(MAX(sent_at), 'epoch'::timestamptz) + interval '1 microsecond' FROM chat_messages WHERE room_id = ?))`, msg.RoomID)).
		Suffix("RETURNING id, sent_at")
	if msg.ID != "" {
		builder = psql.Insert("chat_messages").
			Columns("id", "room_id", "sender_id", "correlation_id", "content", "kind",
				"attachment_url", "attachment_name", "attachment_size", "read", "sender_class", "sent_at").
			Values(msg.ID, msg.RoomID, msg.SenderID, msg.CorrelationID, msg.Content, int16(msg.Kind),
				attachmentURL, attachmentName, attachmentSize, false, int16(msg.SenderClass),
				sq.Expr(`GREATEST(now(), (SELECT COALESCE(MAX(sent_at), 'epoch'::timestamptz) + interval '1 microsecond' FROM chat_messages WHERE room_id = ?))`, msg.RoomID)).
			Suffix("RETURNING id, sent_at")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return chat.Message{}, &chat.PersistenceError{Err: err}
	}

	var id string
	var sentAt time.Time
	if err := a.pool.QueryRow(ctx, query, args...).Scan(&id, &sentAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, ferr := a.message(ctx, msg.RoomID, msg.SenderID, msg.CorrelationID)
			if ferr != nil {
				return chat.Message{}, ferr
			}
			return existing, store.ErrDuplicateMessage
		}
		return chat.Message{}, &chat.PersistenceError{Err: err}
	}

	msg.ID = chat.MessageID(id)
	msg.SentAt = sentAt
	msg.Read = false
	msg.Pending = false
	return msg, nil
}

// Messages implements store.MessageStore
func (a *MessageStore) Messages(ctx context.Context, roomID chat.RoomID, offset, limit int) ([]chat.Message, error) {
	if err := roomID.Validate(); err != nil {
		return nil, err
	}

	builder := messageSelect().
		Where(sq.Eq{"room_id": roomID}).
		OrderBy("sent_at ASC")
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, &chat.PersistenceError{Err: err}
	}

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &chat.PersistenceError{Err: err}
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &chat.PersistenceError{Err: err}
	}
	return msgs, nil
}

// MarkMessagesAsRead implements store.MessageStore
func (a *MessageStore) MarkMessagesAsRead(ctx context.Context, roomID chat.RoomID, readerID chat.UserID) (int64, error) {
	if err := roomID.Validate(); err != nil {
		return 0, err
	}
	if err := readerID.Validate(); err != nil {
		return 0, err
	}

	query, args, err := psql.Update("chat_messages").
		Set("read", true).
		Where(sq.Eq{"room_id": roomID, "read": false}).
		Where(sq.NotEq{"sender_id": readerID}).
		ToSql()
	if err != nil {
		return 0, &chat.PersistenceError{Err: err}
	}

	tag, err := a.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, &chat.PersistenceError{Err: err}
	}
	return tag.RowsAffected(), nil
}

// UnreadCount implements store.MessageStore
func (a *MessageStore) UnreadCount(ctx context.Context, roomID chat.RoomID, userID chat.UserID) (int64, error) {
	if err := roomID.Validate(); err != nil {
		return 0, err
	}
	if err := userID.Validate(); err != nil {
		return 0, err
	}

	query, args, err := psql.Select("COUNT(*)").
		From("chat_messages").
		Where(sq.Eq{"room_id": roomID, "read": false}).
		Where(sq.NotEq{"sender_id": userID}).
		ToSql()
	if err != nil {
		return 0, &chat.PersistenceError{Err: err}
	}

	var count int64
	if err := a.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, &chat.PersistenceError{Err: err}
	}
	return count, nil
}

func (a *MessageStore) message(ctx context.Context, roomID chat.RoomID, senderID chat.UserID, correlationID chat.CorrelationID) (chat.Message, error) {
	query, args, err := messageSelect().
		Where(sq.Eq{"room_id": roomID, "sender_id": senderID, "correlation_id": correlationID}).
		ToSql()
	if err != nil {
		return chat.Message{}, &chat.PersistenceError{Err: err}
	}
	return scanMessage(a.pool.QueryRow(ctx, query, args...))
}

func messageSelect() sq.SelectBuilder {
	return psql.Select("id", "room_id", "sender_id", "correlation_id", "content", "kind",
		"attachment_url", "attachment_name", "attachment_size", "read", "sender_class", "sent_at").
		From("chat_messages")
}

func scanMessage(row pgx.Row) (chat.Message, error) {
	var msg chat.Message
	var kind, senderClass int16
	var attachmentURL, attachmentName *string
	var attachmentSize *int64
	err := row.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.CorrelationID, &msg.Content, &kind,
		&attachmentURL, &attachmentName, &attachmentSize, &msg.Read, &senderClass, &msg.SentAt)
	if err != nil {
		return chat.Message{}, &chat.PersistenceError{Err: err}
	}
	msg.Kind = chat.MessageKind(kind)
	msg.SenderClass = chat.SenderClass(senderClass)
	if attachmentURL != nil {
		attachment := &chat.Attachment{URL: *attachmentURL}
		if attachmentName != nil {
			attachment.Name = *attachmentName
		}
		if attachmentSize != nil {
			attachment.Size = *attachmentSize
		}
		msg.Attachment = attachment
	}
	return msg, nil
}

// RoomStore implements store.RoomStore on postgres
type RoomStore struct {
	pool *pgxpool.Pool
}

// Room implements store.RoomStore
func (a *RoomStore) Room(ctx context.Context, roomID chat.RoomID) (chat.Room, error) {
	if err := roomID.Validate(); err != nil {
		return chat.Room{}, err
	}

	query, args, err := psql.Select("id", "patient_id", "doctor_id", "active", "started_at", "ended_at").
		From("chat_rooms").
		Where(sq.Eq{"id": roomID}).
		ToSql()
	if err != nil {
		return chat.Room{}, &chat.PersistenceError{Err: err}
	}

	var room chat.Room
	err = a.pool.QueryRow(ctx, query, args...).
		Scan(&room.ID, &room.PatientID, &room.DoctorID, &room.Active, &room.StartedAt, &room.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.Room{}, store.ErrRoomNotFound
		}
		return chat.Room{}, &chat.PersistenceError{Err: err}
	}
	return room, nil
}

// SaveRoom implements store.RoomStore
func (a *RoomStore) SaveRoom(ctx context.Context, room chat.Room) error {
	if err := room.ID.Validate(); err != nil {
		return err
	}

	startedAt := room.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	query, args, err := psql.Insert("chat_rooms").
		Columns("id", "patient_id", "doctor_id", "active", "started_at", "ended_at").
		Values(room.ID, room.PatientID, room.DoctorID, room.Active, startedAt, room.EndedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			doctor_id = EXCLUDED.doctor_id,
			active = EXCLUDED.active,
			ended_at = EXCLUDED.ended_at`).
		ToSql()
	if err != nil {
		return &chat.PersistenceError{Err: err}
	}

	if _, err := a.pool.Exec(ctx, query, args...); err != nil {
		return &chat.PersistenceError{Err: err}
	}
	return nil
}

// SetActive implements store.RoomStore
func (a *RoomStore) SetActive(ctx context.Context, roomID chat.RoomID, active bool) (bool, error) {
	if err := roomID.Validate(); err != nil {
		return false, err
	}

	update := psql.Update("chat_rooms").
		Set("active", active).
		Where(sq.Eq{"id": roomID}).
		Where(sq.NotEq{"active": active})
	if active {
		update = update.Set("ended_at", nil)
	} else {
		update = update.Set("ended_at", sq.Expr("now()"))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return false, &chat.PersistenceError{Err: err}
	}

	tag, err := a.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, &chat.PersistenceError{Err: err}
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// distinguish "no change" from "no such room"
	if _, err := a.Room(ctx, roomID); err != nil {
		return false, err
	}
	return false, nil
}
