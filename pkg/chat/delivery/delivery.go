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

// Package delivery implements the message delivery service and its offline
// queue.
//
// Send never loses a message silently : while the room is not connected the
// message is buffered in a strict per room FIFO queue and an optimistic
// local echo is returned; when the connection comes back the queue is
// flushed in order. A queue entry that exhausts its retry budget lands in an
// explicit failed list with a Resend affordance.
//
// Display order is SentAt order, never arrival order - incoming messages are
// placed by binary insertion, and duplicates (by message id or by sender +
// correlation id) are dropped.
package delivery

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/connections"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/store"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// log events
const (
	EVENT_PERSIST_RETRY    = "persist_retry"
	EVENT_DELIVERY_FAILED  = "delivery_failed"
	EVENT_PUBLISH_FAILED   = "publish_failed"
	EVENT_MARK_READ_FAILED = "mark_read_failed"
	EVENT_QUEUE_DRAINED    = "queue_drained"
	EVENT_LISTENER_PANIC   = "listener_panic"
)

// SendRequest describes an outgoing message
type SendRequest struct {
	RoomID      chat.RoomID
	SenderID    chat.UserID
	SenderClass chat.SenderClass
	// CorrelationID is the client assigned idempotency key - assigned here
	// when blank. Resending with the same correlation id is always safe.
	CorrelationID chat.CorrelationID
	Content       string
	Kind          chat.MessageKind
	Attachment    *chat.Attachment
}

// Dependencies are the collaborators the delivery service is built from
type Dependencies struct {
	Messages    store.MessageStore
	Rooms       store.RoomStore
	Connections *connections.Manager
}

// New creates the delivery service. It subscribes to the connection manager
// and flushes a room's offline queue every time the room reconnects.
func New(cfg chat.Config, deps Dependencies) *Service {
	a := &Service{
		cfg:      cfg,
		messages: deps.Messages,
		rooms:    deps.Rooms,
		conns:    deps.Connections,
		state:    map[chat.RoomID]*roomState{},
	}
	a.conns.Subscribe(func(info chat.ConnectionInfo, err error) {
		if info.Status.Connected() {
			go a.Flush(info.RoomID)
		}
	})
	return a
}

// Service is the message delivery service. Safe for concurrent use - state
// is serialized per room.
type Service struct {
	cfg      chat.Config
	messages store.MessageStore
	rooms    store.RoomStore
	conns    *connections.Manager

	mu        sync.Mutex
	state     map[chat.RoomID]*roomState
	listeners []Listener
	destroyed bool
}

type corrKey struct {
	sender chat.UserID
	corr   chat.CorrelationID
}

// roomState holds one room's display list, offline queue, and failed list
type roomState struct {
	mu sync.Mutex

	// confirmed rows ordered by SentAt ascending
	persisted []chat.Message
	// optimistic local echoes in arrival order - displayed after persisted
	pending []chat.Message

	seenIDs  map[chat.MessageID]struct{}
	seenCorr map[corrKey]struct{}

	queue  []*chat.QueuedMessage
	failed []chat.QueuedMessage

	retryTimer *time.Timer
	flushing   bool
}

func (a *Service) room(roomID chat.RoomID) *roomState {
	a.mu.Lock()
	defer a.mu.Unlock()
	rs, ok := a.state[roomID]
	if !ok {
		rs = &roomState{
			seenIDs:  map[chat.MessageID]struct{}{},
			seenCorr: map[corrKey]struct{}{},
		}
		a.state[roomID] = rs
	}
	return rs
}

func (a *Service) isDestroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

// Send delivers the message.
//
// Connected rooms persist synchronously with a bounded retry budget - a
// duplicate (same room, sender, correlation id) is success, returning the
// previously stored row. Rooms that are not connected buffer the message in
// the offline queue and return a Pending local echo immediately.
//
// The connection status is snapshotted once at entry - a connection change
// mid-send does not reroute the message.
func (a *Service) Send(ctx context.Context, req SendRequest) (chat.Message, error) {
	if a.isDestroyed() {
		return chat.Message{}, chat.ErrSessionDestroyed
	}
	if err := req.RoomID.Validate(); err != nil {
		return chat.Message{}, err
	}
	if err := req.SenderID.Validate(); err != nil {
		return chat.Message{}, err
	}
	if req.Kind == chat.TEXT && strings.TrimSpace(req.Content) == "" {
		return chat.Message{}, &chat.EmptyMessageError{RoomID: req.RoomID}
	}
	if req.CorrelationID == "" {
		req.CorrelationID = chat.CorrelationID(uuid.NewString())
	}

	room, err := a.rooms.Room(ctx, req.RoomID)
	if err != nil {
		return chat.Message{}, err
	}
	// system notices may be written into a closed room - users may not
	if req.SenderClass == chat.USER {
		if !room.Participant(req.SenderID) {
			return chat.Message{}, &chat.AccessDeniedError{RoomID: req.RoomID, UserID: req.SenderID}
		}
		if !room.Active {
			return chat.Message{}, &chat.RoomClosedError{RoomID: req.RoomID}
		}
	}

	sendRequestsCounter.Inc()

	// status snapshot - taken exactly once
	if !a.conns.Status(req.RoomID).Connected() {
		return a.enqueue(req), nil
	}

	saved, err := a.persistWithRetry(ctx, req)
	if err != nil {
		a.recordFailed(req, err)
		return chat.Message{}, err
	}
	a.acceptPersisted(saved)
	a.publish(saved)
	return saved, nil
}

// persistWithRetry saves the message, retrying persistence errors up to the
// configured budget. A duplicate is success.
func (a *Service) persistWithRetry(ctx context.Context, req SendRequest) (chat.Message, error) {
	msg := chat.Message{
		RoomID:        req.RoomID,
		SenderID:      req.SenderID,
		CorrelationID: req.CorrelationID,
		Content:       req.Content,
		Kind:          req.Kind,
		Attachment:    req.Attachment,
		SenderClass:   req.SenderClass,
	}

	var lastErr error
	for attempt := 1; attempt <= a.cfg.MessageRetryAttempts; attempt++ {
		saved, err := a.messages.SaveMessage(ctx, msg)
		if err == nil {
			messagesCounter.WithLabelValues(OUTCOME_PERSISTED).Inc()
			return saved, nil
		}
		if err == store.ErrDuplicateMessage {
			messagesCounter.WithLabelValues(OUTCOME_DEDUPED).Inc()
			return saved, nil
		}
		lastErr = err
		logger.Warn().Str(logging.EVENT, EVENT_PERSIST_RETRY).
			Str(logging.ROOM, req.RoomID.String()).
			Str(logging.CORR_ID, string(req.CorrelationID)).
			Int(logging.ATTEMPT, attempt).
			Err(err).
			Msg("")
		if attempt == a.cfg.MessageRetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return chat.Message{}, ctx.Err()
		case <-time.After(a.cfg.MessageRetryDelay):
		}
	}

	messagesCounter.WithLabelValues(OUTCOME_FAILED).Inc()
	err := &chat.DeliveryFailedError{
		RoomID:        req.RoomID,
		CorrelationID: req.CorrelationID,
		Attempts:      a.cfg.MessageRetryAttempts,
		Err:           lastErr,
	}
	logger.Error().Str(logging.EVENT, EVENT_DELIVERY_FAILED).
		Str(logging.ROOM, req.RoomID.String()).
		Str(logging.CORR_ID, string(req.CorrelationID)).
		Err(err).
		Msg("")
	return chat.Message{}, err
}

// recordFailed lands the request in the room's failed list and notifies listeners
func (a *Service) recordFailed(req SendRequest, err error) {
	entry := chat.QueuedMessage{
		CorrelationID: req.CorrelationID,
		RoomID:        req.RoomID,
		SenderID:      req.SenderID,
		SenderClass:   req.SenderClass,
		Content:       req.Content,
		Kind:          req.Kind,
		Attachment:    req.Attachment,
		Attempts:      a.cfg.MessageRetryAttempts,
		EnqueuedAt:    time.Now(),
	}
	rs := a.room(req.RoomID)
	rs.mu.Lock()
	rs.failed = append(rs.failed, entry)
	rs.mu.Unlock()

	a.notify(Event{Kind: MESSAGE_FAILED, RoomID: req.RoomID, Queued: &entry, Err: err})
}

// publish broadcasts the persisted row to room subscribers - best effort,
// the row is already durable
func (a *Service) publish(msg chat.Message) {
	ch := a.conns.Channel(msg.RoomID)
	if ch == nil {
		return
	}
	if err := ch.PublishMessage(msg); err != nil {
		logger.Warn().Str(logging.EVENT, EVENT_PUBLISH_FAILED).
			Str(logging.ROOM, msg.RoomID.String()).
			Str(logging.MSG_ID, string(msg.ID)).
			Err(err).
			Msg("")
	}
}

// Accept ingests an incoming persisted message from the transport.
// Duplicates by message id or by (sender, correlation id) are dropped - the
// sender's own broadcast echo dedupes against the row inserted at Send time,
// and a persisted row replaces its optimistic local echo.
func (a *Service) Accept(msg chat.Message) {
	if a.isDestroyed() {
		return
	}
	if !msg.Persisted() {
		return
	}
	a.acceptPersisted(msg)
}

func (a *Service) acceptPersisted(msg chat.Message) {
	rs := a.room(msg.RoomID)
	rs.mu.Lock()
	inserted := rs.insert(msg)
	rs.mu.Unlock()

	if !inserted {
		messagesCounter.WithLabelValues(OUTCOME_DEDUPED).Inc()
		return
	}
	a.notify(Event{Kind: MESSAGE_RECEIVED, RoomID: msg.RoomID, Message: msg})
}

// insert places the message by SentAt and drops the matching optimistic
// echo. Returns false for duplicates. Caller holds rs.mu.
func (a *roomState) insert(msg chat.Message) bool {
	if _, ok := a.seenIDs[msg.ID]; ok {
		return false
	}
	key := corrKey{sender: msg.SenderID, corr: msg.CorrelationID}
	if _, ok := a.seenCorr[key]; ok {
		return false
	}

	// replace the optimistic echo
	for i := range a.pending {
		if a.pending[i].SenderID == msg.SenderID && a.pending[i].CorrelationID == msg.CorrelationID {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			break
		}
	}

	i := sort.Search(len(a.persisted), func(i int) bool {
		return a.persisted[i].SentAt.After(msg.SentAt)
	})
	a.persisted = append(a.persisted, chat.Message{})
	copy(a.persisted[i+1:], a.persisted[i:])
	a.persisted[i] = msg

	a.seenIDs[msg.ID] = struct{}{}
	a.seenCorr[key] = struct{}{}
	return true
}

// LoadHistory replays the room's persisted rows into the display list.
// Dedupe makes the replay safe against rows that already arrived over the
// transport. Returns the display list after the replay.
func (a *Service) LoadHistory(ctx context.Context, roomID chat.RoomID) ([]chat.Message, error) {
	if a.isDestroyed() {
		return nil, chat.ErrSessionDestroyed
	}
	if err := roomID.Validate(); err != nil {
		return nil, err
	}
	msgs, err := a.messages.Messages(ctx, roomID, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		a.acceptPersisted(msg)
	}
	return a.Messages(roomID), nil
}

// History returns a page of the room's persisted messages straight from the
// store, ordered by SentAt ascending. A limit <= 0 returns everything from
// offset onward. Unlike LoadHistory it does not touch the display list.
func (a *Service) History(ctx context.Context, roomID chat.RoomID, offset, limit int) ([]chat.Message, error) {
	if a.isDestroyed() {
		return nil, chat.ErrSessionDestroyed
	}
	if err := roomID.Validate(); err != nil {
		return nil, err
	}
	return a.messages.Messages(ctx, roomID, offset, limit)
}

// Messages returns the room's display list : persisted rows in SentAt order
// followed by unconfirmed optimistic echoes in send order.
func (a *Service) Messages(roomID chat.RoomID) []chat.Message {
	rs := a.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	msgs := make([]chat.Message, 0, len(rs.persisted)+len(rs.pending))
	msgs = append(msgs, rs.persisted...)
	msgs = append(msgs, rs.pending...)
	return msgs
}

// MarkMessagesAsRead marks the room's peer messages read, both in the store
// and in the local display list. Best effort - the error is logged and
// returned, and never affects delivery.
func (a *Service) MarkMessagesAsRead(ctx context.Context, roomID chat.RoomID, readerID chat.UserID) (int64, error) {
	if a.isDestroyed() {
		return 0, chat.ErrSessionDestroyed
	}
	updated, err := a.messages.MarkMessagesAsRead(ctx, roomID, readerID)
	if err != nil {
		logger.Warn().Str(logging.EVENT, EVENT_MARK_READ_FAILED).
			Str(logging.ROOM, roomID.String()).
			Str(logging.USER, readerID.String()).
			Err(err).
			Msg("")
		return 0, err
	}

	rs := a.room(roomID)
	rs.mu.Lock()
	for i := range rs.persisted {
		if rs.persisted[i].SenderID != readerID {
			rs.persisted[i].Read = true
		}
	}
	rs.mu.Unlock()
	return updated, nil
}

// UnreadCount counts the room's peer messages the user has not read
func (a *Service) UnreadCount(ctx context.Context, roomID chat.RoomID, userID chat.UserID) (int64, error) {
	if a.isDestroyed() {
		return 0, chat.ErrSessionDestroyed
	}
	return a.messages.UnreadCount(ctx, roomID, userID)
}

// Destroy stops queue retry timers and rejects further work. Idempotent.
func (a *Service) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	states := make([]*roomState, 0, len(a.state))
	for _, rs := range a.state {
		states = append(states, rs)
	}
	a.mu.Unlock()

	for _, rs := range states {
		rs.mu.Lock()
		if rs.retryTimer != nil {
			rs.retryTimer.Stop()
			rs.retryTimer = nil
		}
		rs.mu.Unlock()
	}
}
