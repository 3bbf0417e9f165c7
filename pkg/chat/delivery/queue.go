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

package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/store"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

// ErrUnknownFailedMessage is returned by Resend when no failed entry matches
// the correlation id.
var ErrUnknownFailedMessage = errors.New("no failed message with that correlation id")

// enqueue buffers the request in the room's offline queue and returns the
// optimistic local echo
func (a *Service) enqueue(req SendRequest) chat.Message {
	entry := &chat.QueuedMessage{
		CorrelationID: req.CorrelationID,
		RoomID:        req.RoomID,
		SenderID:      req.SenderID,
		SenderClass:   req.SenderClass,
		Content:       req.Content,
		Kind:          req.Kind,
		Attachment:    req.Attachment,
		EnqueuedAt:    time.Now(),
	}
	echo := chat.Message{
		RoomID:        req.RoomID,
		SenderID:      req.SenderID,
		CorrelationID: req.CorrelationID,
		Content:       req.Content,
		Kind:          req.Kind,
		Attachment:    req.Attachment,
		SenderClass:   req.SenderClass,
		Pending:       true,
	}

	rs := a.room(req.RoomID)
	rs.mu.Lock()
	rs.queue = append(rs.queue, entry)
	rs.pending = append(rs.pending, echo)
	rs.mu.Unlock()

	queueDepthGauge.Inc()
	return echo
}

// QueuedCount returns the room's offline queue depth
func (a *Service) QueuedCount(roomID chat.RoomID) int {
	rs := a.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.queue)
}

// Failed returns the room's failed messages - entries that exhausted their
// delivery budget and are waiting for an explicit Resend.
func (a *Service) Failed(roomID chat.RoomID) []chat.QueuedMessage {
	rs := a.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]chat.QueuedMessage(nil), rs.failed...)
}

// Resend puts the failed message back on the offline queue with a fresh
// retry budget. If the room is connected the queue is flushed immediately.
func (a *Service) Resend(roomID chat.RoomID, correlationID chat.CorrelationID) error {
	if a.isDestroyed() {
		return chat.ErrSessionDestroyed
	}
	rs := a.room(roomID)
	rs.mu.Lock()
	found := -1
	for i := range rs.failed {
		if rs.failed[i].CorrelationID == correlationID {
			found = i
			break
		}
	}
	if found < 0 {
		rs.mu.Unlock()
		return ErrUnknownFailedMessage
	}
	entry := rs.failed[found]
	rs.failed = append(rs.failed[:found], rs.failed[found+1:]...)
	entry.Attempts = 0
	rs.queue = append(rs.queue, &entry)
	rs.pending = append(rs.pending, chat.Message{
		RoomID:        entry.RoomID,
		SenderID:      entry.SenderID,
		CorrelationID: entry.CorrelationID,
		Content:       entry.Content,
		Kind:          entry.Kind,
		Attachment:    entry.Attachment,
		SenderClass:   entry.SenderClass,
		Pending:       true,
	})
	rs.mu.Unlock()

	queueDepthGauge.Inc()
	if a.conns.Status(roomID).Connected() {
		go a.Flush(roomID)
	}
	return nil
}

// Flush drains the room's offline queue in FIFO order.
//
// A persistence failure halts the flush without skipping the entry - the
// whole remaining queue is retried after MessageRetryDelay. An entry that
// exhausts its budget moves to the failed list and the flush continues with
// the next entry. A duplicate is success.
//
// Flush is a no-op while another flush for the room is running, and stops as
// soon as the room is no longer connected.
func (a *Service) Flush(roomID chat.RoomID) {
	rs := a.room(roomID)
	rs.mu.Lock()
	if rs.flushing {
		rs.mu.Unlock()
		return
	}
	rs.flushing = true
	if rs.retryTimer != nil {
		rs.retryTimer.Stop()
		rs.retryTimer = nil
	}
	rs.mu.Unlock()

	ctx := context.Background()
	flushed := false
	for {
		if a.isDestroyed() || !a.conns.Status(roomID).Connected() {
			rs.setFlushing(false)
			return
		}

		rs.mu.Lock()
		if len(rs.queue) == 0 {
			rs.mu.Unlock()
			break
		}
		entry := rs.queue[0]
		rs.mu.Unlock()

		saved, err := a.persistOnce(ctx, entry)
		if err == nil {
			rs.mu.Lock()
			rs.queue = rs.queue[1:]
			rs.mu.Unlock()
			queueDepthGauge.Dec()

			a.acceptPersisted(saved)
			a.publish(saved)
			flushed = true
			continue
		}

		rs.mu.Lock()
		entry.Attempts++
		if entry.Attempts >= a.cfg.MessageRetryAttempts {
			// budget exhausted - surface it and keep the queue moving
			rs.queue = rs.queue[1:]
			failed := *entry
			rs.failed = append(rs.failed, failed)
			rs.dropPendingEcho(entry.SenderID, entry.CorrelationID)
			rs.mu.Unlock()

			queueDepthGauge.Dec()
			messagesCounter.WithLabelValues(OUTCOME_FAILED).Inc()
			a.notify(Event{
				Kind:   MESSAGE_FAILED,
				RoomID: roomID,
				Queued: &failed,
				Err: &chat.DeliveryFailedError{
					RoomID:        roomID,
					CorrelationID: entry.CorrelationID,
					Attempts:      entry.Attempts,
					Err:           err,
				},
			})
			continue
		}

		// halt - retry the whole remaining queue later, in order.
		// flushing is cleared here so the scheduled flush is never
		// turned away by its own guard.
		rs.flushing = false
		rs.retryTimer = time.AfterFunc(a.cfg.MessageRetryDelay, func() {
			a.Flush(roomID)
		})
		rs.mu.Unlock()
		return
	}

	rs.setFlushing(false)
	if flushed {
		logger.Info().Str(logging.EVENT, EVENT_QUEUE_DRAINED).
			Str(logging.ROOM, roomID.String()).
			Msg("")
		a.notify(Event{Kind: QUEUE_DRAINED, RoomID: roomID})
	}
}

func (a *roomState) setFlushing(flushing bool) {
	a.mu.Lock()
	a.flushing = flushing
	a.mu.Unlock()
}

// persistOnce is a single persistence attempt for a queued entry - the retry
// schedule is owned by Flush. A duplicate is success.
func (a *Service) persistOnce(ctx context.Context, entry *chat.QueuedMessage) (chat.Message, error) {
	saved, err := a.messages.SaveMessage(ctx, chat.Message{
		RoomID:        entry.RoomID,
		SenderID:      entry.SenderID,
		CorrelationID: entry.CorrelationID,
		Content:       entry.Content,
		Kind:          entry.Kind,
		Attachment:    entry.Attachment,
		SenderClass:   entry.SenderClass,
	})
	if err == nil {
		messagesCounter.WithLabelValues(OUTCOME_PERSISTED).Inc()
		return saved, nil
	}
	if err == store.ErrDuplicateMessage {
		messagesCounter.WithLabelValues(OUTCOME_DEDUPED).Inc()
		return saved, nil
	}
	return chat.Message{}, err
}

// dropPendingEcho removes the optimistic echo for a failed entry.
// Caller holds rs.mu.
func (a *roomState) dropPendingEcho(senderID chat.UserID, correlationID chat.CorrelationID) {
	for i := range a.pending {
		if a.pending[i].SenderID == senderID && a.pending[i].CorrelationID == correlationID {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			return
		}
	}
}
