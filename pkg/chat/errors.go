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

package chat

import (
	"errors"
	"fmt"
)

// sentinel validation errors
var (
	ErrRoomIDMustNotBeBlank        = errors.New("room id must not be blank")
	ErrUserIDMustNotBeBlank        = errors.New("user id must not be blank")
	ErrCorrelationIDMustNotBeBlank = errors.New("correlation id must not be blank")

	// ErrSessionDestroyed is returned for any operation invoked after destroy()
	ErrSessionDestroyed = errors.New("chat session has been destroyed")
)

// InvalidStateTransition indicates an invalid connection status transition was attempted.
// These are bugs in the connection manager - they are never expected at runtime.
type InvalidStateTransition struct {
	From ConnectionStatus
	To   ConnectionStatus
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("InvalidStateTransition: %v -> %v", e.From, e.To)
}

// NetworkError wraps a transport level failure. Network errors are retried
// under the reconnect backoff policy.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error : %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PersistenceError wraps a message store failure. Persistence errors are
// retried a bounded number of times before being surfaced.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error : %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StorageError wraps a blob store failure. It is not retried automatically -
// retrying is at the caller's discretion.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error : %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AccessDeniedError is surfaced when the upstream row level policy rejects an
// operation. Fatal - never retried. The core does not re-implement
// authorization.
type AccessDeniedError struct {
	RoomID RoomID
	UserID UserID
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied : room %v, user %v", e.RoomID, e.UserID)
}

// RoomClosedError indicates a send into a room whose Active flag is false.
// Fatal - never retried.
type RoomClosedError struct {
	RoomID RoomID
}

func (e *RoomClosedError) Error() string {
	return fmt.Sprintf("room is closed : %v", e.RoomID)
}

// EmptyMessageError indicates a TEXT message with empty content.
// Content may be empty only for pure attachment messages.
type EmptyMessageError struct {
	RoomID RoomID
}

func (e *EmptyMessageError) Error() string {
	return fmt.Sprintf("text message content must not be empty : room %v", e.RoomID)
}

// FileTooLargeError indicates the file exceeds the configured max size.
// Fatal validation error - the file is never sent to storage.
type FileTooLargeError struct {
	Name    string
	Size    int64
	MaxSize int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large : %q is %d bytes, max is %d bytes", e.Name, e.Size, e.MaxSize)
}

// FileTypeNotAllowedError indicates the file content type is outside the
// configured allow list. Fatal validation error - never sent to storage.
type FileTypeNotAllowedError struct {
	Name        string
	ContentType string
}

func (e *FileTypeNotAllowedError) Error() string {
	return fmt.Sprintf("file type not allowed : %q (%s)", e.Name, e.ContentType)
}

// DeliveryFailedError is surfaced after a message exhausts its retry budget.
// The message is left in an explicit failed state with a retry affordance -
// silent loss is never acceptable.
type DeliveryFailedError struct {
	RoomID        RoomID
	CorrelationID CorrelationID
	Attempts      int
	Err           error
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("delivery failed : room %v, correlation id %v, attempts %d : %v", e.RoomID, e.CorrelationID, e.Attempts, e.Err)
}

func (e *DeliveryFailedError) Unwrap() error { return e.Err }

// ReconnectExhaustedError is reported upward after the reconnect budget is
// exhausted and the room is left Disconnected. This is a deliberate bound
// against runaway reconnect storms.
type ReconnectExhaustedError struct {
	RoomID   RoomID
	Attempts int
	Err      error
}

func (e *ReconnectExhaustedError) Error() string {
	return fmt.Sprintf("reconnect attempts exhausted : room %v, attempts %d : %v", e.RoomID, e.Attempts, e.Err)
}

func (e *ReconnectExhaustedError) Unwrap() error { return e.Err }
