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

// Package attachments validates and uploads chat file attachments.
//
// Validation is fatal : a file that is too large or of a disallowed content
// type is rejected before a single byte reaches the blob store. Storage
// failures are wrapped in chat.StorageError and are not retried here -
// retrying an upload is the caller's call.
package attachments

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nats-io/nuid"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
)

// File is an attachment candidate. Data is only read after validation passes.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.Reader
}

// BlobStore persists attachment bytes under a store assigned key and returns
// the public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (url string, err error)
}

// NewValidator creates a validator from the configured size limit and
// content type allow list.
func NewValidator(cfg chat.Config) *Validator {
	allowed := make([]string, 0, len(cfg.AllowedFileTypes))
	for _, t := range cfg.AllowedFileTypes {
		allowed = append(allowed, strings.ToLower(strings.TrimSpace(t)))
	}
	return &Validator{maxSize: cfg.MaxFileSize, allowed: allowed}
}

// Validator enforces the attachment policy : max size plus a content type
// allow list with exact entries and "prefix/*" wildcards.
type Validator struct {
	maxSize int64
	allowed []string
}

// Validate rejects files that are too large or of a disallowed content type.
// Zero byte files are fine, and the file name is opaque - the blob store
// assigns its own keys.
func (a *Validator) Validate(f File) error {
	if f.Size > a.maxSize {
		return &chat.FileTooLargeError{Name: f.Name, Size: f.Size, MaxSize: a.maxSize}
	}
	if !a.allowedType(f.ContentType) {
		return &chat.FileTypeNotAllowedError{Name: f.Name, ContentType: f.ContentType}
	}
	return nil
}

func (a *Validator) allowedType(contentType string) bool {
	// drop media type parameters, e.g. "text/plain; charset=utf-8"
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, allowed := range a.allowed {
		if allowed == ct {
			return true
		}
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok {
			if strings.HasPrefix(ct, prefix+"/") {
				return true
			}
		}
	}
	return false
}

// NewUploader creates an uploader that validates and then stores attachments
func NewUploader(cfg chat.Config, blobs BlobStore) *Uploader {
	return &Uploader{validator: NewValidator(cfg), blobs: blobs}
}

// Uploader validates a file and writes it to the blob store
type Uploader struct {
	validator *Validator
	blobs     BlobStore
}

// Upload validates the file and stores its bytes under a fresh key scoped to
// the room. Validation failures never touch the store.
func (a *Uploader) Upload(ctx context.Context, roomID chat.RoomID, f File) (chat.Attachment, error) {
	if err := roomID.Validate(); err != nil {
		return chat.Attachment{}, err
	}
	if err := a.validator.Validate(f); err != nil {
		return chat.Attachment{}, err
	}

	key := fmt.Sprintf("rooms/%s/%s", roomID, nuid.Next())
	url, err := a.blobs.Put(ctx, key, f.ContentType, f.Data)
	if err != nil {
		return chat.Attachment{}, &chat.StorageError{Err: err}
	}
	return chat.Attachment{URL: url, Name: f.Name, Size: f.Size}, nil
}
