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

package attachments

import (
	"context"
	"errors"
	"io"
	"sync"
)

// NewMemBlobStore creates an empty in-memory BlobStore
func NewMemBlobStore() *MemBlobStore {
	return &MemBlobStore{blobs: map[string][]byte{}}
}

// MemBlobStore is an in-memory BlobStore for tests and embedded use.
// Safe for concurrent use.
type MemBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// Fail forces the next Put calls to fail
	failNext int
}

// FailNextPuts forces the next n Put calls to fail
func (a *MemBlobStore) FailNextPuts(n int) {
	a.mu.Lock()
	a.failNext = n
	a.mu.Unlock()
}

// Put implements BlobStore
func (a *MemBlobStore) Put(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	a.mu.Lock()
	if a.failNext > 0 {
		a.failNext--
		a.mu.Unlock()
		return "", errors.New("blob store unavailable")
	}
	a.mu.Unlock()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.blobs[key] = data
	a.mu.Unlock()
	return "mem://" + key, nil
}

// Blob returns the stored bytes - nil if the key is unknown
func (a *MemBlobStore) Blob(key string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.blobs[key]
	if !ok {
		return nil
	}
	return append([]byte(nil), data...)
}

// Len returns the number of stored blobs
func (a *MemBlobStore) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blobs)
}
