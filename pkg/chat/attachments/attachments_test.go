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

package attachments_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/attachments"
)

func testConfig() chat.Config {
	cfg := chat.DefaultConfig()
	cfg.MaxFileSize = 1024
	cfg.AllowedFileTypes = []string{"image/*", "application/pdf", "text/plain"}
	return cfg
}

func TestValidateSize(t *testing.T) {
	v := attachments.NewValidator(testConfig())

	if err := v.Validate(attachments.File{Name: "scan.pdf", ContentType: "application/pdf", Size: 1024}); err != nil {
		t.Errorf("a file at the limit is fine : %v", err)
	}

	err := v.Validate(attachments.File{Name: "scan.pdf", ContentType: "application/pdf", Size: 1025})
	tooLarge := &chat.FileTooLargeError{}
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected FileTooLargeError : %v", err)
	}
	if tooLarge.Size != 1025 || tooLarge.MaxSize != 1024 {
		t.Errorf("the error must carry both sizes : %+v", tooLarge)
	}

	// zero byte files are accepted
	if err := v.Validate(attachments.File{Name: "empty", ContentType: "text/plain", Size: 0}); err != nil {
		t.Errorf("zero byte files are fine : %v", err)
	}
}

func TestValidateContentType(t *testing.T) {
	v := attachments.NewValidator(testConfig())

	cases := []struct {
		contentType string
		allowed     bool
	}{
		{"application/pdf", true},
		{"text/plain", true},
		{"text/plain; charset=utf-8", true},
		{"image/png", true},
		{"image/jpeg", true},
		{"IMAGE/PNG", true},
		{"application/x-msdownload", false},
		{"video/mp4", false},
		{"text/html", false},
		{"imagepng", false},
		{"", false},
	}
	for _, c := range cases {
		err := v.Validate(attachments.File{Name: "f", ContentType: c.contentType, Size: 1})
		if c.allowed && err != nil {
			t.Errorf("%q should be allowed : %v", c.contentType, err)
		}
		if !c.allowed {
			notAllowed := &chat.FileTypeNotAllowedError{}
			if !errors.As(err, &notAllowed) {
				t.Errorf("%q should be rejected : %v", c.contentType, err)
			}
		}
	}
}

func TestUpload(t *testing.T) {
	blobs := attachments.NewMemBlobStore()
	uploader := attachments.NewUploader(testConfig(), blobs)

	data := []byte("fake png bytes")
	attachment, err := uploader.Upload(context.Background(), "room-1", attachments.File{
		Name:        "x-ray.png",
		ContentType: "image/png",
		Size:        int64(len(data)),
		Data:        bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("Upload failed : %v", err)
	}
	if attachment.Name != "x-ray.png" || attachment.Size != int64(len(data)) {
		t.Errorf("unexpected attachment : %+v", attachment)
	}
	if !strings.HasPrefix(attachment.URL, "mem://rooms/room-1/") {
		t.Errorf("keys are scoped to the room : %v", attachment.URL)
	}

	key := strings.TrimPrefix(attachment.URL, "mem://")
	if !bytes.Equal(blobs.Blob(key), data) {
		t.Error("stored bytes do not match")
	}
}

func TestUploadRejectedBeforeStorage(t *testing.T) {
	blobs := attachments.NewMemBlobStore()
	uploader := attachments.NewUploader(testConfig(), blobs)

	_, err := uploader.Upload(context.Background(), "room-1", attachments.File{
		Name:        "malware.exe",
		ContentType: "application/x-msdownload",
		Size:        10,
		Data:        bytes.NewReader([]byte("0123456789")),
	})
	notAllowed := &chat.FileTypeNotAllowedError{}
	if !errors.As(err, &notAllowed) {
		t.Fatalf("expected FileTypeNotAllowedError : %v", err)
	}
	if blobs.Len() != 0 {
		t.Error("a rejected file must never reach the blob store")
	}
}

func TestUploadStorageError(t *testing.T) {
	blobs := attachments.NewMemBlobStore()
	blobs.FailNextPuts(1)
	uploader := attachments.NewUploader(testConfig(), blobs)

	_, err := uploader.Upload(context.Background(), "room-1", attachments.File{
		Name:        "scan.pdf",
		ContentType: "application/pdf",
		Size:        1,
		Data:        bytes.NewReader([]byte("x")),
	})
	storageErr := &chat.StorageError{}
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError : %v", err)
	}
}

func TestUploadBlankRoom(t *testing.T) {
	uploader := attachments.NewUploader(testConfig(), attachments.NewMemBlobStore())
	_, err := uploader.Upload(context.Background(), "", attachments.File{ContentType: "text/plain"})
	if err != chat.ErrRoomIDMustNotBeBlank {
		t.Errorf("expected ErrRoomIDMustNotBeBlank : %v", err)
	}
}
