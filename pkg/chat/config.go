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
	"time"
)

// configuration defaults
const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 500 * time.Millisecond
	DefaultReconnectMaxDelay    = 10 * time.Second

	DefaultMessageRetryAttempts = 3
	DefaultMessageRetryDelay    = 250 * time.Millisecond

	DefaultTypingTimeout = 3 * time.Second

	DefaultMaxFileSize = int64(10 << 20) // 10 MiB
)

// DefaultAllowedFileTypes is the default attachment content type allow list.
// Entries are exact matches or wildcard prefixes, e.g. "image/*".
var DefaultAllowedFileTypes = []string{
	"image/*",
	"audio/*",
	"video/mp4",
	"application/pdf",
	"text/plain",
}

// Config is the configuration surface of the chat delivery subsystem.
// Use DefaultConfig() and override what you need - a zero Config is not valid.
type Config struct {
	// connection manager
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`

	// message delivery
	MessageRetryAttempts int           `yaml:"message_retry_attempts"`
	MessageRetryDelay    time.Duration `yaml:"message_retry_delay"`

	// presence / typing
	TypingTimeout time.Duration `yaml:"typing_timeout"`

	// attachments
	MaxFileSize      int64    `yaml:"max_file_size"`
	AllowedFileTypes []string `yaml:"allowed_file_types"`
}

// DefaultConfig returns a Config populated with the defaults above
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectBaseDelay:   DefaultReconnectBaseDelay,
		ReconnectMaxDelay:    DefaultReconnectMaxDelay,
		MessageRetryAttempts: DefaultMessageRetryAttempts,
		MessageRetryDelay:    DefaultMessageRetryDelay,
		TypingTimeout:        DefaultTypingTimeout,
		MaxFileSize:          DefaultMaxFileSize,
		AllowedFileTypes:     DefaultAllowedFileTypes,
	}
}

// ReconnectDelay computes the backoff delay for the given attempt (1 based) :
// base doubled per attempt, capped at ReconnectMaxDelay.
func (a *Config) ReconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := a.ReconnectBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= a.ReconnectMaxDelay {
			return a.ReconnectMaxDelay
		}
	}
	if delay > a.ReconnectMaxDelay {
		return a.ReconnectMaxDelay
	}
	return delay
}
