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

package commons

import (
	"github.com/rs/zerolog/log"
)

// IgnorePanic simply calls recover()
// It is intended to be used in defer() functions to explicitly state the intent.
// If debug logging is enabled, then ignored panics are logged.
func IgnorePanic() {
	if p := recover(); p != nil {
		log.Debug().Msgf("IgnorePanic : %v", p)
	}
}

// CloseQuietly quietly closes the channel, i.e., it is safe to invoke on an already closed channel.
// A common use case for such a channel is a stop trigger.
func CloseQuietly(c chan struct{}) {
	defer IgnorePanic()
	close(c)
}
