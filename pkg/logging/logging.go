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

package logging

import (
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// standard logger fields
const (
	PACKAGE = "pkg"
	EVENT   = "event"
	ROOM    = "room"
	USER    = "user"
	STATE   = "state"
	TOPIC   = "topic"
	MSG_ID  = "msg_id"
	CORR_ID = "corr_id"
	ATTEMPT = "attempt"
)

// NewPackageLogger returns a new logger with pkg={pkg}
// where {pkg} is o's package path
// o must be a struct - the pattern is to use an empty struct defined in the target package
func NewPackageLogger(o interface{}) zerolog.Logger {
	t := reflect.TypeOf(o)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic("NewPackageLogger can only be created for a struct")
	}
	return log.With().Str(PACKAGE, t.PkgPath()).Logger()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
