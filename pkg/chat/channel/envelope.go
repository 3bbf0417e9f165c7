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

package channel

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// channel errors
var (
	ErrTopicMustNotBeBlank = errors.New("topic must not be blank")
	ErrChannelIsClosed     = errors.New("channel is closed")
	ErrRoomAlreadyOpen     = errors.New("a channel is already open for the room")
)

// EncodeMessage encodes a persisted message for the wire
func EncodeMessage(msg chat.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage decodes a persisted message from the wire
func DecodeMessage(data []byte) (msg chat.Message, err error) {
	err = json.Unmarshal(data, &msg)
	return
}

// EncodeSignal encodes an ephemeral signal for the wire
func EncodeSignal(sig Signal) ([]byte, error) {
	return json.Marshal(sig)
}

// DecodeSignal decodes an ephemeral signal from the wire
func DecodeSignal(data []byte) (sig Signal, err error) {
	err = json.Unmarshal(data, &sig)
	return
}
