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

// Package chat defines the shared data model for the real-time clinical chat
// delivery subsystem : rooms, messages, connection status, ephemeral
// typing / presence state, the error taxonomy, and the configuration surface.
//
// A room is a bounded conversation between exactly two clinical participants
// (patient and doctor) tied to one appointment. Admins may observe.
//
// The subpackages build on this model :
//
//   - channel      : transport channel adapter contract + implementations
//   - connections  : per room connection lifecycle and reconnect backoff
//   - store        : persisted message store contract + implementations
//   - delivery     : message delivery service and offline queue
//   - presence     : typing / presence coordinator
//   - attachments  : file validation and blob storage
//   - session      : per room facade with an explicit create -> use -> destroy lifecycle
package chat
