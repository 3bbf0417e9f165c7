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

// Room is a bounded conversation between a patient and a doctor tied to one
// appointment. The room row is the sole source of truth for whether the
// conversation is currently writable. Rooms are deactivated, never deleted,
// and may be reactivated.
type Room struct {
	ID        RoomID     `json:"id"`
	PatientID UserID     `json:"patient_id"`
	DoctorID  UserID     `json:"doctor_id"`
	Active    bool       `json:"active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Participant returns true if the user is one of the two clinical participants
func (a *Room) Participant(userID UserID) bool {
	return a.PatientID == userID || a.DoctorID == userID
}
