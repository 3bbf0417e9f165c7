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

package presence_test

import (
	"testing"
	"time"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel/channeltest"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/connections"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/presence"
)

const room = chat.RoomID("room-1")

func testConfig() chat.Config {
	cfg := chat.DefaultConfig()
	cfg.ReconnectBaseDelay = time.Millisecond
	cfg.ReconnectMaxDelay = 5 * time.Millisecond
	cfg.TypingTimeout = 40 * time.Millisecond
	return cfg
}

type fixture struct {
	bus    *channeltest.Bus
	conns  *connections.Manager
	coord  *presence.Coordinator
	events chan presence.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bus:    channeltest.NewBus(),
		events: make(chan presence.Event, 64),
	}
	f.conns = connections.NewManager(testConfig(), f.bus.NewProvider())
	t.Cleanup(f.conns.Destroy)

	f.coord = presence.NewCoordinator(testConfig(), f.conns)
	t.Cleanup(f.coord.Destroy)
	f.coord.Subscribe(func(e presence.Event) { f.events <- e })

	connected := make(chan struct{}, 1)
	f.conns.Subscribe(func(info chat.ConnectionInfo, err error) {
		if info.Status.Connected() {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	if err := f.conns.Connect(room, channel.Events{OnSignal: f.coord.HandleSignal}); err != nil {
		t.Fatalf("Connect failed : %v", err)
	}
	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Connected")
	}
	return f
}

// waitTyping waits for a TYPING_CHANGED event carrying exactly the given user
// count
func (a *fixture) waitTyping(t *testing.T, count int) presence.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-a.events:
			if e.Kind == presence.TYPING_CHANGED && len(e.Typing) == count {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for typing count %d", count)
		}
	}
}

func (a *fixture) waitPresence(t *testing.T, count int) presence.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-a.events:
			if e.Kind == presence.PRESENCE_CHANGED && len(e.Online) == count {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for presence count %d", count)
		}
	}
}

func TestTypingRoundTrip(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.StartTyping(room, "patient", "Ana"); err != nil {
		t.Fatalf("StartTyping failed : %v", err)
	}
	e := f.waitTyping(t, 1)
	if e.Typing[0].UserID != "patient" || e.Typing[0].UserName != "Ana" {
		t.Errorf("unexpected typing entry : %+v", e.Typing[0])
	}

	users := f.coord.TypingUsers(room)
	if len(users) != 1 || !users[0].Typing {
		t.Errorf("unexpected typing snapshot : %+v", users)
	}

	if err := f.coord.StopTyping(room, "patient", "Ana"); err != nil {
		t.Fatalf("StopTyping failed : %v", err)
	}
	f.waitTyping(t, 0)

	if users := f.coord.TypingUsers(room); len(users) != 0 {
		t.Errorf("expected nobody typing : %+v", users)
	}
}

func TestTypingAutoStops(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.StartTyping(room, "patient", "Ana"); err != nil {
		t.Fatalf("StartTyping failed : %v", err)
	}
	f.waitTyping(t, 1)

	// no StopTyping call - the auto-stop lease expires on its own
	f.waitTyping(t, 0)
}

func TestTypingPrunedWhenPeerVanishes(t *testing.T) {
	f := newFixture(t)

	// a remote peer starts typing and then disappears without a stop signal
	f.bus.InjectSignal(room, channel.TypingSignal(room, "doctor", "Dr. Gomez", true))
	f.waitTyping(t, 1)

	// the janitor expires the lease
	f.waitTyping(t, 0)
}

func TestTypingValidation(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.StartTyping("", "patient", "Ana"); err != chat.ErrRoomIDMustNotBeBlank {
		t.Errorf("expected ErrRoomIDMustNotBeBlank : %v", err)
	}
	if err := f.coord.StartTyping(room, "", "Ana"); err != chat.ErrUserIDMustNotBeBlank {
		t.Errorf("expected ErrUserIDMustNotBeBlank : %v", err)
	}
}

func TestPresenceJoinLeave(t *testing.T) {
	f := newFixture(t)

	f.bus.InjectSignal(room, channel.JoinSignal(room, "patient", "Ana"))
	f.waitPresence(t, 1)
	f.bus.InjectSignal(room, channel.JoinSignal(room, "doctor", "Dr. Gomez"))
	f.waitPresence(t, 2)

	if count := f.coord.TotalOnlineUsers(room); count != 2 {
		t.Errorf("expected 2 online : %d", count)
	}

	// a repeated join is not a change
	f.bus.InjectSignal(room, channel.JoinSignal(room, "patient", "Ana"))
	if count := f.coord.TotalOnlineUsers(room); count != 2 {
		t.Errorf("expected 2 online after duplicate join : %d", count)
	}

	f.bus.InjectSignal(room, channel.LeaveSignal(room, "doctor"))
	f.waitPresence(t, 1)

	online := f.coord.Online(room)
	if len(online) != 1 || online[0].UserID != "patient" {
		t.Errorf("unexpected presence set : %+v", online)
	}
}

func TestLeaveClearsTyping(t *testing.T) {
	f := newFixture(t)

	f.bus.InjectSignal(room, channel.JoinSignal(room, "doctor", "Dr. Gomez"))
	f.waitPresence(t, 1)
	f.bus.InjectSignal(room, channel.TypingSignal(room, "doctor", "Dr. Gomez", true))
	f.waitTyping(t, 1)

	// leaving the room implies not typing
	f.bus.InjectSignal(room, channel.LeaveSignal(room, "doctor"))
	f.waitTyping(t, 0)

	if count := f.coord.TotalOnlineUsers(room); count != 0 {
		t.Errorf("expected nobody online : %d", count)
	}
}

func TestStartTypingOffline(t *testing.T) {
	cfg := testConfig()
	bus := channeltest.NewBus()
	conns := connections.NewManager(cfg, bus.NewProvider())
	defer conns.Destroy()
	coord := presence.NewCoordinator(cfg, conns)
	defer coord.Destroy()

	// no connection - typing is best effort and must not error
	if err := coord.StartTyping(room, "patient", "Ana"); err != nil {
		t.Errorf("StartTyping while offline must be a silent no-op : %v", err)
	}
}

func TestDestroy(t *testing.T) {
	f := newFixture(t)

	f.coord.Destroy()
	if err := f.coord.StartTyping(room, "patient", "Ana"); err != chat.ErrSessionDestroyed {
		t.Errorf("expected ErrSessionDestroyed : %v", err)
	}

	// idempotent
	f.coord.Destroy()
}
