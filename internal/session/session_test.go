package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"parley/internal/protocol"
	"parley/internal/rtc"
	"parley/internal/server"
	"parley/internal/signaling"
)

type stubSource struct {
	stream rtc.Stream
	err    error
	delay  time.Duration
}

func (s stubSource) GetUserMedia(ctx context.Context, _ rtc.Constraints) (rtc.Stream, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

// stateRecorder collects OnState notifications and lets tests wait for
// a particular state.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
	ch     chan State
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{ch: make(chan State, 16)}
}

func (r *stateRecorder) observe(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	r.ch <- s
}

func (r *stateRecorder) waitFor(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case s := <-r.ch:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("state %v never reached", want)
		}
	}
}

// roleGate reports the role the server assigned to a participant.
type roleGate struct {
	ch chan Role
}

func newRoleGate() *roleGate {
	return &roleGate{ch: make(chan Role, 1)}
}

func (g *roleGate) observe(r Role) {
	select {
	case g.ch <- r:
	default:
	}
}

func (g *roleGate) waitFor(t *testing.T, want Role) {
	t.Helper()
	select {
	case r := <-g.ch:
		require.Equal(t, want, r)
	case <-time.After(10 * time.Second):
		t.Fatalf("role %v never assigned", want)
	}
}

func startSignaling(t *testing.T) string {
	t.Helper()
	hub := signaling.NewHub()
	go hub.Run()
	ts := httptest.NewServer(server.Handler(hub, nil))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestTwoParticipantsNegotiateAndHangUp(t *testing.T) {
	url := startSignaling(t)

	aStates := newStateRecorder()
	bStates := newStateRecorder()
	aRole := newRoleGate()
	aCtx, hangupA := context.WithCancel(context.Background())
	defer hangupA()

	results := make(chan error, 2)

	go func() {
		results <- Run(aCtx, Options{
			ServerURL: url,
			Room:      "e2e",
			Engine:    &fakeEngine{},
			Media:     stubSource{stream: fakeStream{id: "a"}},
			OnState:   aStates.observe,
			OnRole:    aRole.observe,
		})
	}()

	// A must own the room before B shows up so roles are deterministic.
	aRole.waitFor(t, Initiator)

	go func() {
		results <- Run(context.Background(), Options{
			ServerURL: url,
			Room:      "e2e",
			Engine:    &fakeEngine{},
			Media:     stubSource{stream: fakeStream{id: "b"}, delay: 50 * time.Millisecond},
			OnState:   bStates.observe,
		})
	}()

	// A initiates once both media-ready pings crossed; B answers the
	// offer; A applies the answer.
	aStates.waitFor(t, Connected)
	bStates.waitFor(t, Negotiating)

	// A hangs up; the relayed bye closes B.
	hangupA()
	aStates.waitFor(t, Closed)
	bStates.waitFor(t, Closed)

	require.NoError(t, <-results)
	require.NoError(t, <-results)
}

func TestThirdParticipantSeesRoomFull(t *testing.T) {
	url := startSignaling(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, want := range []Role{Initiator, Responder} {
		gate := newRoleGate()
		go func() {
			Run(ctx, Options{
				ServerURL: url,
				Room:      "busy",
				Engine:    &fakeEngine{},
				Media:     stubSource{stream: fakeStream{}},
				OnRole:    gate.observe,
			})
		}()
		gate.waitFor(t, want)
	}

	err := Run(context.Background(), Options{
		ServerURL: url,
		Room:      "busy",
		Engine:    &fakeEngine{},
		Media:     stubSource{stream: fakeStream{}},
	})
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestMediaFailureIsFatal(t *testing.T) {
	url := startSignaling(t)

	err := Run(context.Background(), Options{
		ServerURL: url,
		Room:      "no-media",
		Engine:    &fakeEngine{},
		Media:     stubSource{err: rtc.ErrPermissionDenied},
	})
	require.ErrorIs(t, err, rtc.ErrPermissionDenied)
}

// TestJoinRequestPrecedesMediaReadyOnTheWire pins the startup frame
// order. Capture finishing instantly must not let the media-ready ping
// overtake the join request: a ping from a client with no room is
// rejected by the registry and never resent, which would leave the
// initiator's start gate unsatisfiable.
func TestJoinRequestPrecedesMediaReadyOnTheWire(t *testing.T) {
	events := make(chan string, 8)
	upgrader := websocket.Upgrader{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var env protocol.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			events <- env.Event
		}
	}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			ServerURL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
			Room:      "order",
			Engine:    &fakeEngine{},
			Media:     stubSource{stream: fakeStream{}},
		})
	}()

	nextFrame := func() string {
		select {
		case ev := <-events:
			return ev
		case <-time.After(10 * time.Second):
			t.Fatal("no frame arrived")
			return ""
		}
	}
	require.Equal(t, protocol.EventCreateOrJoin, nextFrame())
	require.Equal(t, protocol.EventMessage, nextFrame())

	cancel()
	require.NoError(t, <-done)
}

func TestStopMachineWaitsForRunToFinish(t *testing.T) {
	m := NewMachine(Config{
		Engine: &fakeEngine{},
		Send:   func(protocol.Message) error { return nil },
	})
	go m.Run(context.Background())

	stopMachine(m)

	select {
	case <-m.Done():
	default:
		t.Fatal("machine still running after stop")
	}
	require.Equal(t, Closed, m.State())
}

func TestEmptyRoomRejectedLocally(t *testing.T) {
	err := Run(context.Background(), Options{
		ServerURL: "ws://127.0.0.1:0/ws",
		Room:      "",
		Engine:    &fakeEngine{},
		Media:     stubSource{stream: fakeStream{}},
	})
	require.Error(t, err)
}
