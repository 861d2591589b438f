// Package rtc is the boundary to the external real-time-media engine.
// The negotiation code consumes these interfaces only; the pion-backed
// implementation lives in this package, deterministic fakes live in the
// tests that need them.
package rtc

import (
	"context"
	"errors"

	"github.com/pion/webrtc/v4"
)

// Media acquisition failure kinds. Both are fatal to the participant's
// session; negotiation never starts without local media.
var (
	ErrPermissionDenied  = errors.New("media permission denied")
	ErrDeviceUnavailable = errors.New("media device unavailable")
)

// Constraints selects which kinds of local media to acquire.
type Constraints struct {
	Audio bool
	Video bool
}

// Stream is an opaque handle to a bundle of media tracks. The
// negotiation code never looks inside it.
type Stream interface {
	ID() string
}

// Engine constructs peer connections against the configured ICE servers.
type Engine interface {
	NewPeerConnection(ice []webrtc.ICEServer) (PeerConnection, error)
}

// PeerConnection is the per-participant handle into the media engine.
// The callbacks may fire from engine-owned goroutines; callers are
// expected to funnel them into their own event ordering.
type PeerConnection interface {
	AddStream(s Stream) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(sdp webrtc.SessionDescription) error
	SetRemoteDescription(sdp webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnRemoteStream(f func(Stream))
	Close() error
}

// MediaSource acquires the local stream. Acquisition may block on
// external permission, hence the context.
type MediaSource interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}
