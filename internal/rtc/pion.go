package rtc

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// PionEngine implements Engine on pion/webrtc.
type PionEngine struct{}

func NewPionEngine() *PionEngine { return &PionEngine{} }

func (e *PionEngine) NewPeerConnection(ice []webrtc.ICEServer) (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: ice,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &pionPeerConnection{pc: pc}, nil
}

type pionPeerConnection struct {
	pc *webrtc.PeerConnection
}

// trackStream is implemented by streams that carry local pion tracks.
type trackStream interface {
	Stream
	Tracks() []webrtc.TrackLocal
}

func (p *pionPeerConnection) AddStream(s Stream) error {
	ts, ok := s.(trackStream)
	if !ok {
		return fmt.Errorf("stream %q carries no local tracks", s.ID())
	}
	for _, t := range ts.Tracks() {
		if _, err := p.pc.AddTrack(t); err != nil {
			return fmt.Errorf("add track: %w", err)
		}
	}
	return nil
}

func (p *pionPeerConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeerConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeerConnection) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

func (p *pionPeerConnection) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

func (p *pionPeerConnection) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *pionPeerConnection) OnICECandidate(f func(*webrtc.ICECandidate)) {
	p.pc.OnICECandidate(f)
}

func (p *pionPeerConnection) OnRemoteStream(f func(Stream)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f(remoteStream{id: track.StreamID()})
	})
}

func (p *pionPeerConnection) Close() error { return p.pc.Close() }

type remoteStream struct {
	id string
}

func (r remoteStream) ID() string { return r.id }

// localStream bundles the synthesized local tracks.
type localStream struct {
	id     string
	tracks []webrtc.TrackLocal
}

func (l *localStream) ID() string { return l.id }

func (l *localStream) Tracks() []webrtc.TrackLocal { return l.tracks }

// StaticSource is a MediaSource for headless participants: it fabricates
// sample tracks instead of capturing devices, which is all a signaling
// probe needs to drive a real SDP exchange.
type StaticSource struct{}

func NewStaticSource() *StaticSource { return &StaticSource{} }

func (s *StaticSource) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Audio && !c.Video {
		return nil, fmt.Errorf("%w: no media kinds requested", ErrDeviceUnavailable)
	}

	ls := &localStream{id: "parley"}

	if c.Video {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", ls.id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		ls.tracks = append(ls.tracks, track)
	}
	if c.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio", ls.id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		ls.tracks = append(ls.tracks, track)
	}

	return ls, nil
}
