//go:build !linux

package call

import (
	"log"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// initMediaPC creates a receive-only peer connection on non-Linux platforms.
// Camera/mic capture via pion/mediadevices requires platform-specific drivers
// (V4L2/malgo on Linux); elsewhere the session negotiates without sending
// local media.
func initMediaPC(callID string, _ Mode, opts MediaOptions) (*webrtc.PeerConnection, *localMedia, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	pc, err := api.NewPeerConnection(iceConfiguration(opts))
	if err != nil {
		return nil, nil, err
	}

	// Valid m-lines with ICE credentials even without capture.
	addRecvOnlyTransceivers(callID, pc)

	log.Printf("CALL [%s]: peer connection ready (receive-only, no local media on this platform)", callID)
	return pc, &localMedia{}, nil
}
