package call

import (
	"log"

	"github.com/pion/webrtc/v4"
)

// iceConfiguration builds the peer connection configuration from options.
func iceConfiguration(opts MediaOptions) webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: opts.ICEServers},
		},
	}
}

// addRecvOnlyTransceivers adds recvonly transceivers for video and audio so
// CreateOffer/CreateAnswer always produces valid m-lines with ICE credentials
// even when no local media was captured.
func addRecvOnlyTransceivers(callID string, pc *webrtc.PeerConnection) {
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		log.Printf("CALL [%s]: AddTransceiver(video) error: %v", callID, err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		log.Printf("CALL [%s]: AddTransceiver(audio) error: %v", callID, err)
	}
}
