//go:build linux

package call

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// initMediaPC builds a peer connection with VP8+Opus codecs and captures
// local camera/mic via pion/mediadevices (V4L2 + malgo). Capture degrades
// gracefully: a busy microphone must not prevent the camera from working and
// vice versa, so the combinations are attempted in order and the session
// falls back to receive-only when all fail.
func initMediaPC(callID string, mode Mode, opts MediaOptions) (*webrtc.PeerConnection, *localMedia, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, nil, err
	}
	vpxParams.BitRate = 1_500_000 // 1.5 Mbps

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, nil, err
	}

	codecSelector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	codecSelector.Populate(mediaEngine)

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, nil, err
	}

	// Generous ICE timeouts so a brief relay/NAT hiccup does not immediately
	// terminate the call. The default disconnectedTimeout of 5s is too short
	// for relay paths with short outages during re-keying or failover.
	se := webrtc.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(iceConfiguration(opts))
	if err != nil {
		return nil, nil, err
	}

	wantVideo := mode == ModeVideo && !opts.VideoDisabled

	type attempt struct {
		video bool
		audio bool
		label string
	}
	attempts := []attempt{{false, true, "audio-only"}}
	if wantVideo {
		attempts = []attempt{
			{true, true, "video+audio"},
			{true, false, "video-only"},
			{false, true, "audio-only"},
		}
	}

	camIdx := -1
	camID := ""
	if wantVideo {
		cams := enumerateCameras()
		if camIdx = selectCamera(opts.CameraFacing, cams); camIdx >= 0 {
			camID = cams[camIdx].DeviceID
			log.Printf("CALL [%s]: camera facing %q -> device %q", callID, opts.CameraFacing, cams[camIdx].Label)
		}
	}

	for _, a := range attempts {
		constraints := mediadevices.MediaStreamConstraints{Codec: codecSelector}
		if a.video {
			constraints.Video = videoConstraints(camID)
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			log.Printf("CALL [%s]: GetUserMedia (%s) failed: %v", callID, a.label, err)
			continue
		}

		media := &localMedia{}
		tracks := stream.GetTracks()
		for _, track := range tracks {
			track.OnEnded(func(err error) {
				if err != nil {
					log.Printf("CALL [%s]: local track ended: %v", callID, err)
				}
			})
			sender, err := pc.AddTrack(track)
			if err != nil {
				log.Printf("CALL [%s]: AddTrack error: %v", callID, err)
				continue
			}
			switch track.Kind() {
			case webrtc.RTPCodecTypeAudio:
				media.audioTrack = track
				media.audioSender = sender
			case webrtc.RTPCodecTypeVideo:
				media.videoTrack = track
				media.videoSender = sender
			}
		}

		captured := tracks
		media.close = func() {
			for _, t := range captured {
				t.Close()
			}
		}
		if media.videoSender != nil {
			media.switchCamera = cameraSwitcher(callID, media, codecSelector, camIdx)
		}

		log.Printf("CALL [%s]: local media captured (%s) — %d tracks", callID, a.label, len(tracks))
		return pc, media, nil
	}

	// All capture attempts failed — receive-only keeps the call usable.
	log.Printf("CALL [%s]: all media capture attempts failed — proceeding receive-only", callID)
	addRecvOnlyTransceivers(callID, pc)
	return pc, &localMedia{}, nil
}

// videoConstraints caps resolution and excludes MJPEG. Some cameras expose an
// MJPEG V4L2 node that produces malformed JPEG frames, which poisons the VP8
// encoder and causes SetRemoteDescription to fail. Raw formats only.
func videoConstraints(deviceID string) mediadevices.MediaOption {
	return func(c *mediadevices.MediaTrackConstraints) {
		if deviceID != "" {
			c.DeviceID = prop.String(deviceID)
		}
		c.FrameFormat = prop.FrameFormatOneOf{
			frame.FormatYUYV,
			frame.FormatI420,
			frame.FormatI444,
			frame.FormatRGBA,
		}
		c.Width = prop.IntRanged{Max: 640}
		c.Height = prop.IntRanged{Max: 480}
	}
}

// enumerateCameras lists the video input devices in enumeration order.
func enumerateCameras() []mediadevices.MediaDeviceInfo {
	var cams []mediadevices.MediaDeviceInfo
	for _, d := range mediadevices.EnumerateDevices() {
		if d.Kind == mediadevices.VideoInput {
			cams = append(cams, d)
		}
	}
	return cams
}

// selectCamera picks the capture device index for a facing preference. A
// label mentioning the facing wins; otherwise "front" maps to the first
// device and "back" to the second when one exists, the usual V4L2 ordering
// on phones and laptops with two cameras. Returns -1 when no camera exists.
func selectCamera(facing string, cams []mediadevices.MediaDeviceInfo) int {
	if len(cams) == 0 {
		return -1
	}
	if facing != "" {
		for i, c := range cams {
			if strings.Contains(strings.ToLower(c.Label), facing) {
				return i
			}
		}
	}
	if facing == "back" && len(cams) > 1 {
		return 1
	}
	return 0
}

// cameraSwitcher returns a closure that re-captures video from the next
// camera device and swaps it into the video sender without renegotiation.
// startIdx is the device the session is currently capturing from.
func cameraSwitcher(callID string, media *localMedia, codecSelector *mediadevices.CodecSelector, startIdx int) func() error {
	camIdx := startIdx
	if camIdx < 0 {
		camIdx = 0
	}
	return func() error {
		cams := enumerateCameras()
		if len(cams) < 2 {
			return ErrNoCameraSwitch
		}
		camIdx = (camIdx + 1) % len(cams)
		target := cams[camIdx]

		stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
			Codec: codecSelector,
			Video: videoConstraints(target.DeviceID),
		})
		if err != nil {
			return fmt.Errorf("capture %q: %w", target.Label, err)
		}
		videoTracks := stream.GetVideoTracks()
		if len(videoTracks) == 0 {
			return fmt.Errorf("no video track from %q", target.Label)
		}
		newTrack := videoTracks[0]

		if err := media.videoSender.ReplaceTrack(newTrack); err != nil {
			newTrack.Close()
			return fmt.Errorf("replace video track: %w", err)
		}

		if old, ok := media.videoTrack.(mediadevices.Track); ok {
			old.Close()
		}
		media.videoTrack = newTrack

		log.Printf("CALL [%s]: switched camera to %q", callID, target.Label)
		return nil
	}
}
