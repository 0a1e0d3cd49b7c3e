package call

import (
	"testing"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/driver"
)

func camInfo(id, label string) mediadevices.MediaDeviceInfo {
	return mediadevices.MediaDeviceInfo{
		DeviceID:   id,
		Label:      label,
		Kind:       mediadevices.VideoInput,
		DeviceType: driver.Camera,
	}
}

func TestSelectCameraHonorsFacing(t *testing.T) {
	cams := []mediadevices.MediaDeviceInfo{
		camInfo("cam0", "Front Camera: video0"),
		camInfo("cam1", "Back Camera: video1"),
	}

	cases := []struct {
		name   string
		facing string
		cams   []mediadevices.MediaDeviceInfo
		want   int
	}{
		{"front picks labeled front", "front", cams, 0},
		{"back picks labeled back", "back", cams, 1},
		{"no preference picks first", "", cams, 0},
		{"back without labels falls to second device", "back", []mediadevices.MediaDeviceInfo{
			camInfo("cam0", "video0"),
			camInfo("cam1", "video1"),
		}, 1},
		{"front without labels falls to first device", "front", []mediadevices.MediaDeviceInfo{
			camInfo("cam0", "video0"),
			camInfo("cam1", "video1"),
		}, 0},
		{"single device wins regardless of facing", "back", cams[:1], 0},
		{"no devices", "front", nil, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := selectCamera(c.facing, c.cams); got != c.want {
				t.Fatalf("selectCamera(%q) = %d, want %d", c.facing, got, c.want)
			}
		})
	}
}

// Opposite facings must diverge as soon as two devices are enumerated.
func TestSelectCameraFacingsDiffer(t *testing.T) {
	cams := []mediadevices.MediaDeviceInfo{
		camInfo("cam0", "video0"),
		camInfo("cam1", "video1"),
	}
	front := selectCamera("front", cams)
	back := selectCamera("back", cams)
	if front == back {
		t.Fatalf("front and back selected the same device (%d) with two cameras present", front)
	}
	if cams[front].DeviceID == cams[back].DeviceID {
		t.Fatalf("facing preferences resolved to one device id %q", cams[front].DeviceID)
	}
}
