package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/peerwave/peerwave/internal/util"
)

type Config struct {
	Server Server `json:"server"`
	Paths  Paths  `json:"paths"`
	Call   Call   `json:"call"`
	API    API    `json:"api"`
	Log    Log    `json:"log"`
}

type Server struct {
	// Base address of the messaging server, e.g. "wss://chat.example.org".
	// The connection manager appends /ws/message?userId=<id>.
	URL string `json:"url"`

	// Reconnect interval after an unexpected close, in seconds. The client
	// retries at this fixed interval for as long as an identity is set.
	ReconnectSec int `json:"reconnect_seconds"`

	// UserID, when set, connects the shared channel at startup. Leave empty
	// to connect later through the control API.
	UserID string `json:"user_id"`
}

type Paths struct {
	DataDir string `json:"data_dir"`
}

type Call struct {
	// STUN/TURN server URLs passed to the peer connection.
	ICEServers []string `json:"ice_servers"`

	// Preferred camera facing for video calls: "front" or "back".
	CameraFacing string `json:"camera_facing"`

	// Disable local video capture entirely (audio-only sessions).
	VideoDisabled bool `json:"video_disabled"`
}

type API struct {
	// Bind address of the local control API. Empty disables the API server.
	HTTPAddr string `json:"http_addr"`
}

type Log struct {
	// Level for the named loggers: debug, info, warn or error.
	Level string `json:"level"`
}

func Default() Config {
	return Config{
		Server: Server{
			URL:          "ws://127.0.0.1:8080",
			ReconnectSec: 30,
		},
		Paths: Paths{
			DataDir: "data",
		},
		Call: Call{
			ICEServers:   []string{"stun:stun.l.google.com:19302"},
			CameraFacing: "front",
		},
		API: API{
			HTTPAddr: "127.0.0.1:8750",
		},
		Log: Log{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	// Server
	raw := strings.TrimSpace(c.Server.URL)
	if raw == "" {
		return errors.New("server.url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("server.url scheme must be ws or wss")
	}
	if u.Host == "" {
		return errors.New("server.url is missing a host")
	}
	if c.Server.ReconnectSec <= 0 {
		return errors.New("server.reconnect_seconds must be > 0")
	}

	// Paths
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir is required")
	}

	// Call
	if len(c.Call.ICEServers) == 0 {
		return errors.New("call.ice_servers must list at least one server")
	}
	for _, s := range c.Call.ICEServers {
		if strings.TrimSpace(s) == "" {
			return errors.New("call.ice_servers must not contain empty entries")
		}
	}
	if f := c.Call.CameraFacing; f != "front" && f != "back" {
		return errors.New(`call.camera_facing must be "front" or "back"`)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be debug, info, warn or error")
	}

	return nil
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Strip UTF-8 BOM if present (common when editing JSON on Windows).
	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
