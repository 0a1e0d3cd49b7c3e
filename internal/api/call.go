package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/peerwave/peerwave/internal/call"
)

// RegisterCall registers the call control endpoints.
func RegisterCall(mux *http.ServeMux, d Deps) {
	// GET /api/call/status — the active session, if any, with RTP stats.
	handleGet(mux, "/api/call/status", func(w http.ResponseWriter, r *http.Request) {
		sess, ok := d.Calls.Active()
		if !ok {
			writeJSON(w, map[string]any{"active": false})
			return
		}
		writeJSON(w, map[string]any{
			"active":  true,
			"session": sess.Status(),
		})
	})

	// POST /api/call/start
	handlePost(mux, "/api/call/start", func(w http.ResponseWriter, r *http.Request, req struct {
		CallID string `json:"call_id"`
		Mode   string `json:"mode"`
	}) {
		sess, err := d.Calls.Start(req.CallID, call.Mode(req.Mode))
		if err != nil {
			callError(w, "start", err)
			return
		}
		writeJSON(w, map[string]string{"status": "started", "call_id": sess.CallID()})
	})

	// POST /api/call/accept
	handlePost(mux, "/api/call/accept", func(w http.ResponseWriter, r *http.Request, req struct {
		CallID string `json:"call_id"`
		Mode   string `json:"mode"`
	}) {
		if req.CallID == "" {
			http.Error(w, "missing call_id", http.StatusBadRequest)
			return
		}
		sess, err := d.Calls.Accept(req.CallID, call.Mode(req.Mode))
		if err != nil {
			callError(w, "accept", err)
			return
		}
		writeJSON(w, map[string]string{"status": "accepted", "call_id": sess.CallID()})
	})

	// POST /api/call/hangup
	handlePost(mux, "/api/call/hangup", func(w http.ResponseWriter, r *http.Request, req struct {
		CallID string `json:"call_id"`
	}) {
		sess, ok := d.Calls.Get(req.CallID)
		if !ok {
			writeJSON(w, map[string]string{"status": "not_found"})
			return
		}
		sess.Hangup()
		writeJSON(w, map[string]string{"status": "hung_up"})
	})

	// POST /api/call/toggle-audio
	handlePost(mux, "/api/call/toggle-audio", func(w http.ResponseWriter, r *http.Request, req struct {
		CallID string `json:"call_id"`
	}) {
		sess, ok := d.Calls.Get(req.CallID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]bool{"muted": sess.ToggleAudio()})
	})

	// POST /api/call/toggle-video
	handlePost(mux, "/api/call/toggle-video", func(w http.ResponseWriter, r *http.Request, req struct {
		CallID string `json:"call_id"`
	}) {
		sess, ok := d.Calls.Get(req.CallID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]bool{"video_off": sess.ToggleVideo()})
	})

	// POST /api/call/switch-camera
	handlePost(mux, "/api/call/switch-camera", func(w http.ResponseWriter, r *http.Request, req struct {
		CallID string `json:"call_id"`
	}) {
		sess, ok := d.Calls.Get(req.CallID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err := sess.SwitchCamera(); err != nil {
			callError(w, "switch camera", err)
			return
		}
		writeJSON(w, map[string]string{"status": "switched"})
	})
}

func callError(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, call.ErrCallActive):
		code = http.StatusConflict
	case errors.Is(err, call.ErrNoCameraSwitch):
		code = http.StatusConflict
	}
	http.Error(w, fmt.Sprintf("%s failed: %v", op, err), code)
}
