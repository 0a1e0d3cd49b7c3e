package api

import (
	"net/http"
)

// RegisterRealtime registers the shared-channel lifecycle endpoints.
func RegisterRealtime(mux *http.ServeMux, d Deps) {
	// POST /api/realtime/connect
	handlePost(mux, "/api/realtime/connect", func(w http.ResponseWriter, r *http.Request, req struct {
		UserID string `json:"user_id"`
	}) {
		if req.UserID == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}
		d.Chat.SetSelf(req.UserID)
		d.Realtime.Connect(req.UserID)
		writeJSON(w, map[string]string{"status": "connecting", "user_id": req.UserID})
	})

	// POST /api/realtime/disconnect
	handlePost(mux, "/api/realtime/disconnect", func(w http.ResponseWriter, r *http.Request, _ struct{}) {
		d.Realtime.Disconnect()
		writeJSON(w, map[string]string{"status": "disconnected"})
	})

	// GET /api/realtime/status
	handleGet(mux, "/api/realtime/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"connected": d.Realtime.Connected(),
			"user_id":   d.Realtime.UserID(),
		})
	})

	// GET /api/realtime/frames — the last raw frames seen on the wire, for
	// debugging signaling without a UI.
	handleGet(mux, "/api/realtime/frames", func(w http.ResponseWriter, r *http.Request) {
		frames := d.Realtime.RecentFrames()
		writeJSON(w, map[string]any{
			"count":  len(frames),
			"frames": frames,
		})
	})
}
