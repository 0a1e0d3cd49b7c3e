package api

import (
	"fmt"
	"net/http"
)

// RegisterChat registers the message store endpoints. Sending runs the
// outbound path end to end: compose, record locally, push onto the shared
// channel.
func RegisterChat(mux *http.ServeMux, d Deps) {
	// POST /api/chat/send
	handlePost(mux, "/api/chat/send", func(w http.ResponseWriter, r *http.Request, req struct {
		DialogID   string `json:"dialog_id"`
		ReceiverID string `json:"receiver_id"`
		Text       string `json:"text"`
		Group      bool   `json:"group"`
	}) {
		if req.DialogID == "" || req.Text == "" {
			http.Error(w, "missing dialog_id or text", http.StatusBadRequest)
			return
		}
		if !req.Group && req.ReceiverID == "" {
			http.Error(w, "missing receiver_id for private message", http.StatusBadRequest)
			return
		}

		msg := d.Chat.Compose(req.DialogID, req.ReceiverID, req.Text, req.Group)
		if _, err := d.Chat.Add(msg); err != nil {
			http.Error(w, fmt.Sprintf("store message: %v", err), http.StatusInternalServerError)
			return
		}
		if err := d.Realtime.Send(msg); err != nil {
			http.Error(w, fmt.Sprintf("send message: %v", err), http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]string{"status": "sent", "id": string(msg.ID)})
	})

	// POST /api/chat/read
	handlePost(mux, "/api/chat/read", func(w http.ResponseWriter, r *http.Request, req struct {
		DialogID string `json:"dialog_id"`
		PeerID   string `json:"peer_id"`
	}) {
		if req.DialogID == "" || req.PeerID == "" {
			http.Error(w, "missing dialog_id or peer_id", http.StatusBadRequest)
			return
		}
		if err := d.Chat.MarkRead(req.DialogID, req.PeerID); err != nil {
			http.Error(w, fmt.Sprintf("mark read: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	// POST /api/chat/clear
	handlePost(mux, "/api/chat/clear", func(w http.ResponseWriter, r *http.Request, req struct {
		DialogID string `json:"dialog_id"`
	}) {
		if req.DialogID == "" {
			http.Error(w, "missing dialog_id", http.StatusBadRequest)
			return
		}
		if err := d.Chat.Clear(req.DialogID); err != nil {
			http.Error(w, fmt.Sprintf("clear dialog: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "cleared"})
	})

	// GET /api/chat/dialogs
	handleGet(mux, "/api/chat/dialogs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Chat.Dialogs())
	})

	// GET /api/chat/messages?dialogId=...
	handleGet(mux, "/api/chat/messages", func(w http.ResponseWriter, r *http.Request) {
		dialogID := r.URL.Query().Get("dialogId")
		if dialogID == "" {
			http.Error(w, "missing dialogId", http.StatusBadRequest)
			return
		}
		writeJSON(w, d.Chat.Messages(dialogID))
	})
}
