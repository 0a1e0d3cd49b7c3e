// Package api exposes the local HTTP control surface. It binds to loopback
// and is the only way a frontend drives the connection, chat and call layers.
package api

import (
	"net/http"
	"time"

	"github.com/peerwave/peerwave/internal/call"
	"github.com/peerwave/peerwave/internal/chat"
	"github.com/peerwave/peerwave/internal/realtime"
)

// Deps carries everything the route handlers need.
type Deps struct {
	Realtime *realtime.Manager
	Chat     *chat.Store
	Calls    *call.Manager
}

// NewServer builds the HTTP server with all routes registered.
func NewServer(addr string, d Deps) *http.Server {
	mux := http.NewServeMux()
	RegisterRealtime(mux, d)
	RegisterChat(mux, d)
	RegisterCall(mux, d)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
