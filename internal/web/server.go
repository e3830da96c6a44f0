// Package web provides the HTTP surface for the heartbeat-haptic daemon:
// a status page that mirrors the current view and a few POST endpoints
// that forward user actions to the controller.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/heartbeat-haptic/internal/logic"
	"github.com/sweeney/heartbeat-haptic/internal/status"
)

// CommandSink accepts user actions. Send must not block; it reports
// false when the action could not be queued.
type CommandSink interface {
	Send(cmd logic.Command) bool
}

// Server serves the status page and action endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	cmds       CommandSink
}

// New creates a Server that reads state from the given tracker and
// forwards actions to cmds.
func New(addr string, tracker *status.Tracker, cmds CommandSink) *Server {
	s := &Server{tracker: tracker, cmds: cmds}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/retry", s.handleCommand(logic.CommandRetry))
	mux.HandleFunc("/authorize", s.handleCommand(logic.CommandAuthorize))
	mux.HandleFunc("/press", s.handleCommand(logic.CommandPressStart))
	mux.HandleFunc("/release", s.handleCommand(logic.CommandPressEnd))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the request multiplexer.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCommand(cmd logic.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.cmds == nil || !s.cmds.Send(cmd) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
