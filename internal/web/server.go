// Package web provides an HTTP status server for the gpio-sensor daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/sweeney/gpio-sensor/internal/logging"
	"github.com/sweeney/gpio-sensor/internal/logic"
	"github.com/sweeney/gpio-sensor/internal/pubsub"
	"github.com/sweeney/gpio-sensor/internal/status"
)

const wsWriteTimeout = 5 * time.Second

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	events     *pubsub.Pubsub[logic.Event]
	log        zerolog.Logger
}

// New creates a Server that reads state from the given tracker. Events
// published on events are streamed to websocket clients; events may be nil.
func New(addr string, tracker *status.Tracker, events *pubsub.Pubsub[logic.Event]) *Server {
	s := &Server{
		tracker: tracker,
		events:  events,
		log:     log.With().Str("component", "web").Logger(),
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware(s.log))

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	r.Get("/ws", s.handleWebsocket)
	return r
}

// Handler returns the server's root handler.
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
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleWebsocket sends the current snapshot, then every sensor event until
// the client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer c.Close(websocket.StatusInternalError, "stream ended")

	// Subscribe before the snapshot so no event falls between the two.
	var events <-chan logic.Event
	if s.events != nil {
		id, ch := s.events.Subscribe()
		defer s.events.Unsubscribe(id)
		events = ch
	}

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx when the peer closes.
	ctx := c.CloseRead(r.Context())

	if err := writeTimeout(ctx, c, formatSnapshotMessage(s.tracker.Snapshot())); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case e, ok := <-events:
			if !ok {
				c.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeTimeout(ctx, c, formatEventMessage(e)); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func writeTimeout(ctx context.Context, c *websocket.Conn, msg interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return writeJSON(ctx, c, msg)
}
