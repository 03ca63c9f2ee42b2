package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tmaxmax/go-sse"
)

// SSEServer exposes the broker over Server-Sent Events. It handles
// server-to-client streaming through SSE and client-to-server messaging via
// an HTTP POST endpoint.
//
// The server provides its functionality through the HandleSSE and
// HandleMessage http.Handlers, which can be integrated with any HTTP
// framework. Session lifecycle and message routing live in the SessionStore
// and Broker; the SSEServer is a thin transport binding over them.
//
// Instances should be created using NewSSEServer.
type SSEServer struct {
	sessions *SessionStore
	broker   *Broker
	logger   *slog.Logger
}

// SSEServerOption represents the options for the SSEServer.
type SSEServerOption func(*SSEServer)

// NewSSEServer creates an SSE server bound to the given session store and
// broker. The server is immediately operational; its handlers can be mounted
// on any mux.
func NewSSEServer(sessions *SessionStore, broker *Broker, options ...SSEServerOption) *SSEServer {
	s := &SSEServer{
		sessions: sessions,
		broker:   broker,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithSSEServerLogger sets the logger for the SSE server.
func WithSSEServerLogger(logger *slog.Logger) SSEServerOption {
	return func(s *SSEServer) {
		s.logger = logger.With(
			slog.String("package", "gomcp"),
			slog.String("component", "sse"),
		)
	}
}

// HandleSSE returns an http.Handler for establishing SSE connections over
// GET requests. Each connection creates a fresh pending session, upgrades
// the response to an event stream, and relays the session's broker stream:
// the endpoint greeting first, then responses and keep-alive pings as they
// arrive. The connection remains open until the client disconnects or the
// broker shuts down.
func (s *SSEServer) HandleSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sse.Upgrade(w, r)
		if err != nil {
			nErr := fmt.Errorf("failed to upgrade session: %w", err)
			s.logger.Error("failed to upgrade session", "err", nErr)
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		session := s.sessions.Initialize()
		s.logger.Info("session connected", slog.String("sessionID", session.ID))

		events, err := s.broker.Messages(r.Context(), session.ID)
		if err != nil {
			nErr := fmt.Errorf("failed to open session stream: %w", err)
			s.logger.Error("failed to open session stream", "err", nErr)
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		for ev := range events {
			msg := sse.Message{
				Type: sse.Type(ev.Type),
			}
			msg.AppendData(ev.Data)
			if err := sess.Send(&msg); err != nil {
				s.logger.Warn("failed to send event",
					slog.String("sessionID", session.ID),
					slog.String("err", err.Error()))
				break
			}
			if err := sess.Flush(); err != nil {
				s.logger.Warn("failed to flush event",
					slog.String("sessionID", session.ID),
					slog.String("err", err.Error()))
				break
			}
		}

		s.logger.Info("session disconnected", slog.String("sessionID", session.ID))
	})
}

// HandleMessage returns an http.Handler for processing client messages sent
// via POST requests. The handler expects a sessionId query parameter and a
// JSON-encoded message body. Accepted messages are queued on the broker and
// answered with 202 Accepted; the actual protocol response is delivered on
// the session's event stream.
func (s *SSEServer) HandleMessage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessID := r.URL.Query().Get("sessionId")
		if sessID == "" {
			nErr := errors.New("missing sessionId query parameter")
			s.logger.Warn("missing sessionId query parameter")
			http.Error(w, nErr.Error(), http.StatusBadRequest)
			return
		}

		if _, err := s.sessions.FindByID(sessID); err != nil {
			s.logger.Warn("message for unknown session", slog.String("sessionID", sessID))
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		decoder := json.NewDecoder(r.Body)
		var msg JSONRPCMessage

		if err := decoder.Decode(&msg); err != nil {
			nErr := fmt.Errorf("failed to decode message: %w", err)
			s.logger.Warn("failed to decode message", slog.String("err", nErr.Error()))
			http.Error(w, nErr.Error(), http.StatusBadRequest)
			return
		}

		if err := s.broker.Offer(r.Context(), Message{SessionID: sessID, Payload: msg}); err != nil {
			nErr := fmt.Errorf("failed to queue message: %w", err)
			s.logger.Error("failed to queue message", slog.String("err", nErr.Error()))
			http.Error(w, nErr.Error(), http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	})
}
