package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// StdIO runs the protocol over an io.Reader/io.Writer pair, typically
// stdin/stdout, using newline-delimited JSON-RPC framing. It provides a
// single session that lives for the duration of Run; the session is
// registered in the shared session store and its messages flow through the
// same broker pipeline as SSE traffic.
//
// Only message events reach the writer. The endpoint greeting and the done
// sentinel are meaningless on a pipe and are filtered out.
//
// Instances should be created using NewStdIO.
type StdIO struct {
	reader io.Reader
	writer io.Writer

	sessions *SessionStore
	broker   *Broker
	logger   *slog.Logger
}

// StdIOOption represents the options for the StdIO transport.
type StdIOOption func(*StdIO)

// NewStdIO creates a stdio transport over the given reader and writer,
// bound to the shared session store and broker.
func NewStdIO(reader io.Reader, writer io.Writer, sessions *SessionStore, broker *Broker, options ...StdIOOption) *StdIO {
	s := &StdIO{
		reader:   reader,
		writer:   writer,
		sessions: sessions,
		broker:   broker,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithStdIOLogger sets the logger for the stdio transport. The logger should
// write somewhere other than the transport's writer, or log lines will
// corrupt the message framing.
func WithStdIOLogger(logger *slog.Logger) StdIOOption {
	return func(s *StdIO) {
		s.logger = logger.With(
			slog.String("package", "gomcp"),
			slog.String("component", "stdio"),
		)
	}
}

// Run creates the transport's session and pumps messages in both directions
// until the reader reaches EOF or the context is cancelled. It blocks for
// the lifetime of the connection and returns nil on a clean EOF.
func (s *StdIO) Run(ctx context.Context) error {
	sess := s.sessions.Initialize()
	s.logger.Info("session connected", slog.String("sessionID", sess.ID))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := s.broker.Messages(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to open session stream: %w", err)
	}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for ev := range events {
			if ev.Type != EventTypeMessage {
				continue
			}
			if _, err := fmt.Fprintf(s.writer, "%s\n", ev.Data); err != nil {
				s.logger.Error("failed to write message", "err", err)
				cancel()
				return
			}
		}
	}()

	err = s.readMessages(ctx, sess.ID)

	// Unblock the event stream and wait for the writer to drain.
	cancel()
	<-writeDone

	s.logger.Info("session disconnected", slog.String("sessionID", sess.ID))
	return err
}

func (s *StdIO) readMessages(ctx context.Context, sessionID string) error {
	// Use bufio.Reader instead of bufio.Scanner to avoid max token size errors.
	reader := bufio.NewReader(s.reader)
	for {
		type lineWithErr struct {
			line string
			err  error
		}

		lines := make(chan lineWithErr)

		// Reads happen in a goroutine so cancellation is observed even while
		// blocked on a slow reader.
		go func() {
			line, err := reader.ReadString('\n')
			if err != nil {
				select {
				case lines <- lineWithErr{err: err}:
				default:
				}
				return
			}
			select {
			case lines <- lineWithErr{line: strings.TrimSuffix(line, "\n")}:
			default:
			}
		}()

		var lwe lineWithErr
		select {
		case <-ctx.Done():
			return ctx.Err()
		case lwe = <-lines:
		}

		if lwe.err != nil {
			if errors.Is(lwe.err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", lwe.err)
		}

		if lwe.line == "" {
			continue
		}

		var msg JSONRPCMessage
		if err := json.Unmarshal([]byte(lwe.line), &msg); err != nil {
			s.logger.Error("failed to unmarshal message", "err", err)
			continue
		}

		if err := s.broker.Offer(ctx, Message{SessionID: sessionID, Payload: msg}); err != nil {
			return fmt.Errorf("failed to queue message: %w", err)
		}
	}
}
