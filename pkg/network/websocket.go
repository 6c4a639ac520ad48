package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/messages"
	"github.com/cbodonnell/wordrush/pkg/metrics"
	"nhooyr.io/websocket"
)

// wsReadLimit is above messages.MessageBufferSize so oversized frames get a
// diagnostic instead of a closed connection.
const wsReadLimit = 32 * 1024

func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	session := NewSession(claims.UID, s.sendBufferSize)
	log.Debug("New WebSocket connection %s for %s from %s", session.ID, session.Identity, r.RemoteAddr)
	s.handleWSConnection(r.Context(), conn, session)
}

// handleWSConnection runs the session until the socket closes.
func (s *WSServer) handleWSConnection(ctx context.Context, conn *websocket.Conn, session *Session) {
	ctx, cancel := context.WithCancel(ctx)
	metrics.SessionOpened()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writeLoop(ctx, conn, session)
	}()

	joined := false
	// broadcasts committed after Join must reach the client after its welcome
	session.HoldBroadcasts()
	s.group.Add(session)
	defer func() {
		s.group.Remove(session)
		session.Close()
		cancel()
		<-writerDone
		if joined {
			// the request context is gone by now
			if err := s.coordinator.Disconnect(context.Background(), session.Identity); err != nil {
				log.Warn("Failed to disconnect %s: %v", session.Identity, err)
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
		metrics.SessionClosed()
		log.Info("Session %s for %s closed", session.ID, session.Identity)
	}()

	welcome, err := s.coordinator.Join(ctx, session.Identity)
	if err != nil {
		log.Error("Failed to join %s: %v", session.Identity, err)
		return
	}
	joined = true
	log.Info("Session %s joined as %s", session.ID, session.Identity)
	s.sendPrivate(session, messages.MessageTypeServerWelcome, &messages.Welcome{
		TargetWord:         welcome.TargetWord,
		CompletedIn:        welcome.CompletedIn,
		CompletedFrom:      welcome.CompletedFrom,
		WordOptions:        welcome.StarterWords,
		Leaderboard:        welcome.Leaderboard,
		PreviousTargetWord: welcome.PreviousTargetWord,
	})
	if err := session.ReleaseBroadcasts(); err != nil {
		log.Warn("Dropped broadcasts for session %s: %v", session.ID, err)
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && !errors.Is(err, context.Canceled) {
				log.Debug("Error reading from session %s: %v", session.ID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			s.sendDiagnostic(session, fmt.Errorf("%w: expected a text frame", messages.ErrInvalidMessage))
			continue
		}
		s.handleMessage(ctx, session, data)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, session *Session, data []byte) {
	msg, err := messages.DeserializeSelectWord(data)
	if err != nil {
		log.Debug("Invalid message from session %s: %v", session.ID, err)
		s.sendDiagnostic(session, err)
		return
	}

	result, err := s.coordinator.SelectWord(ctx, session.Identity, msg.Word)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("Failed to select %q for %s: %v", msg.Word, session.Identity, err)
		s.sendDiagnostic(session, err)
		return
	}
	if result.Completed {
		return
	}
	s.sendPrivate(session, messages.MessageTypeServerWordOptions, &messages.WordOptions{
		WordOptions: result.Options,
	})
}

func (s *WSServer) sendDiagnostic(session *Session, err error) {
	s.sendPrivate(session, messages.MessageTypeServerError, messages.NewErrorMessage(err))
}

func (s *WSServer) sendPrivate(session *Session, messageType string, msg interface{}) {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		log.Error("Failed to serialize %s message: %v", messageType, err)
		return
	}
	if err := session.Send(b); err != nil {
		log.Warn("Dropped %s message for session %s: %v", messageType, session.ID, err)
	}
}

func (s *WSServer) writeLoop(ctx context.Context, conn *websocket.Conn, session *Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			return
		case b := <-session.Outbound():
			if err := writeMessageToWS(ctx, conn, b, s.writeTimeout); err != nil {
				log.Debug("Failed to write to session %s: %v", session.ID, err)
				return
			}
		}
	}
}

// writeMessageToWS writes a text frame to a WebSocket connection
func writeMessageToWS(ctx context.Context, conn *websocket.Conn, b []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}
	return nil
}
