package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/amariwan/cmd-chat/internal/protocol"
	"github.com/amariwan/cmd-chat/internal/sanitize"
)

// serveSession is the dispatcher loop for one authenticated session. It
// owns all inbound reads; the paired heartbeat goroutine only writes.
// The loop exits on read error, decode error, or server shutdown, and
// teardown runs exactly once from here.
func (s *Server) serveSession(sess *Session) {
	defer s.teardown(sess)

	hbDone := make(chan struct{})
	defer close(hbDone)
	go s.heartbeatLoop(sess, hbDone)

	for {
		var envelope protocol.Envelope
		if err := protocol.ReadMessage(sess.conn, &envelope); err != nil {
			s.logDisconnect(sess, err)
			return
		}
		if envelope.Type != protocol.TypeEncrypted {
			s.logger.Warn().
				Int("client_id", sess.ClientID).
				Str("type", envelope.Type).
				Msg("cleartext frame after handshake")
			return
		}

		plaintext, err := sess.Decrypt(envelope.Nonce, envelope.Ciphertext)
		if err != nil {
			s.logger.Warn().
				Int("client_id", sess.ClientID).
				Err(err).
				Msg("undecryptable frame")
			return
		}
		var payload protocol.Payload
		if err := json.Unmarshal(plaintext, &payload); err != nil {
			s.logger.Warn().
				Int("client_id", sess.ClientID).
				Err(err).
				Msg("malformed payload")
			return
		}

		// Any decodable payload counts as liveness, before validation.
		sess.Touch(time.Now())

		switch payload.Type {
		case protocol.TypeChat:
			s.handleChat(sess, &payload)
		case protocol.TypePong:
			// Touch above is the whole effect.
		case protocol.TypeSystem:
			s.handleSystemNote(sess, &payload)
		case protocol.TypeRename:
			s.handleRename(sess, &payload)
		case protocol.TypeSwitchRoom:
			s.handleSwitchRoom(sess, &payload)
		case protocol.TypeFileInit:
			s.handleFileInit(sess, &payload)
		case protocol.TypeFileChunk:
			s.handleFileChunk(sess, &payload)
		default:
			// An unsupported type is a protocol violation, same as an
			// undecryptable frame.
			s.logger.Warn().
				Int("client_id", sess.ClientID).
				Str("type", payload.Type).
				Msg("unsupported payload type")
			return
		}
	}
}

// logDisconnect classifies the read error that ended a session. A clean
// close is expected traffic; anything else gets a visible notice so the
// room knows the peer did not leave on purpose.
func (s *Server) logDisconnect(sess *Session, err error) {
	if isExpectedClose(err) || sess.Closed() {
		s.logger.Debug().
			Int("client_id", sess.ClientID).
			Msg("connection closed")
		return
	}
	s.logger.Error().
		Int("client_id", sess.ClientID).
		Str("name", sanitize.LogData(sess.Name)).
		Err(err).
		Msg("session read failed")
	s.broadcast(protocol.NewSystem(sess.Name+" disconnected unexpectedly.", sess.Room, sess.ClientID), sess.Room, sess.ClientID)
}

func isExpectedClose(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

// teardown removes the session and tells the room. Safe to call after a
// heartbeat eviction already removed the registry entry.
func (s *Server) teardown(sess *Session) {
	removed := s.registry.Remove(sess.ClientID)
	sess.Close()
	if removed == nil {
		return
	}
	s.broadcast(protocol.NewSystem(removed.Name+" left the chat.", removed.Room, removed.ClientID), removed.Room, removed.ClientID)
	s.logger.Info().
		Int("client_id", removed.ClientID).
		Str("name", sanitize.LogData(removed.Name)).
		Int("connected", s.registry.SessionCount()).
		Msg("client disconnected")
}
