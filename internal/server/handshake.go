package server

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/amariwan/cmd-chat/internal/crypto"
	"github.com/amariwan/cmd-chat/internal/protocol"
	"github.com/amariwan/cmd-chat/internal/sanitize"
)

var allowedRenderers = map[string]struct{}{
	"rich":    {},
	"minimal": {},
	"json":    {},
}

// handshake reads the single cleartext hello, authenticates it, derives
// and transports the session key, and admits the session to the
// registry. Every error path sends a handshake_error reply first.
func (s *Server) handshake(conn net.Conn) (*Session, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var hello protocol.Hello
	if err := protocol.ReadMessage(conn, &hello); err != nil {
		return nil, errors.Wrap(err, "read handshake")
	}

	if hello.Type != protocol.TypeHandshake {
		s.rejectHandshake(conn, "expected_handshake")
		return nil, errors.Wrap(protocol.ErrProtocol, "expected handshake message")
	}
	if hello.PublicKey == "" {
		s.rejectHandshake(conn, "missing_public_key")
		return nil, errors.Wrap(protocol.ErrProtocol, "handshake missing public key")
	}

	if len(s.tokens) > 0 {
		authorized := hello.Token != nil
		if authorized {
			_, authorized = s.tokens[*hello.Token]
		}
		if !authorized {
			s.logger.Warn().
				Str("token", sanitize.Token(hello.Token)).
				Str("peer", conn.RemoteAddr().String()).
				Msg("unauthorized connection attempt")
			s.rejectHandshake(conn, "unauthorized")
			return nil, errors.Wrap(protocol.ErrProtocol, "unauthorized token")
		}
	}

	name := sanitize.Name(hello.Name)
	room := sanitize.Room(hello.Room)
	renderer := normalizeRenderer(hello.Renderer)
	bufferSize := clampBufferSize(hello.BufferSize)

	pub, err := crypto.ParsePublicKey([]byte(hello.PublicKey))
	if err != nil {
		s.rejectHandshake(conn, "missing_public_key")
		return nil, errors.Wrap(protocol.ErrProtocol, "unparseable public key")
	}
	key, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewSymmetricCipher(key)
	if err != nil {
		return nil, err
	}
	wrappedKey, err := crypto.EncryptForPublicKey(pub, key)
	if err != nil {
		s.rejectHandshake(conn, "missing_public_key")
		return nil, errors.Wrap(protocol.ErrProtocol, "key wrap failed")
	}

	clientID := s.registry.IssueID()
	session := NewSession(clientID, name, room, renderer, bufferSize, conn, cipher)
	s.registry.Insert(session)

	reply := protocol.HandshakeOK{
		Type:              protocol.TypeHandshakeOK,
		ClientID:          clientID,
		Room:              room,
		Renderer:          renderer,
		BufferSize:        bufferSize,
		HeartbeatInterval: heartbeatInterval.Seconds(),
		NonceSize:         crypto.NonceSize,
		EncryptedKey:      base64.StdEncoding.EncodeToString(wrappedKey),
	}
	if err := session.SendClear(reply); err != nil {
		s.registry.Remove(clientID)
		return nil, errors.Wrap(err, "write handshake reply")
	}

	s.broadcast(protocol.NewSystem(name+" joined the chat.", room, clientID), room, clientID)

	s.logger.Info().
		Int("client_id", clientID).
		Str("name", sanitize.LogData(name)).
		Str("room", sanitize.LogData(room)).
		Int("connected", s.registry.SessionCount()).
		Msg("client connected")
	return session, nil
}

func (s *Server) rejectHandshake(conn net.Conn, reason string) {
	metricHandshakeFailures.WithLabelValues(reason).Inc()
	_ = protocol.WriteMessage(conn, protocol.NewHandshakeError(reason))
}

func normalizeRenderer(raw string) string {
	renderer := strings.ToLower(strings.TrimSpace(sanitize.TruncateRunes(raw, 32)))
	if _, ok := allowedRenderers[renderer]; !ok {
		return "rich"
	}
	return renderer
}

func clampBufferSize(raw json.Number) int {
	size := 200
	if v, err := strconv.Atoi(raw.String()); err == nil {
		size = v
	}
	if size < 10 {
		size = 10
	}
	if size > 1000 {
		size = 1000
	}
	return size
}
