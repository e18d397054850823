package server

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amariwan/cmd-chat/internal/crypto"
	"github.com/amariwan/cmd-chat/internal/protocol"
)

// Session is the server-side record of one authenticated connection.
//
// Ownership: the dispatcher goroutine owns Name and rateWindow; Room is
// mutated only under the registry lock (Registry.Move); lastSeen is an
// atomic written by the dispatcher and read lock-free by the heartbeat
// supervisor. All writes to the connection go through Send/SendClear,
// which serialize on writeMu so frames never interleave.
type Session struct {
	ClientID   int
	Name       string
	Room       string
	Renderer   string
	BufferSize int

	conn   net.Conn
	cipher *crypto.SymmetricCipher

	writeMu   sync.Mutex
	lastSeen  atomic.Int64 // unix nanoseconds
	closeOnce sync.Once
	closed    atomic.Bool

	// rateWindow holds recent chat-send times, trimmed to rateLimitWindow.
	rateWindow []time.Time
}

// NewSession binds a connection and its negotiated cipher into a session.
func NewSession(clientID int, name, room, renderer string, bufferSize int, conn net.Conn, cipher *crypto.SymmetricCipher) *Session {
	s := &Session{
		ClientID:   clientID,
		Name:       name,
		Room:       room,
		Renderer:   renderer,
		BufferSize: bufferSize,
		conn:       conn,
		cipher:     cipher,
	}
	s.Touch(time.Now())
	return s
}

// Touch records inbound activity.
func (s *Session) Touch(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}

// LastSeen returns the time of the last decoded inbound payload.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Send serializes payload, encrypts it with the session cipher, and
// writes one envelope frame under the session write lock.
func (s *Session) Send(payload any) error {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	nonce, ciphertext, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	envelope := protocol.Envelope{
		Type:       protocol.TypeEncrypted,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteMessage(s.conn, envelope)
}

// SendClear writes one unencrypted frame; only handshake replies use it.
func (s *Session) SendClear(msg any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteMessage(s.conn, msg)
}

// Decrypt opens a received envelope's base64 fields.
func (s *Session) Decrypt(nonceB64, ciphertextB64 string) ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, err
	}
	return s.cipher.Decrypt(nonce, ciphertext)
}

// Close shuts the underlying connection. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		_ = s.conn.Close()
	})
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// RemoteAddr exposes the peer address for logging.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
