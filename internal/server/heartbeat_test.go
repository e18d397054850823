package server

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amariwan/cmd-chat/internal/crypto"
)

func pipeSession(t *testing.T, id int, name, room string) (*Session, net.Conn) {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()
	t.Cleanup(func() {
		serverEnd.Close()
		clientEnd.Close()
	})
	key, err := crypto.GenerateSymmetricKey()
	require.NoError(t, err)
	cipher, err := crypto.NewSymmetricCipher(key)
	require.NoError(t, err)
	return NewSession(id, name, room, "rich", 200, serverEnd, cipher), clientEnd
}

func TestEvictRemovesSession(t *testing.T) {
	srv := New(&Config{}, zerolog.Nop())
	sess, _ := pipeSession(t, 1, "alice", "lobby")
	srv.registry.Insert(sess)

	srv.evict(sess, time.Minute)

	assert.Zero(t, srv.registry.SessionCount())
	assert.True(t, sess.Closed())

	// A second evict (the dispatcher racing the supervisor) is a no-op.
	srv.evict(sess, time.Minute)
	assert.Zero(t, srv.registry.SessionCount())
}

func TestTouchRefreshesLastSeen(t *testing.T) {
	sess, _ := pipeSession(t, 1, "alice", "lobby")
	old := sess.LastSeen()

	later := time.Now().Add(time.Minute)
	sess.Touch(later)
	assert.True(t, sess.LastSeen().After(old))
	assert.Equal(t, later.UnixNano(), sess.LastSeen().UnixNano())
}

func TestSessionCloseIdempotent(t *testing.T) {
	sess, _ := pipeSession(t, 1, "alice", "lobby")
	assert.False(t, sess.Closed())
	sess.Close()
	sess.Close()
	assert.True(t, sess.Closed())
}
