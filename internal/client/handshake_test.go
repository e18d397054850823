package client

import (
	"encoding/base64"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amariwan/cmd-chat/internal/crypto"
	"github.com/amariwan/cmd-chat/internal/protocol"
)

func TestPerformHandshake(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()

	sessionKey, err := crypto.GenerateSymmetricKey()
	require.NoError(t, err)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- func() error {
			var hello protocol.Hello
			if err := protocol.ReadMessage(serverEnd, &hello); err != nil {
				return err
			}
			pub, err := crypto.ParsePublicKey([]byte(hello.PublicKey))
			if err != nil {
				return err
			}
			wrapped, err := crypto.EncryptForPublicKey(pub, sessionKey)
			if err != nil {
				return err
			}
			return protocol.WriteMessage(serverEnd, protocol.HandshakeOK{
				Type:              protocol.TypeHandshakeOK,
				ClientID:          7,
				Room:              "dev",
				Renderer:          "rich",
				BufferSize:        200,
				HeartbeatInterval: 15,
				NonceSize:         crypto.NonceSize,
				EncryptedKey:      base64.StdEncoding.EncodeToString(wrapped),
			})
		}()
	}()

	cfg := &Config{Renderer: "rich", BufferSize: 200}
	cipher, reply, err := performHandshake(clientEnd, cfg, "alice", "dev")
	require.NoError(t, err)
	require.NoError(t, <-serverErr)

	assert.Equal(t, 7, reply.ClientID)
	assert.Equal(t, "dev", reply.Room)
	assert.Equal(t, sessionKey, cipher.Key(), "unwrapped key matches the server's")
}

func TestPerformHandshakeRejected(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()

	go func() {
		var hello protocol.Hello
		_ = protocol.ReadMessage(serverEnd, &hello)
		_ = protocol.WriteMessage(serverEnd, protocol.NewHandshakeError("unauthorized"))
	}()

	cfg := &Config{Renderer: "rich", BufferSize: 200}
	_, _, err := performHandshake(clientEnd, cfg, "alice", "lobby")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake rejected (unauthorized)")
}

func TestPerformHandshakeUnexpectedReply(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()

	go func() {
		var hello protocol.Hello
		_ = protocol.ReadMessage(serverEnd, &hello)
		_ = protocol.WriteMessage(serverEnd, map[string]string{"type": "chat"})
	}()

	cfg := &Config{Renderer: "rich", BufferSize: 200}
	_, _, err := performHandshake(clientEnd, cfg, "alice", "lobby")
	assert.Error(t, err)
}
