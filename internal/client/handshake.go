package client

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"strconv"

	"github.com/pkg/errors"

	"github.com/amariwan/cmd-chat/internal/crypto"
	"github.com/amariwan/cmd-chat/internal/protocol"
)

// performHandshake generates a fresh RSA keypair, sends the cleartext
// hello, and unwraps the session key from the reply. A handshake_error
// from the server surfaces as an error with its reason.
func performHandshake(conn net.Conn, cfg *Config, name, room string) (*crypto.SymmetricCipher, *protocol.HandshakeOK, error) {
	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}

	hello := protocol.Hello{
		Type:       protocol.TypeHandshake,
		PublicKey:  string(keys.PublicKeyPEM),
		Name:       name,
		Room:       room,
		Token:      cfg.Token,
		Renderer:   cfg.Renderer,
		BufferSize: json.Number(strconv.Itoa(cfg.BufferSize)),
	}
	if err := protocol.WriteMessage(conn, hello); err != nil {
		return nil, nil, errors.Wrap(err, "send handshake")
	}

	// The reply is one of two cleartext shapes; decode generically first.
	var raw map[string]json.RawMessage
	if err := protocol.ReadMessage(conn, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "read handshake reply")
	}
	var replyType string
	_ = json.Unmarshal(raw["type"], &replyType)

	switch replyType {
	case protocol.TypeHandshakeError:
		var reason string
		_ = json.Unmarshal(raw["reason"], &reason)
		if reason == "" {
			reason = "unknown"
		}
		return nil, nil, errors.Errorf("handshake rejected (%s)", reason)
	case protocol.TypeHandshakeOK:
	default:
		return nil, nil, errors.New("unexpected handshake response from server")
	}

	reply := &protocol.HandshakeOK{}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, errors.Wrap(err, "re-encode handshake reply")
	}
	if err := json.Unmarshal(encoded, reply); err != nil {
		return nil, nil, errors.Wrap(err, "decode handshake reply")
	}
	if reply.EncryptedKey == "" {
		return nil, nil, errors.New("handshake missing encrypted session key")
	}

	wrapped, err := base64.StdEncoding.DecodeString(reply.EncryptedKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode encrypted session key")
	}
	key, err := crypto.DecryptWithPrivateKey(keys.Private, wrapped)
	if err != nil {
		return nil, nil, err
	}
	cipher, err := crypto.NewSymmetricCipher(key)
	if err != nil {
		return nil, nil, err
	}
	return cipher, reply, nil
}
