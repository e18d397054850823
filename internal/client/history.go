package client

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/amariwan/cmd-chat/internal/crypto"
	"github.com/amariwan/cmd-chat/internal/protocol"
)

// historyEnvelope is the on-disk shape of the encrypted transcript.
type historyEnvelope struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// History is the optional encrypted local transcript. The whole message
// list is re-encrypted on each append under a key derived from the
// passphrase; the salt is generated once and reused for the file's
// lifetime.
type History struct {
	mu         sync.Mutex
	path       string
	passphrase string
	salt       []byte
	messages   []protocol.Payload
}

// NewHistory opens (or initializes) the transcript at path. An existing
// file that cannot be decrypted is treated as blank rather than fatal:
// a wrong passphrase should not lock the user out of chatting.
func NewHistory(path, passphrase string) *History {
	h := &History{path: path, passphrase: passphrase}
	h.load()
	return h
}

func (h *History) load() {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		return
	}
	var env historyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return
	}
	key, err := crypto.DeriveKey(h.passphrase, salt)
	if err != nil {
		return
	}
	plaintext, err := crypto.DecryptWithKey(key, nonce, ciphertext)
	if err != nil {
		return
	}
	var messages []protocol.Payload
	if err := json.Unmarshal(plaintext, &messages); err != nil {
		return
	}
	h.salt = salt
	h.messages = messages
}

// Append records one payload and rewrites the encrypted file.
func (h *History) Append(p protocol.Payload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, p)
	return h.persist()
}

// Messages returns a copy of the decrypted transcript.
func (h *History) Messages() []protocol.Payload {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.Payload, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) persist() error {
	if h.salt == nil {
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return err
		}
		h.salt = salt
	}
	key, err := crypto.DeriveKey(h.passphrase, h.salt)
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(h.messages)
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	nonce, ciphertext, err := crypto.EncryptWithKey(key, plaintext)
	if err != nil {
		return err
	}
	env := historyEnvelope{
		Salt:       base64.StdEncoding.EncodeToString(h.salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode history envelope")
	}
	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "create history directory")
		}
	}
	return errors.Wrap(os.WriteFile(h.path, out, 0o600), "write history")
}
