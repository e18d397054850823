package protocol

import (
	"encoding/json"
	"time"
)

// Wire message type tags.
const (
	TypeHandshake      = "handshake"
	TypeHandshakeOK    = "handshake_ok"
	TypeHandshakeError = "handshake_error"
	TypeEncrypted      = "encrypted"

	TypeChat       = "chat"
	TypeSystem     = "system"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeRename     = "rename"
	TypeSwitchRoom = "switch_room"
	TypeFileInit   = "file_init"
	TypeFileChunk  = "file_chunk"
)

// timestampLayout matches the original wire format: ISO-8601 UTC with
// microsecond precision and an explicit +00:00 offset.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Timestamp returns the current UTC time in wire format.
func Timestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

// Hello is the cleartext handshake sent by a connecting client.
type Hello struct {
	Type       string      `json:"type"`
	PublicKey  string      `json:"public_key,omitempty"`
	Name       string      `json:"name,omitempty"`
	Room       string      `json:"room,omitempty"`
	Token      *string     `json:"token,omitempty"`
	Renderer   string      `json:"renderer,omitempty"`
	BufferSize json.Number `json:"buffer_size,omitempty"`
}

// HandshakeOK is the cleartext server reply admitting a client.
type HandshakeOK struct {
	Type              string  `json:"type"`
	ClientID          int     `json:"client_id"`
	Room              string  `json:"room"`
	Renderer          string  `json:"renderer"`
	BufferSize        int     `json:"buffer_size"`
	HeartbeatInterval float64 `json:"heartbeat_interval"`
	NonceSize         int     `json:"nonce_size"`
	EncryptedKey      string  `json:"encrypted_key"`
}

// HandshakeError is the cleartext rejection reply.
type HandshakeError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// NewHandshakeError builds a rejection with the given reason.
func NewHandshakeError(reason string) HandshakeError {
	return HandshakeError{Type: TypeHandshakeError, Reason: reason}
}

// Envelope carries one AES-GCM encrypted payload. Every frame after a
// successful handshake, in either direction, is an Envelope.
type Envelope struct {
	Type       string `json:"type"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Payload is the decrypted inner message. It is the superset of all
// payload variants; which fields are meaningful depends on Type.
type Payload struct {
	Type        string `json:"type"`
	Sender      string `json:"sender,omitempty"`
	Message     string `json:"message,omitempty"`
	Name        string `json:"name,omitempty"`
	Room        string `json:"room,omitempty"`
	ClientID    int    `json:"client_id,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Sequence    int    `json:"sequence,omitempty"`
	FileID      string `json:"file_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Filesize    int64  `json:"filesize,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
	ChunkIndex  int    `json:"chunk_index,omitempty"`
	ChunkData   string `json:"chunk_data,omitempty"`
	IsFinal     bool   `json:"is_final,omitempty"`
}

// Server-authored payload shapes. Field order is fixed so serialization
// is byte-stable for a given input.

// ChatMessage is a delivered chat line with its per-room sequence.
type ChatMessage struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	ClientID  int    `json:"client_id"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
	Sequence  int    `json:"sequence"`
}

// SystemMessage is a server notice. ClientID identifies the subject of
// the notice, not the recipient.
type SystemMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ClientID  int    `json:"client_id"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
}

// PingMessage is the server heartbeat frame.
type PingMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// FileInitMessage announces an inbound file transfer to a room.
type FileInitMessage struct {
	Type        string `json:"type"`
	Sender      string `json:"sender"`
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	Filesize    int64  `json:"filesize"`
	TotalChunks int    `json:"total_chunks"`
	ClientID    int    `json:"client_id"`
	Room        string `json:"room"`
	Timestamp   string `json:"timestamp"`
}

// FileChunkMessage forwards one base64 chunk of an in-flight transfer.
type FileChunkMessage struct {
	Type       string `json:"type"`
	Sender     string `json:"sender"`
	FileID     string `json:"file_id"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkData  string `json:"chunk_data"`
	IsFinal    bool   `json:"is_final"`
	ClientID   int    `json:"client_id"`
	Room       string `json:"room"`
	Timestamp  string `json:"timestamp"`
}

// NewChat builds a server-authored chat payload.
func NewChat(sender, message, room string, clientID, sequence int) ChatMessage {
	return ChatMessage{
		Type:      TypeChat,
		Sender:    sender,
		Message:   message,
		ClientID:  clientID,
		Room:      room,
		Timestamp: Timestamp(),
		Sequence:  sequence,
	}
}

// NewSystem builds a server-authored system payload about clientID.
func NewSystem(message, room string, clientID int) SystemMessage {
	return SystemMessage{
		Type:      TypeSystem,
		Message:   message,
		ClientID:  clientID,
		Room:      room,
		Timestamp: Timestamp(),
	}
}

// NewPing builds a heartbeat frame.
func NewPing() PingMessage {
	return PingMessage{Type: TypePing, Timestamp: Timestamp()}
}

// NewFileInit builds a server-authored file transfer announcement.
func NewFileInit(sender, fileID, filename string, filesize int64, totalChunks int, room string, clientID int) FileInitMessage {
	return FileInitMessage{
		Type:        TypeFileInit,
		Sender:      sender,
		FileID:      fileID,
		Filename:    filename,
		Filesize:    filesize,
		TotalChunks: totalChunks,
		ClientID:    clientID,
		Room:        room,
		Timestamp:   Timestamp(),
	}
}

// NewFileChunk builds a server-authored chunk forward.
func NewFileChunk(sender, fileID string, chunkIndex int, chunkData string, isFinal bool, room string, clientID int) FileChunkMessage {
	return FileChunkMessage{
		Type:       TypeFileChunk,
		Sender:     sender,
		FileID:     fileID,
		ChunkIndex: chunkIndex,
		ChunkData:  chunkData,
		IsFinal:    isFinal,
		ClientID:   clientID,
		Room:       room,
		Timestamp:  Timestamp(),
	}
}
