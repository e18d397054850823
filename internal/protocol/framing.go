// Package protocol implements the CMD Chat wire format: length-prefixed
// JSON frames and the typed payloads they carry.
//
// A frame is a 4-byte big-endian unsigned length N followed by exactly N
// bytes of UTF-8 JSON. N must be in [1, 65536] and the JSON must decode to
// an object at the top level. Frames are never interleaved; writers hold
// the session write lock for the duration of one frame.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

const (
	// LengthPrefixSize is the number of bytes in the big-endian length prefix.
	LengthPrefixSize = 4

	// MaxFrameSize is the maximum frame body size in bytes.
	MaxFrameSize = 65536
)

// ErrProtocol is the base error for framing and protocol violations.
// Callers distinguish protocol errors (peer misbehavior, close without
// informing) from plain I/O errors (peer gone) via errors.Is.
var ErrProtocol = errors.New("protocol error")

// ReadFrame reads a single length-prefixed frame body from r.
// A short read surfaces as the underlying io error; an out-of-range
// length or malformed prefix wraps ErrProtocol.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n == 0 || n > MaxFrameSize {
		return nil, errors.Wrapf(ErrProtocol, "invalid frame length %d", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// ReadMessage reads one frame and decodes it into dst, which must be a
// pointer to a struct or map. The frame body must be a JSON object.
func ReadMessage(r io.Reader, dst any) error {
	body, err := ReadFrame(r)
	if err != nil {
		return err
	}
	if err := decodeObject(body, dst); err != nil {
		return errors.Wrap(ErrProtocol, "malformed JSON message")
	}
	return nil
}

// WriteMessage serializes msg as compact JSON and writes it as one frame.
// The caller is responsible for serializing concurrent writers.
func WriteMessage(w io.Writer, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	return WriteFrame(w, body)
}

// WriteFrame writes body as a single length-prefixed frame.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) == 0 || len(body) > MaxFrameSize {
		return errors.Wrapf(ErrProtocol, "frame body size %d out of range", len(body))
	}
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	// One buffered write so the prefix and body hit the socket together.
	buf := make([]byte, 0, LengthPrefixSize+len(body))
	buf = append(buf, prefix[:]...)
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

// decodeObject rejects frame bodies whose top level is not a JSON object.
func decodeObject(body []byte, dst any) error {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(body, &object); err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}
