package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampFormat(t *testing.T) {
	ts := Timestamp()

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, 5*time.Second)

	// UTC with explicit offset and microsecond precision.
	assert.True(t, strings.HasSuffix(ts, "+00:00"), "timestamp %q must carry +00:00", ts)
	dot := strings.Index(ts, ".")
	require.Positive(t, dot)
	assert.Len(t, ts[dot+1:len(ts)-len("+00:00")], 6)
}

func TestChatMessageKeyOrder(t *testing.T) {
	msg := NewChat("alice", "hi", "lobby", 3, 7)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	wantOrder := []string{"type", "sender", "message", "client_id", "room", "timestamp", "sequence"}
	last := -1
	for _, key := range wantOrder {
		idx := strings.Index(string(raw), `"`+key+`"`)
		require.Positive(t, idx, "missing key %s", key)
		assert.Greater(t, idx, last, "key %s out of order", key)
		last = idx
	}
}

func TestFileChunkSerializesZeroValues(t *testing.T) {
	msg := NewFileChunk("alice", "f1", 0, "AAAA", false, "lobby", 3)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	// Fixed-shape payloads must not drop false/zero fields.
	assert.Contains(t, string(raw), `"chunk_index":0`)
	assert.Contains(t, string(raw), `"is_final":false`)
}

func TestPayloadSupersetDecodesAllVariants(t *testing.T) {
	chat := NewChat("bob", "hello", "dev", 2, 1)
	raw, err := json.Marshal(chat)
	require.NoError(t, err)

	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, TypeChat, p.Type)
	assert.Equal(t, "bob", p.Sender)
	assert.Equal(t, 1, p.Sequence)
	assert.Equal(t, "dev", p.Room)
}
