package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "alice", "alice"},
		{"trimmed", "  alice  ", "alice"},
		{"strips punctuation", "al<i>ce!", "alice"},
		{"keeps spaces dashes underscores", "a b-c_d", "a b-c_d"},
		{"empty", "", "anonymous"},
		{"whitespace only", "   ", "anonymous"},
		{"fully stripped", "<<<>>>", "anonymous"},
		{"truncated", strings.Repeat("a", 40), strings.Repeat("a", 32)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Name(tc.in))
		})
	}
}

func TestNameIdempotent(t *testing.T) {
	for _, in := range []string{"alice", "  bob!  ", "", strings.Repeat("x", 64)} {
		once := Name(in)
		assert.Equal(t, once, Name(once))
	}
}

func TestRoom(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercased", "LOBBY", "lobby"},
		{"trimmed", "  Dev  ", "dev"},
		{"empty", "", "lobby"},
		{"truncated", strings.Repeat("R", 40), strings.Repeat("r", 32)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Room(tc.in))
		})
	}
}

func TestBasename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"/etc/passwd", "passwd"},
		{"..\\..\\windows\\system32\\cmd.exe", "cmd.exe"},
		{"dir/", "dir"},
		{".", "unnamed_file"},
		{"..", "unnamed_file"},
		{"", "unnamed_file"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Basename(tc.in), "input %q", tc.in)
	}
}

func TestToken(t *testing.T) {
	long := "supersecrettoken123"
	short := "abc"
	assert.Equal(t, "None", Token(nil))
	assert.Equal(t, "***", Token(&short))
	assert.Equal(t, "supe***n123", Token(&long))

	empty := ""
	assert.Equal(t, "", Token(&empty))
}

func TestLogData(t *testing.T) {
	assert.Equal(t, "<empty>", LogData(""))
	assert.Equal(t, "hello", LogData("hello"))

	long := strings.Repeat("x", 100)
	got := LogData(long)
	assert.Contains(t, got, "...")
	assert.Contains(t, got, "100 chars total")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", TruncateRunes("héllo", 10))
	assert.Equal(t, "hél", TruncateRunes("héllo", 3))
	assert.Equal(t, "", TruncateRunes("", 5))
}
