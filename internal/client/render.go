package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/amariwan/cmd-chat/internal/protocol"
)

// Renderer turns a decrypted payload into one display line.
type Renderer interface {
	Render(p *protocol.Payload) string
}

// NewRenderer is the renderer factory. Unknown names are an error so
// callers can fall back deliberately.
func NewRenderer(name string) (Renderer, error) {
	switch strings.ToLower(name) {
	case "rich":
		return richRenderer{}, nil
	case "minimal":
		return minimalRenderer{}, nil
	case "json":
		return jsonRenderer{}, nil
	case "plain":
		return plainRenderer{}, nil
	case "markdown":
		return markdownRenderer{}, nil
	default:
		return nil, errors.Errorf("unknown renderer type: %s", name)
	}
}

// formatClock converts a wire timestamp to local HH:MM:SS, with a
// placeholder for anything unparseable.
func formatClock(timestamp string) string {
	if timestamp == "" {
		return "--:--:--"
	}
	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return "--:--:--"
	}
	return t.Local().Format("15:04:05")
}

// formatFilesize renders a byte count for humans.
func formatFilesize(size int64) string {
	sb := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if sb < 1024.0 {
			return fmt.Sprintf("%.2f %s", sb, unit)
		}
		sb /= 1024.0
	}
	return fmt.Sprintf("%.2f TB", sb)
}

// richRenderer shows timestamps and chat sequence numbers.
type richRenderer struct{}

func (richRenderer) Render(p *protocol.Payload) string {
	ts := formatClock(p.Timestamp)
	if p.Type == protocol.TypeChat {
		seq := ""
		if p.Sequence > 0 {
			seq = fmt.Sprintf(" #%d", p.Sequence)
		}
		return fmt.Sprintf("[%s%s] %s: %s", ts, seq, senderOf(p), p.Message)
	}
	return fmt.Sprintf("[%s] [system] %s", ts, p.Message)
}

// minimalRenderer drops timestamps entirely.
type minimalRenderer struct{}

func (minimalRenderer) Render(p *protocol.Payload) string {
	if p.Type == protocol.TypeChat {
		return fmt.Sprintf("%s: %s", senderOf(p), p.Message)
	}
	return "[system] " + p.Message
}

// jsonRenderer emits the raw payload for machine consumers.
type jsonRenderer struct{}

func (jsonRenderer) Render(p *protocol.Payload) string {
	line, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf(`{"type":%q}`, p.Type)
	}
	return string(line)
}

// plainRenderer is rich without the brackets.
type plainRenderer struct{}

func (plainRenderer) Render(p *protocol.Payload) string {
	ts := formatClock(p.Timestamp)
	switch p.Type {
	case protocol.TypeChat:
		return fmt.Sprintf("%s %s: %s", ts, senderOf(p), p.Message)
	case protocol.TypeFileInit:
		return fmt.Sprintf("%s sent file %s (%d)", senderOf(p), p.Filename, p.Filesize)
	default:
		return fmt.Sprintf("%s [system] %s", ts, p.Message)
	}
}

// markdownRenderer produces transcript-friendly markdown lines.
type markdownRenderer struct{}

func (markdownRenderer) Render(p *protocol.Payload) string {
	ts := formatClock(p.Timestamp)
	switch p.Type {
	case protocol.TypeChat:
		return fmt.Sprintf("%s **%s**: %s", ts, senderOf(p), p.Message)
	case protocol.TypeFileInit:
		return fmt.Sprintf("**%s** sent `%s` (%d)", senderOf(p), p.Filename, p.Filesize)
	default:
		return fmt.Sprintf("%s *%s*", ts, p.Message)
	}
}

func senderOf(p *protocol.Payload) string {
	if p.Sender == "" {
		return "?"
	}
	return p.Sender
}
