package server

import (
	"strings"
	"time"

	"github.com/amariwan/cmd-chat/internal/protocol"
	"github.com/amariwan/cmd-chat/internal/sanitize"
)

// handleChat rate-limits, sequences, and fans out one chat line. Text
// is truncated but otherwise delivered verbatim, whitespace included.
// The sender receives their own message back like everyone else.
func (s *Server) handleChat(sess *Session, p *protocol.Payload) {
	message := sanitize.TruncateRunes(p.Message, maxMessageRunes)

	if !sess.allowChat(time.Now()) {
		metricRateLimitedChats.Inc()
		s.logger.Warn().
			Int("client_id", sess.ClientID).
			Str("name", sanitize.LogData(sess.Name)).
			Msg("chat dropped by rate limit")
		if err := sess.Send(protocol.NewSystem("Slow down – message rate limit reached.", sess.Room, sess.ClientID)); err != nil {
			s.reap(sess)
		}
		return
	}

	seq := s.registry.NextSequence(sess.Room)
	s.registry.IncrementMessages()
	s.broadcast(protocol.NewChat(sess.Name, message, sess.Room, sess.ClientID, seq), sess.Room, 0)
}

// handleSystemNote rebroadcasts a client-authored notice to its room
// verbatim. Clients use this for presence notes ("X connected."); the
// server re-stamps it so the room sees a normal system message.
func (s *Server) handleSystemNote(sess *Session, p *protocol.Payload) {
	s.broadcast(protocol.NewSystem(p.Message, sess.Room, sess.ClientID), sess.Room, 0)
}

// allowChat applies the sliding-window rate limit. The attempt's
// timestamp is recorded before the check, so rejected attempts keep
// occupying the window and sustained flooding extends the limit. The
// window slice is touched only by the owning dispatcher goroutine.
func (sess *Session) allowChat(now time.Time) bool {
	sess.rateWindow = append(sess.rateWindow, now)

	cutoff := now.Add(-rateLimitWindow)
	kept := sess.rateWindow[:0]
	for _, t := range sess.rateWindow {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	sess.rateWindow = kept

	return len(sess.rateWindow) <= rateLimitMax
}

// handleRename changes the session's display name and announces it.
// Blank input is ignored; sanitizing may still land on the same name,
// which is also a no-op.
func (s *Server) handleRename(sess *Session, p *protocol.Payload) {
	if strings.TrimSpace(p.Name) == "" {
		return
	}
	newName := sanitize.Name(p.Name)
	if newName == sess.Name {
		return
	}
	oldName := sess.Name
	sess.Name = newName

	s.logger.Info().
		Int("client_id", sess.ClientID).
		Str("old", sanitize.LogData(oldName)).
		Str("new", sanitize.LogData(newName)).
		Msg("client renamed")
	s.broadcast(protocol.NewSystem(oldName+" is now known as "+newName+".", sess.Room, sess.ClientID), sess.Room, 0)
}

// handleSwitchRoom moves the session between rooms, notifying both
// sides in a fixed order: old room, then the move, then the mover's
// confirmation, then the new room. The mover gets a direct
// confirmation rather than the join notice, so their own transition
// reads in the first person.
func (s *Server) handleSwitchRoom(sess *Session, p *protocol.Payload) {
	if strings.TrimSpace(p.Room) == "" {
		return
	}
	newRoom := sanitize.Room(p.Room)
	// Room is only ever mutated by this dispatcher via Move, so the
	// lock-free read is safe.
	oldRoom := sess.Room
	if oldRoom == newRoom {
		return
	}

	s.broadcast(protocol.NewSystem(sess.Name+" left the room.", oldRoom, sess.ClientID), oldRoom, sess.ClientID)
	s.registry.Move(sess, newRoom)
	if err := sess.Send(protocol.NewSystem("Joined room "+newRoom+".", newRoom, sess.ClientID)); err != nil {
		s.reap(sess)
		return
	}
	s.broadcast(protocol.NewSystem(sess.Name+" joined the room.", newRoom, sess.ClientID), newRoom, sess.ClientID)
	s.logger.Info().
		Int("client_id", sess.ClientID).
		Str("from", sanitize.LogData(oldRoom)).
		Str("to", sanitize.LogData(newRoom)).
		Msg("client switched room")
}

// handleFileInit validates a transfer announcement and forwards it to
// the whole room, sender included. Any invalid announcement earns the
// sender a rejection notice; nobody else hears about it. The server
// never buffers file content; it only relays.
func (s *Server) handleFileInit(sess *Session, p *protocol.Payload) {
	if p.FileID == "" || p.Filesize <= 0 || p.Filesize > maxFileSize || p.TotalChunks <= 0 {
		s.logger.Warn().
			Int("client_id", sess.ClientID).
			Str("file_id", sanitize.LogData(p.FileID)).
			Int64("filesize", p.Filesize).
			Int("total_chunks", p.TotalChunks).
			Msg("file transfer rejected")
		if err := sess.Send(protocol.NewSystem("File transfer rejected: invalid size (max 10MB).", sess.Room, sess.ClientID)); err != nil {
			s.reap(sess)
		}
		return
	}
	filename := sanitize.Filename(sanitize.Basename(p.Filename))

	s.logger.Info().
		Int("client_id", sess.ClientID).
		Str("file_id", p.FileID).
		Str("filename", sanitize.LogData(filename)).
		Int64("filesize", p.Filesize).
		Int("total_chunks", p.TotalChunks).
		Msg("file transfer started")
	s.broadcast(protocol.NewFileInit(sess.Name, p.FileID, filename, p.Filesize, p.TotalChunks, sess.Room, sess.ClientID), sess.Room, 0)
}

// handleFileChunk relays one chunk to the room. The final chunk also
// produces a completion notice for everyone, sender included.
func (s *Server) handleFileChunk(sess *Session, p *protocol.Payload) {
	if p.FileID == "" {
		return
	}
	s.broadcast(protocol.NewFileChunk(sess.Name, p.FileID, p.ChunkIndex, p.ChunkData, p.IsFinal, sess.Room, sess.ClientID), sess.Room, sess.ClientID)
	if p.IsFinal {
		s.logger.Info().
			Int("client_id", sess.ClientID).
			Str("file_id", p.FileID).
			Msg("file transfer completed")
		s.broadcast(protocol.NewSystem(sess.Name+" completed file transfer.", sess.Room, sess.ClientID), sess.Room, 0)
	}
}
