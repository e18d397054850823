package server

import "github.com/amariwan/cmd-chat/internal/sanitize"

// broadcast fans payload out to every member of room except exclude
// (0 excludes nobody; client ids start at 1). The member list is a
// snapshot, so no lock is held across writes. Sessions whose write
// fails are reaped after the full pass; reaping mid-iteration would
// mutate the room under the surviving members.
func (s *Server) broadcast(payload any, room string, exclude int) {
	members := s.registry.MembersOf(room)

	var stale []*Session
	for _, member := range members {
		if member.ClientID == exclude || member.Closed() {
			continue
		}
		if err := member.Send(payload); err != nil {
			s.logger.Warn().
				Int("client_id", member.ClientID).
				Err(err).
				Msg("broadcast write failed")
			stale = append(stale, member)
		}
	}

	for _, member := range stale {
		s.reap(member)
	}
}

// reap drops a session whose connection proved dead during a broadcast.
// The departure notice goes to whatever room the session was in at
// removal time.
func (s *Server) reap(sess *Session) {
	removed := s.registry.Remove(sess.ClientID)
	if removed == nil {
		return
	}
	removed.Close()
	metricReapedSessions.Inc()
	s.logger.Info().
		Int("client_id", removed.ClientID).
		Str("name", sanitize.LogData(removed.Name)).
		Msg("session reaped after failed write")
}
