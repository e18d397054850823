package server

import (
	"time"

	"github.com/amariwan/cmd-chat/internal/protocol"
	"github.com/amariwan/cmd-chat/internal/sanitize"
)

// heartbeatLoop pings one session every heartbeatInterval and evicts it
// when no inbound payload has arrived within heartbeatTimeout. Liveness
// comes from lastSeen, which the dispatcher refreshes on every decoded
// payload, so regular chat traffic keeps a session alive even if pongs
// are lost.
func (s *Server) heartbeatLoop(sess *Session, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
		}

		idle := time.Since(sess.LastSeen())
		if idle > heartbeatTimeout {
			s.evict(sess, idle)
			return
		}
		if err := sess.Send(protocol.NewPing()); err != nil {
			// Closing the conn wakes the dispatcher, which runs teardown.
			sess.Close()
			return
		}
	}
}

// evict removes a timed-out session. Closing the connection unblocks
// its dispatcher read; teardown there finds the registry entry already
// gone and stays quiet, so the room hears exactly one notice.
func (s *Server) evict(sess *Session, idle time.Duration) {
	removed := s.registry.Remove(sess.ClientID)
	sess.Close()
	if removed == nil {
		return
	}
	metricHeartbeatEvictions.Inc()
	s.logger.Warn().
		Int("client_id", removed.ClientID).
		Str("name", sanitize.LogData(removed.Name)).
		Dur("idle", idle).
		Msg("session evicted by heartbeat timeout")
	s.broadcast(protocol.NewSystem(removed.Name+" left the chat.", removed.Room, removed.ClientID), removed.Room, removed.ClientID)
}
