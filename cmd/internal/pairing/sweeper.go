package pairing

import "time"

// sweepLoop is the background expiry pass: sessions past expiry are
// announced and destroyed (cascading code and request removal), and
// pending requests past their own expiry are retired with a timeout
// notification to both roles.
func (s *Service) sweepLoop() {
	defer s.wg.Done()

	t := time.NewTicker(s.cfg.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

// Sweep runs one expiry pass. Exported so tests and scheduled callers can
// drive it directly.
func (s *Service) Sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.expired(now) {
			sessionsExpired.Inc()
			s.log.Info("session.expire", "session_id", sess.id)

			// Announce expiry first, then tear down (which emits the
			// disconnect notification as part of the cascade).
			s.sink.SessionExpired(sess.id)
			s.destroyLocked(sess, "expired", true)
			continue
		}

		s.expireSessionRequestsLocked(sess, now)
	}
}
