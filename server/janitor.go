package server

import "time"

// StaleRoomAge is how long a waiting room may sit idle before the
// janitor deletes it.
const StaleRoomAge = time.Hour

// JanitorInterval is how often the sweep runs.
const JanitorInterval = time.Minute

// RunJanitor periodically deletes waiting rooms older than maxAge.
// Blocks until Shutdown; run it on its own goroutine. Sessions still
// attached to a swept room fail their next command with
// room_not_found.
func (s *Server) RunJanitor(interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if _, err := s.CleanupStaleRooms(maxAge); err != nil {
				s.log.WithError(err).Error("janitor sweep failed")
			}
		}
	}
}

// CleanupStaleRooms runs one sweep and returns how many rooms went.
func (s *Server) CleanupStaleRooms(maxAge time.Duration) (int64, error) {
	swept, err := s.store.DeleteStaleWaiting(time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.log.Infof("janitor swept %d stale room(s)", swept)
	}
	return swept, nil
}
