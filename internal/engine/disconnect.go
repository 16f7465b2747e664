package engine

// disconnect applies the transport's report that userID left the room.
// Before the game starts it is a leave; mid-round the player takes the
// forfeit card so resolution never has to handle a missing hand.
func (s *Session) disconnect(userID string) {
	p, ok := s.participants[userID]
	if !ok {
		return
	}
	s.logger.Info().Str("user_id", userID).Str("phase", string(s.phase)).Msg("Participant disconnected")

	switch {
	case s.phase.Accepting():
		s.withdraw(p, "disconnected")
	case s.Variant == Elimination && p.Active:
		s.forfeit(p, "disconnected")
	}
}
