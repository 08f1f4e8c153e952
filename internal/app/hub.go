package app

import (
	"context"

	"go.uber.org/zap"

	"trivia-bot-service/internal/domain"
)

// Subscribe returns a channel receiving leaderboard snapshots after every
// scored response. The caller must invoke the returned cancel function.
func (s *QuizService) Subscribe() (<-chan []domain.User, func()) {
	ch := make(chan []domain.User, 8)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

// broadcastLeaderboard pushes the current top entries to all subscribers.
// Slow consumers lose their stale snapshot rather than blocking the
// adjudication path.
func (s *QuizService) broadcastLeaderboard(ctx context.Context) {
	s.subMu.Lock()
	active := len(s.subscribers)
	s.subMu.Unlock()
	if active == 0 {
		return
	}
	leaderboard, err := s.store.Leaderboard(ctx, s.lbSize)
	if err != nil {
		s.logger.Warn("leaderboard broadcast skipped", zap.Error(err))
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- leaderboard:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- leaderboard
		}
	}
}
