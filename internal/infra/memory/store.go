package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trivia-bot-service/internal/domain"
)

// Store is an in-memory implementation of the quiz store contract. It backs
// tests and postgres-less deployments; every operation applies atomically
// under one mutex, mirroring the one-transaction-per-operation rule.
type Store struct {
	award int
	clock func() time.Time

	mu             sync.Mutex
	users          map[int64]*domain.User
	questions      map[int64]*domain.Question
	responses      []*domain.Response
	guilds         map[int64]*domain.GuildConfig
	nextQuestionID int64
	nextResponseID int64
}

func NewStore(award int) *Store {
	return NewStoreWithClock(award, time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(award int, clock func() time.Time) *Store {
	return &Store{
		award:     award,
		clock:     clock,
		users:     make(map[int64]*domain.User),
		questions: make(map[int64]*domain.Question),
		guilds:    make(map[int64]*domain.GuildConfig),
	}
}

func (s *Store) UpsertUser(_ context.Context, id int64, name string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		user = &domain.User{ID: id, Name: name}
		s.users[id] = user
	} else if user.Name != name {
		user.Name = name
	}
	copied := *user
	return &copied, nil
}

func (s *Store) RecordQuestion(_ context.Context, topic, prompt string, options map[string]string, correctAnswer, explanation string, channelID *int64) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuestionID++
	question := &domain.Question{
		ID:            s.nextQuestionID,
		ChannelID:     channelID,
		Topic:         topic,
		Prompt:        prompt,
		Options:       options,
		CorrectAnswer: correctAnswer,
		Explanation:   explanation,
		CreatedAt:     s.clock(),
	}
	s.questions[question.ID] = question
	copied := *question
	return &copied, nil
}

func (s *Store) AttachMessageID(_ context.Context, questionID, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.questions[questionID]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	question.MessageID = &messageID
	return nil
}

// RecordResponse creates the user row if absent, refreshes name and
// last-answer time, applies scoring once, and inserts the response. A second
// response for the same (question, user) pair fails with ErrDuplicateResponse
// and leaves everything untouched.
func (s *Store) RecordResponse(_ context.Context, questionID, userID int64, userName, answer string, isCorrect bool) (*domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.responses {
		if existing.QuestionID == questionID && existing.UserID == userID {
			return nil, domain.ErrDuplicateResponse
		}
	}

	now := s.clock()
	user, ok := s.users[userID]
	if !ok {
		user = &domain.User{ID: userID, Name: userName}
		s.users[userID] = user
	}
	user.Name = userName
	user.LastAnswerTime = &now
	if isCorrect {
		user.Score += s.award
		user.Correct++
	} else {
		user.Wrong++
	}

	s.nextResponseID++
	response := &domain.Response{
		ID:         s.nextResponseID,
		QuestionID: questionID,
		UserID:     userID,
		Answer:     answer,
		IsCorrect:  isCorrect,
		AnsweredAt: now,
	}
	s.responses = append(s.responses, response)
	copied := *response
	return &copied, nil
}

func (s *Store) HasUserAnswered(_ context.Context, questionID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, response := range s.responses {
		if response.QuestionID == questionID && response.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// FirstCorrectResponse returns the earliest correct response for a question,
// or nil when the question is unsolved. Ties on timestamp break by insertion
// order.
func (s *Store) FirstCorrectResponse(_ context.Context, questionID int64) (*domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var winner *domain.Response
	for _, response := range s.responses {
		if response.QuestionID != questionID || !response.IsCorrect {
			continue
		}
		if winner == nil || response.AnsweredAt.Before(winner.AnsweredAt) {
			winner = response
		}
	}
	if winner == nil {
		return nil, nil
	}
	copied := *winner
	return &copied, nil
}

func (s *Store) Question(_ context.Context, id int64) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	copied := *question
	return &copied, nil
}

func (s *Store) LatestQuestionForChannel(_ context.Context, channelID int64) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.Question
	for _, question := range s.questions {
		if question.ChannelID == nil || *question.ChannelID != channelID {
			continue
		}
		if latest == nil || question.CreatedAt.After(latest.CreatedAt) ||
			(question.CreatedAt.Equal(latest.CreatedAt) && question.ID > latest.ID) {
			latest = question
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *Store) RecentQuestions(_ context.Context, limit int) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	questions := make([]domain.Question, 0, len(s.questions))
	for _, question := range s.questions {
		questions = append(questions, *question)
	}
	sort.Slice(questions, func(i, j int) bool {
		if !questions[i].CreatedAt.Equal(questions[j].CreatedAt) {
			return questions[i].CreatedAt.After(questions[j].CreatedAt)
		}
		return questions[i].ID > questions[j].ID
	})
	if limit > 0 && len(questions) > limit {
		questions = questions[:limit]
	}
	return questions, nil
}

func (s *Store) ChannelsWithQuestions(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int64]struct{}{}
	var channels []int64
	for _, question := range s.questions {
		if question.ChannelID == nil {
			continue
		}
		if _, ok := seen[*question.ChannelID]; ok {
			continue
		}
		seen[*question.ChannelID] = struct{}{}
		channels = append(channels, *question.ChannelID)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels, nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Score != users[j].Score {
			return users[i].Score > users[j].Score
		}
		return users[i].Correct > users[j].Correct
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *Store) UserStats(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *Store) UserHistory(_ context.Context, userID int64) ([]domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var history []domain.Response
	for _, response := range s.responses {
		if response.UserID == userID {
			history = append(history, *response)
		}
	}
	sort.Slice(history, func(i, j int) bool {
		if !history[i].AnsweredAt.Equal(history[j].AnsweredAt) {
			return history[i].AnsweredAt.After(history[j].AnsweredAt)
		}
		return history[i].ID > history[j].ID
	})
	return history, nil
}

func (s *Store) ResetScores(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		user.Score = 0
		user.Correct = 0
		user.Wrong = 0
	}
	return nil
}

func (s *Store) GuildConfig(_ context.Context, guildID int64) (*domain.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.guilds[guildID]
	if !ok {
		cfg = &domain.GuildConfig{GuildID: guildID}
		s.guilds[guildID] = cfg
	}
	copied := *cfg
	return &copied, nil
}

func (s *Store) UpdateGuildConfig(_ context.Context, guildID int64, patch domain.GuildConfigPatch) (*domain.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.guilds[guildID]
	if !ok {
		cfg = &domain.GuildConfig{GuildID: guildID}
		s.guilds[guildID] = cfg
	}
	if patch.DailyChannelID != nil {
		cfg.DailyChannelID = patch.DailyChannelID
	}
	if patch.AdminRoleID != nil {
		cfg.AdminRoleID = patch.AdminRoleID
	}
	copied := *cfg
	return &copied, nil
}

func (s *Store) ListGuildConfigs(_ context.Context) ([]domain.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	configs := make([]domain.GuildConfig, 0, len(s.guilds))
	for _, cfg := range s.guilds {
		configs = append(configs, *cfg)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].GuildID < configs[j].GuildID })
	return configs, nil
}
