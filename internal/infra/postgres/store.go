package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"trivia-bot-service/internal/domain"
)

// Store is the bun-backed implementation of the durable quiz store. Each
// method runs as a single statement or transaction; callers see domain
// sentinels for the conditions they branch on and ErrStorageUnavailable for
// infrastructure failures.
type Store struct {
	db    *bun.DB
	award int
	clock func() time.Time
}

func NewStore(db *bun.DB, award int) *Store {
	return NewStoreWithClock(db, award, time.Now)
}

func NewStoreWithClock(db *bun.DB, award int, clock func() time.Time) *Store {
	if award <= 0 {
		award = 10
	}
	return &Store{db: db, award: award, clock: clock}
}

func (s *Store) UpsertUser(ctx context.Context, id int64, name string) (*domain.User, error) {
	user := &domain.User{ID: id, Name: name}
	_, err := s.db.NewInsert().
		Model(user).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, storageErr("upsert user", err)
	}
	return user, nil
}

func (s *Store) RecordQuestion(ctx context.Context, topic, prompt string, options map[string]string, correctAnswer, explanation string, channelID *int64) (*domain.Question, error) {
	question := &domain.Question{
		Topic:         topic,
		Prompt:        prompt,
		Options:       options,
		CorrectAnswer: correctAnswer,
		Explanation:   explanation,
		ChannelID:     channelID,
		CreatedAt:     s.clock().UTC(),
	}
	if _, err := s.db.NewInsert().Model(question).Returning("*").Exec(ctx); err != nil {
		return nil, storageErr("record question", err)
	}
	return question, nil
}

func (s *Store) AttachMessageID(ctx context.Context, questionID, messageID int64) error {
	res, err := s.db.NewUpdate().
		Model((*domain.Question)(nil)).
		Set("message_id = ?", messageID).
		Where("id = ?", questionID).
		Exec(ctx)
	if err != nil {
		return storageErr("attach message id", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// RecordResponse persists the attempt and applies its scoring effects in one
// transaction: the user row is upserted with a fresh name and last answer
// time, the response is inserted, and the counters move. A duplicate
// (question, user) pair aborts the transaction with ErrDuplicateResponse, so
// the unique constraint holds even if two submissions race past the service
// locks.
func (s *Store) RecordResponse(ctx context.Context, questionID, userID int64, userName, answer string, isCorrect bool) (*domain.Response, error) {
	now := s.clock().UTC()
	response := &domain.Response{
		QuestionID: questionID,
		UserID:     userID,
		Answer:     answer,
		IsCorrect:  isCorrect,
		AnsweredAt: now,
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		user := &domain.User{ID: userID, Name: userName, LastAnswerTime: &now}
		if _, err := tx.NewInsert().
			Model(user).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("last_answer_time = EXCLUDED.last_answer_time").
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewInsert().Model(response).Returning("*").Exec(ctx); err != nil {
			return err
		}

		update := tx.NewUpdate().Model((*domain.User)(nil)).Where("id = ?", userID)
		if isCorrect {
			update = update.Set("score = score + ?", s.award).Set("correct = correct + 1")
		} else {
			update = update.Set("wrong = wrong + 1")
		}
		_, err := update.Exec(ctx)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateResponse
		}
		return nil, storageErr("record response", err)
	}
	return response, nil
}

func (s *Store) HasUserAnswered(ctx context.Context, questionID, userID int64) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*domain.Response)(nil)).
		Where("question_id = ?", questionID).
		Where("user_id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, storageErr("check response", err)
	}
	return exists, nil
}

func (s *Store) FirstCorrectResponse(ctx context.Context, questionID int64) (*domain.Response, error) {
	response := new(domain.Response)
	err := s.db.NewSelect().
		Model(response).
		Where("question_id = ?", questionID).
		Where("is_correct").
		Order("answered_at ASC", "id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("first correct response", err)
	}
	return response, nil
}

func (s *Store) Question(ctx context.Context, id int64) (*domain.Question, error) {
	question := new(domain.Question)
	err := s.db.NewSelect().Model(question).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, storageErr("load question", err)
	}
	return question, nil
}

func (s *Store) LatestQuestionForChannel(ctx context.Context, channelID int64) (*domain.Question, error) {
	question := new(domain.Question)
	err := s.db.NewSelect().
		Model(question).
		Where("channel_id = ?", channelID).
		Order("created_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("latest question", err)
	}
	return question, nil
}

func (s *Store) RecentQuestions(ctx context.Context, limit int) ([]domain.Question, error) {
	if limit <= 0 {
		limit = 5
	}
	var questions []domain.Question
	err := s.db.NewSelect().
		Model(&questions).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, storageErr("recent questions", err)
	}
	return questions, nil
}

func (s *Store) ChannelsWithQuestions(ctx context.Context) ([]int64, error) {
	var channels []int64
	err := s.db.NewSelect().
		Model((*domain.Question)(nil)).
		ColumnExpr("DISTINCT channel_id").
		Where("channel_id IS NOT NULL").
		Scan(ctx, &channels)
	if err != nil {
		return nil, storageErr("channels with questions", err)
	}
	return channels, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	var users []domain.User
	err := s.db.NewSelect().
		Model(&users).
		Order("score DESC", "correct DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, storageErr("leaderboard", err)
	}
	return users, nil
}

func (s *Store) UserStats(ctx context.Context, id int64) (*domain.User, error) {
	user := new(domain.User)
	err := s.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("user stats", err)
	}
	return user, nil
}

func (s *Store) UserHistory(ctx context.Context, userID int64) ([]domain.Response, error) {
	var responses []domain.Response
	err := s.db.NewSelect().
		Model(&responses).
		Where("user_id = ?", userID).
		Order("answered_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, storageErr("user history", err)
	}
	return responses, nil
}

func (s *Store) ResetScores(ctx context.Context) error {
	_, err := s.db.NewUpdate().
		Model((*domain.User)(nil)).
		Set("score = 0").
		Set("correct = 0").
		Set("wrong = 0").
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return storageErr("reset scores", err)
	}
	return nil
}

func (s *Store) GuildConfig(ctx context.Context, guildID int64) (*domain.GuildConfig, error) {
	cfg := &domain.GuildConfig{GuildID: guildID}
	_, err := s.db.NewInsert().
		Model(cfg).
		On("CONFLICT (guild_id) DO UPDATE").
		Set("guild_id = EXCLUDED.guild_id").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, storageErr("guild config", err)
	}
	return cfg, nil
}

func (s *Store) UpdateGuildConfig(ctx context.Context, guildID int64, patch domain.GuildConfigPatch) (*domain.GuildConfig, error) {
	cfg, err := s.GuildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if patch.DailyChannelID != nil {
		cfg.DailyChannelID = patch.DailyChannelID
	}
	if patch.AdminRoleID != nil {
		cfg.AdminRoleID = patch.AdminRoleID
	}
	if _, err := s.db.NewUpdate().Model(cfg).WherePK().Exec(ctx); err != nil {
		return nil, storageErr("update guild config", err)
	}
	return cfg, nil
}

func (s *Store) ListGuildConfigs(ctx context.Context) ([]domain.GuildConfig, error) {
	var configs []domain.GuildConfig
	err := s.db.NewSelect().Model(&configs).Order("guild_id ASC").Scan(ctx)
	if err != nil {
		return nil, storageErr("list guild configs", err)
	}
	return configs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}
