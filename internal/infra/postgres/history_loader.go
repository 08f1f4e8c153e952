package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-bot-service/internal/domain"
)

// HistoryLoader serves the joined read paths straight from Postgres. It sits
// on its own pgx pool so heavy history scans do not compete with the write
// path's connections.
type HistoryLoader struct {
	pool *pgxpool.Pool
}

func NewHistoryLoader(pool *pgxpool.Pool) *HistoryLoader {
	return &HistoryLoader{pool: pool}
}

// UserHistory returns the user's attempts, newest first, joined with the
// question each one answered.
func (l *HistoryLoader) UserHistory(ctx context.Context, userID int64) ([]domain.HistoryEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT r.question_id, q.topic, q.prompt, r.answer, r.is_correct, r.answered_at
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		WHERE r.user_id = $1
		ORDER BY r.answered_at DESC, r.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user history: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.QuestionID, &entry.Topic, &entry.Prompt, &entry.Answer, &entry.IsCorrect, &entry.AnsweredAt); err != nil {
			return nil, fmt.Errorf("%w: user history scan: %v", domain.ErrStorageUnavailable, err)
		}
		_, entry.Prompt = domain.ParsePromptMeta(entry.Prompt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: user history rows: %v", domain.ErrStorageUnavailable, err)
	}
	return entries, nil
}
