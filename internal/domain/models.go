package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// User accumulates quiz results for a single participant. Rows are created on
// first response and never deleted; ResetScores zeroes the counters instead.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID             int64      `bun:"id,pk" json:"id"`
	Name           string     `bun:"name,notnull" json:"name"`
	Score          int        `bun:"score,notnull,default:0" json:"score"`
	Correct        int        `bun:"correct,notnull,default:0" json:"correct"`
	Wrong          int        `bun:"wrong,notnull,default:0" json:"wrong"`
	LastAnswerTime *time.Time `bun:"last_answer_time" json:"lastAnswerTime,omitempty"`
}

// Question is immutable after creation except for the announcing message id,
// which is attached once the presentation layer has sent the message.
type Question struct {
	bun.BaseModel `bun:"table:questions"`

	ID            int64             `bun:"id,pk,autoincrement" json:"id"`
	MessageID     *int64            `bun:"message_id" json:"messageId,omitempty"`
	ChannelID     *int64            `bun:"channel_id" json:"channelId,omitempty"`
	Topic         string            `bun:"topic,notnull" json:"topic"`
	Prompt        string            `bun:"prompt,notnull" json:"prompt"`
	Options       map[string]string `bun:"options,type:jsonb,notnull" json:"options"`
	CorrectAnswer string            `bun:"correct_answer,notnull" json:"correctAnswer"`
	Explanation   string            `bun:"explanation,nullzero" json:"explanation,omitempty"`
	CreatedAt     time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Meta splits the provenance prefix out of the stored prompt and returns the
// parsed tags alongside the display text.
func (q *Question) Meta() (map[string]string, string) {
	return ParsePromptMeta(q.Prompt)
}

// Response links a user's single attempt at a question. The
// (question_id, user_id) pair is unique; the winning response is the earliest
// one with IsCorrect set.
type Response struct {
	bun.BaseModel `bun:"table:responses"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	QuestionID int64     `bun:"question_id,notnull" json:"questionId"`
	UserID     int64     `bun:"user_id,notnull" json:"userId"`
	Answer     string    `bun:"answer,notnull" json:"answer"`
	IsCorrect  bool      `bun:"is_correct,notnull,default:false" json:"isCorrect"`
	AnsweredAt time.Time `bun:"answered_at,notnull,default:current_timestamp" json:"answeredAt"`
}

// GuildConfig holds per-community delivery settings. Both fields are optional;
// unset values fall back to auto-selection or permission checks upstream.
type GuildConfig struct {
	bun.BaseModel `bun:"table:guild_config"`

	GuildID        int64  `bun:"guild_id,pk" json:"guildId"`
	DailyChannelID *int64 `bun:"daily_channel_id" json:"dailyChannelId,omitempty"`
	AdminRoleID    *int64 `bun:"admin_role_id" json:"adminRoleId,omitempty"`
}

// GuildConfigPatch is a partial update; nil fields are left untouched.
type GuildConfigPatch struct {
	DailyChannelID *int64 `json:"dailyChannelId,omitempty"`
	AdminRoleID    *int64 `json:"adminRoleId,omitempty"`
}

// HistoryEntry is one row of a user's answer history joined with the question
// it answered.
type HistoryEntry struct {
	QuestionID int64     `json:"questionId"`
	Topic      string    `json:"topic"`
	Prompt     string    `json:"prompt"`
	Answer     string    `json:"answer"`
	IsCorrect  bool      `json:"isCorrect"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// QuestionPayload is the validated output of the question source.
type QuestionPayload struct {
	Topic       string            `json:"topic"`
	Question    string            `json:"question"`
	Options     map[string]string `json:"options"`
	Answer      string            `json:"answer"`
	Explanation string            `json:"explanation,omitempty"`
	Difficulty  string            `json:"difficulty,omitempty"`
	ModelName   string            `json:"modelName"`
}

// AnswerSheet is the reveal payload for a channel's latest question.
type AnswerSheet struct {
	Question      *Question         `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectLetter string            `json:"correctLetter"`
	CorrectText   string            `json:"correctText"`
	Explanation   string            `json:"explanation,omitempty"`
	Difficulty    string            `json:"difficulty,omitempty"`
	ModelName     string            `json:"modelName,omitempty"`
	WinnerID      *int64            `json:"winnerId,omitempty"`
}
