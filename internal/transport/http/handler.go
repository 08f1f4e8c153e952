package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"trivia-bot-service/internal/app"
	"trivia-bot-service/internal/domain"
)

// Handler exposes the quiz service over JSON HTTP.
type Handler struct {
	service *app.QuizService
	logger  *zap.Logger
	trigger func(ctx context.Context)
}

func NewHandler(service *app.QuizService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// SetDailyTrigger enables POST /admin/dispatch to fire the daily publish run
// outside the schedule.
func (h *Handler) SetDailyTrigger(trigger func(ctx context.Context)) {
	h.trigger = trigger
}

// Routes registers every endpoint on a fresh mux, including the websocket
// upgrade path.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /questions", h.publishQuestion)
	mux.HandleFunc("POST /questions/{id}/message", h.attachMessage)
	mux.HandleFunc("GET /questions/recent", h.recentQuestions)
	mux.HandleFunc("POST /answers", h.submitAnswer)
	mux.HandleFunc("GET /channels/{id}/question", h.activeQuestion)
	mux.HandleFunc("GET /channels/{id}/answer-sheet", h.answerSheet)
	mux.HandleFunc("GET /leaderboard", h.leaderboard)
	mux.HandleFunc("GET /users/{id}", h.userStats)
	mux.HandleFunc("GET /users/{id}/history", h.userHistory)
	mux.HandleFunc("GET /guilds/{id}/config", h.guildConfig)
	mux.HandleFunc("PATCH /guilds/{id}/config", h.updateGuildConfig)
	mux.HandleFunc("POST /admin/reset-scores", h.resetScores)
	mux.HandleFunc("POST /admin/dispatch", h.dispatchDaily)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /ws", NewWSHandler(h.service, h.logger).ServeWS)
	return mux
}

// questionView is the public projection of a question: the correct answer and
// explanation never leave the server while the question is open.
type questionView struct {
	ID         int64             `json:"id"`
	ChannelID  *int64            `json:"channelId,omitempty"`
	MessageID  *int64            `json:"messageId,omitempty"`
	Topic      string            `json:"topic"`
	Prompt     string            `json:"prompt"`
	Options    map[string]string `json:"options"`
	Difficulty string            `json:"difficulty,omitempty"`
	ModelName  string            `json:"modelName,omitempty"`
	CreatedAt  string            `json:"createdAt"`
}

func viewOf(question *domain.Question) questionView {
	meta, cleanPrompt := question.Meta()
	return questionView{
		ID:         question.ID,
		ChannelID:  question.ChannelID,
		MessageID:  question.MessageID,
		Topic:      question.Topic,
		Prompt:     cleanPrompt,
		Options:    question.Options,
		Difficulty: meta["difficulty"],
		ModelName:  meta["model"],
		CreatedAt:  question.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type publishRequest struct {
	ChannelID int64  `json:"channelId"`
	Topic     string `json:"topic,omitempty"`
}

func (h *Handler) publishQuestion(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == 0 {
		writeError(w, http.StatusBadRequest, "channelId is required")
		return
	}

	published, err := h.service.Publish(r.Context(), req.ChannelID, req.Topic)
	if err != nil {
		if cooldown, ok := domain.AsCooldown(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(cooldown.Remaining.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, cooldown.Error())
			return
		}
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(published.Question))
}

type attachRequest struct {
	MessageID int64 `json:"messageId"`
}

func (h *Handler) attachMessage(w http.ResponseWriter, r *http.Request) {
	questionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageID == 0 {
		writeError(w, http.StatusBadRequest, "messageId is required")
		return
	}
	if err := h.service.AttachMessage(r.Context(), questionID, req.MessageID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	UserID     int64  `json:"userId"`
	UserName   string `json:"userName"`
	Choice     string `json:"choice"`
	ChannelID  int64  `json:"channelId"`
	QuestionID int64  `json:"questionId,omitempty"`
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || req.Choice == "" {
		writeError(w, http.StatusBadRequest, "userId and choice are required")
		return
	}

	outcome, err := h.service.Submit(r.Context(), app.SubmitRequest{
		UserID:     req.UserID,
		UserName:   req.UserName,
		Choice:     req.Choice,
		ChannelID:  req.ChannelID,
		QuestionID: req.QuestionID,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) activeQuestion(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	question, err := h.service.ResolveActive(r.Context(), channelID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if question == nil {
		writeError(w, http.StatusNotFound, "no active question")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(question))
}

func (h *Handler) answerSheet(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	sheet, err := h.service.AnswerSheet(r.Context(), channelID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if sheet == nil {
		writeError(w, http.StatusNotFound, "no question for channel")
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Leaderboard(r.Context(), queryLimit(r, 10))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) recentQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.RecentQuestions(r.Context(), queryLimit(r, 5))
	if err != nil {
		h.fail(w, err)
		return
	}
	views := make([]questionView, 0, len(questions))
	for idx := range questions {
		views = append(views, viewOf(&questions[idx]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.service.UserStats(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) userHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	entries, err := h.service.UserHistory(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) guildConfig(w http.ResponseWriter, r *http.Request) {
	guildID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	cfg, err := h.service.GuildConfig(r.Context(), guildID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) updateGuildConfig(w http.ResponseWriter, r *http.Request) {
	guildID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	var patch domain.GuildConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config patch")
		return
	}
	cfg, err := h.service.UpdateGuildConfig(r.Context(), guildID, patch)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) resetScores(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetScores(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dispatchDaily(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeError(w, http.StatusNotFound, "dispatch not configured")
		return
	}
	h.trigger(r.Context())
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateResponse):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Error("storage failure", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
