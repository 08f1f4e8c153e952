package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-bot-service/internal/domain"
)

// Store is the durable record of users, questions, responses and guild
// configuration. Every method is one atomic transaction; failures surface as
// errors wrapping domain.ErrStorageUnavailable.
type Store interface {
	UpsertUser(ctx context.Context, id int64, name string) (*domain.User, error)
	RecordQuestion(ctx context.Context, topic, prompt string, options map[string]string, correctAnswer, explanation string, channelID *int64) (*domain.Question, error)
	AttachMessageID(ctx context.Context, questionID, messageID int64) error
	RecordResponse(ctx context.Context, questionID, userID int64, userName, answer string, isCorrect bool) (*domain.Response, error)
	HasUserAnswered(ctx context.Context, questionID, userID int64) (bool, error)
	FirstCorrectResponse(ctx context.Context, questionID int64) (*domain.Response, error)
	Question(ctx context.Context, id int64) (*domain.Question, error)
	LatestQuestionForChannel(ctx context.Context, channelID int64) (*domain.Question, error)
	RecentQuestions(ctx context.Context, limit int) ([]domain.Question, error)
	ChannelsWithQuestions(ctx context.Context) ([]int64, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.User, error)
	UserStats(ctx context.Context, id int64) (*domain.User, error)
	UserHistory(ctx context.Context, userID int64) ([]domain.Response, error)
	ResetScores(ctx context.Context) error
	GuildConfig(ctx context.Context, guildID int64) (*domain.GuildConfig, error)
	UpdateGuildConfig(ctx context.Context, guildID int64, patch domain.GuildConfigPatch) (*domain.GuildConfig, error)
	ListGuildConfigs(ctx context.Context) ([]domain.GuildConfig, error)
}

// ActiveIndex abstracts the channel -> active-question mapping (in-memory or
// Redis). It is rebuildable runtime state, never the source of truth.
type ActiveIndex interface {
	Get(ctx context.Context, channelID int64) (int64, bool, error)
	Set(ctx context.Context, channelID, questionID int64) error
	Clear(ctx context.Context, channelID int64) error
}

// QuestionSource produces validated question payloads; it never fails.
type QuestionSource interface {
	Generate(ctx context.Context, topicHint string) domain.QuestionPayload
}

// QuestionResolver loads questions by id, typically through a cache.
type QuestionResolver interface {
	Question(ctx context.Context, id int64) (*domain.Question, error)
}

type cacheInvalidator interface {
	Invalidate(id int64)
}

// HistoryProvider serves the joined user-history read path. Optional; without
// one the service composes history from the store and question resolver.
type HistoryProvider interface {
	UserHistory(ctx context.Context, userID int64) ([]domain.HistoryEntry, error)
}

// Options tune the lifecycle rules. Zero values pick the deployment defaults
// except Cooldown, where zero genuinely disables the rate limit.
type Options struct {
	Freshness       time.Duration // how old a question may be and still hydrate as active
	Cooldown        time.Duration // min interval between publishes per channel
	LeaderboardSize int           // entries pushed to subscribers
	Logger          *zap.Logger
	Clock           func() time.Time
}

// QuizService owns the question lifecycle and answer adjudication. All
// runtime state (publish locks, per-question locks, subscriber set) lives on
// the service instance; there are no package-level registries.
type QuizService struct {
	store     Store
	active    ActiveIndex
	questions QuestionResolver
	source    QuestionSource
	history   HistoryProvider

	freshness time.Duration
	cooldown  time.Duration
	lbSize    int
	logger    *zap.Logger
	clock     func() time.Time

	locksMu       sync.Mutex
	publishLocks  map[int64]*sync.Mutex // keyed by channel id
	questionLocks map[int64]*sync.Mutex // keyed by question id
	lastPublished map[int64]time.Time

	subMu       sync.Mutex
	subscribers map[chan []domain.User]struct{}
}

func NewQuizService(store Store, active ActiveIndex, questions QuestionResolver, source QuestionSource, opts Options) *QuizService {
	if opts.Freshness <= 0 {
		opts.Freshness = 24 * time.Hour
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if questions == nil {
		questions = store
	}
	return &QuizService{
		store:         store,
		active:        active,
		questions:     questions,
		source:        source,
		freshness:     opts.Freshness,
		cooldown:      opts.Cooldown,
		lbSize:        opts.LeaderboardSize,
		logger:        opts.Logger,
		clock:         opts.Clock,
		publishLocks:  make(map[int64]*sync.Mutex),
		questionLocks: make(map[int64]*sync.Mutex),
		lastPublished: make(map[int64]time.Time),
		subscribers:   make(map[chan []domain.User]struct{}),
	}
}

// PublishedQuestion pairs the stored row with the payload the presentation
// layer renders. The message id is attached separately once the send is done.
type PublishedQuestion struct {
	Question *domain.Question       `json:"question"`
	Payload  domain.QuestionPayload `json:"payload"`
}

// Publish generates, persists, and registers a new active question for the
// channel. Publishes for the same channel are serialized by a lock keyed by
// channel id, so two near-simultaneous triggers cannot register two active
// questions.
func (s *QuizService) Publish(ctx context.Context, channelID int64, topicHint string) (*PublishedQuestion, error) {
	lock := s.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	if s.cooldown > 0 {
		s.locksMu.Lock()
		last, ok := s.lastPublished[channelID]
		s.locksMu.Unlock()
		if ok {
			if elapsed := s.clock().Sub(last); elapsed < s.cooldown {
				return nil, &domain.CooldownError{Remaining: s.cooldown - elapsed}
			}
		}
	}

	payload := s.source.Generate(ctx, topicHint)
	difficulty := payload.Difficulty
	if difficulty == "" {
		difficulty = "Medium"
	}
	model := payload.ModelName
	if model == "" {
		model = "unknown"
	}

	prompt := domain.FormatPromptMeta(difficulty, model, payload.Question)
	question, err := s.store.RecordQuestion(ctx, payload.Topic, prompt, payload.Options, payload.Answer, payload.Explanation, &channelID)
	if err != nil {
		return nil, err
	}
	if err := s.active.Set(ctx, channelID, question.ID); err != nil {
		return nil, err
	}

	s.locksMu.Lock()
	s.lastPublished[channelID] = s.clock()
	s.locksMu.Unlock()

	s.logger.Info("question published",
		zap.Int64("channel", channelID),
		zap.Int64("question", question.ID),
		zap.String("topic", payload.Topic),
		zap.String("model", model))
	return &PublishedQuestion{Question: question, Payload: payload}, nil
}

// AttachMessage records the announcing message id after the send completed.
func (s *QuizService) AttachMessage(ctx context.Context, questionID, messageID int64) error {
	if err := s.store.AttachMessageID(ctx, questionID, messageID); err != nil {
		return err
	}
	if cache, ok := s.questions.(cacheInvalidator); ok {
		cache.Invalidate(questionID)
	}
	return nil
}

// Hydrate rebuilds the active index from storage: for every channel that ever
// held a question, the latest one becomes active if it is inside the
// freshness window and still unsolved. Questions without a message id are
// tolerated (a shutdown mid-publish leaves those behind).
func (s *QuizService) Hydrate(ctx context.Context) error {
	channels, err := s.store.ChannelsWithQuestions(ctx)
	if err != nil {
		return err
	}
	restored := 0
	for _, channelID := range channels {
		question, err := s.store.LatestQuestionForChannel(ctx, channelID)
		if err != nil {
			return err
		}
		if question == nil || s.clock().Sub(question.CreatedAt) >= s.freshness {
			continue
		}
		winner, err := s.store.FirstCorrectResponse(ctx, question.ID)
		if err != nil {
			return err
		}
		if winner != nil {
			continue
		}
		if err := s.active.Set(ctx, channelID, question.ID); err != nil {
			return err
		}
		restored++
	}
	s.logger.Info("active questions hydrated", zap.Int("channels", len(channels)), zap.Int("restored", restored))
	return nil
}

// ResolveActive returns the channel's tracked active question. If the index
// has no entry (lost state, restart without redis), it self-heals by adopting
// the latest stored question for the channel.
func (s *QuizService) ResolveActive(ctx context.Context, channelID int64) (*domain.Question, error) {
	questionID, ok, err := s.active.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ok {
		question, err := s.questions.Question(ctx, questionID)
		if err == nil {
			return question, nil
		}
		if !errors.Is(err, domain.ErrQuestionNotFound) {
			return nil, err
		}
	}

	question, err := s.store.LatestQuestionForChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, nil
	}
	if err := s.active.Set(ctx, channelID, question.ID); err != nil {
		return nil, err
	}
	return question, nil
}

// SubmitRequest carries one answer submission. QuestionID is an optional hint
// (a button tied to a specific message); zero means "the channel's active
// question".
type SubmitRequest struct {
	UserID     int64
	UserName   string
	Choice     string
	ChannelID  int64
	QuestionID int64
}

// Submit adjudicates an answer. The checks run in strict priority order:
// resolve question, already-solved, already-answered, then the single scoring
// write. Steps two through five are serialized per question so exactly one of
// several simultaneous correct submitters becomes the winner; the store's
// (question, user) uniqueness constraint backs that up.
func (s *QuizService) Submit(ctx context.Context, req SubmitRequest) (domain.Outcome, error) {
	choice := domain.NormalizeAnswer(req.Choice)
	outcome := domain.Outcome{Status: domain.OutcomeNoQuestion, Choice: choice}

	question, channelID, err := s.resolveTarget(ctx, req)
	if err != nil {
		return outcome, err
	}
	if question == nil {
		return outcome, nil
	}

	correctLetter := strings.ToUpper(question.CorrectAnswer)
	correctText := question.Options[correctLetter]
	explanation := question.Explanation

	// The outcome carries a sanitized copy: resolvers may hand out shared
	// cache entries, and the answer must not ride along while the question
	// is still open.
	view := *question
	var meta map[string]string
	meta, view.Prompt = question.Meta()
	view.CorrectAnswer = ""
	view.Explanation = ""
	outcome.Question = &view
	outcome.Difficulty = meta["difficulty"]
	outcome.ModelName = meta["model"]

	lock := s.questionLock(question.ID)
	lock.Lock()
	defer lock.Unlock()

	winner, err := s.store.FirstCorrectResponse(ctx, question.ID)
	if err != nil {
		return outcome, err
	}
	if winner != nil {
		// Solved by anyone, including the submitter: clear tracking and
		// report the winner uniformly.
		if err := s.active.Clear(ctx, channelID); err != nil {
			s.logger.Warn("failed to clear active question", zap.Int64("channel", channelID), zap.Error(err))
		}
		outcome.Status = domain.OutcomeAlreadySolved
		outcome.SolverID = winner.UserID
		return outcome, nil
	}

	answered, err := s.store.HasUserAnswered(ctx, question.ID, req.UserID)
	if err != nil {
		return outcome, err
	}
	if answered {
		outcome.Status = domain.OutcomeAlreadyAnswered
		return outcome, nil
	}

	isCorrect := choice == correctLetter
	if _, err := s.store.RecordResponse(ctx, question.ID, req.UserID, req.UserName, choice, isCorrect); err != nil {
		if errors.Is(err, domain.ErrDuplicateResponse) {
			outcome.Status = domain.OutcomeAlreadyAnswered
			return outcome, nil
		}
		return outcome, err
	}

	s.broadcastLeaderboard(ctx)

	if isCorrect {
		if err := s.active.Clear(ctx, channelID); err != nil {
			s.logger.Warn("failed to clear active question", zap.Int64("channel", channelID), zap.Error(err))
		}
		outcome.Status = domain.OutcomeCorrect
		outcome.OptionText = question.Options[choice]
		outcome.Explanation = explanation
		outcome.SolverID = req.UserID
		return outcome, nil
	}

	outcome.Status = domain.OutcomeIncorrect
	outcome.OptionText = question.Options[choice]
	outcome.CorrectLetter = correctLetter
	outcome.CorrectText = correctText
	outcome.Explanation = explanation
	return outcome, nil
}

// resolveTarget prefers the explicit question hint over the channel's active
// question. A stale hint whose row still exists resolves normally, so stale
// buttons run the same already-solved check as everyone else.
func (s *QuizService) resolveTarget(ctx context.Context, req SubmitRequest) (*domain.Question, int64, error) {
	if req.QuestionID != 0 {
		question, err := s.questions.Question(ctx, req.QuestionID)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			return nil, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}
		channelID := req.ChannelID
		if question.ChannelID != nil {
			channelID = *question.ChannelID
		}
		return question, channelID, nil
	}

	question, err := s.ResolveActive(ctx, req.ChannelID)
	if err != nil || question == nil {
		return nil, 0, err
	}
	return question, req.ChannelID, nil
}

// AnswerSheet reveals the channel's latest question with its correct answer,
// meta, and winner if any.
func (s *QuizService) AnswerSheet(ctx context.Context, channelID int64) (*domain.AnswerSheet, error) {
	question, err := s.store.LatestQuestionForChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, nil
	}

	meta, cleanPrompt := question.Meta()
	question.Prompt = cleanPrompt
	correctLetter := strings.ToUpper(question.CorrectAnswer)

	sheet := &domain.AnswerSheet{
		Question:      question,
		Options:       question.Options,
		CorrectLetter: correctLetter,
		CorrectText:   question.Options[correctLetter],
		Explanation:   question.Explanation,
		Difficulty:    meta["difficulty"],
		ModelName:     meta["model"],
	}
	winner, err := s.store.FirstCorrectResponse(ctx, question.ID)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		sheet.WinnerID = &winner.UserID
	}
	return sheet, nil
}

func (s *QuizService) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	return s.store.Leaderboard(ctx, limit)
}

func (s *QuizService) UserStats(ctx context.Context, userID int64) (*domain.User, error) {
	return s.store.UserStats(ctx, userID)
}

// SetHistoryProvider installs a dedicated read-path loader for user history.
func (s *QuizService) SetHistoryProvider(history HistoryProvider) {
	s.history = history
}

// UserHistory returns the user's attempts joined with the questions they
// answered, newest first.
func (s *QuizService) UserHistory(ctx context.Context, userID int64) ([]domain.HistoryEntry, error) {
	if s.history != nil {
		return s.history.UserHistory(ctx, userID)
	}

	responses, err := s.store.UserHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(responses))
	for _, response := range responses {
		entry := domain.HistoryEntry{
			QuestionID: response.QuestionID,
			Answer:     response.Answer,
			IsCorrect:  response.IsCorrect,
			AnsweredAt: response.AnsweredAt,
		}
		if question, err := s.questions.Question(ctx, response.QuestionID); err == nil {
			entry.Topic = question.Topic
			_, entry.Prompt = question.Meta()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *QuizService) RecentQuestions(ctx context.Context, limit int) ([]domain.Question, error) {
	questions, err := s.store.RecentQuestions(ctx, limit)
	if err != nil {
		return nil, err
	}
	for idx := range questions {
		_, clean := questions[idx].Meta()
		questions[idx].Prompt = clean
	}
	return questions, nil
}

func (s *QuizService) ResetScores(ctx context.Context) error {
	return s.store.ResetScores(ctx)
}

func (s *QuizService) GuildConfig(ctx context.Context, guildID int64) (*domain.GuildConfig, error) {
	return s.store.GuildConfig(ctx, guildID)
}

func (s *QuizService) UpdateGuildConfig(ctx context.Context, guildID int64, patch domain.GuildConfigPatch) (*domain.GuildConfig, error) {
	return s.store.UpdateGuildConfig(ctx, guildID, patch)
}

func (s *QuizService) ListGuildConfigs(ctx context.Context) ([]domain.GuildConfig, error) {
	return s.store.ListGuildConfigs(ctx)
}

func (s *QuizService) channelLock(channelID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.publishLocks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		s.publishLocks[channelID] = lock
	}
	return lock
}

func (s *QuizService) questionLock(questionID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.questionLocks[questionID]
	if !ok {
		lock = &sync.Mutex{}
		s.questionLocks[questionID] = lock
	}
	return lock
}
