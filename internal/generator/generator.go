package generator

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-bot-service/internal/config"
	"trivia-bot-service/internal/domain"
)

// DefaultTopics seed the topic pool when none are configured.
var DefaultTopics = []string{
	"Algorithms & Data Structures",
	"Programming Languages",
	"Object-Oriented Programming",
	"Operating Systems",
	"Databases & SQL",
}

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second

	defaultSystemPrompt = "You are an expert computer science educator. You create rigorous multiple-choice questions " +
		"with exactly four options labelled A, B, C, D. When a question references or benefits from code, include a concise snippet " +
		"wrapped in Markdown triple backticks with an appropriate language tag. " +
		`Respond with valid JSON following the schema: {"topic": "string", "question": "string", ` +
		`"options": {"A": "string", "B": "string", "C": "string", "D": "string"}, ` +
		`"answer": "A|B|C|D", "explanation": "string", "difficulty": "Easy|Medium|Hard"}.`

	defaultUserTemplate = "Generate one {difficulty} multiple-choice question about '{topic}'. " +
		"Ensure the problem requires conceptual reasoning or multi-step thinking rather than simple recall. " +
		"If code is necessary to pose the question or clarify the explanation, include it inside triple backticks with a language tag."
)

// defaultWeights bias generation toward medium questions: 30% Easy,
// 50% Medium, 20% Hard. Difficulty is a hint to the backend, not a guarantee.
var defaultWeights = map[string]int{"Easy": 30, "Medium": 50, "Hard": 20}

// ModelPool maps model names to the provider client serving them.
type ModelPool map[string]Provider

// Generator produces validated question payloads. Generate never fails: when
// no backend is usable or every attempt is rejected, it resolves to the
// curated fallback.
type Generator struct {
	pool         ModelPool
	models       []string
	topics       []string
	weights      map[string]int
	maxRetries   int
	systemPrompt string
	userTemplate string
	logger       *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Options tune a Generator; zero values fall back to defaults.
type Options struct {
	Topics       []string
	Weights      map[string]int
	MaxRetries   int
	SystemPrompt string
	UserTemplate string
	Logger       *zap.Logger
}

func New(pool ModelPool, opts Options) *Generator {
	topics := opts.Topics
	if len(topics) == 0 {
		topics = DefaultTopics
	}
	weights := opts.Weights
	if len(weights) == 0 {
		weights = defaultWeights
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	userTemplate := opts.UserTemplate
	if userTemplate == "" {
		userTemplate = defaultUserTemplate
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	models := make([]string, 0, len(pool))
	for model := range pool {
		models = append(models, model)
	}

	return &Generator{
		pool:         pool,
		models:       models,
		topics:       topics,
		weights:      weights,
		maxRetries:   maxRetries,
		systemPrompt: systemPrompt,
		userTemplate: userTemplate,
		logger:       logger,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FromConfig wires one shared chat client per enabled provider whose API key
// is present in the environment. Providers without keys are skipped with a
// warning, matching the degrade-to-fallback policy.
func FromConfig(cfg config.Config, logger *zap.Logger) *Generator {
	gen := cfg.Generator
	timeout := config.Duration(gen.Timeout, DefaultTimeout)
	temperature := gen.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := config.IntOr(gen.MaxTokens, 512)

	pool := ModelPool{}
	for name, provider := range gen.Providers {
		if !provider.Enabled {
			continue
		}
		apiKey := os.Getenv(provider.APIKeyEnv)
		if provider.APIKeyEnv == "" || apiKey == "" {
			logger.Warn("provider enabled but API key missing", zap.String("provider", name), zap.String("env", provider.APIKeyEnv))
			continue
		}
		client := NewChatClient(provider.BaseURL, apiKey, timeout, temperature, maxTokens)
		for _, model := range provider.Models {
			pool[model] = client
		}
		logger.Info("provider initialised", zap.String("provider", name), zap.Int("models", len(provider.Models)))
	}
	if len(pool) == 0 {
		logger.Warn("no LLM providers usable, questions will come from the fallback set")
	}

	return New(pool, Options{
		Topics:       gen.Topics,
		Weights:      gen.Weights,
		MaxRetries:   gen.MaxRetries,
		SystemPrompt: gen.Prompts.System,
		UserTemplate: gen.Prompts.UserTemplate,
		Logger:       logger,
	})
}

// rawPayload is the wire shape a backend must produce.
type rawPayload struct {
	Topic       string            `json:"topic"`
	Question    string            `json:"question"`
	Options     map[string]string `json:"options"`
	Answer      string            `json:"answer"`
	Explanation string            `json:"explanation"`
	Difficulty  string            `json:"difficulty"`
}

// Generate picks a topic and target difficulty, then tries up to maxRetries
// distinct models in random order. Any attempt failure (network, parse,
// structure) logs and moves on; exhaustion resolves to Fallback.
func (g *Generator) Generate(ctx context.Context, topicHint string) domain.QuestionPayload {
	topic := topicHint
	if topic == "" {
		topic = g.topics[g.intn(len(g.topics))]
	}
	difficulty := g.pickDifficulty()

	if len(g.pool) == 0 {
		g.logger.Warn("no backends configured, using fallback question", zap.String("topic", topic))
		return Fallback(topic)
	}

	userPrompt := strings.NewReplacer(
		"{difficulty}", strings.ToLower(difficulty),
		"{topic}", topic,
	).Replace(g.userTemplate)

	attempts := g.shuffledModels()
	if len(attempts) > g.maxRetries {
		attempts = attempts[:g.maxRetries]
	}

	for i, model := range attempts {
		attempt := zap.Int("attempt", i+1)
		raw, err := g.pool[model].Complete(ctx, model, g.systemPrompt, userPrompt)
		if err != nil {
			g.logger.Warn("backend call failed", attempt, zap.String("model", model), zap.Error(err))
			continue
		}

		var parsed rawPayload
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			g.logger.Warn("backend returned unparseable payload", attempt, zap.String("model", model), zap.Error(err))
			continue
		}

		options := make(map[string]string, len(parsed.Options))
		for key, text := range parsed.Options {
			options[strings.ToUpper(key)] = text
		}
		if len(options) != 4 {
			g.logger.Warn("backend returned invalid option count", attempt, zap.String("model", model), zap.Int("options", len(options)))
			continue
		}

		answer := strings.ToUpper(strings.TrimSpace(parsed.Answer))
		if !domain.IsChoice(answer) {
			g.logger.Warn("backend returned invalid answer letter", attempt, zap.String("model", model), zap.String("answer", answer))
			continue
		}

		payload := domain.QuestionPayload{
			Topic:       parsed.Topic,
			Question:    parsed.Question,
			Options:     options,
			Answer:      answer,
			Explanation: parsed.Explanation,
			Difficulty:  parsed.Difficulty,
			ModelName:   model,
		}
		if payload.Topic == "" {
			payload.Topic = topic
		}
		if payload.Question == "" {
			payload.Question = "No question returned."
		}
		if payload.Difficulty == "" {
			payload.Difficulty = difficulty
		}
		g.logger.Info("question generated", zap.String("model", model), zap.String("topic", payload.Topic), attempt)
		return payload
	}

	g.logger.Error("all backend attempts failed, using fallback question",
		zap.Int("attempts", len(attempts)), zap.String("topic", topic))
	return Fallback(topic)
}

func (g *Generator) pickDifficulty() string {
	total := 0
	for _, weight := range g.weights {
		total += weight
	}
	if total <= 0 {
		return "Medium"
	}
	pick := g.intn(total)
	// Iterate in a fixed order so the distribution is stable.
	for _, difficulty := range []string{"Easy", "Medium", "Hard"} {
		pick -= g.weights[difficulty]
		if pick < 0 {
			return difficulty
		}
	}
	return "Medium"
}

func (g *Generator) shuffledModels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	shuffled := make([]string, len(g.models))
	copy(shuffled, g.models)
	g.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(n)
}
