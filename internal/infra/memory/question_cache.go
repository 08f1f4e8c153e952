package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-bot-service/internal/domain"
)

// QuestionLoader fetches a question row from the backing store.
type QuestionLoader interface {
	Question(ctx context.Context, id int64) (*domain.Question, error)
}

// QuestionCache caches questions by id with TTL to spare the store on hot
// paths (button clicks against the same question). Questions are immutable
// apart from message-id attachment, so a short TTL is safe.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedQuestion
}

type cachedQuestion struct {
	question  *domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedQuestion),
	}
}

func (c *QuestionCache) Question(ctx context.Context, id int64) (*domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.question, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.question, nil
		}
		c.mu.RUnlock()

		question, err := c.loader.Question(ctx, id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[id] = cachedQuestion{
			question:  question,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return question, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Question), nil
}

// Invalidate drops a cached entry, used after message-id attachment.
func (c *QuestionCache) Invalidate(id int64) {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
