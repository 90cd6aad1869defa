package redis

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-session-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, id domain.QuestionID) (domain.QuestionDetail, error)
}

// QuestionCatalog caches question data in Redis (hash per question) and falls
// back to a loader on cache miss.
// Option flags are stored as: HSET question:{id}:options {optionID} 1|0
// The prompt is stored as:    SET  question:{id}:prompt  {text}
// Option display text is not cached in this lightweight form; references and
// scoring only need ids and correctness.
type QuestionCatalog struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionCatalog(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCatalog {
	return &QuestionCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (c *QuestionCatalog) GetQuestionReference(ctx context.Context, id domain.QuestionID) (domain.QuestionReference, error) {
	detail, err := c.get(ctx, id)
	if err != nil {
		return domain.QuestionReference{}, err
	}
	return detail.Reference(), nil
}

func (c *QuestionCatalog) GetQuestionDetails(ctx context.Context, ids []domain.QuestionID) ([]domain.QuestionDetail, error) {
	details := make([]domain.QuestionDetail, 0, len(ids))
	for _, id := range ids {
		detail, err := c.get(ctx, id)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

func (c *QuestionCatalog) get(ctx context.Context, id domain.QuestionID) (domain.QuestionDetail, error) {
	optionKey := c.optionsKey(id)
	promptKey := c.promptKey(id)

	options, err := c.client.HGetAll(ctx, optionKey).Result()
	if err == nil && len(options) > 0 {
		prompt, _ := c.client.Get(ctx, promptKey).Result()
		return buildDetailFromCache(id, prompt, options), nil
	}

	result, err, _ := c.sf.Do(id.String(), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		options, err := c.client.HGetAll(ctx, optionKey).Result()
		if err == nil && len(options) > 0 {
			prompt, _ := c.client.Get(ctx, promptKey).Result()
			return buildDetailFromCache(id, prompt, options), nil
		}

		detail, err := c.loader.LoadQuestion(ctx, id)
		if err != nil {
			return domain.QuestionDetail{}, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		for _, opt := range detail.Options {
			flag := "0"
			if opt.Correct {
				flag = "1"
			}
			pipe.HSet(ctx, optionKey, opt.ID.String(), flag)
		}
		pipe.Set(ctx, promptKey, detail.Prompt, ttl)
		if ttl > 0 {
			pipe.Expire(ctx, optionKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return detail, nil
	})
	if err != nil {
		return domain.QuestionDetail{}, err
	}
	return result.(domain.QuestionDetail), nil
}

func (c *QuestionCatalog) optionsKey(id domain.QuestionID) string {
	return "question:" + id.String() + ":options"
}

func (c *QuestionCatalog) promptKey(id domain.QuestionID) string {
	return "question:" + id.String() + ":prompt"
}

func buildDetailFromCache(id domain.QuestionID, prompt string, options map[string]string) domain.QuestionDetail {
	optionIDs := make([]string, 0, len(options))
	for optionID := range options {
		optionIDs = append(optionIDs, optionID)
	}
	sort.Strings(optionIDs)

	opts := make([]domain.OptionDetail, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		opts = append(opts, domain.OptionDetail{
			ID:      domain.OptionID(optionID),
			Correct: options[optionID] == "1",
		})
	}
	return domain.QuestionDetail{ID: id, Prompt: prompt, Options: opts}
}

func (c *QuestionCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations; the global source is safe for
	// concurrent fills
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
