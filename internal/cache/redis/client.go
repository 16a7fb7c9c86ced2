package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/pkg/logger"
	"github.com/contentpulse/backend/pkg/utils"
)

// Client caches classifier output and generated drafts between report runs.
// URLs re-uploaded across date ranges keep their taxonomy labels without
// another LLM round trip.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func classificationKey(url string) string {
	return fmt.Sprintf("classification:%s", utils.HashString(url))
}

func (c *Client) SetClassification(ctx context.Context, url string, classification analysis.Classification, ttl time.Duration) error {
	data, err := json.Marshal(classification)
	if err != nil {
		return fmt.Errorf("failed to marshal classification: %w", err)
	}

	err = c.client.Set(ctx, classificationKey(url), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set classification cache: %w", err)
	}

	logger.Debug("Classification cached", zap.String("url", url), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetClassification(ctx context.Context, url string) (*analysis.Classification, bool, error) {
	data, err := c.client.Get(ctx, classificationKey(url)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get classification cache: %w", err)
	}

	var classification analysis.Classification
	err = json.Unmarshal(data, &classification)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal classification: %w", err)
	}

	logger.Debug("Classification cache hit", zap.String("url", url))
	return &classification, true, nil
}

// InvalidateClassifications drops every cached classification. Run after a
// taxonomy revision so relabeling is not blocked by month-old entries.
func (c *Client) InvalidateClassifications(ctx context.Context) (int, error) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, "classification:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Classification cache invalidated", zap.Int("deleted", deleted))
	return deleted, nil
}

func (c *Client) SetEmailDraft(ctx context.Context, reportID, draft string, ttl time.Duration) error {
	err := c.client.Set(ctx, fmt.Sprintf("draft:%s", reportID), draft, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set draft cache: %w", err)
	}

	logger.Debug("Email draft cached", zap.String("report_id", reportID))
	return nil
}

func (c *Client) GetEmailDraft(ctx context.Context, reportID string) (string, bool, error) {
	draft, err := c.client.Get(ctx, fmt.Sprintf("draft:%s", reportID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get draft cache: %w", err)
	}

	logger.Debug("Email draft cache hit", zap.String("report_id", reportID))
	return draft, true, nil
}
