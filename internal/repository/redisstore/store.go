package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/appolinair2355/Mon/internal/domain/models"
)

// DefaultKey holds the document when no key is configured.
const DefaultKey = "ecoles:document"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client is the subset of *redis.Client the store needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Store keeps the whole document as YAML under a single Redis key.
type Store struct {
	client Client
	key    string
	logger *zap.Logger
}

// NewClient creates a Redis client and pings it.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// NewStore wraps an existing client.
func NewStore(client Client, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key, logger: logger}
}

// Load reads the document. A missing key is an empty dataset.
func (s *Store) Load(ctx context.Context) (models.Document, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to get %s from redis: %w", s.key, err)
	}

	doc := models.NewDocument()
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return models.Document{}, fmt.Errorf("decode %s: %w", s.key, err)
	}
	doc.Normalize()
	return doc, nil
}

// Save overwrites the key with the encoded document. SET replaces the value atomically.
func (s *Store) Save(ctx context.Context, doc models.Document) error {
	doc.Normalize()
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to redis: %w", s.key, err)
	}
	s.logger.Debug("document saved", zap.String("key", s.key), zap.Int("bytes", len(raw)))
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
