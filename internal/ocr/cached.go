package ocr

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/emandor/mailsift/internal/img"
	"github.com/emandor/mailsift/internal/telemetry"
)

// ErrCacheMiss is returned by a TextStore that has no entry for a key.
var ErrCacheMiss = errors.New("ocr cache miss")

type TextStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, text string, ttl time.Duration) error
}

// RedisStore keeps OCR text under "ocr:<fingerprint>".
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	txt, err := s.rdb.Get(ctx, "ocr:"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return txt, err
}

func (s *RedisStore) Set(ctx context.Context, key, text string, ttl time.Duration) error {
	return s.rdb.Set(ctx, "ocr:"+key, text, ttl).Err()
}

// Cached serves repeated images from a TextStore. Identical images read at
// the same time share one engine call. Store failures are logged and
// otherwise ignored.
type Cached struct {
	engine Engine
	store  TextStore
	ttl    time.Duration
	group  singleflight.Group
}

func NewCached(engine Engine, store TextStore, ttl time.Duration) *Cached {
	return &Cached{engine: engine, store: store, ttl: ttl}
}

func (c *Cached) Name() string { return c.engine.Name() + "+cache" }

func (c *Cached) Read(ctx context.Context, imgB []byte, mime string) (Result, error) {
	key := img.Fingerprint(imgB)
	log := telemetry.L().With().Str("fingerprint", key).Logger()

	if txt, err := c.store.Get(ctx, key); err == nil && strings.TrimSpace(txt) != "" {
		log.Debug().Int("len", len(txt)).Msg("ocr_cache_hit")
		return Result{Text: txt, Cached: true}, nil
	} else if err != nil && !errors.Is(err, ErrCacheMiss) {
		log.Warn().Err(err).Msg("ocr_cache_get_err")
	}

	// the call is shared by every waiter; a cancelled caller must not cancel it
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := c.engine.Read(shared, imgB, mime)
		if err != nil {
			return Result{}, err
		}
		if strings.TrimSpace(res.Text) != "" && c.ttl > 0 {
			if err := c.store.Set(shared, key, res.Text, c.ttl); err != nil {
				log.Warn().Err(err).Msg("ocr_cache_set_err")
			}
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}
