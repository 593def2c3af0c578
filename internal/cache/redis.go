package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// MustConnect is only called when REDIS_ADDR is set; the OCR cache is optional.
func MustConnect(addr string, db int) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		panic(err)
	}
	return r
}
