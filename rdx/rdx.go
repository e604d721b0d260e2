package rdx

import (
	"context"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

var Conn *redis.Client

// Init dials Redis. Redis is best-effort infrastructure here (token cache,
// activity fan-out); callers must tolerate Conn being nil.
func Init() {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	Conn = redis.NewClient(&redis.Options{Addr: addr})
	if err := Conn.Ping(context.Background()).Err(); err != nil {
		log.Printf("Redis unavailable at %s: %v (continuing without it)", addr, err)
		Conn = nil
	}
}

func RdxHset(hash, field, value string) error {
	if Conn == nil {
		return nil
	}
	return Conn.HSet(context.Background(), hash, field, value).Err()
}

// Publish pushes a payload onto a pub/sub channel, best effort.
func Publish(ctx context.Context, channel string, payload []byte) {
	if Conn == nil {
		return
	}
	if err := Conn.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("Redis publish to %s failed: %v", channel, err)
	}
}
