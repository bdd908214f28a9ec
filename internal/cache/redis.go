package cache

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultAddr = "localhost:6379"

// Client is the process-wide Redis handle, nil until InitRedis runs.
var Client *redis.Client

var (
	newRedisClient = redis.NewClient
	pingRedis      = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

// InitRedis connects the snapshot cache. REDIS_URL accepts either a bare
// host:port pair or a redis:// URL.
func InitRedis(ctx context.Context) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = defaultAddr
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			log.Fatalf("failed to parse REDIS_URL: %v", err)
		}
		opts = parsed
	}

	Client = newRedisClient(opts)
	if err := pingRedis(ctx, Client); err != nil {
		log.Fatalf("failed to connect to Redis at %s: %v", opts.Addr, err)
	}
	log.Printf("Connected to Redis at %s", opts.Addr)
}
