// utils/cache.go
package utils

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

var redisClient *redis.Client
var cacheCtx = context.Background()

// InitRedis connects the optional cache accelerator. When no redis is
// configured every cache call degrades to a no-op and reads go straight to
// the store.
func InitRedis() {
	var opts *redis.Options

	if url := os.Getenv("REDIS_URL"); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			log.Printf("⚠️  Invalid REDIS_URL, caching disabled: %v", err)
			return
		}
		opts = parsed
	} else if host := os.Getenv("REDIS_HOST"); host != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{Addr: host + ":" + port}
	} else {
		log.Println("⚠️  Redis not configured, caching disabled")
		return
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(cacheCtx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("⚠️  Redis unreachable, caching disabled: %v", err)
		return
	}

	redisClient = client
	log.Println("✅ Redis connected, caching enabled")
}

// GetCache loads key into dest. Returns false on miss, disabled cache, or
// any error — callers fall through to the store.
func GetCache(key string, dest interface{}) bool {
	if redisClient == nil {
		return false
	}
	raw, err := redisClient.Get(cacheCtx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("⚠️ cache get failed for %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("⚠️ cache decode failed for %s: %v", key, err)
		return false
	}
	return true
}

// SetCache stores value under key with a TTL, best-effort.
func SetCache(key string, value interface{}, ttl time.Duration) {
	if redisClient == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("⚠️ cache encode failed for %s: %v", key, err)
		return
	}
	if err := redisClient.Set(cacheCtx, key, raw, ttl).Err(); err != nil {
		log.Printf("⚠️ cache set failed for %s: %v", key, err)
	}
}

// DeleteCachePattern drops every key matching the pattern. Called after any
// mutation that changes project or list data.
func DeleteCachePattern(pattern string) {
	if redisClient == nil {
		return
	}
	keys, err := redisClient.Keys(cacheCtx, pattern).Result()
	if err != nil {
		log.Printf("⚠️ cache scan failed for %s: %v", pattern, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := redisClient.Del(cacheCtx, keys...).Err(); err != nil {
		log.Printf("⚠️ cache invalidation failed for %s: %v", pattern, err)
	}
}
