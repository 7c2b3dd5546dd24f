package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedis creates the shared client. An empty address leaves Redis disabled and
// every helper in this package falls back to its in-process behaviour.
func InitRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		Sugar.Warnf("redis ping failed, continuing without guarantees: %v", err)
	}
	return redisClient
}

// GetRedis returns the shared client or nil when Redis is disabled.
func GetRedis() *redis.Client {
	return redisClient
}

// CloseRedis closes the shared client and disables Redis for the helpers.
func CloseRedis() {
	if redisClient == nil {
		return
	}
	if err := redisClient.Close(); err != nil {
		Sugar.Warnf("redis close: %v", err)
	}
	redisClient = nil
}

// unlockScript deletes the lock only while it still holds the owner's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock takes a best-effort distributed lock. ok is true when Redis is disabled,
// leaving mutual exclusion to the caller's in-process guard. release only removes
// the lock this call acquired, so an expired lock taken over by another holder survives.
func TryLock(key string, ttl time.Duration) (ok bool, release func()) {
	rc := GetRedis()
	if rc == nil {
		return true, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	token := uuid.NewString()
	acquired, err := rc.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		Sugar.Warnf("redis lock %s unavailable: %v", key, err)
		return true, func() {}
	}
	if !acquired {
		return false, func() {}
	}
	return true, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, rc, []string{"lock:" + key}, token).Err(); err != nil {
			Sugar.Warnf("redis unlock %s: %v", key, err)
		}
	}
}
