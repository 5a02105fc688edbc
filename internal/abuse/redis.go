package abuse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openvote/voteapi/internal/conf"
	"github.com/openvote/voteapi/internal/logging"
	"github.com/redis/go-redis/v9"
)

const (
	// attemptBucket is the width of the attempt-tracking buckets.
	attemptBucket = time.Hour
	// attemptRetention is how long attempt buckets are kept.
	attemptRetention = 7 * 24 * time.Hour
	// checkTimeout bounds every Redis round trip so an unhealthy cache
	// cannot stall vote admission.
	checkTimeout = 2 * time.Second
)

// redisCommands is the slice of the Redis command surface the oracle
// uses. *redis.Client satisfies it; tests substitute a fake.
type redisCommands interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	Close() error
}

// RedisOracle implements Oracle on a shared Redis instance. Two patterns
// are tracked: many distinct fingerprints voting from one IP inside a short
// window, and one fingerprint appearing from many distinct IPs.
type RedisOracle struct {
	client redisCommands
	logger *slog.Logger

	maxFingerprintsPerIP int
	maxIPsPerFingerprint int
	fingerprintWindow    time.Duration
	ipWindow             time.Duration
}

// NewRedisOracle connects to Redis and returns an oracle tuned from
// settings. The connection is verified with a bounded ping.
func NewRedisOracle(ctx context.Context, settings *conf.Settings) (*RedisOracle, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     settings.Redis.Host + ":" + settings.Redis.Port,
		Password: settings.Redis.Password,
		DB:       settings.Redis.DB,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s:%s: %w",
			settings.Redis.Host, settings.Redis.Port, err)
	}

	return &RedisOracle{
		client:               client,
		logger:               logging.ForService("abuse"),
		maxFingerprintsPerIP: settings.Abuse.MaxFingerprintsPerIP,
		maxIPsPerFingerprint: settings.Abuse.MaxIPsPerFingerprint,
		fingerprintWindow:    settings.Abuse.FingerprintWindow,
		ipWindow:             settings.Abuse.IPWindow,
	}, nil
}

// Close closes the Redis connection.
func (o *RedisOracle) Close() error {
	return o.client.Close()
}

// CheckSuspicious records the sighting and evaluates both patterns. Any
// Redis error makes the check pass.
func (o *RedisOracle) CheckSuspicious(ctx context.Context, ipHash, fingerprintHash string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	// Pattern 1: many fingerprints from one IP in a short window.
	ipKey := "vote:anti:ip:" + ipHash + ":fps"
	if err := o.client.SAdd(ctx, ipKey, fingerprintHash).Err(); err != nil {
		o.failOpen("sadd", err)
		return false, ""
	}
	o.client.Expire(ctx, ipKey, o.fingerprintWindow)

	uniqueFps, err := o.client.SCard(ctx, ipKey).Result()
	if err != nil {
		o.failOpen("scard", err)
		return false, ""
	}
	if uniqueFps > int64(o.maxFingerprintsPerIP) {
		return true, "too many different devices from same IP"
	}

	// Pattern 2: one fingerprint seen from many IPs.
	fpKey := "vote:anti:fp:" + fingerprintHash + ":ips"
	if err := o.client.SAdd(ctx, fpKey, ipHash).Err(); err != nil {
		o.failOpen("sadd", err)
		return false, ""
	}
	o.client.Expire(ctx, fpKey, o.ipWindow)

	uniqueIPs, err := o.client.SCard(ctx, fpKey).Result()
	if err != nil {
		o.failOpen("scard", err)
		return false, ""
	}
	if uniqueIPs > int64(o.maxIPsPerFingerprint) {
		return true, "device seen from too many different IPs"
	}

	return false, ""
}

// RecordAttempt increments the hourly attempt bucket for this identity and
// category. Errors are logged and swallowed.
func (o *RedisOracle) RecordAttempt(ctx context.Context, ipHash, fingerprintHash string, categoryID uint, success bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	bucket := time.Now().Unix() / int64(attemptBucket.Seconds())
	key := fmt.Sprintf("vote:attempts:%d", bucket)
	field := fmt.Sprintf("%s:%s:%d:%t", ipHash, fingerprintHash, categoryID, success)

	if err := o.client.HIncrBy(ctx, key, field, 1).Err(); err != nil {
		o.failOpen("hincrby", err)
		return
	}
	o.client.Expire(ctx, key, attemptRetention)
}

func (o *RedisOracle) failOpen(op string, err error) {
	o.logger.Warn("abuse check unavailable, failing open", "op", op, "error", err)
}
