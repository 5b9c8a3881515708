package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// transferQuotaScript keeps a sliding log of accepted transfers per account as
// a sorted set scored by the Redis clock in milliseconds. Only accepted
// transfers are logged, so rejected attempts never push the retry time out.
//
// KEYS[1] account log; ARGV[1] window ms; ARGV[2] limit; ARGV[3] member.
// Reply: {allowed, used, wait ms}.
var transferQuotaScript = redis.NewScript(`
local clock = redis.call("TIME")
local now = tonumber(clock[1]) * 1000 + math.floor(tonumber(clock[2]) / 1000)
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local used = redis.call("ZCARD", KEYS[1])
if used < limit then
  redis.call("ZADD", KEYS[1], now, ARGV[3])
  redis.call("PEXPIRE", KEYS[1], window)
  return {1, used + 1, 0}
end

local wait = window
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if oldest[2] then
  wait = tonumber(oldest[2]) + window - now
end
return {0, used, wait}
`)

const defaultTransferQuotaPrefix = "ledger:transfer_quota"

// QuotaDecision is the outcome of reserving one transfer against an account's
// quota. RetryAfter is set only when Allowed is false.
type QuotaDecision struct {
	Allowed    bool
	Used       int
	RetryAfter time.Duration
}

// RedisTransferQuota caps how many transfers an account may start within a
// sliding window. The log lives in Redis so every replica shares it.
type RedisTransferQuota struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisTransferQuota builds a quota of limit transfers per window. A nil
// client or a non-positive limit yields a quota that allows everything.
func NewRedisTransferQuota(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisTransferQuota {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultTransferQuotaPrefix
	}
	if window < time.Second {
		window = time.Second
	}
	return &RedisTransferQuota{client: client, prefix: prefix, limit: limit, window: window}
}

func (q *RedisTransferQuota) key(accountID uuid.UUID) string {
	return q.prefix + ":transfer:" + accountID.String()
}

// Reserve logs one transfer for accountID if the account is under its quota.
func (q *RedisTransferQuota) Reserve(ctx context.Context, accountID uuid.UUID) (QuotaDecision, error) {
	if q == nil || q.client == nil || q.limit <= 0 {
		return QuotaDecision{Allowed: true}, nil
	}

	reply, err := transferQuotaScript.Run(ctx, q.client,
		[]string{q.key(accountID)},
		q.window.Milliseconds(), q.limit, uuid.NewString(),
	).Result()
	if err != nil {
		return QuotaDecision{}, fmt.Errorf("transfer quota script failed: %w", err)
	}
	return parseQuotaReply(reply, q.window)
}

func parseQuotaReply(reply interface{}, window time.Duration) (QuotaDecision, error) {
	values, ok := reply.([]interface{})
	if !ok || len(values) != 3 {
		return QuotaDecision{}, fmt.Errorf("unexpected transfer quota reply %v", reply)
	}
	var fields [3]int64
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return QuotaDecision{}, fmt.Errorf("unexpected transfer quota field %d of type %T", i, v)
		}
		fields[i] = n
	}

	decision := QuotaDecision{Allowed: fields[0] == 1, Used: int(fields[1])}
	if !decision.Allowed {
		wait := time.Duration(fields[2]) * time.Millisecond
		if wait <= 0 || wait > window {
			wait = window
		}
		decision.RetryAfter = wait
	}
	return decision, nil
}

// retryAfterSeconds rounds a wait up to whole seconds for the Retry-After header.
func retryAfterSeconds(wait time.Duration) int {
	seconds := int((wait + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
