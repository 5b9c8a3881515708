package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewRedisTransferQuota_NormalizesPrefixAndWindow(t *testing.T) {
	id := uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f")
	cases := map[string]string{
		"":                       "ledger:transfer_quota:transfer:" + id.String(),
		"  custom:quota: ":       "custom:quota:transfer:" + id.String(),
		"ledger:transfer_quota:": "ledger:transfer_quota:transfer:" + id.String(),
	}
	for prefix, want := range cases {
		quota := NewRedisTransferQuota(nil, prefix, 30, time.Minute)
		if got := quota.key(id); got != want {
			t.Fatalf("prefix %q: expected key %q, got %q", prefix, want, got)
		}
	}

	if q := NewRedisTransferQuota(nil, "", 30, 10*time.Millisecond); q.window != time.Second {
		t.Fatalf("expected sub-second window raised to 1s, got %s", q.window)
	}
}

func TestRedisTransferQuota_AllowsWithoutClientOrLimit(t *testing.T) {
	for name, quota := range map[string]*RedisTransferQuota{
		"nil quota": nil,
		"no client": NewRedisTransferQuota(nil, "", 30, time.Minute),
		"no limit":  {limit: 0, window: time.Minute},
	} {
		decision, err := quota.Reserve(context.Background(), uuid.New())
		if err != nil || !decision.Allowed {
			t.Fatalf("%s: expected an allowing no-op, got %+v err=%v", name, decision, err)
		}
	}
}

func TestParseQuotaReply(t *testing.T) {
	window := time.Minute

	allowed, err := parseQuotaReply([]interface{}{int64(1), int64(4), int64(0)}, window)
	if err != nil || !allowed.Allowed || allowed.Used != 4 || allowed.RetryAfter != 0 {
		t.Fatalf("unexpected allowed decision %+v err=%v", allowed, err)
	}

	denied, err := parseQuotaReply([]interface{}{int64(0), int64(30), int64(12500)}, window)
	if err != nil || denied.Allowed || denied.Used != 30 || denied.RetryAfter != 12500*time.Millisecond {
		t.Fatalf("unexpected denied decision %+v err=%v", denied, err)
	}

	clamped, err := parseQuotaReply([]interface{}{int64(0), int64(30), int64(-5)}, window)
	if err != nil || clamped.RetryAfter != window {
		t.Fatalf("expected a non-positive wait to fall back to the window, got %+v err=%v", clamped, err)
	}

	for name, reply := range map[string]interface{}{
		"not a list":   "OK",
		"short list":   []interface{}{int64(1), int64(1)},
		"string field": []interface{}{int64(1), "1", int64(0)},
	} {
		if _, err := parseQuotaReply(reply, window); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestRetryAfterSeconds_RoundsUp(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1001 * time.Millisecond: 2,
		59 * time.Second:        59,
	}
	for wait, want := range cases {
		if got := retryAfterSeconds(wait); got != want {
			t.Fatalf("retryAfterSeconds(%s) = %d, want %d", wait, got, want)
		}
	}
}
