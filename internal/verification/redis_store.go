package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/contenthub/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
)

const codeKeyPrefix = "contenthub-verification-code||"

const consumeNoMatch = -10

// consumeScript deletes the key only when it holds the submitted code and
// returns the remaining ttl in millis, or consumeNoMatch.
var consumeScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if stored == ARGV[1] then
	local ttl = redis.call("PTTL", KEYS[1])
	redis.call("DEL", KEYS[1])
	return ttl
end
return -10
`)

// RedisStore relies on key expiry, so expired codes need no sweeping.
type RedisStore struct {
	redisClient *redis.Client
	NowFunc     func() time.Time
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{
		redisClient: redisClient,
		NowFunc:     time.Now,
	}
}

func codeKey(adminID string) string {
	return codeKeyPrefix + adminID
}

func (s *RedisStore) Create(ctx context.Context, adminID, code string, expiresAt time.Time) (_ *Code, err error) {
	ctx, span := tracing.Start(ctx, "redis.verification.create")
	defer func() { tracing.EndSpan(span, err) }()
	span.SetAttributes(attribute.String("admin.id", adminID))

	ttl := expiresAt.Sub(s.NowFunc())
	if ttl <= 0 {
		return nil, fmt.Errorf("code for admin %s already expired at %s", adminID, expiresAt)
	}

	// SET overwrites, which supersedes the previous code
	if err := s.redisClient.Set(ctx, codeKey(adminID), code, ttl).Err(); err != nil {
		return nil, fmt.Errorf("set code: %w", err)
	}

	return &Code{
		AdminID:   adminID,
		Code:      code,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *RedisStore) Consume(ctx context.Context, adminID, code string, now time.Time) (_ *Code, err error) {
	ctx, span := tracing.Start(ctx, "redis.verification.consume")
	defer func() { tracing.EndSpan(span, err) }()
	span.SetAttributes(attribute.String("admin.id", adminID))

	remainingMillis, err := consumeScript.Run(ctx, s.redisClient, []string{codeKey(adminID)}, code).Int64()
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	if remainingMillis == consumeNoMatch {
		return nil, ErrCodeNotFound
	}
	if remainingMillis < 0 {
		remainingMillis = 0
	}

	return &Code{
		AdminID:   adminID,
		Code:      code,
		ExpiresAt: now.Add(time.Duration(remainingMillis) * time.Millisecond),
	}, nil
}
