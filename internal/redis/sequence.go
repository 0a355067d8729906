package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// sequenceScript increments a counter and sets its expiry on first use.
var sequenceScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// DailySequence issues per-day monotonic numbers starting at 1.
type DailySequence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDailySequence(client *redis.Client, ttl time.Duration) *DailySequence {
	return &DailySequence{client: client, ttl: ttl}
}

func (s *DailySequence) Next(ctx context.Context, day time.Time) (int64, error) {
	return sequenceScript.Run(
		ctx,
		s.client,
		[]string{BookingSequenceKey(day)},
		int64(s.ttl.Seconds()),
	).Int64()
}
