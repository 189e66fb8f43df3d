package audit

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/redis/go-redis/v9"
)

const DefaultQueueKey = "authservice:audit"

var ErrQueueEmpty = errors.New("audit queue empty")

// Queue is a Redis list of encoded activity logs. The API pushes on the left,
// the worker pops from the right.
type Queue struct {
	rdb redis.UniversalClient
	key string
}

func NewQueue(rdb redis.UniversalClient, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{rdb: rdb, key: key}
}

// Record makes Queue usable as a Sink.
func (q *Queue) Record(ctx context.Context, l activity.Log) error {
	b, err := Encode(l)
	if err != nil {
		return err
	}

	return q.rdb.LPush(ctx, q.key, b).Err()
}

// Dequeue blocks up to wait for the next payload. Undecodable payloads are
// returned as raw bytes together with the decode error so the caller can
// park them.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (activity.Log, []byte, error) {
	res, err := q.rdb.BRPop(ctx, wait, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return activity.Log{}, nil, ErrQueueEmpty
		}
		return activity.Log{}, nil, err
	}

	// BRPOP returns [key, value]
	if len(res) != 2 {
		return activity.Log{}, nil, ErrInvalidPayload
	}

	raw := []byte(res[1])
	l, err := Decode(raw)
	return l, raw, err
}

// Requeue pushes a payload back to the consuming end.
func (q *Queue) Requeue(ctx context.Context, raw []byte) error {
	return q.rdb.RPush(ctx, q.key, raw).Err()
}

// DeadLetter parks payloads that can never be decoded or stored.
func (q *Queue) DeadLetter(ctx context.Context, raw []byte) error {
	return q.rdb.LPush(ctx, q.key+":dead", raw).Err()
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
