package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

const (
	taskStream = "algoassistant:sync-tasks"
	taskGroup  = "algoassistant:workers"

	// deliveryPrefix keys the set of stream message IDs delivered for a task
	deliveryPrefix = "algoassistant:sync-task:deliveries:"

	consumerPrefix = "worker-"

	// claimTimeout is how long a delivered message may go unacknowledged
	// before another worker claims it
	claimTimeout = 5 * time.Minute

	deliveryTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using a Redis Stream with a consumer group.
// Messages carry only the task ID. A message stays in the group's pending
// list until Ack, so a worker that dies mid-task has its delivery claimed
// by another worker after claimTimeout.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed task queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(ctx context.Context, client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	err := client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Queue{client: client, consumerName: consumerName}, nil
}

// Enqueue appends a task ID to the stream
func (q *Queue) Enqueue(ctx context.Context, taskID int64) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]interface{}{"task_id": taskID},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue task %d: %w", taskID, err)
	}
	return nil
}

// DequeueWithTimeout claims an abandoned delivery if there is one, otherwise
// reads a new message, blocking up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (int64, error) {
	// Claiming is best effort; a failure here must not stop new reads.
	if id, err := q.claimAbandoned(ctx); err == nil && id != 0 {
		return id, nil
	}

	block := time.Duration(timeout) * time.Second
	if timeout <= 0 {
		block = -1
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return 0, nil
	}

	return q.deliver(ctx, streams[0].Messages[0])
}

// deliver records the message against its task so Ack can find it
func (q *Queue) deliver(ctx context.Context, msg redis.XMessage) (int64, error) {
	taskID, ok := parseTaskID(msg.Values["task_id"])
	if !ok {
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		q.client.XDel(ctx, taskStream, msg.ID)
		return 0, nil
	}

	key := deliveryKey(taskID)
	pipe := q.client.Pipeline()
	pipe.SAdd(ctx, key, msg.ID)
	pipe.Expire(ctx, key, deliveryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record delivery of task %d: %w", taskID, err)
	}
	return taskID, nil
}

// Ack acknowledges and deletes every delivered message of the task
func (q *Queue) Ack(ctx context.Context, taskID int64) error {
	key := deliveryKey(taskID)
	msgIDs, err := q.client.SMembers(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get deliveries of task %d: %w", taskID, err)
	}

	pipe := q.client.Pipeline()
	if len(msgIDs) > 0 {
		pipe.XAck(ctx, taskStream, taskGroup, msgIDs...)
		pipe.XDel(ctx, taskStream, msgIDs...)
	}
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack task %d: %w", taskID, err)
	}
	return nil
}

// Len returns the number of messages queued or in flight
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, taskStream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to get stream length: %w", err)
	}
	return n, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the Redis client is shared with the lock.
func (q *Queue) Close() error {
	return nil
}

// claimAbandoned takes over a message another consumer left unacknowledged
func (q *Queue) claimAbandoned(ctx context.Context) (int64, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: taskStream,
		Group:  taskGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return 0, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   taskStream,
			Group:    taskGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		id, err := q.deliver(ctx, claimed[0])
		if err != nil || id == 0 {
			continue
		}
		return id, nil
	}
	return 0, nil
}

func deliveryKey(taskID int64) string {
	return deliveryPrefix + strconv.FormatInt(taskID, 10)
}

func parseTaskID(v interface{}) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
