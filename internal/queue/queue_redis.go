package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	platformredis "breachshield/internal/platform/redis"
)

const (
	streamKey    = "breachshield:jobs"
	groupName    = "workers"
	scheduledKey = "breachshield:jobs:scheduled"

	// blockTimeout bounds one XREADGROUP poll so shutdown is responsive.
	blockTimeout = 5 * time.Second

	// pumpInterval is how often due delayed jobs are moved onto the stream.
	pumpInterval = time.Second

	// reclaimIdle is the idle threshold before a pending entry owned by a
	// dead consumer is claimed by another one.
	reclaimIdle = 5 * time.Minute
)

// RedisQueue is a durable at-least-once job queue on Redis Streams. Jobs are
// XADDed to a single stream and consumed through a consumer group; an entry is
// XACKed only once its handler reports a terminal outcome, so a crash between
// delivery and ack redelivers the job. Delayed retries park in a sorted set
// scored by due time and are pumped back onto the stream.
type RedisQueue struct {
	client   *platformredis.Client
	log      *zap.Logger
	consumer string
}

// NewRedisQueue creates the consumer group if it does not exist yet.
func NewRedisQueue(ctx context.Context, client *platformredis.Client, consumer string, log *zap.Logger) (*RedisQueue, error) {
	err := client.XGroupCreateMkStream(ctx, streamKey, groupName, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &RedisQueue{client: client, log: log, consumer: consumer}, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// Enqueue appends a job to the stream for immediate delivery.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{"job": string(raw)},
	}).Err(); err != nil {
		return fmt.Errorf("enqueue %s job: %w", job.Kind, err)
	}
	return nil
}

// EnqueueIn parks a job until the delay elapses; the pump moves it onto the
// stream once due.
func (q *RedisQueue) EnqueueIn(ctx context.Context, job Job, delay time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.client.ZAdd(ctx, scheduledKey, redis.Z{Score: due, Member: string(raw)}).Err(); err != nil {
		return fmt.Errorf("schedule %s job: %w", job.Kind, err)
	}
	return nil
}

// delivery is one stream entry awaiting an ack.
type delivery struct {
	id  string
	job Job
}

// next blocks for up to blockTimeout waiting for one delivery. A nil delivery
// with nil error means the poll timed out.
func (q *RedisQueue) next(ctx context.Context) (*delivery, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    groupName,
		Consumer: q.consumer,
		Streams:  []string{streamKey, ">"},
		Count:    1,
		Block:    blockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			return q.decode(msg)
		}
	}
	return nil, nil
}

func (q *RedisQueue) decode(msg redis.XMessage) (*delivery, error) {
	raw, ok := msg.Values["job"].(string)
	if !ok {
		// Malformed entry: ack so it does not poison the group.
		q.log.Error("dropping malformed stream entry", zap.String("entry_id", msg.ID))
		return nil, q.ack(context.Background(), msg.ID)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		q.log.Error("dropping undecodable job", zap.String("entry_id", msg.ID), zap.Error(err))
		return nil, q.ack(context.Background(), msg.ID)
	}
	return &delivery{id: msg.ID, job: job}, nil
}

func (q *RedisQueue) ack(ctx context.Context, entryID string) error {
	if err := q.client.XAck(ctx, streamKey, groupName, entryID).Err(); err != nil {
		return fmt.Errorf("ack entry %s: %w", entryID, err)
	}
	return nil
}

// pumpDue moves jobs whose delay has elapsed from the sorted set onto the
// stream. Each member is removed only after its XADD succeeds.
func (q *RedisQueue) pumpDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := q.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("read scheduled jobs: %w", err)
	}

	for _, member := range members {
		if err := q.client.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey,
			Values: map[string]any{"job": member},
		}).Err(); err != nil {
			return fmt.Errorf("promote scheduled job: %w", err)
		}
		if err := q.client.ZRem(ctx, scheduledKey, member).Err(); err != nil {
			return fmt.Errorf("remove promoted job: %w", err)
		}
	}
	return nil
}

// reclaimStale claims pending entries abandoned by dead consumers so their
// jobs are redelivered to this one.
func (q *RedisQueue) reclaimStale(ctx context.Context) ([]*delivery, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamKey,
		Group:    groupName,
		Consumer: q.consumer,
		MinIdle:  reclaimIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("autoclaim pending entries: %w", err)
	}

	var claimed []*delivery
	for _, msg := range msgs {
		d, err := q.decode(msg)
		if err != nil {
			return nil, err
		}
		if d != nil {
			claimed = append(claimed, d)
		}
	}
	return claimed, nil
}
