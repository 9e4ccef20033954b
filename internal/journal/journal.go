// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the command journal is pushed onto.
const DefaultQueueName = "tabletop_commands"

// Record is one applied room command, as consumed by an out-of-process
// auditor. It is an append-only activity stream, not state persistence:
// nothing is ever read back.
type Record struct {
	RoomCode  string `json:"room_code"`
	PlayerID  string `json:"player_id,omitempty"`
	Command   string `json:"command"`
	Timestamp int64  `json:"timestamp"`
}

// Journal pushes command records onto a Redis list. A nil *Journal is a
// valid no-op journal, used when no Redis address is configured.
type Journal struct {
	rdb   *redis.Client
	queue string
	log   *logrus.Logger
}

// Connect dials Redis and verifies it with a ping. An empty queue name
// falls back to DefaultQueueName.
func Connect(addr string, db int, queue string, log *logrus.Logger) (*Journal, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Journal{rdb: rdb, queue: queue, log: log}, nil
}

// Publish appends a record to the journal queue. It is called outside any
// room lock, uses a short timeout, and only logs failures; the journal is
// never allowed to fail or stall a command.
func (j *Journal) Publish(rec Record) {
	if j == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		j.log.Warnf("journal: failed to marshal record: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		j.log.Warnf("journal: failed to RPush to %q: %v", j.queue, err)
	}
}

// Close releases the Redis connection.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.rdb.Close()
}
