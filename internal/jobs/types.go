package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskCacheSweep = "cache:sweep"
	TaskCacheWarm  = "cache:warm"

	QueueCache = "cache"
)

// CacheSweepPayload asks the worker to drop stale cache entries
type CacheSweepPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// CacheWarmPayload asks the worker to prefetch slow-changing endpoints
type CacheWarmPayload struct {
	Categories bool `json:"categories"`
	Products   bool `json:"products"`
}

func NewCacheSweepTask(p CacheSweepPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheSweep, payload, asynq.Queue(QueueCache), asynq.MaxRetry(1), asynq.Timeout(time.Minute)), nil
}

func NewCacheWarmTask(p CacheWarmPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarm, payload, asynq.Queue(QueueCache), asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}
