package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the lock only if the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Render job cache

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// SetJob caches a render job
func (c *Cache) SetJob(ctx context.Context, job *models.RenderJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return c.client.Set(ctx, jobKey(job.ID), data, ttl).Err()
}

// GetJob retrieves a cached render job. A miss returns nil, nil.
func (c *Cache) GetJob(ctx context.Context, jobID string) (*models.RenderJob, error) {
	data, err := c.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job from cache: %w", err)
	}

	var job models.RenderJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// DeleteJob removes a job from cache
func (c *Cache) DeleteJob(ctx context.Context, jobID string) error {
	return c.client.Del(ctx, jobKey(jobID)).Err()
}

// Render progress

func progressKey(jobID string) string {
	return fmt.Sprintf("job:progress:%s", jobID)
}

// SetJobProgress records render progress in percent
func (c *Cache) SetJobProgress(ctx context.Context, jobID string, progress float64, ttl time.Duration) error {
	return c.client.Set(ctx, progressKey(jobID), progress, ttl).Err()
}

// GetJobProgress returns render progress; ok is false when none is recorded
func (c *Cache) GetJobProgress(ctx context.Context, jobID string) (progress float64, ok bool, err error) {
	progress, err = c.client.Get(ctx, progressKey(jobID)).Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get job progress: %w", err)
	}
	return progress, true, nil
}

// ClearJobProgress removes recorded progress
func (c *Cache) ClearJobProgress(ctx context.Context, jobID string) error {
	return c.client.Del(ctx, progressKey(jobID)).Err()
}

// Locking

// Lock is a held distributed lock
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireLock takes the lock on resource for ttl or returns ErrLockHeld
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	key := fmt.Sprintf("lock:%s", resource)
	token := uuid.New().String()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &Lock{client: c.client, key: key, token: token}, nil
}

// Release drops the lock if it is still owned by this holder. A lock that
// expired and was taken by someone else is left alone.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
