// Package redis provides a Redis backed lock that keeps billing runs from
// overlapping across replicas of the service
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/platinummonkey/billrun/pkg/observability"
)

// Config holds Redis connection and lock settings
type Config struct {
	URL        string        `yaml:"url"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	MaxRetries int           `yaml:"max_retries"`
	PoolSize   int           `yaml:"pool_size"`
	Key        string        `yaml:"key"`
	TTL        time.Duration `yaml:"ttl"`
}

// NewClient creates a Redis client and verifies the connection
func NewClient(ctx context.Context, config Config) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB > 0 {
		opts.DB = config.DB
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// Only the holder's token may extend or delete the key
var (
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RunLock is a single-holder lock stored under one Redis key. While held it
// is refreshed every TTL/3 so a long billing run keeps it.
type RunLock struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
	logger *observability.Logger
}

// NewRunLock creates a lock on key. A zero ttl defaults to one minute.
func NewRunLock(client *goredis.Client, key string, ttl time.Duration, logger *observability.Logger) *RunLock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RunLock{client: client, key: key, ttl: ttl, logger: logger}
}

// TryLock acquires the lock without waiting. ok is false when another holder
// has it. lost is closed when the key is taken over by another holder or
// could not be refreshed for a whole TTL. release must be called once the
// run is done.
func (l *RunLock) TryLock(ctx context.Context) (release func(), lost <-chan struct{}, ok bool, err error) {
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, nil, false, nil
	}

	stop := make(chan struct{})
	lostCh := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer observability.RecoverPanic(l.logger, "run lock refresh")
		l.keepAlive(token, stop, lostCh)
	}()

	var once sync.Once
	release = func() {
		once.Do(func() {
			close(stop)
			wg.Wait()

			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
				l.logger.WithError(err).WithField("key", l.key).Warn("failed to release run lock")
			}
		})
	}
	return release, lostCh, true, nil
}

// keepAlive refreshes the key until stop is closed. It closes lost and
// returns when the lock can no longer be trusted.
func (l *RunLock) keepAlive(token string, stop <-chan struct{}, lost chan<- struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	refreshed := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), min(l.ttl/3, 3*time.Second))
			n, err := refreshScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				if time.Since(refreshed) >= l.ttl {
					l.logger.WithError(err).WithField("key", l.key).Error("run lock expired: refresh failed for a whole TTL")
					close(lost)
					return
				}
				l.logger.WithError(err).WithField("key", l.key).Warn("failed to refresh run lock")
				continue
			}
			if n == 0 {
				l.logger.WithField("key", l.key).Error("run lock lost to another holder")
				close(lost)
				return
			}
			refreshed = time.Now()
		}
	}
}
