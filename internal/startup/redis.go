package startup

import (
	"context"
	"os"
	"time"

	cacheredis "github.com/Rajatk8400/gochat/internal/cache/redis"
	"github.com/Rajatk8400/gochat/internal/logger"
)

// ConnectCacheWithRetry connects the Redis conversation cache with backoff.
// logPrefix is prepended to log lines.
func ConnectCacheWithRetry(redisURL string, ttl time.Duration, maxWait time.Duration, logPrefix string) *cacheredis.Client {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cacheredis.New(ctx, redisURL, ttl)
		cancel()
		if err != nil {
			if time.Now().After(deadline) {
				logger.Errorf("%sredis (gave up after %v): %v", logPrefix, maxWait, err)
				os.Exit(1)
			}
			logger.Errorf("%sredis connect failed, retry in %v: %v", logPrefix, backoff, err)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		return client
	}
}
