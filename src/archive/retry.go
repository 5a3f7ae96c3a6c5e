package archive

import (
	"crypto/rand"
	"time"

	"golang.org/x/time/rate"
)

// cloudRetryBase is the backoff delay before the first retry against a
// cloud-synced path; later attempts double it.
const cloudRetryBase = 300 * time.Millisecond

// newCloudRetryLimiter paces retries against a cloud-synced archive path.
// Burst 1 with a refill interval reset to cloudRetryDelay per attempt, so
// the first Wait passes immediately and each later Wait blocks for that
// attempt's backoff delay.
func newCloudRetryLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(cloudRetryBase), 1)
}

// cloudRetryDelay returns the jittered exponential backoff delay for
// attempt (1-based): cloudRetryBase doubled per attempt, plus up to half
// again in random jitter so concurrent writers don't retry in lockstep
// with the sync client.
func cloudRetryDelay(attempt int) time.Duration {
	d := cloudRetryBase << (attempt - 1)
	var b [1]byte
	if _, err := rand.Read(b[:]); err == nil {
		d += time.Duration(int64(b[0])) * d / 510
	}
	return d
}
