package jobs

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// backoffPolicy spaces out polls after consecutive failures with jittered
// exponential growth between the poll interval and a cap.
type backoffPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newBackoffPolicy(base, maxDelay time.Duration) backoffPolicy {
	if base <= 0 {
		base = 2 * time.Second
	}
	if maxDelay < base {
		maxDelay = base
	}
	return backoffPolicy{baseDelay: base, maxDelay: maxDelay}
}

// Delay returns the wait before the next poll after failures consecutive
// failed polls. The result is never below the base interval.
func (p backoffPolicy) Delay(failures int) time.Duration {
	if failures <= 0 {
		return p.baseDelay
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(failures))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jittered := time.Duration(delay/2) + p.randomJitter(time.Duration(delay)/2)
	if jittered < p.baseDelay {
		return p.baseDelay
	}
	return jittered
}

func (p backoffPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
