package doceq

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffConfig controls the retry delay applied after a handler returns
// a plain (non-reschedule, non-cancel) error.
//
// The default policy (DefaultBackoffConfig) matches the spec exactly:
// base 2s, cap 60s, multiplier 2, no randomization, so the nth retry's
// RunAt is base*2^(n-1) (capped) after the claim that produced it.
type BackoffConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultBackoffConfig returns the spec's fixed retry policy: base
// 2000ms, cap 60000ms, multiplier 2.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 2 * time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      2,
	}
}

type backoffCounter struct {
	BackoffConfig
}

// next computes the retry delay for the given attempt count (1-indexed,
// as Attempts reads immediately after a claim). It never signals "give
// up" itself — whether a job may still be retried is decided by the
// caller comparing Attempts against MaxAttempts.
func (bc *backoffCounter) next(attempt uint32) time.Duration {
	if attempt == 0 {
		attempt = 1
	}
	exp := float64(bc.InitialInterval) * math.Pow(bc.Multiplier, float64(attempt-1))
	if bc.MaxInterval > 0 && exp > float64(bc.MaxInterval) {
		exp = float64(bc.MaxInterval)
	}
	if bc.RandomizationFactor > 0 {
		delta := bc.RandomizationFactor * exp
		minExp := exp - delta
		maxExp := exp + delta
		exp = minExp + rand.Float64()*(maxExp-minExp)
	}
	return time.Duration(exp)
}
