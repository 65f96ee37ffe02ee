package netsim

import (
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// TokenBucket is a bandwidth rate limiter: capacity tokens of burst
// allowance, refilled by refillIncrement every refillInterval (spec
// §4.16's "token-bucket rate limiter"). Ported from original_source's
// relay/token_bucket.rs, which this module's relay forwarding strategy
// (relay.go) uses unmodified — same refill/conform algorithm, same
// discrete-interval-aligned backoff duration on rejection.
type TokenBucket struct {
	capacity        uint64
	balance         uint64
	refillIncrement uint64
	refillInterval  clock.SimulationTime
	lastRefill      clock.EmulatedTime
}

// NewTokenBucket returns a bucket starting at full capacity, or nil if
// any argument is non-positive (capacity>0, refillIncrement>0,
// refillInterval>0 are all required for forward progress).
func NewTokenBucket(capacity, refillIncrement uint64, refillInterval clock.SimulationTime, start clock.EmulatedTime) *TokenBucket {
	if capacity == 0 || refillIncrement == 0 || refillInterval <= 0 {
		return nil
	}
	return &TokenBucket{
		capacity:        capacity,
		balance:         capacity,
		refillIncrement: refillIncrement,
		refillInterval:  refillInterval,
		lastRefill:      start,
	}
}

// ConformingRemove removes decrement tokens if and only if the balance
// can afford it, lazily applying any refills that elapsed since the
// last call. On success it returns the updated balance; on failure it
// returns the duration until enough tokens would be available,
// rounded up to the bucket's discrete refill-interval boundaries.
// Passing decrement=0 always succeeds.
func (b *TokenBucket) ConformingRemove(now clock.EmulatedTime, decrement uint64) (uint64, clock.SimulationTime, bool) {
	nextRefillSpan := b.lazyRefill(now)
	if decrement > b.balance {
		return 0, b.conformingDuration(decrement, nextRefillSpan), false
	}
	b.balance -= decrement
	return b.balance, 0, true
}

func (b *TokenBucket) conformingDuration(decrement uint64, nextRefillSpan clock.SimulationTime) clock.SimulationTime {
	required := decrement - b.balance // decrement > balance is guaranteed by the caller

	numRefills := required / b.refillIncrement
	if required%b.refillIncrement > 0 {
		numRefills++
	}

	switch numRefills {
	case 0:
		return 0
	case 1:
		return nextRefillSpan
	default:
		return nextRefillSpan.Add(b.refillInterval.Mul(numRefills - 1))
	}
}

// lazyRefill applies every refill interval that elapsed since
// lastRefill, clamping the balance at capacity, and returns the
// duration until the next refill boundary.
func (b *TokenBucket) lazyRefill(now clock.EmulatedTime) clock.SimulationTime {
	span := now.SaturatingDurationSince(b.lastRefill)

	if span >= b.refillInterval {
		numRefills := uint64(span.Nanos() / b.refillInterval.Nanos())
		numTokens := b.refillIncrement * numRefills

		b.balance += numTokens
		if b.balance > b.capacity {
			b.balance = b.capacity
		}

		inc := b.refillInterval.Mul(numRefills)
		b.lastRefill = b.lastRefill.Add(inc)
		span = now.SaturatingDurationSince(b.lastRefill)
	}

	return b.refillInterval.Sub(span)
}
