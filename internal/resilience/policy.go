package resilience

import "time"

// Policy tunes retries and the circuit breaker of an Executor. Zero fields
// take the defaults.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
	BreakerHalfOpenMax  uint32
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     1 * time.Second,
		Multiplier:     2,

		BreakerEnabled:      true,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  30 * time.Second,
		BreakerHalfOpenMax:  1,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.BreakerMinRequests == 0 {
		p.BreakerMinRequests = def.BreakerMinRequests
	}
	if p.BreakerFailureRatio <= 0 || p.BreakerFailureRatio > 1 {
		p.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if p.BreakerOpenTimeout <= 0 {
		p.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if p.BreakerHalfOpenMax == 0 {
		p.BreakerHalfOpenMax = def.BreakerHalfOpenMax
	}
	return p
}
