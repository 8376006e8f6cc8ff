package source

import (
	"context"
	"time"

	"github.com/MrJJimenez/jobscan/internal/network"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = time.Second
)

// State is a step of the retry state machine.
type State int

const (
	Attempting State = iota
	Sleeping
	Succeeded
	GaveUp
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Sleeping:
		return "sleeping"
	case Succeeded:
		return "succeeded"
	case GaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// Outcome classifies a single attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeThrottled covers 429 and 5xx: retried, Retry-After honoured.
	OutcomeThrottled
	// OutcomeTransient covers transport failures and undecodable bodies:
	// retried on the plain backoff schedule.
	OutcomeTransient
	// OutcomeTerminal covers every other 4xx: never retried.
	OutcomeTerminal
)

// Attempt is what one try reports back to the state machine.
type Attempt struct {
	Outcome    Outcome
	Reason     string
	Status     int
	RetryAfter time.Duration
	// HasRetryAfter is set only when the provider sent a valid header.
	HasRetryAfter bool
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy is the attempt cap and backoff base.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// Backoff is the delay after the n-th failed attempt (1-based): base,
// 2*base, 4*base, ...
func (p Policy) Backoff(n int) time.Duration {
	p = p.normalized()
	if n < 1 {
		n = 1
	}
	return p.BaseDelay << (n - 1)
}

// Step decides what follows attempt n given its result.
func (p Policy) Step(n int, res Attempt) (State, time.Duration) {
	p = p.normalized()
	switch res.Outcome {
	case OutcomeSuccess:
		return Succeeded, 0
	case OutcomeTerminal:
		return GaveUp, 0
	}
	if n >= p.MaxAttempts {
		return GaveUp, 0
	}
	if res.Outcome == OutcomeThrottled && res.HasRetryAfter {
		return Sleeping, res.RetryAfter
	}
	return Sleeping, p.Backoff(n)
}

// Trace records how a retried call unfolded.
type Trace struct {
	Final    State
	Attempts int
	Sleeps   []time.Duration
	Last     Attempt
}

// Run drives do through the state machine until it succeeds or gives up.
func (p Policy) Run(ctx context.Context, sleep Sleeper, do func(ctx context.Context, attempt int) Attempt) Trace {
	if sleep == nil {
		sleep = SleepContext
	}

	var trace Trace
	for n := 1; ; n++ {
		trace.Attempts = n
		trace.Last = do(ctx, n)

		next, wait := p.Step(n, trace.Last)
		if next != Sleeping {
			trace.Final = next
			return trace
		}

		trace.Sleeps = append(trace.Sleeps, wait)
		if err := sleep(ctx, wait); err != nil {
			trace.Final = GaveUp
			trace.Last.Reason = "canceled"
			return trace
		}
	}
}

// parseRetryAfter accepts only a non-negative integer number of seconds
// that fits a time.Duration.
func parseRetryAfter(value string) (time.Duration, bool) {
	return network.ParseRetryAfter(value)
}
