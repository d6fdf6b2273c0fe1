// Package wait provides retry timing for the uplink connection: pluggable
// backoff strategies plus helpers for waiting on conditions.
package wait

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"
)

var (
	ErrTimeout           = errors.New("wait: timeout exceeded")
	ErrMaxRetriesReached = errors.New("wait: maximum retries reached")
	ErrCanceled          = errors.New("wait: operation canceled")
)

// ConditionFunc returns true when the awaited condition is met.
type ConditionFunc func() (bool, error)

// Strategy yields successive wait durations between attempts.
type Strategy interface {
	Next() (time.Duration, bool)
	Reset()
}

// FixedStrategy waits a constant duration between attempts.
type FixedStrategy struct {
	duration time.Duration
}

func NewFixedStrategy(duration time.Duration) *FixedStrategy {
	return &FixedStrategy{duration: duration}
}

func (s *FixedStrategy) Next() (time.Duration, bool) {
	return s.duration, true
}

func (s *FixedStrategy) Reset() {}

// ExponentialBackoffStrategy multiplies the wait after each attempt, with
// optional jitter to spread reconnect storms.
type ExponentialBackoffStrategy struct {
	initial    time.Duration
	multiplier float64
	max        time.Duration
	jitter     bool
	attempt    int
}

func NewExponentialBackoffStrategy(initial time.Duration, multiplier float64, max time.Duration, jitter bool) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		initial:    initial,
		multiplier: multiplier,
		max:        max,
		jitter:     jitter,
	}
}

func (s *ExponentialBackoffStrategy) Next() (time.Duration, bool) {
	duration := time.Duration(float64(s.initial) * math.Pow(s.multiplier, float64(s.attempt)))

	if s.max > 0 && duration > s.max {
		duration = s.max
	}

	if s.jitter {
		// ±25% of duration
		jitterRange := float64(duration) * 0.25
		duration = time.Duration(float64(duration) + (rand.Float64()-0.5)*2*jitterRange)
		if duration < 0 {
			duration = 0
		}
	}

	s.attempt++
	return duration, true
}

func (s *ExponentialBackoffStrategy) Reset() {
	s.attempt = 0
}

// Options configures Until.
type Options struct {
	MaxRetries int
	Timeout    time.Duration
	Strategy   Strategy
	Context    context.Context
}

// DefaultOptions returns the default wait configuration.
func DefaultOptions() *Options {
	return &Options{
		MaxRetries: 10,
		Timeout:    30 * time.Second,
		Strategy:   NewFixedStrategy(1 * time.Second),
		Context:    context.Background(),
	}
}

func (o *Options) WithMaxRetries(n int) *Options {
	o.MaxRetries = n
	return o
}

func (o *Options) WithTimeout(d time.Duration) *Options {
	o.Timeout = d
	return o
}

func (o *Options) WithStrategy(s Strategy) *Options {
	o.Strategy = s
	return o
}

func (o *Options) WithContext(ctx context.Context) *Options {
	o.Context = ctx
	return o
}

// Until waits until the condition returns true, retrying per the strategy.
func Until(condition ConditionFunc, opts ...*Options) error {
	options := DefaultOptions()
	if len(opts) > 0 && opts[0] != nil {
		options = opts[0]
		if options.Strategy == nil {
			options.Strategy = NewFixedStrategy(1 * time.Second)
		}
		if options.Context == nil {
			options.Context = context.Background()
		}
	}

	ctx := options.Context
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	options.Strategy.Reset()
	attempts := 0

	for {
		ok, err := condition()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		attempts++
		if options.MaxRetries > 0 && attempts >= options.MaxRetries {
			return ErrMaxRetriesReached
		}

		waitDuration, ok := options.Strategy.Next()
		if !ok {
			return ErrMaxRetriesReached
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return ErrTimeout
			}
			return ErrCanceled
		case <-time.After(waitDuration):
		}
	}
}

// ForTCP waits until a TCP connection to address can be established.
func ForTCP(address string, opts ...*Options) error {
	return Until(func() (bool, error) {
		conn, err := net.DialTimeout("tcp", address, 5*time.Second)
		if err != nil {
			return false, nil
		}
		conn.Close()
		return true, nil
	}, opts...)
}
