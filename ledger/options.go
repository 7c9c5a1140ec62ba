package ledger

import (
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the read-compute-write loop of debt mutations
// when the optimistic lock is lost.
const DefaultMaxAttempts = 3

type options struct {
	now         func() time.Time
	log         *zap.Logger
	maxAttempts int
}

// Option configures a service.
type Option func(*options)

// WithClock replaces time.Now. Tests use it to control history dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMaxAttempts sets how often a debt mutation is tried before
// ErrConcurrentModification is surfaced.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:         func() time.Time { return time.Now().UTC() },
		log:         zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
