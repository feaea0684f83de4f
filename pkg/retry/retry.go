package retry

import (
	"context"
	"time"
)

type Operation = func() error

type Config struct {
	// MaxRetries is the number of retries after the first attempt,
	// so total attempts = MaxRetries + 1.
	MaxRetries    int
	BackoffFactor float64
	InitialDelay  time.Duration
	MaxDelay      time.Duration
}

// NewFixedDelayConfig waits the same delay between every attempt.
// Used for initial database connection establishment.
func NewFixedDelayConfig(attempts int, delay time.Duration) *Config {
	return &Config{
		MaxRetries:    attempts - 1,
		BackoffFactor: 1,
		InitialDelay:  delay,
		MaxDelay:      delay,
	}
}

type Retrier struct {
	config *Config
}

func NewRetrier(config *Config) *Retrier {
	return &Retrier{
		config: config,
	}
}

func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var err error
	delay := r.config.InitialDelay

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if attempt == r.config.MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
	return err
}
