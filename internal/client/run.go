package client

import (
	"context"
	"errors"
	"math/rand/v2"
)

// MaxValue bounds the random values Run submits: each is in [0, MaxValue).
const MaxValue = 1024

// RunOptions configures Run.
type RunOptions struct {
	// Count is the number of values to send; zero or less sends until ctx
	// is cancelled or the server stops.
	Count int
	// Seed makes the sequence of values reproducible.
	Seed uint64
	// Disconnect performs the polite disconnect after the last value.
	Disconnect bool
	// OnReply, if set, is called after every answered value.
	OnReply func(v int32, metric float64)
}

// Summary describes a finished Run.
type Summary struct {
	Sent    int
	Last    float64
	Stopped bool // the server sent stop
}

// Run connects, submits random values and reports what happened.
// Cancellation ends the run without an error; when it arrives between two
// requests the polite disconnect is still performed.
func Run(ctx context.Context, cfg *Config, opts RunOptions) (Summary, error) {
	var sum Summary

	c, err := Dial(ctx, cfg)
	if err != nil {
		return sum, err
	}
	defer c.Close()

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	for opts.Count <= 0 || sum.Sent < opts.Count {
		if ctx.Err() != nil {
			break
		}

		v := rng.Int32N(MaxValue)
		metric, err := c.Send(ctx, v)
		switch {
		case errors.Is(err, ErrServerStopped):
			sum.Stopped = true
			return sum, nil
		case ctx.Err() != nil:
			// The reply to v may still be in flight, so a disconnect
			// handshake would read the wrong line.
			return sum, nil
		case err != nil:
			return sum, err
		}

		sum.Sent++
		sum.Last = metric
		if opts.OnReply != nil {
			opts.OnReply(v, metric)
		}
	}

	if opts.Disconnect {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RequestTimeout)
		defer cancel()
		if err := c.Disconnect(dctx); err != nil {
			if errors.Is(err, ErrServerStopped) {
				sum.Stopped = true
				return sum, nil
			}
			return sum, err
		}
	}
	return sum, nil
}
