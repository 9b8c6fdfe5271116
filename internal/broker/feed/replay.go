package feed

import (
	"sync"

	"martingale-lab/internal/broker"
	"martingale-lab/internal/domain"
)

// Replay serves a recorded tick sequence through the PriceFeed interface,
// in order and without pacing. Backtests and dry runs use it in place of
// the websocket feed.
type Replay struct {
	ticks chan domain.Tick
	once  sync.Once
	done  chan struct{}
}

var _ broker.PriceFeed = (*Replay)(nil)

// NewReplay starts streaming the given ticks. The channel closes after
// the last tick.
func NewReplay(ticks []domain.Tick) *Replay {
	r := &Replay{
		ticks: make(chan domain.Tick),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(r.ticks)
		for _, t := range ticks {
			select {
			case r.ticks <- t:
			case <-r.done:
				return
			}
		}
	}()
	return r
}

// Ticks returns the tick channel.
func (r *Replay) Ticks() <-chan domain.Tick {
	return r.ticks
}

// Err always returns nil; a replay cannot fail.
func (r *Replay) Err() error {
	return nil
}

// Close stops the stream early.
func (r *Replay) Close() error {
	r.once.Do(func() { close(r.done) })
	return nil
}
