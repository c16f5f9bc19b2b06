package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/octopus-network/relay-client/logger"
)

const DefaultPeriod = time.Second

type (
	HeightSource interface {
		BlockHeight(ctx context.Context) (uint64, error)
	}

	Observation struct {
		Height     uint64    `json:"height"`
		ObservedAt time.Time `json:"observed_at"`
	}

	/*
		Poller polls the latest final block height of the ledger. At most one poll
		is in flight, ticks which fire while the previous poll hasn't returned
		are skipped.
	*/
	Poller struct {
		src    HeightSource
		period time.Duration
		log    *slog.Logger
		mtr    metric.Meter

		inFlight atomic.Bool
		skipped  atomic.Uint64
		mu       sync.RWMutex
		last     Observation
	}

	Option func(*Poller)
)

func WithPeriod(d time.Duration) Option {
	return func(p *Poller) {
		p.period = d
	}
}

// WithMeter publishes the last observed height as "block.height" gauge.
func WithMeter(mtr metric.Meter) Option {
	return func(p *Poller) {
		p.mtr = mtr
	}
}

func New(src HeightSource, log *slog.Logger, opts ...Option) (*Poller, error) {
	if src == nil {
		return nil, errors.New("block height source is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	p := &Poller{src: src, period: DefaultPeriod, log: log}
	for _, opt := range opts {
		opt(p)
	}
	if p.period <= 0 {
		return nil, fmt.Errorf("invalid poll period %s", p.period)
	}
	if p.mtr != nil {
		_, err := p.mtr.Int64ObservableGauge("block.height",
			metric.WithDescription("Latest final block height observed"),
			metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
				if obs, ok := p.Height(); ok {
					o.Observe(int64(obs.Height))
				}
				return nil
			}))
		if err != nil {
			return nil, fmt.Errorf("creating block height gauge: %w", err)
		}
	}
	return p, nil
}

/*
Run polls the height until "ctx" is cancelled. The first poll is issued
immediately. Poll failures are logged and otherwise ignored, the last
successful observation stays in place.
*/
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	p.tick(ctx, &wg)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx, &wg)
		}
	}
}

func (p *Poller) tick(ctx context.Context, wg *sync.WaitGroup) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer p.inFlight.Store(false)
		p.poll(ctx)
	}()
}

func (p *Poller) poll(ctx context.Context) {
	h, err := p.src.BlockHeight(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.DebugContext(ctx, "polling block height", logger.Error(err))
		}
		return
	}
	p.mu.Lock()
	p.last = Observation{Height: h, ObservedAt: time.Now()}
	p.mu.Unlock()
}

// Height returns the last observation, false when no poll has succeeded yet.
func (p *Poller) Height() (Observation, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, !p.last.ObservedAt.IsZero()
}

// Stale returns true when there is no observation newer than "maxAge" at "now".
func (p *Poller) Stale(now time.Time, maxAge time.Duration) bool {
	obs, ok := p.Height()
	return !ok || now.Sub(obs.ObservedAt) > maxAge
}

// Skipped returns the number of ticks skipped because of an in-flight poll.
func (p *Poller) Skipped() uint64 {
	return p.skipped.Load()
}
