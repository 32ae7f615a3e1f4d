package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"accel-dashboard/models"
	"accel-dashboard/services/transport"
	"accel-dashboard/services/window"
	"accel-dashboard/utils"
	"accel-dashboard/utils/clock"
	"accel-dashboard/views"
)

// DefaultPullInterval is the poll period used when none is configured.
const DefaultPullInterval = 500 * time.Millisecond

// IngestionOptions selects exactly one transport discipline.
type IngestionOptions struct {
	Mode     string // utils.TransportPush or utils.TransportPull
	Encoding models.Encoding

	Subscriber transport.Subscriber // push
	Fetcher    transport.Fetcher    // pull
	Interval   time.Duration        // pull
	Clock      clock.Clock
}

// IngestionStats is a point-in-time copy of the controller counters.
type IngestionStats struct {
	Received     uint64
	Applied      uint64
	DecodeErrors uint64
	FetchErrors  uint64
	SkippedTicks uint64
	Discarded    uint64
	RenderErrors uint64
}

// IngestionController owns the single active transport subscription and
// applies every decoded payload to the store and then the view, as one
// step under mu.
type IngestionController struct {
	store *window.SeriesStore
	view  views.ViewAdapter
	opts  IngestionOptions
	log   *utils.Logger

	// OnApplied, when set, is called after each applied payload with the
	// snapshot that was rendered.
	OnApplied func(window.Snapshot)

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	sub      transport.Subscription
	started  bool
	inFlight atomic.Bool
	wg       sync.WaitGroup

	received     uint64
	applied      uint64
	decodeErrors uint64
	fetchErrors  uint64
	skippedTicks uint64
	discarded    uint64
	renderErrors uint64
}

// NewIngestionController validates opts; configuring both a subscriber
// and a fetcher, or neither, is an error.
func NewIngestionController(store *window.SeriesStore, view views.ViewAdapter, opts IngestionOptions) (*IngestionController, error) {
	if store == nil || view == nil {
		return nil, errors.New("ingestion: store and view are required")
	}
	switch opts.Mode {
	case utils.TransportPush:
		if opts.Subscriber == nil || opts.Fetcher != nil {
			return nil, errors.New("ingestion: push mode needs a subscriber and no fetcher")
		}
	case utils.TransportPull:
		if opts.Fetcher == nil || opts.Subscriber != nil {
			return nil, errors.New("ingestion: pull mode needs a fetcher and no subscriber")
		}
		if opts.Interval <= 0 {
			opts.Interval = DefaultPullInterval
		}
	default:
		return nil, fmt.Errorf("ingestion: unknown mode %q", opts.Mode)
	}
	if opts.Encoding == "" {
		opts.Encoding = models.EncodingJSON
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &IngestionController{
		store: store,
		view:  view,
		opts:  opts,
		log:   utils.L().With("ingest"),
		ctx:   context.Background(),
	}, nil
}

// Start opens the subscription (push) or starts the poll loop (pull).
func (c *IngestionController) Start(parent context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("ingestion: already started")
	}
	ctx, cancel := context.WithCancel(parent)
	c.ctx, c.cancel, c.started = ctx, cancel, true
	c.mu.Unlock()

	switch c.opts.Mode {
	case utils.TransportPush:
		sub, err := c.opts.Subscriber.Subscribe(ctx, c.HandleMessage)
		if err != nil {
			cancel()
			return fmt.Errorf("ingestion: %w", err)
		}
		c.mu.Lock()
		c.sub = sub
		c.mu.Unlock()
		c.log.Info("push ingestion started")

	case utils.TransportPull:
		ticker := c.opts.Clock.NewTicker(c.opts.Interval)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.tick(ctx)
				}
			}
		}()
		c.log.Info("pull ingestion started  interval=%s", c.opts.Interval)
	}
	return nil
}

// tick issues one pull unless the previous one is still outstanding.
func (c *IngestionController) tick(ctx context.Context) {
	if !c.inFlight.CompareAndSwap(false, true) {
		atomic.AddUint64(&c.skippedTicks, 1)
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inFlight.Store(false)
		c.pull(ctx)
	}()
}

func (c *IngestionController) pull(ctx context.Context) {
	data, err := c.opts.Fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			atomic.AddUint64(&c.discarded, 1)
			return
		}
		atomic.AddUint64(&c.fetchErrors, 1)
		c.log.Warn("%v", err)
		return
	}
	c.apply(ctx, data)
}

// HandleMessage decodes one transport message and applies it. Failures
// are logged and counted, never returned: the next message is
// independent of this one.
func (c *IngestionController) HandleMessage(data []byte) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	c.apply(ctx, data)
}

func (c *IngestionController) apply(ctx context.Context, data []byte) {
	atomic.AddUint64(&c.received, 1)
	payload, err := models.DecodePayload(data, c.opts.Encoding)
	if err != nil {
		atomic.AddUint64(&c.decodeErrors, 1)
		c.log.Warn("%v", &transport.Error{Op: "decode", Err: err})
		return
	}

	c.mu.Lock()
	// A result arriving after Stop belongs to a torn-down session.
	if ctx.Err() != nil {
		c.mu.Unlock()
		atomic.AddUint64(&c.discarded, 1)
		return
	}
	var snap window.Snapshot
	switch payload.Kind {
	case models.PayloadSingle:
		snap = c.store.IngestOne(payload.Sample)
	case models.PayloadSnapshot:
		snap = c.store.IngestSnapshot(payload.Samples)
	}
	renderErr := c.view.Render(views.Update{Kind: payload.Kind, Snapshot: snap})
	c.mu.Unlock()

	atomic.AddUint64(&c.applied, 1)
	if renderErr != nil {
		atomic.AddUint64(&c.renderErrors, 1)
		c.log.Warn("render: %v", renderErr)
	}
	if c.OnApplied != nil {
		c.OnApplied(snap)
	}
}

// Stop closes the subscription and abandons any in-flight pull. It
// returns once no further payload can be applied.
func (c *IngestionController) Stop() error {
	c.mu.Lock()
	if !c.started || c.cancel == nil {
		c.mu.Unlock()
		return nil
	}
	cancel, sub := c.cancel, c.sub
	c.cancel, c.sub = nil, nil
	c.mu.Unlock()

	cancel()
	var err error
	if sub != nil {
		err = sub.Close()
	}
	c.wg.Wait()
	s := c.Stats()
	c.log.Info("ingestion stopped  received=%d applied=%d decode_errors=%d fetch_errors=%d skipped=%d discarded=%d",
		s.Received, s.Applied, s.DecodeErrors, s.FetchErrors, s.SkippedTicks, s.Discarded)
	return err
}

// InFlight reports whether a pull is outstanding.
func (c *IngestionController) InFlight() bool { return c.inFlight.Load() }

func (c *IngestionController) Stats() IngestionStats {
	return IngestionStats{
		Received:     atomic.LoadUint64(&c.received),
		Applied:      atomic.LoadUint64(&c.applied),
		DecodeErrors: atomic.LoadUint64(&c.decodeErrors),
		FetchErrors:  atomic.LoadUint64(&c.fetchErrors),
		SkippedTicks: atomic.LoadUint64(&c.skippedTicks),
		Discarded:    atomic.LoadUint64(&c.discarded),
		RenderErrors: atomic.LoadUint64(&c.renderErrors),
	}
}
