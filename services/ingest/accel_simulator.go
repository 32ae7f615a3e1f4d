package ingest

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"accel-dashboard/models"
	"accel-dashboard/utils"
	"accel-dashboard/utils/clock"
)

// AccelSimulator produces synthetic accelerometer samples at a fixed
// rate, standing in for the device when none is attached.
type AccelSimulator struct {
	cfg   utils.SimulationConfig
	clock clock.Clock
	rng   *rand.Rand
	Out   chan models.Sample

	dropped  uint64
	produced uint64
}

func NewAccelSimulator(cfg utils.SimulationConfig, clk clock.Clock, seed int64) *AccelSimulator {
	if cfg.RateHz <= 0 {
		cfg.RateHz = 10
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &AccelSimulator{
		cfg:   cfg,
		clock: clk,
		rng:   rand.New(rand.NewSource(seed)),
		Out:   make(chan models.Sample, 64),
	}
}

// Start runs the generator until ctx is cancelled, then closes Out.
func (s *AccelSimulator) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(time.Second / time.Duration(s.cfg.RateHz))
	go s.run(ctx, ticker)
	utils.L().Info("accel simulator started (rate=%dHz, emg=%v)", s.cfg.RateHz, s.cfg.EMG)
}

func (s *AccelSimulator) run(ctx context.Context, ticker *clock.Ticker) {
	defer close(s.Out)
	defer ticker.Stop()

	var step float64
	for {
		select {
		case <-ctx.Done():
			utils.L().Info("accel simulator stopped (produced=%d, dropped=%d)",
				atomic.LoadUint64(&s.produced), atomic.LoadUint64(&s.dropped))
			return
		case now := <-ticker.C:
			sample := s.read(step, now)
			step += 0.1

			select {
			case s.Out <- sample:
				atomic.AddUint64(&s.produced, 1)
			default:
				atomic.AddUint64(&s.dropped, 1)
			}
		}
	}
}

// read returns a slow oscillation on the horizontal axes and gravity on
// z, each with a little noise.
func (s *AccelSimulator) read(step float64, now time.Time) models.Sample {
	sample := models.Sample{
		AX:        round3(0.8*math.Sin(step) + s.rng.Float64()*0.05),
		AY:        round3(0.5*math.Cos(step*0.7) + s.rng.Float64()*0.05),
		AZ:        round3(9.81 + (s.rng.Float64()-0.5)*0.1),
		Timestamp: utils.ClockLabel(now),
	}
	if s.cfg.EMG {
		sample.EMG = models.Float(round3(math.Abs(math.Sin(step*3)) * 100))
	}
	return sample
}

func (s *AccelSimulator) Stats() (produced, dropped uint64) {
	return atomic.LoadUint64(&s.produced), atomic.LoadUint64(&s.dropped)
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
