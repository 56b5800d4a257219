// Package consumer implements xcapture's main loop: one tick triggers the
// task iterator sampler, the resulting events flow through the ring-buffer
// transport, and every drained record is rendered to CSV, rotating output
// files on the hour.
package consumer

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xcapture/xcapture/pkg/events"
	"github.com/xcapture/xcapture/pkg/ktime"
	"github.com/xcapture/xcapture/pkg/report"
	"github.com/xcapture/xcapture/pkg/ringbuf"
	"github.com/xcapture/xcapture/pkg/sampler"
	"github.com/xcapture/xcapture/pkg/symbolize"
)

// Config holds everything the loop needs beyond the sampler and the
// completions feed, which are supplied directly to New.
type Config struct {
	Frequency time.Duration // tick interval; e.g. time.Second for -F 1
	Ticks     int           // 0 means run until signaled
	OutputDir string        // "" means write CSV to stdout
	Columns   report.ColumnMode

	// CompletionPoll bounds how long each tick waits for completion
	// events after draining the ready ones; spec's "short poll" step.
	CompletionPoll time.Duration

	// Resolver symbolizes captured stack addresses. Nil means
	// symbolize.NoOp: stacks render as hex only. A real resolver plugs
	// in here without any other change to the consumer.
	Resolver symbolize.Resolver
}

// Consumer drives one sampler plus a completions feed into a report.Set.
type Consumer struct {
	smp         *sampler.Sampler
	completions ringbuf.Consumer[events.Completion]
	samplesRing *ringbuf.Ring[events.Sample]
	corr        ktime.Correlation
	reportSet   *report.Set
	cfg         Config
}

// New establishes the monotonic/wall-clock time correlation and opens the
// report set. completions is the read side of the completion-events
// transport: *ringbuf.Ring[events.Completion] in tests, *kernel.RingReader
// in production. A clock-read failure here is fatal at startup, per the
// documented attach/load failure contract.
func New(smp *sampler.Sampler, completions ringbuf.Consumer[events.Completion], cfg Config) (*Consumer, error) {
	corr, err := ktime.Establish()
	if err != nil {
		return nil, fmt.Errorf("consumer: establish time correlation: %w", err)
	}
	if cfg.Frequency <= 0 {
		return nil, fmt.Errorf("consumer: frequency must be > 0")
	}
	if cfg.CompletionPoll <= 0 {
		cfg.CompletionPoll = 100 * time.Millisecond
	}
	return &Consumer{
		smp:         smp,
		completions: completions,
		samplesRing: ringbuf.New[events.Sample](4096),
		corr:        corr,
		reportSet:   report.NewSet(cfg.OutputDir, cfg.Columns, cfg.Resolver),
		cfg:         cfg,
	}, nil
}

// Run drives the loop until ctx is canceled, a signal arrives, the tick
// budget is exhausted, or a write fails.
func (c *Consumer) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGPIPE)
	defer stop()

	ticker := time.NewTicker(c.cfg.Frequency)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return c.reportSet.Close()
		case <-ticker.C:
			if err := c.tick(ctx); err != nil {
				_ = c.reportSet.Close()
				return err
			}
			ticks++
			if c.cfg.Ticks > 0 && ticks >= c.cfg.Ticks {
				return c.reportSet.Close()
			}
		}
	}
}

func (c *Consumer) tick(ctx context.Context) error {
	samples, err := c.smp.Tick(ctx)
	if err != nil {
		return fmt.Errorf("consumer: sampler tick: %w", err)
	}
	for _, s := range samples {
		if !c.samplesRing.Submit(s) {
			fmt.Fprintf(os.Stderr, "xcapture: task-samples ring full, dropping sample for tid=%d\n", s.TID)
		}
	}

	for _, s := range c.samplesRing.Drain() {
		s.WallTime = c.corr.ToWall(s.ActualKtime)
		if err := c.reportSet.WriteSample(s); err != nil {
			return fmt.Errorf("consumer: write sample: %w", err)
		}
	}

	for _, comp := range c.completions.Poll(c.cfg.CompletionPoll) {
		if err := c.reportSet.WriteCompletion(comp, c.corr); err != nil {
			return fmt.Errorf("consumer: write completion: %w", err)
		}
	}
	return nil
}
