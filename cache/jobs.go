package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wtthornton/TappMCP-sub003/observe"
	"github.com/wtthornton/TappMCP-sub003/warm"
)

// closeDrainWait bounds how long Close waits for running jobs to finish.
const closeDrainWait = 10 * time.Second

// Start launches the background cadences: warming cycles, expired-entry
// sweeps and health samples. It also takes an initial health sample so
// Health reports real state immediately.
func (m *Manager) Start(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	clog := cronLogger{log: m.logger}
	m.sched = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(clog),
		cron.Recover(clog),
	))

	jobs := []struct {
		name  string
		every time.Duration
		run   func()
	}{
		{"warm", m.cfg.WarmInterval, m.warmJob},
		{"sweep", m.cfg.SweepInterval, m.sweepJob},
		{"sample", m.cfg.SampleInterval, m.sampleJob},
	}
	for _, j := range jobs {
		if _, err := m.sched.AddFunc("@every "+j.every.String(), j.run); err != nil {
			return fmt.Errorf("cache: schedule %s job: %w", j.name, err)
		}
	}

	m.statsMu.Lock()
	m.lastStore = m.store.Stats()
	m.statsMu.Unlock()

	m.sched.Start()
	m.startedAtNano.Store(time.Now().UnixNano())
	m.monitor.Sample(ctx)

	m.logger.Info(ctx, "cache manager started",
		observe.Field{Key: "warm_interval", Value: m.cfg.WarmInterval.String()},
		observe.Field{Key: "sweep_interval", Value: m.cfg.SweepInterval.String()},
		observe.Field{Key: "sample_interval", Value: m.cfg.SampleInterval.String()},
	)
	return nil
}

// Close stops the background cadences and waits for running jobs, bounded
// by closeDrainWait. It is idempotent.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	if m.sched != nil {
		drain := m.sched.Stop()
		select {
		case <-drain.Done():
		case <-time.After(closeDrainWait):
			m.logger.Warn(context.Background(), "close timed out waiting for background jobs")
		}
	}

	if m.usageReg != nil {
		if err := m.usageReg.Unregister(); err != nil {
			m.logger.Warn(context.Background(), "unregister usage gauges",
				observe.Field{Key: "error", Value: err.Error()})
		}
	}

	m.logger.Info(context.Background(), "cache manager closed")
	return nil
}

func (m *Manager) warmJob() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.WarmInterval)
	defer cancel()
	m.runWarmCycle(ctx)
}

// runWarmCycle executes one warming cycle and records its outcomes.
func (m *Manager) runWarmCycle(ctx context.Context) warm.CycleStats {
	cs := m.warmer.RunCycle(ctx)

	m.metrics.RecordWarm(ctx, observe.WarmOutcomeWarmed, int64(cs.Warmed))
	m.metrics.RecordWarm(ctx, observe.WarmOutcomeSkippedFresh, int64(cs.SkippedFresh))
	m.metrics.RecordWarm(ctx, observe.WarmOutcomeSkippedFull, int64(cs.SkippedFull))
	m.metrics.RecordWarm(ctx, observe.WarmOutcomeFailed, int64(cs.Failures))

	if cs.Selected > 0 || cs.SkippedFull > 0 || cs.Failures > 0 {
		m.logger.Debug(ctx, "warm cycle complete",
			observe.Field{Key: "selected", Value: cs.Selected},
			observe.Field{Key: "warmed", Value: cs.Warmed},
			observe.Field{Key: "skipped_fresh", Value: cs.SkippedFresh},
			observe.Field{Key: "skipped_full", Value: cs.SkippedFull},
			observe.Field{Key: "failures", Value: cs.Failures},
			observe.Field{Key: "duration_ms", Value: cs.Duration.Milliseconds()},
		)
	}
	return cs
}

func (m *Manager) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SweepInterval)
	defer cancel()

	if removed := m.store.SweepExpired(ctx); removed > 0 {
		m.logger.Debug(ctx, "swept expired entries",
			observe.Field{Key: "removed", Value: removed})
	}
}

func (m *Manager) sampleJob() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SampleInterval)
	defer cancel()

	m.monitor.Sample(ctx)
	m.recordStoreDeltas(ctx)
}

// recordStoreDeltas publishes eviction counters as metric increments.
func (m *Manager) recordStoreDeltas(ctx context.Context) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	cur := m.store.Stats()
	m.metrics.RecordEviction(ctx, observe.ReasonCapacity, cur.Evictions-m.lastStore.Evictions)
	m.metrics.RecordEviction(ctx, observe.ReasonExpired, cur.Expired-m.lastStore.Expired)
	m.lastStore = cur
}

// cronLogger adapts observe.Logger to the cron.Logger interface.
type cronLogger struct {
	log observe.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(context.Background(), msg, cronFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := append(cronFields(keysAndValues), observe.Field{Key: "error", Value: err.Error()})
	l.log.Error(context.Background(), msg, fields...)
}

func cronFields(keysAndValues []any) []observe.Field {
	fields := make([]observe.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, observe.Field{
			Key:   fmt.Sprint(keysAndValues[i]),
			Value: keysAndValues[i+1],
		})
	}
	return fields
}
