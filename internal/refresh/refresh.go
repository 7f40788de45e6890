// Package refresh keeps the latest decoded feed in memory and re-fetches it
// on a cron schedule. Next-event selection runs against the held snapshot on
// every read so the clock advancing past an event needs no re-fetch.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"nextrace/internal/feed"
	appLog "nextrace/internal/log"
	"nextrace/internal/metrics"
	"nextrace/internal/model"
	"nextrace/internal/race"
)

// Source yields the raw feed payload. *feed.Fetcher and feed.File
// implement it.
type Source interface {
	Fetch(ctx context.Context) (feed.FetchResult, error)
}

// Snapshot is the state produced by the last refresh.
type Snapshot struct {
	// Events holds every record of the last good payload with its start
	// resolved once. It is never mutated after the swap.
	Events    []model.ResolvedEvent
	FetchedAt time.Time
	FromCache bool

	// Err is the error of the most recent attempt, nil if it succeeded.
	// Events still hold the last good payload when Err is set.
	Err error
}

// DefaultRunTimeout bounds one shared refresh run.
const DefaultRunTimeout = time.Minute

// Refresher owns the current Snapshot.
type Refresher struct {
	src        Source
	times      race.TimeResolver
	reg        model.Registry
	now        func() time.Time
	runTimeout time.Duration

	group singleflight.Group

	mu   sync.RWMutex
	snap Snapshot
}

// New returns a Refresher with an empty snapshot. Call Refresh or Start to
// populate it.
func New(src Source, times race.TimeResolver, reg model.Registry) *Refresher {
	return &Refresher{
		src:        src,
		times:      times,
		reg:        reg,
		now:        time.Now,
		runTimeout: DefaultRunTimeout,
	}
}

// SetRunTimeout changes the bound on one refresh run. Non-positive values
// are ignored.
func (r *Refresher) SetRunTimeout(d time.Duration) {
	if d > 0 {
		r.runTimeout = d
	}
}

// Registry returns the tracked series.
func (r *Refresher) Registry() model.Registry { return r.reg }

// Snapshot returns the current snapshot.
func (r *Refresher) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Next selects the upcoming event per series from the current snapshot.
func (r *Refresher) Next() model.NextEventMap {
	return race.SelectResolved(r.Snapshot().Events, r.now(), r.reg)
}

// Board is Next rendered into one card per tracked series.
func (r *Refresher) Board() []race.Card {
	return race.BuildBoard(r.Next(), r.reg)
}

// Refresh fetches and decodes the feed and swaps the snapshot. Concurrent
// callers share one in-flight run. The run is detached from the caller's
// cancellation and bounded by the run timeout, so a caller that gives up
// gets ctx.Err() while the run completes for everyone else. On failure the
// previous events are kept and the error is recorded.
func (r *Refresher) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := r.group.DoChan("refresh", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.runTimeout)
		defer cancel()
		return nil, r.refresh(runCtx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			appLog.Debug("refresh joined in-flight run")
		}
		return res.Err
	case <-ctx.Done():
		appLog.Debug("refresh caller gone; run continues", "error", ctx.Err().Error())
		return ctx.Err()
	}
}

func (r *Refresher) refresh(ctx context.Context) error {
	started := time.Now()
	defer func() {
		metrics.RefreshDuration.Observe(time.Since(started).Seconds())
	}()

	res, err := r.src.Fetch(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("fetch: %w", err))
	}

	records, err := feed.Decode(res.Body)
	if err != nil {
		return r.fail(err)
	}

	events := race.ResolveAll(records, r.times)
	r.account(events)

	r.mu.Lock()
	r.snap = Snapshot{
		Events:    events,
		FetchedAt: res.FetchedAt,
		FromCache: res.FromCache,
	}
	r.mu.Unlock()

	next := race.SelectResolved(events, r.now(), r.reg)
	metrics.NextEvents.Set(float64(len(next)))

	appLog.Info("refresh completed",
		"records", len(records),
		"next_events", len(next),
		"from_cache", res.FromCache,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

func (r *Refresher) fail(err error) error {
	if errors.Is(err, context.Canceled) {
		appLog.Warn("refresh canceled", "error", err.Error())
		return err
	}
	r.mu.Lock()
	r.snap.Err = err
	r.mu.Unlock()
	appLog.Error("refresh failed", err)
	return err
}

// account updates record counters and logs records whose timing fields
// disagree with each other.
func (r *Refresher) account(events []model.ResolvedEvent) {
	var resolved, unresolved, conflicts int
	for _, ev := range events {
		if !ev.Resolved {
			unresolved++
			continue
		}
		resolved++
		if r.times.Conflicting(ev.Record) {
			conflicts++
			cs := r.times.Candidates(ev.Record)
			appLog.Warn("record timing fields disagree",
				"race", ev.RaceName(),
				"chosen", cs[0].Field,
				"chosen_start", cs[0].Start.Format(time.RFC3339),
				"other", cs[1].Field,
				"other_start", cs[1].Start.Format(time.RFC3339),
			)
		}
	}
	metrics.RecordsTotal.WithLabelValues(metrics.RecordResolved).Add(float64(resolved))
	metrics.RecordsTotal.WithLabelValues(metrics.RecordUnresolved).Add(float64(unresolved))
	metrics.RecordsTotal.WithLabelValues(metrics.RecordConflict).Add(float64(conflicts))
	if unresolved > 0 {
		appLog.Debug("records without a start instant", "count", unresolved)
	}
}

// Start performs an immediate refresh and then schedules Refresh on spec
// (standard five-field cron). The schedule stops when ctx is done. An
// invalid spec is returned before anything runs.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		_ = r.Refresh(ctx)
	}); err != nil {
		return fmt.Errorf("refresh: schedule %q: %w", spec, err)
	}

	_ = r.Refresh(ctx)

	c.Start()
	appLog.Info("refresh scheduled", "cron", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return nil
}
