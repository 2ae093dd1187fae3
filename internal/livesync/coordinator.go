package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jimmypocock/FameFit-sub002/internal/metrics"
	"github.com/jimmypocock/FameFit-sub002/internal/session"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultElapsedTick  = time.Second
)

// Store is the slice of the metrics backend the coordinator polls.
type Store interface {
	Fetch(ctx context.Context, sessionID string) ([]metrics.Record, error)
	Push(ctx context.Context, rec metrics.Record) (metrics.Record, error)
}

// Broadcaster receives the JSON-encoded snapshot after each successful
// reconciliation, for fan-out to live viewers.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

type Options struct {
	PollInterval        time.Duration
	ElapsedTick         time.Duration
	DisconnectThreshold int
	Clock               clockwork.Clock
	Broadcaster         Broadcaster
}

func (o *Options) withDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ElapsedTick <= 0 {
		o.ElapsedTick = DefaultElapsedTick
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// Coordinator owns the poll loop and the elapsed-time clock for one
// session, and publishes the reconciled snapshot to readers. It is the
// single writer of the snapshot; reads never block on a fetch in flight.
type Coordinator struct {
	store  Store
	sess   session.Session
	userID string
	opts   Options

	mu          sync.RWMutex
	snapshot    metrics.Snapshot
	tracker     *connTracker
	syncStatus  SyncStatus
	elapsed     time.Duration
	local       *metrics.Record
	subscribers map[chan metrics.Snapshot]struct{}
	termErr     error
	inFlight    bool
	started     bool
	stopped     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator builds a coordinator for one device in one session.
// userID identifies the local device's participant; leave it empty for a
// read-only consumer that never pushes.
func NewCoordinator(store Store, sess session.Session, userID string, opts Options) *Coordinator {
	opts.withDefaults()
	return &Coordinator{
		store:       store,
		sess:        sess,
		userID:      userID,
		opts:        opts,
		snapshot:    metrics.Snapshot{},
		tracker:     newConnTracker(opts.DisconnectThreshold),
		subscribers: map[chan metrics.Snapshot]struct{}{},
	}
}

// Start launches the poll and elapsed-time loops. The first fetch happens
// immediately; subsequent fetches follow the poll interval. Start is a
// no-op on a coordinator that is already running or stopped.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(2)
	go c.pollLoop(ctx)
	go c.elapsedLoop(ctx)
}

// Stop cancels both timers and waits for in-flight work, then closes all
// subscriber channels. No fetches or pushes happen afterwards. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	for ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = map[chan metrics.Snapshot]struct{}{}
	c.mu.Unlock()
}

// Snapshot returns the last published snapshot. The map is immutable once
// published; callers must not modify it.
func (c *Coordinator) Snapshot() metrics.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *Coordinator) Aggregate() metrics.AggregateMetrics {
	return metrics.Aggregate(c.Snapshot())
}

func (c *Coordinator) Leaderboard(metric metrics.Metric) []metrics.RankedEntry {
	return metrics.Rank(c.Snapshot(), metric)
}

func (c *Coordinator) ConnState() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracker.state
}

func (c *Coordinator) SyncState() SyncStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syncStatus
}

// Elapsed is the wall time since the session's scheduled start, updated
// once per elapsed tick independent of network activity.
func (c *Coordinator) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.elapsed
}

// Err returns the terminal error after ConnState reaches Failed.
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.termErr
}

// SetLocalRecord stages the device's newest observation for the next
// scheduled push. A failed push keeps the record staged; it is retried on
// the next tick rather than rolled back.
func (c *Coordinator) SetLocalRecord(rec metrics.Record) {
	rec.SessionID = c.sess.ID
	if rec.UserID == "" {
		rec.UserID = c.userID
	}
	c.mu.Lock()
	c.local = &rec
	c.mu.Unlock()
}

// Subscribe returns a channel that receives each published snapshot. The
// channel is buffered and latest-wins: a slow consumer sees the newest
// snapshot, not every intermediate one. The returned cancel func detaches
// the subscriber; Stop closes all remaining channels.
func (c *Coordinator) Subscribe() (<-chan metrics.Snapshot, func()) {
	ch := make(chan metrics.Snapshot, 1)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (c *Coordinator) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := c.opts.Clock.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if c.ConnState() == Failed {
				return
			}
			c.tick(ctx)
		}
	}
}

// tick starts one fetch+push cycle unless the previous one is still in
// flight, in which case this tick is skipped rather than queued.
func (c *Coordinator) tick(ctx context.Context) {
	c.mu.Lock()
	if c.inFlight || c.tracker.state == Failed {
		skipped := c.inFlight
		c.mu.Unlock()
		if skipped {
			log.Debug().Str("session_id", c.sess.ID).Msg("poll tick skipped, fetch in flight")
		}
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			c.inFlight = false
			c.mu.Unlock()
		}()
		c.doPoll(ctx)
		// a terminal fetch stops all traffic, including this tick's push
		if c.ConnState() != Failed {
			c.doPush(ctx)
		}
	}()
}

func (c *Coordinator) doPoll(ctx context.Context) {
	c.mu.Lock()
	c.tracker.attempt()
	c.mu.Unlock()

	records, err := c.store.Fetch(ctx, c.sess.ID)
	if err != nil {
		c.onFetchError(err)
		return
	}

	c.mu.Lock()
	c.tracker.success()
	next := metrics.Reconcile(c.snapshot, records)
	c.snapshot = next
	// deliver while holding the lock so a concurrent unsubscribe cannot
	// close a channel mid-send; offers never block
	for ch := range c.subscribers {
		offerLatest(ch, next)
	}
	c.mu.Unlock()

	if c.opts.Broadcaster != nil {
		if payload, err := json.Marshal(next); err == nil {
			c.opts.Broadcaster.Broadcast(c.sess.ID, payload)
		}
	}
}

func (c *Coordinator) onFetchError(err error) {
	permanent := errors.Is(err, metrics.ErrPermanent)

	c.mu.Lock()
	state := c.tracker.failure(permanent)
	if permanent && c.termErr == nil {
		c.termErr = err
	}
	c.mu.Unlock()

	if permanent {
		log.Error().Err(err).Str("session_id", c.sess.ID).Msg("metrics fetch failed permanently, polling stops")
		return
	}
	log.Warn().Err(err).
		Str("session_id", c.sess.ID).
		Str("conn_state", state.String()).
		Msg("metrics fetch failed, will retry on next tick")
}

func (c *Coordinator) doPush(ctx context.Context) {
	c.mu.Lock()
	rec := c.local
	if rec == nil {
		c.mu.Unlock()
		return
	}
	c.syncStatus = Syncing
	c.mu.Unlock()

	_, err := c.store.Push(ctx, *rec)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.syncStatus = SyncFailed
		log.Warn().Err(err).Str("session_id", c.sess.ID).Msg("metrics push failed, record stays staged")
		return
	}
	c.syncStatus = Synced
	// clear only if no newer sample was staged while pushing
	if c.local == rec {
		c.local = nil
	}
}

func (c *Coordinator) elapsedLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := c.opts.Clock.NewTicker(c.opts.ElapsedTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			d := c.opts.Clock.Now().Sub(c.sess.StartsAt)
			if d < 0 {
				d = 0
			}
			c.mu.Lock()
			c.elapsed = d
			c.mu.Unlock()
		}
	}
}

// offerLatest delivers a snapshot without blocking: if the subscriber's
// buffer is full the stale value is evicted first.
func offerLatest(ch chan metrics.Snapshot, snap metrics.Snapshot) {
	select {
	case ch <- snap:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
