// Package feed implements the live call-feed reconciliation engine behind
// the triage dashboard's call-log view. It keeps a bounded, strictly ordered
// list of call records current under two independent update sources: a
// low-latency insert subscription and a periodic full-snapshot poll that
// serves as a correctness backstop for silently dropped push events.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/triagedesk/pkg/models"
)

// Defaults applied by Config.withDefaults for zero-valued fields.
const (
	DefaultLimit                = 50
	DefaultFallbackPollInterval = 5 * time.Second
	DefaultSafetyPollInterval   = 30 * time.Second
	DefaultHighlightTTL         = 3 * time.Second
)

const fetchTimeout = 10 * time.Second

// Config controls one feed session.
type Config struct {
	// Limit bounds the number of records the feed holds.
	Limit int

	// FallbackPollInterval is the snapshot cadence while Degraded.
	FallbackPollInterval time.Duration

	// SafetyPollInterval is the always-on snapshot cadence that corrects
	// push events silently dropped while Live.
	SafetyPollInterval time.Duration

	// HighlightTTL is how long a pushed record stays marked as new.
	HighlightTTL time.Duration

	// OnError, when set, receives non-fatal fetch failures (*FetchError).
	OnError func(error)
}

func (c Config) withDefaults() Config {
	if c.Limit == 0 {
		c.Limit = DefaultLimit
	}
	if c.FallbackPollInterval == 0 {
		c.FallbackPollInterval = DefaultFallbackPollInterval
	}
	if c.SafetyPollInterval == 0 {
		c.SafetyPollInterval = DefaultSafetyPollInterval
	}
	if c.HighlightTTL == 0 {
		c.HighlightTTL = DefaultHighlightTTL
	}
	return c
}

func (c Config) validate() error {
	if c.Limit < 0 {
		return errors.New("feed: limit must be positive")
	}
	if c.FallbackPollInterval < 0 || c.SafetyPollInterval < 0 || c.HighlightTTL < 0 {
		return errors.New("feed: intervals must be positive")
	}
	return nil
}

// mergeRequest carries records from a completed fetch into the run loop.
// fromPush marks records resolved from the push path, which are the only
// ones that register highlights.
type mergeRequest struct {
	records  []models.CallRecord
	fromPush bool
}

// Feed is one open feed session. All state mutation happens on a single run
// loop goroutine; fetches run fire-and-forget and post results back in.
type Feed struct {
	cfg        Config
	src        Source
	store      *Store
	highlights *highlightTracker

	ctx    context.Context
	cancel context.CancelFunc
	merges chan mergeRequest
	done   chan struct{}

	closeOnce sync.Once
}

// Open starts a feed session over src: it kicks off the initial snapshot
// fetch, opens the insert subscription, and starts the poll timers. A
// subscription that cannot be established is not fatal; the feed opens
// Degraded and lives off the fallback poll.
func Open(ctx context.Context, src Source, cfg Config) (*Feed, error) {
	if src == nil {
		return nil, errors.New("feed: source is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	fctx, cancel := context.WithCancel(ctx)
	store := NewStore()
	f := &Feed{
		cfg:        cfg,
		src:        src,
		store:      store,
		highlights: newHighlightTracker(store, cfg.HighlightTTL),
		ctx:        fctx,
		cancel:     cancel,
		merges:     make(chan mergeRequest, 16),
		done:       make(chan struct{}),
	}

	stream, err := src.SubscribeInserts(fctx)
	if err != nil {
		log.Warn().Err(err).Msg("insert subscription could not be established, feed opening degraded")
		stream = nil
	}

	go f.run(stream)
	return f, nil
}

// Subscribe registers a listener on the feed's composite state. The listener
// is called immediately with the current state and again on every change.
func (f *Feed) Subscribe(l Listener) func() {
	return f.store.Subscribe(l)
}

// Snapshot returns the current composite state.
func (f *Feed) Snapshot() Snapshot {
	return f.store.Snapshot()
}

// Status returns the current connection status.
func (f *Feed) Status() ConnectionStatus {
	return f.store.Status()
}

// Close tears the session down: the insert subscription, both poll timers,
// and every pending highlight expiry are released. Results of fetches still
// in flight are discarded. Safe to call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.cancel()
		<-f.done
		f.highlights.Close()
	})
}

func (f *Feed) run(stream InsertStream) {
	defer close(f.done)

	safety := time.NewTicker(f.cfg.SafetyPollInterval)
	defer safety.Stop()

	var fallback *time.Ticker
	var fallbackC <-chan time.Time
	defer func() {
		if fallback != nil {
			fallback.Stop()
		}
	}()

	degrade := func() {
		if f.store.Status() == StatusDegraded {
			return
		}
		f.store.setStatus(StatusDegraded)
		fallback = time.NewTicker(f.cfg.FallbackPollInterval)
		fallbackC = fallback.C
	}

	var ready <-chan struct{}
	var inserts <-chan string
	var errs <-chan error
	if stream != nil {
		defer stream.Close()
		ready = stream.Ready()
		inserts = stream.Inserts()
		errs = stream.Err()
	} else {
		degrade()
	}

	// Initial load.
	go f.fetchSnapshot()

	for {
		select {
		case <-f.ctx.Done():
			return

		case <-ready:
			ready = nil
			if f.store.Status() == StatusConnecting {
				f.store.setStatus(StatusLive)
			}

		case id, ok := <-inserts:
			if !ok {
				inserts = nil
				continue
			}
			go f.resolveInsert(id)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn().Err(err).Msg("push subscription lost, falling back to polling")
			degrade()

		case req := <-f.merges:
			f.apply(req)

		case <-safety.C:
			go f.fetchSnapshot()

		case <-fallbackC:
			go f.fetchSnapshot()
		}
	}
}

// apply merges fetched records into the store. Runs only on the run loop
// goroutine, which is what serializes reconciliation.
func (f *Feed) apply(req mergeRequest) {
	current := f.store.Snapshot().Records
	f.store.setRecords(mergeRecords(current, req.records, f.cfg.Limit))

	if req.fromPush {
		for _, r := range req.records {
			f.highlights.Mark(r.ID)
		}
	}
}

// resolveInsert turns a pushed id into a full record. Push events carry only
// the id, so a point fetch resolves them before merge.
func (f *Feed) resolveInsert(id string) {
	ctx, cancel := context.WithTimeout(f.ctx, fetchTimeout)
	defer cancel()

	rec, err := f.src.FetchByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug().Str("call_id", id).Msg("pushed call id not found, skipping")
			return
		}
		f.reportFetchError(&FetchError{Op: "resolve", Err: err})
		return
	}

	f.submit(mergeRequest{records: []models.CallRecord{rec}, fromPush: true})
}

func (f *Feed) fetchSnapshot() {
	ctx, cancel := context.WithTimeout(f.ctx, fetchTimeout)
	defer cancel()

	records, err := f.src.FetchOrdered(ctx, f.cfg.Limit)
	if err != nil {
		f.reportFetchError(&FetchError{Op: "snapshot", Err: err})
		return
	}

	f.submit(mergeRequest{records: records})
}

func (f *Feed) submit(req mergeRequest) {
	select {
	case f.merges <- req:
	case <-f.ctx.Done():
	}
}

func (f *Feed) reportFetchError(err *FetchError) {
	// A fetch aborted by Close is a discard, not a failure.
	if f.ctx.Err() != nil {
		return
	}
	log.Warn().Err(err).Str("op", err.Op).Msg("feed fetch failed, state unchanged until next poll")
	if f.cfg.OnError != nil {
		f.cfg.OnError(err)
	}
}
