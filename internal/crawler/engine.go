package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitegrab/internal/dispatch"
	"github.com/nao1215/sitegrab/internal/model"
)

// Defaults for a crawl run.
const (
	// DefaultFetchTimeout bounds every single fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultDelay is the politeness pause after each iteration.
	DefaultDelay = 100 * time.Millisecond
)

// State is the lifecycle state of an Engine.
type State int32

// Engine states. Stopped and Finished are terminal for a run; Start moves
// the engine back to Running.
const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFinished
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// EventType distinguishes discovery events from the terminal event.
type EventType int

const (
	// EventDiscovered carries one DiscoveryRecord.
	EventDiscovered EventType = iota

	// EventDone is the last event of a run. State is Stopped or Finished.
	EventDone
)

// Event is delivered to the consumer of a run, in fetch order.
type Event struct {
	Type   EventType
	Record model.DiscoveryRecord

	// State is set on EventDone.
	State State

	// Err is set on EventDone when the run ended on an unexpected failure.
	Err error
}

// Engine runs breadth-first crawls of a single origin.
//
// Design decision: The engine keeps one Session for its whole life. Records
// from consecutive runs accumulate in it until Reset, the same way a result
// list keeps growing until it is cleared.
type Engine struct {
	fetcher  Fetcher
	timeout  time.Duration
	delay    time.Duration
	maxPages int
	filter   pathFilter
	logger   *slog.Logger
	now      func() time.Time

	session *Session

	mu    sync.Mutex
	state State
	done  chan struct{}

	// stop is the only state written from outside the worker.
	stop atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetchTimeout sets the per-fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithDelay sets the pause after each iteration. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.delay = d
		}
	}
}

// WithMaxPages stops the run after n fetches. Zero means no limit.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxPages = n
		}
	}
}

// WithIgnorePatterns skips in-scope links whose path matches any pattern.
func WithIgnorePatterns(patterns []string) Option {
	return func(e *Engine) {
		e.filter.ignore = patterns
	}
}

// WithFollowPatterns only follows in-scope links whose path matches a pattern.
// The seed itself is always fetched.
func WithFollowPatterns(patterns []string) Option {
	return func(e *Engine) {
		e.filter.follow = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSession makes the engine record into s instead of a private session.
func WithSession(s *Session) Option {
	return func(e *Engine) {
		if s != nil {
			e.session = s
		}
	}
}

// NewEngine creates an idle engine that fetches through fetcher.
func NewEngine(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher: fetcher,
		timeout: DefaultFetchTimeout,
		delay:   DefaultDelay,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.session == nil {
		e.session = NewSession()
	}
	return e
}

// Start begins a run from seed and returns the event stream of that run.
// The channel is closed after the EventDone event. Cancelling ctx has the
// same effect as Stop: a fetch in flight completes and is recorded.
func (e *Engine) Start(ctx context.Context, seed string) (<-chan Event, error) {
	seedURL, err := parseSeed(seed)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.state = StateRunning
	e.done = make(chan struct{})
	e.stop.Store(false)
	done := e.done
	e.mu.Unlock()

	e.session.begin(seedURL.String(), e.now())
	e.logger.Info("crawl started", "seed", seedURL.String(), "session", e.session.ID())

	events := dispatch.NewQueue[Event]()
	go e.run(ctx, seedURL, events, done)

	return events.C(), nil
}

// Stop asks the running crawl to stop before its next fetch.
// An in-flight fetch is allowed to complete.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Wait blocks until the current run ends and returns its terminal state.
// It returns the current state immediately when nothing has been started.
func (e *Engine) Wait() State {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
	return e.State()
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns the session the engine records into.
func (e *Engine) Session() *Session {
	return e.session
}

// Reset clears the session. It fails while a run is active.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		return ErrAlreadyRunning
	}
	e.session.Reset()
	e.state = StateIdle
	return nil
}

// run is the traversal loop. It owns the frontier.
func (e *Engine) run(ctx context.Context, seed *url.URL, events *dispatch.Queue[Event], done chan struct{}) {
	final := StateFinished
	var diagnostic error

	defer func() {
		if r := recover(); r != nil {
			final = StateFinished
			diagnostic = fmt.Errorf("%w: %v", errUnexpected, r)
			e.logger.Error("crawl aborted", "error", diagnostic)
		}
		e.finish(final, diagnostic, events, done)
	}()

	frontier := NewFrontier()
	frontier.Seed(seed.String())
	fetched := 0

	for {
		if e.stop.Load() || ctx.Err() != nil {
			final = StateStopped
			return
		}

		address, ok := frontier.DequeueNext()
		if !ok {
			return
		}
		if frontier.IsVisited(address) {
			continue
		}
		if e.maxPages > 0 && fetched >= e.maxPages {
			e.logger.Info("page limit reached", "limit", e.maxPages)
			return
		}
		frontier.MarkVisited(address)

		record, body := e.fetch(ctx, address)
		fetched++
		e.session.add(record)
		events.Post(Event{Type: EventDiscovered, Record: record})

		if record.Category == model.CategoryHTML && len(body) > 0 {
			e.expand(seed, address, body, frontier)
		}

		if e.delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.delay):
			}
		}
	}
}

// fetch performs one bounded fetch and turns the outcome into a record.
// The fetch runs detached from ctx cancellation: a stop only takes effect
// before the next fetch, so every started fetch yields a record.
func (e *Engine) fetch(ctx context.Context, address string) (model.DiscoveryRecord, []byte) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	resp, err := e.fetcher.Fetch(fetchCtx, address)
	if err != nil {
		e.logger.Debug("fetch failed", "address", address, "error", err)
		return model.DiscoveryRecord{
			Address:        address,
			Category:       Classify("", true),
			RawContentType: "Error: " + err.Error(),
			DiscoveredAt:   e.now(),
		}, nil
	}

	contentType := strings.ToLower(resp.ContentType)
	size := resp.Size
	if size < int64(len(resp.Body)) {
		size = int64(len(resp.Body))
	}
	record := model.DiscoveryRecord{
		Address:        address,
		Category:       Classify(contentType, false),
		ByteSize:       size,
		RawContentType: contentType,
		DiscoveredAt:   e.now(),
	}
	e.logger.Debug("fetched", "address", address, "status", resp.StatusCode, "category", record.Category)
	return record, resp.Body
}

// expand extracts links from an HTML body and offers the in-scope ones.
func (e *Engine) expand(seed *url.URL, address string, body []byte, frontier *Frontier) {
	base, err := url.Parse(address)
	if err != nil {
		return
	}
	links, err := ExtractLinks(bytes.NewReader(body), base)
	if err != nil {
		e.logger.Debug("link extraction failed", "address", address, "error", err)
		return
	}

	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if !SameOrigin(seed, u) || !e.filter.allows(u) {
			continue
		}
		frontier.Offer(normalizeAddress(u))
	}
}

// finish publishes the terminal state and closes the event stream.
func (e *Engine) finish(final State, diagnostic error, events *dispatch.Queue[Event], done chan struct{}) {
	msg := ""
	if diagnostic != nil {
		msg = diagnostic.Error()
	}
	e.session.end(final, e.now(), msg)

	e.mu.Lock()
	e.state = final
	e.mu.Unlock()

	e.logger.Info("crawl ended", "state", final.String(), "records", e.session.Len())
	events.Post(Event{Type: EventDone, State: final, Err: diagnostic})
	events.Close()
	close(done)
}

// IsUnexpected reports whether err is a recovered crawl failure.
func IsUnexpected(err error) bool {
	return errors.Is(err, errUnexpected)
}
