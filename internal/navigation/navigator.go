// Package navigation keeps a route to a fixed destination current while the
// device moves.
//
// Every position fix that survives the debounce quiet period and has moved far
// enough starts a new route fetch. Starting a fetch cancels the one still in
// flight, and a result is delivered only if its sequence number is still the
// latest, so updates leave a session in strictly increasing sequence order.
package navigation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pal-ai/gateway/internal/maps"
	"github.com/pal-ai/gateway/pkg/debounce"
	"github.com/pal-ai/gateway/pkg/geo"
	"github.com/pal-ai/gateway/pkg/logger"
	"go.uber.org/zap"
)

// Position is a device GPS fix
type Position struct {
	Coordinate maps.Coordinate `json:"coordinate"`
	Heading    float64         `json:"heading,omitempty"`
	Speed      float64         `json:"speed,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// RouteUpdate is one delivered route for a session
type RouteUpdate struct {
	SessionID   string          `json:"session_id"`
	Sequence    uint64          `json:"sequence"`
	Origin      maps.Coordinate `json:"origin"`
	Destination maps.Coordinate `json:"destination"`
	Route       *maps.Route     `json:"route,omitempty"`
	Approximate bool            `json:"approximate,omitempty"`
	Err         error           `json:"-"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RouteFetcher resolves directions. *maps.Service satisfies it.
type RouteFetcher interface {
	GetRoute(ctx context.Context, req *maps.RouteRequest) (*maps.RouteResponse, error)
}

// Config tunes navigation sessions
type Config struct {
	// QuietPeriod coalesces bursts of fixes. The first fix is never delayed.
	QuietPeriod time.Duration
	// MinRefetchMeters skips fixes closer than this to the last fetched origin.
	MinRefetchMeters float64
	FetchTimeout     time.Duration
	// IdleTimeout ends a session that received no fixes for this long. Zero disables it.
	IdleTimeout  time.Duration
	Mode         maps.TravelMode
	UpdateBuffer int
}

// DefaultConfig returns sensible navigation defaults
func DefaultConfig() Config {
	return Config{
		QuietPeriod:      750 * time.Millisecond,
		MinRefetchMeters: 15,
		FetchTimeout:     15 * time.Second,
		IdleTimeout:      30 * time.Minute,
		Mode:             maps.ModeDriving,
		UpdateBuffer:     8,
	}
}

// Navigator starts navigation sessions
type Navigator struct {
	fetcher   RouteFetcher
	publisher Publisher
	cfg       Config
}

// NewNavigator creates a navigator. A nil publisher disables fan-out.
func NewNavigator(fetcher RouteFetcher, publisher Publisher, cfg Config) *Navigator {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if cfg.UpdateBuffer <= 0 {
		cfg.UpdateBuffer = 1
	}
	if cfg.Mode == "" {
		cfg.Mode = maps.ModeDriving
	}
	return &Navigator{fetcher: fetcher, publisher: publisher, cfg: cfg}
}

// Start subscribes to positions and returns the session plus its update
// stream. The stream is closed exactly once, when the session ends: on Stop,
// on ctx cancellation, on idle timeout, or after positions is closed and the
// final fetch has been delivered.
func (n *Navigator) Start(ctx context.Context, destination maps.Coordinate, positions <-chan Position) (*Session, <-chan RouteUpdate) {
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		id:          uuid.NewString(),
		destination: destination,
		startedAt:   time.Now(),
		nav:         n,
		ctx:         ctx,
		cancel:      cancel,
		positions:   positions,
		updates:     make(chan RouteUpdate, n.cfg.UpdateBuffer),
		due:         make(chan struct{}, 1),
		results:     make(chan fetchResult),
		done:        make(chan struct{}),
	}
	s.debouncer = debounce.NewValue(n.cfg.QuietPeriod, s.markDue)

	activeSessions.Inc()
	go s.run()

	return s, s.updates
}

// ErrSessionStopped is reported to callers that interact with an ended session.
var ErrSessionStopped = errors.New("navigation session stopped")

// Session is one running navigation
type Session struct {
	id          string
	destination maps.Coordinate
	startedAt   time.Time
	nav         *Navigator

	ctx       context.Context
	cancel    context.CancelFunc
	positions <-chan Position
	updates   chan RouteUpdate
	done      chan struct{}

	debouncer *debounce.Value[Position]
	dueMu     sync.Mutex
	duePos    Position
	due       chan struct{}

	results chan fetchResult

	// Owned by the run goroutine.
	sequence      uint64
	inflight      context.CancelFunc
	lastRequested *maps.Coordinate
}

type fetchResult struct {
	sequence uint64
	origin   maps.Coordinate
	resp     *maps.RouteResponse
	err      error
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Destination returns the fixed navigation target
func (s *Session) Destination() maps.Coordinate { return s.destination }

// StartedAt returns when the session began
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Done is closed once the session goroutine has exited and the update stream
// is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop ends the session, cancels any in-flight fetch and waits for the update
// stream to close. It is safe to call more than once.
func (s *Session) Stop() {
	s.cancel()
	<-s.done
}

func (s *Session) markDue(p Position) {
	s.dueMu.Lock()
	s.duePos = p
	s.dueMu.Unlock()

	select {
	case s.due <- struct{}{}:
	default:
	}
}

func (s *Session) takeDue() Position {
	s.dueMu.Lock()
	defer s.dueMu.Unlock()
	return s.duePos
}

func (s *Session) run() {
	log := logger.WithContext(s.ctx).With(zap.String("navigation_session", s.id))
	defer func() {
		s.debouncer.Stop()
		if s.inflight != nil {
			s.inflight()
		}
		s.cancel()
		close(s.updates)
		activeSessions.Dec()
		close(s.done)
		log.Debug("navigation session ended", zap.Uint64("last_sequence", s.sequence))
	}()

	var idle <-chan time.Time
	var idleTimer *time.Timer
	if s.nav.cfg.IdleTimeout > 0 {
		idleTimer = time.NewTimer(s.nav.cfg.IdleTimeout)
		defer idleTimer.Stop()
		idle = idleTimer.C
	}

	positions := s.positions
	draining := false

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-idle:
			log.Info("navigation session idle, stopping")
			return

		case p, ok := <-positions:
			if !ok {
				positions = nil
				draining = true
				s.debouncer.Flush()
				break
			}
			if idleTimer != nil {
				idleTimer.Reset(s.nav.cfg.IdleTimeout)
			}
			s.debouncer.Trigger(p)
			if s.sequence == 0 {
				// Show the first route without waiting out the quiet period.
				s.debouncer.Flush()
			}

		case <-s.due:
			s.maybeFetch(s.takeDue())

		case res := <-s.results:
			if res.sequence != s.sequence {
				// Already counted when maybeFetch superseded it.
				break
			}
			s.inflight = nil
			if res.err != nil {
				// Let the next fix retry even if it has not moved.
				s.lastRequested = nil
			}
			if !s.deliver(res) {
				return
			}
		}

		if draining && s.inflight == nil && len(s.due) == 0 {
			return
		}
	}
}

// maybeFetch starts a fetch from p unless p is too close to the last fetched
// origin. A new fetch supersedes the one in flight.
func (s *Session) maybeFetch(p Position) {
	if s.lastRequested != nil && geo.DistanceMeters(*s.lastRequested, p.Coordinate) < s.nav.cfg.MinRefetchMeters {
		skippedFixesTotal.Inc()
		return
	}

	if s.inflight != nil {
		s.inflight()
		supersededFetchesTotal.Inc()
	}

	s.sequence++
	origin := p.Coordinate
	s.lastRequested = &origin

	var (
		fetchCtx context.Context
		cancel   context.CancelFunc
	)
	if s.nav.cfg.FetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(s.ctx, s.nav.cfg.FetchTimeout)
	} else {
		fetchCtx, cancel = context.WithCancel(s.ctx)
	}
	s.inflight = cancel

	go s.fetch(fetchCtx, cancel, s.sequence, origin)
}

func (s *Session) fetch(ctx context.Context, cancel context.CancelFunc, sequence uint64, origin maps.Coordinate) {
	defer cancel()

	resp, err := s.nav.fetcher.GetRoute(ctx, &maps.RouteRequest{
		Origin:      origin,
		Destination: s.destination,
		Mode:        s.nav.cfg.Mode,
	})

	// Cancelled fetches were superseded or the session ended; nobody wants them.
	if errors.Is(err, context.Canceled) {
		return
	}
	recordFetch(err)

	select {
	case s.results <- fetchResult{sequence: sequence, origin: origin, resp: resp, err: err}:
	case <-s.ctx.Done():
	}
}

func (s *Session) deliver(res fetchResult) bool {
	update := RouteUpdate{
		SessionID:   s.id,
		Sequence:    res.sequence,
		Origin:      res.origin,
		Destination: s.destination,
		CreatedAt:   time.Now(),
	}

	switch {
	case res.err != nil:
		update.Err = res.err
	case res.resp.Best() == nil:
		update.Err = maps.ErrNoRoute
	default:
		update.Route = res.resp.Best()
		update.Approximate = res.resp.Approximate
	}
	if update.Err != nil {
		update.Error = update.Err.Error()
	}

	if err := s.nav.publisher.Publish(s.ctx, update); err != nil {
		logger.WarnContext(s.ctx, "failed to publish route update",
			zap.String("navigation_session", s.id),
			zap.Uint64("sequence", update.Sequence),
			zap.Error(err),
		)
	}

	select {
	case s.updates <- update:
		return true
	case <-s.ctx.Done():
		return false
	}
}
