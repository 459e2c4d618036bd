package navigation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/pal-ai/gateway/internal/maps"
	"github.com/pal-ai/gateway/pkg/async"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/websocket"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound   = errors.New("navigation session not found")
	ErrTooManySessions   = errors.New("too many active navigation sessions")
	ErrStreamingDisabled = errors.New("navigation streaming is disabled")
)

// Stream message types
const (
	MessageRoute    = "route"
	MessagePosition = "position"
	MessageError    = "error"
)

const (
	positionBufferSize = 16
	defaultMaxPerOwner = 3
)

// SessionInfo is the HTTP view of a managed session
type SessionInfo struct {
	ID          string          `json:"id"`
	Destination maps.Coordinate `json:"destination"`
	StartedAt   time.Time       `json:"started_at"`
	Latest      *RouteUpdate    `json:"latest,omitempty"`
}

// Manager owns the navigation sessions started over HTTP. Each session is fed
// from a buffered position channel and its latest update is kept for polling.
type Manager struct {
	navigator   *Navigator
	maxPerOwner int
	hub         *websocket.Hub

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

type managedSession struct {
	ownerID   string
	session   *Session
	positions chan Position

	sendMu sync.Mutex

	mu     sync.RWMutex
	latest *RouteUpdate
}

// NewManager creates a session manager. maxPerOwner <= 0 uses the default.
func NewManager(navigator *Navigator, maxPerOwner int) *Manager {
	if maxPerOwner <= 0 {
		maxPerOwner = defaultMaxPerOwner
	}
	return &Manager{
		navigator:   navigator,
		maxPerOwner: maxPerOwner,
		sessions:    make(map[string]*managedSession),
	}
}

// EnableStreaming pushes every route update to websocket subscribers of the
// session. Call it before the first session is created.
func (m *Manager) EnableStreaming(hub *websocket.Hub) {
	m.hub = hub
}

// Create starts a session for ownerID. The session outlives ctx but keeps its
// correlation ID. The optional initial position starts the first route fetch
// right away.
func (m *Manager) Create(ctx context.Context, ownerID string, destination maps.Coordinate, initial *Position) (*SessionInfo, error) {
	m.mu.Lock()
	count := 0
	for _, ms := range m.sessions {
		if ms.ownerID == ownerID {
			count++
		}
	}
	if count >= m.maxPerOwner {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}

	positions := make(chan Position, positionBufferSize)
	session, updates := m.navigator.Start(async.Detach(ctx), destination, positions)
	ms := &managedSession{ownerID: ownerID, session: session, positions: positions}
	m.sessions[session.ID()] = ms
	m.mu.Unlock()

	async.Go(ctx, "navigation-session", func(context.Context) {
		m.consume(ms, updates)
	})

	if initial != nil {
		ms.push(*initial)
	}

	return ms.info(), nil
}

func (m *Manager) consume(ms *managedSession, updates <-chan RouteUpdate) {
	for update := range updates {
		u := update
		ms.mu.Lock()
		ms.latest = &u
		ms.mu.Unlock()
		m.broadcast(&u)
	}

	m.mu.Lock()
	delete(m.sessions, ms.session.ID())
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.CloseTopic(ms.session.ID())
	}
}

func (m *Manager) broadcast(update *RouteUpdate) {
	if m.hub == nil {
		return
	}
	msg, err := websocket.NewMessage(MessageRoute, update.SessionID, update)
	if err != nil {
		logger.Warn("failed to encode route update", zap.String("session_id", update.SessionID), zap.Error(err))
		return
	}
	m.hub.Publish(update.SessionID, msg)
}

// Stream upgrades the request to a websocket subscribed to the session's
// route updates. The latest update, if any, is sent right away. Frames sent
// by the client are passed to handler.
func (m *Manager) Stream(w http.ResponseWriter, r *http.Request, ownerID, id string, handler websocket.MessageHandler) error {
	if m.hub == nil {
		return ErrStreamingDisabled
	}
	ms, err := m.get(ownerID, id)
	if err != nil {
		return err
	}

	client, err := m.hub.Serve(w, r, ownerID, id, handler)
	if err != nil {
		return err
	}

	select {
	case <-ms.session.Done():
		m.hub.CloseTopic(id)
		return nil
	default:
	}

	if latest := ms.info().Latest; latest != nil {
		if msg, err := websocket.NewMessage(MessageRoute, id, latest); err == nil {
			client.Send(msg)
		}
	}
	return nil
}

// PushPosition feeds a fix into a session. When the buffer is full the oldest
// unread fix is dropped; the debouncer only needs the newest anyway.
func (m *Manager) PushPosition(ownerID, id string, p Position) error {
	ms, err := m.get(ownerID, id)
	if err != nil {
		return err
	}

	select {
	case <-ms.session.Done():
		return ErrSessionNotFound
	default:
	}

	ms.push(p)
	return nil
}

func (ms *managedSession) push(p Position) {
	ms.sendMu.Lock()
	defer ms.sendMu.Unlock()

	for {
		select {
		case ms.positions <- p:
			return
		default:
		}
		select {
		case <-ms.positions:
		default:
		}
	}
}

// Get returns the session with its latest delivered update.
func (m *Manager) Get(ownerID, id string) (*SessionInfo, error) {
	ms, err := m.get(ownerID, id)
	if err != nil {
		return nil, err
	}
	return ms.info(), nil
}

// Stop ends a session and waits for it to shut down.
func (m *Manager) Stop(ownerID, id string) error {
	ms, err := m.get(ownerID, id)
	if err != nil {
		return err
	}

	ms.session.Stop()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Shutdown stops every session.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	sessions := make([]*managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		sessions = append(sessions, ms)
	}
	m.mu.RUnlock()

	for _, ms := range sessions {
		ms.session.Stop()
	}
}

// Active returns the number of running sessions.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) get(ownerID, id string) (*managedSession, error) {
	m.mu.RLock()
	ms, ok := m.sessions[id]
	m.mu.RUnlock()

	// Another user's session is reported as missing.
	if !ok || ms.ownerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return ms, nil
}

func (ms *managedSession) info() *SessionInfo {
	ms.mu.RLock()
	latest := ms.latest
	ms.mu.RUnlock()

	return &SessionInfo{
		ID:          ms.session.ID(),
		Destination: ms.session.Destination(),
		StartedAt:   ms.session.StartedAt(),
		Latest:      latest,
	}
}
