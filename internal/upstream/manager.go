package upstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"recwatch/internal/domain"
	"recwatch/internal/metrics"
	"recwatch/internal/protocol"
	"recwatch/internal/store"
)

// Status is the observable state of the feed connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Conn is the subset of *websocket.Conn the manager uses. Tests substitute
// an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// writeTimeout bounds intent writes. Writes happen under the manager lock, so
// a stalled peer must not be able to hold Status/Filter/Disconnect hostage
// longer than this.
const writeTimeout = 10 * time.Second

// DialFunc opens a WebSocket connection to the given URL.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func defaultDial(ctx context.Context, rawURL string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

// Config wires a Manager. BaseURL, Token and Store are required; the rest
// have working defaults.
type Config struct {
	// BaseURL is the recorder's API base URL (http(s) or ws(s) scheme).
	BaseURL string
	// Token supplies the current auth token. An empty token means "not
	// authenticated": Connect becomes a noop and reconnects stop.
	Token func() string
	// Store receives every state-bearing event.
	Store *store.Store
	// OnEvent, when set, observes every decoded event after it has been
	// applied to the store. Called from the read loop; keep it fast.
	OnEvent func(domain.Event)

	Logger *slog.Logger
	// Dial overrides the WebSocket dialer (tests).
	Dial DialFunc

	// BaseDelay and MaxDelay bound the reconnect backoff
	// (defaults 1s and 30s).
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Manager owns the single upstream feed connection: dialing, the read loop,
// reconnect backoff and the streamer filter. All exported methods are safe
// for concurrent use.
//
// The lifecycle is disconnected -> connecting -> connected, with error as
// the resting state of a failed dial. A dropped connection goes back to
// disconnected and schedules a reconnect; an explicit Disconnect cancels any
// pending reconnect and clears the store.
type Manager struct {
	baseURL string
	token   func() string
	store   *store.Store
	onEvent func(domain.Event)
	logger  *slog.Logger
	dial    DialFunc

	mu        sync.Mutex
	status    Status
	conn      Conn
	backoff   *backoff.ExponentialBackOff
	reconnect *time.Timer
	filter    string
	hasFilter bool
	// gen invalidates in-flight dials and pending reconnect timers. It is
	// bumped on Disconnect; a dial result or timer carrying a stale gen is
	// discarded.
	gen uint64

	decodeLogs *rate.Limiter
}

func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dial := cfg.Dial
	if dial == nil {
		dial = defaultDial
	}
	base := cfg.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	max := cfg.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}
	return &Manager{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		store:      cfg.Store,
		onEvent:    cfg.OnEvent,
		logger:     logger.With(slog.String("component", "upstream")),
		dial:       dial,
		backoff:    newBackoff(base, max),
		decodeLogs: rate.NewLimiter(rate.Every(5*time.Second), 3),
	}
}

// Status returns the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect starts a connection attempt unless one is already in flight or
// established. Without a token it is a noop.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectLocked()
}

func (m *Manager) connectLocked() {
	if m.status == StatusConnecting || m.status == StatusConnected {
		return
	}
	if m.token == nil || m.token() == "" {
		m.logger.Debug("connect skipped, no auth token")
		return
	}
	endpoint, err := EndpointURL(m.baseURL, m.token())
	if err != nil {
		m.logger.Error("invalid feed endpoint", slog.String("error", err.Error()))
		return
	}
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.setStatusLocked(StatusConnecting)
	go m.runDial(m.gen, endpoint)
}

// Disconnect tears the connection down, cancels any pending reconnect and
// clears the reconciled store. Calling it while already disconnected is a
// noop.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	wasActive := m.status != StatusDisconnected
	m.setStatusLocked(StatusDisconnected)
	m.backoff.Reset()
	m.mu.Unlock()

	m.store.Clear()
	if wasActive {
		m.logger.Info("feed disconnected by request")
	}
}

func (m *Manager) runDial(gen uint64, endpoint string) {
	conn, err := m.dial(context.Background(), endpoint)

	m.mu.Lock()
	if gen != m.gen {
		// Disconnect won the race; discard the result.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.setStatusLocked(StatusError)
		m.logger.Warn("feed dial failed", slog.String("error", err.Error()))
		m.scheduleReconnectLocked(gen)
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.setStatusLocked(StatusConnected)
	m.backoff.Reset()
	m.logger.Info("feed connected")
	if m.hasFilter {
		if serr := m.sendIntentLocked(domain.Subscribe{StreamerID: m.filter}); serr != nil {
			m.logger.Error("resend of streamer filter failed", slog.String("error", serr.Error()))
		}
	}
	m.mu.Unlock()

	go m.readLoop(gen, conn)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}
		ev, derr := protocol.DecodeServer(frame)
		if derr != nil {
			metrics.DecodeFailuresTotal.Inc()
			if m.decodeLogs.Allow() {
				m.logger.Warn("dropping undecodable feed frame",
					slog.Int("size", len(frame)),
					slog.String("error", derr.Error()),
				)
			}
			continue
		}
		m.dispatch(ev)
	}
}

// dispatch applies one decoded event to the store, then hands it to the
// OnEvent observer.
func (m *Manager) dispatch(ev domain.Event) {
	metrics.FramesTotal.WithLabelValues(ev.Tag()).Inc()

	switch e := ev.(type) {
	case domain.Snapshot:
		m.store.ApplySnapshot(e.Downloads)
	case domain.MetaUpdated:
		m.store.ApplyMeta(e.Meta)
	case domain.MetricsUpdated:
		m.store.ApplyMetrics(e.Metrics)
	case domain.DownloadCompleted:
		m.store.MarkTerminated(e.DownloadID)
	case domain.DownloadFailed:
		m.store.MarkTerminated(e.DownloadID)
	case domain.DownloadCancelled:
		m.store.MarkTerminated(e.DownloadID)
	case domain.SegmentCompleted, domain.DownloadRejected, domain.ServerError:
		// No per-download state change; surfaced to observers only.
	}

	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

// handleClose runs when the read loop sees an error. A server-initiated
// close and a transport error look the same here: drop to disconnected and
// schedule a reconnect, unless the token is gone or Disconnect already
// invalidated this connection.
func (m *Manager) handleClose(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.setStatusLocked(StatusDisconnected)
	m.logger.Info("feed connection lost", slog.String("reason", err.Error()))
	if m.token == nil || m.token() == "" {
		m.mu.Unlock()
		return
	}
	m.scheduleReconnectLocked(gen)
	m.mu.Unlock()
}

func (m *Manager) scheduleReconnectLocked(gen uint64) {
	delay := m.backoff.NextBackOff()
	metrics.ReconnectsTotal.Inc()
	m.logger.Info("feed reconnect scheduled", slog.Int64("delayMs", delay.Milliseconds()))
	m.reconnect = time.AfterFunc(delay, func() { m.reconnectFired(gen) })
}

func (m *Manager) reconnectFired(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.status == StatusConnecting || m.status == StatusConnected {
		return
	}
	m.reconnect = nil
	m.connectLocked()
}

func (m *Manager) sendIntentLocked(intent domain.ClientIntent) error {
	frame, err := protocol.EncodeClient(intent)
	if err != nil {
		return err
	}
	if m.conn == nil {
		return errors.New("not connected")
	}
	_ = m.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return m.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (m *Manager) setStatusLocked(st Status) {
	m.status = st
	metrics.ConnectionState.Set(float64(st))
}
