package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnectionManager owns the AMQP connection, reconnecting automatically when
// the broker drops it. Under a prefork server model the owning process calls
// Quiesce before forking and Resume in the child; between those calls every
// connection-dependent operation fails fast with ErrQuiesced rather than
// sharing a socket across the fork boundary.
type ConnectionManager struct {
	url            string
	conn           *amqp.Connection
	mu             sync.RWMutex
	reconnectDelay time.Duration
	maxRetries     int
	logger         *slog.Logger
	notifyClose    chan *amqp.Error
	connected      bool
	quiesced       bool
	done           chan struct{}
}

// ConnectionOption configures the ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithConnectionLogger sets the logger.
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithReconnectDelay sets the base delay between reconnection attempts.
func WithReconnectDelay(delay time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.reconnectDelay = delay
	}
}

// WithMaxReconnectAttempts bounds reconnection attempts. Negative means
// retry forever.
func WithMaxReconnectAttempts(retries int) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.maxRetries = retries
	}
}

// NewConnectionManager creates a manager for the given AMQP URL.
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:            url,
		reconnectDelay: 5 * time.Second,
		maxRetries:     -1,
		logger:         slog.Default(),
		done:           make(chan struct{}),
	}
	for _, opt := range options {
		opt(cm)
	}
	return cm
}

// Connect establishes the initial connection.
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connected {
		return nil
	}
	if cm.quiesced {
		return ErrQuiesced
	}
	return cm.dialLocked(ctx)
}

// dialLocked dials the broker. Caller holds cm.mu.
func (cm *ConnectionManager) dialLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	connChan := make(chan *amqp.Connection, 1)
	errChan := make(chan error, 1)
	go func() {
		conn, err := amqp.Dial(cm.url)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- conn
	}()

	select {
	case conn := <-connChan:
		cm.conn = conn
		cm.connected = true
		cm.notifyClose = make(chan *amqp.Error, 1)
		cm.conn.NotifyClose(cm.notifyClose)
		cm.logger.Info("connected to broker", "url", SanitizeURL(cm.url))
		go cm.watch(cm.notifyClose)
		return nil

	case err := <-errChan:
		return &ConnectionError{Op: "connect", URL: SanitizeURL(cm.url), Err: err, Timestamp: time.Now(), Attempts: 1}

	case <-dialCtx.Done():
		return &ConnectionError{Op: "connect", URL: SanitizeURL(cm.url), Err: ErrConnectionTimeout, Timestamp: time.Now(), Attempts: 1}
	}
}

// GetConnection returns the live connection or an error when unavailable.
func (cm *ConnectionManager) GetConnection() (*amqp.Connection, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.quiesced {
		return nil, ErrQuiesced
	}
	if !cm.connected || cm.conn == nil {
		return nil, ErrConnectionNotReady
	}
	if cm.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}
	return cm.conn, nil
}

// IsConnected reports whether a live connection is held.
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connected && !cm.quiesced
}

// Quiesce closes the broker connection ahead of a process fork without
// shutting the manager down. The watch goroutine observes the deliberate
// close and stays idle because quiesced suppresses reconnection.
func (cm *ConnectionManager) Quiesce() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.quiesced {
		return nil
	}
	cm.quiesced = true
	cm.connected = false

	if cm.conn != nil && !cm.conn.IsClosed() {
		err := cm.conn.Close()
		cm.conn = nil
		cm.logger.Info("broker connection quiesced for fork")
		return err
	}
	cm.conn = nil
	return nil
}

// Resume re-dials the broker after a fork.
func (cm *ConnectionManager) Resume(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.quiesced {
		return nil
	}
	cm.quiesced = false
	cm.logger.Info("resuming broker connection after fork")
	return cm.dialLocked(ctx)
}

// Close shuts the manager down permanently.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	select {
	case <-cm.done:
	default:
		close(cm.done)
	}
	cm.connected = false

	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}
	return nil
}

// watch monitors a connection's close notifications and reconnects.
func (cm *ConnectionManager) watch(notifyClose chan *amqp.Error) {
	select {
	case err := <-notifyClose:
		if err != nil {
			cm.logger.Error("broker connection closed", "error", err)
		}

		cm.mu.Lock()
		cm.connected = false
		cm.conn = nil
		quiesced := cm.quiesced
		cm.mu.Unlock()

		if quiesced {
			return
		}
		cm.reconnect()

	case <-cm.done:
		return
	}
}

// reconnect re-dials with exponential backoff until it succeeds, the retry
// budget runs out, or the manager shuts down.
func (cm *ConnectionManager) reconnect() {
	start := time.Now()
	for attempt := 0; ; attempt++ {
		select {
		case <-cm.done:
			return
		default:
		}

		if cm.maxRetries >= 0 && attempt >= cm.maxRetries {
			cm.logger.Error("reconnection attempts exhausted",
				"attempts", attempt,
				"elapsed", time.Since(start))
			return
		}

		if attempt > 0 {
			select {
			case <-time.After(cm.backoff(attempt)):
			case <-cm.done:
				return
			}
		}

		cm.mu.Lock()
		if cm.quiesced {
			cm.mu.Unlock()
			return
		}
		err := cm.dialLocked(context.Background())
		cm.mu.Unlock()

		if err == nil {
			cm.logger.Info("reconnected to broker",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return
		}
		cm.logger.Error("reconnection failed", "error", err, "attempt", attempt+1)
	}
}

// backoff returns the delay before the given reconnect attempt, exponential
// with jitter, capped at five minutes.
func (cm *ConnectionManager) backoff(attempt int) time.Duration {
	base := cm.reconnectDelay
	if base <= 0 {
		base = 5 * time.Second
	}
	maxDelay := 5 * time.Minute

	delay := base
	for i := 1; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	jitter := time.Duration(float64(delay) * 0.25)
	if jitter > 0 {
		delay = delay - jitter/2 + time.Duration(time.Now().UnixNano()%int64(jitter))
	}
	return delay
}
