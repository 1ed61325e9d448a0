package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ChannelPool manages a bounded pool of AMQP channels on top of a
// ConnectionManager. Channels found closed on checkout are replaced
// transparently.
type ChannelPool struct {
	manager     *ConnectionManager
	channels    chan *PooledChannel
	maxSize     int
	minSize     int
	idleTimeout time.Duration
	mu          sync.Mutex
	closed      bool
	activeCount int
}

// PooledChannel wraps an AMQP channel with pool bookkeeping.
type PooledChannel struct {
	*amqp.Channel
	lastUsed time.Time
	id       string
}

// ChannelPoolOption configures the channel pool.
type ChannelPoolOption func(*ChannelPool)

// WithMaxChannels sets the maximum pool size.
func WithMaxChannels(size int) ChannelPoolOption {
	return func(cp *ChannelPool) {
		cp.maxSize = size
	}
}

// WithMinChannels sets the number of channels opened eagerly.
func WithMinChannels(size int) ChannelPoolOption {
	return func(cp *ChannelPool) {
		cp.minSize = size
	}
}

// WithIdleTimeout sets how long an unused channel survives before cleanup.
func WithIdleTimeout(timeout time.Duration) ChannelPoolOption {
	return func(cp *ChannelPool) {
		cp.idleTimeout = timeout
	}
}

// NewChannelPool creates a channel pool over the given connection manager.
func NewChannelPool(manager *ConnectionManager, options ...ChannelPoolOption) (*ChannelPool, error) {
	if manager == nil {
		return nil, ErrInvalidConfiguration
	}

	pool := &ChannelPool{
		manager:     manager,
		maxSize:     10,
		minSize:     2,
		idleTimeout: 5 * time.Minute,
	}
	for _, opt := range options {
		opt(pool)
	}

	if pool.maxSize < 1 {
		return nil, fmt.Errorf("%w: max size must be at least 1", ErrInvalidConfiguration)
	}
	if pool.minSize < 0 || pool.minSize > pool.maxSize {
		return nil, fmt.Errorf("%w: min size must be between 0 and max size", ErrInvalidConfiguration)
	}

	pool.channels = make(chan *PooledChannel, pool.maxSize)

	var created []*PooledChannel
	for i := 0; i < pool.minSize; i++ {
		ch, err := pool.createChannel()
		if err != nil {
			for _, c := range created {
				c.Channel.Close()
			}
			return nil, &ChannelError{
				Op:        "pool initialization",
				ChannelID: fmt.Sprintf("init-%d", i),
				Err:       err,
				Timestamp: time.Now(),
			}
		}
		created = append(created, ch)
	}
	for _, ch := range created {
		pool.channels <- ch
	}

	go pool.cleanupIdle()

	return pool, nil
}

// Get retrieves a channel from the pool, opening a new one if needed.
func (cp *ChannelPool) Get(ctx context.Context) (*PooledChannel, error) {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return nil, ErrChannelPoolClosed
	}
	cp.mu.Unlock()

	select {
	case ch := <-cp.channels:
		if ch.Channel.IsClosed() {
			cp.retire()
			return cp.createAndGet(ctx)
		}
		ch.lastUsed = time.Now()
		return ch, nil

	default:
		cp.mu.Lock()
		if cp.activeCount < cp.maxSize {
			cp.mu.Unlock()
			return cp.createAndGet(ctx)
		}
		cp.mu.Unlock()

		select {
		case ch := <-cp.channels:
			if ch.Channel.IsClosed() {
				cp.retire()
				return cp.createAndGet(ctx)
			}
			ch.lastUsed = time.Now()
			return ch, nil

		case <-ctx.Done():
			return nil, &ChannelError{Op: "get channel", ChannelID: "pool", Err: ctx.Err(), Timestamp: time.Now()}

		case <-time.After(5 * time.Second):
			return nil, &ChannelError{Op: "get channel", ChannelID: "pool", Err: ErrChannelPoolExhausted, Timestamp: time.Now()}
		}
	}
}

// Put returns a channel to the pool. The send happens under the pool lock so
// a concurrent Close cannot drain the pool between the closed check and the
// send.
func (cp *ChannelPool) Put(ch *PooledChannel) {
	if ch == nil {
		return
	}
	if ch.Channel.IsClosed() {
		cp.retire()
		return
	}
	ch.lastUsed = time.Now()

	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		ch.Channel.Close()
		return
	}
	select {
	case cp.channels <- ch:
		cp.mu.Unlock()
	default:
		// Pool full.
		cp.mu.Unlock()
		ch.Channel.Close()
		cp.retire()
	}
}

// Execute runs fn with a pooled channel, returning it afterwards.
func (cp *ChannelPool) Execute(ctx context.Context, fn func(*amqp.Channel) error) error {
	ch, err := cp.Get(ctx)
	if err != nil {
		return err
	}
	defer cp.Put(ch)

	var execErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				execErr = fmt.Errorf("panic in channel execution: %v", r)
			}
		}()
		execErr = fn(ch.Channel)
	}()
	return execErr
}

// Size returns the number of channels currently owned by the pool.
func (cp *ChannelPool) Size() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.activeCount
}

// Close closes the pool and all channels it holds. The pool channel itself
// is never closed; late Puts observe the closed flag under the lock and shut
// their channel down instead of sending.
func (cp *ChannelPool) Close() error {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return nil
	}
	cp.closed = true
	cp.mu.Unlock()

	for {
		select {
		case ch := <-cp.channels:
			if ch != nil && !ch.Channel.IsClosed() {
				ch.Channel.Close()
			}
		default:
			return nil
		}
	}
}

func (cp *ChannelPool) retire() {
	cp.mu.Lock()
	cp.activeCount--
	cp.mu.Unlock()
}

func (cp *ChannelPool) createChannel() (*PooledChannel, error) {
	conn, err := cp.manager.GetConnection()
	if err != nil {
		return nil, &ChannelError{Op: "create channel", ChannelID: "new", Err: err, Timestamp: time.Now()}
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, &ChannelError{
			Op:        "create channel",
			ChannelID: "new",
			Err:       fmt.Errorf("%w: %v", ErrChannelCreationFailed, err),
			Timestamp: time.Now(),
		}
	}

	cp.mu.Lock()
	cp.activeCount++
	cp.mu.Unlock()

	return &PooledChannel{Channel: ch, lastUsed: time.Now(), id: uuid.New().String()}, nil
}

func (cp *ChannelPool) createAndGet(ctx context.Context) (*PooledChannel, error) {
	select {
	case <-ctx.Done():
		return nil, &ChannelError{Op: "create channel", ChannelID: "new", Err: ctx.Err(), Timestamp: time.Now()}
	default:
	}
	return cp.createChannel()
}

// cleanupIdle closes channels idle past the timeout, keeping minSize open.
func (cp *ChannelPool) cleanupIdle() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cp.mu.Lock()
		if cp.closed {
			cp.mu.Unlock()
			return
		}
		cp.mu.Unlock()

		cutoff := time.Now().Add(-cp.idleTimeout)
		var keep []*PooledChannel

	drain:
		for {
			select {
			case ch := <-cp.channels:
				if ch.lastUsed.Before(cutoff) && cp.Size() > cp.minSize {
					ch.Channel.Close()
					cp.retire()
				} else {
					keep = append(keep, ch)
				}
			default:
				break drain
			}
		}

		cp.mu.Lock()
		closed := cp.closed
		var overflow []*PooledChannel
		if !closed {
			for _, ch := range keep {
				select {
				case cp.channels <- ch:
				default:
					cp.activeCount--
					overflow = append(overflow, ch)
				}
			}
		}
		cp.mu.Unlock()

		if closed {
			for _, ch := range keep {
				ch.Channel.Close()
			}
			return
		}
		for _, ch := range overflow {
			ch.Channel.Close()
		}
	}
}
