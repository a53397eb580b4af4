// Package coordinator polls a data source on a fixed interval and hands each
// result to registered listeners.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 600 * time.Second

// FetchFunc retrieves a fresh copy of the coordinated data.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Listener is called after every refresh, successful or not.
type Listener[T any] func(data T, ok bool)

type listenerEntry[T any] struct {
	id int
	fn Listener[T]
}

// Coordinator owns one polled data set.
type Coordinator[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	timer    Timer
	logger   Logger

	mutex             sync.RWMutex
	data              T
	hasData           bool
	lastUpdateSuccess bool
	lastError         error
	lastUpdated       time.Time
	listeners         []listenerEntry[T]
	nextListenerID    int

	refreshMutex sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	Interval time.Duration
	Timer    Timer
	Logger   Logger
}

// New creates a coordinator. It does not fetch until Refresh or Start is called.
func New[T any](name string, fetch FetchFunc[T], opts Options) (*Coordinator[T], error) {
	if opts.Interval < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, opts.Interval)
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timer == nil {
		opts.Timer = &RealTimer{}
	}
	if opts.Logger == nil {
		opts.Logger = &RealLogger{}
	}

	return &Coordinator[T]{
		name:     name,
		interval: opts.Interval,
		fetch:    fetch,
		timer:    opts.Timer,
		logger:   opts.Logger,
	}, nil
}

// Name returns the coordinator name
func (c *Coordinator[T]) Name() string {
	return c.name
}

// Interval returns the poll interval
func (c *Coordinator[T]) Interval() time.Duration {
	return c.interval
}

// Data returns the last successfully fetched data.
func (c *Coordinator[T]) Data() (T, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.hasData {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrNoData, c.name)
	}
	return c.data, nil
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastUpdateSuccess
}

// LastError returns the error from the most recent refresh, if any.
func (c *Coordinator[T]) LastError() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastError
}

// LastUpdated returns when data was last fetched successfully.
func (c *Coordinator[T]) LastUpdated() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastUpdated
}

// AddListener registers fn and returns a function that removes it.
func (c *Coordinator[T]) AddListener(fn Listener[T]) func() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	id := c.nextListenerID
	c.nextListenerID++
	c.listeners = append(c.listeners, listenerEntry[T]{id: id, fn: fn})

	return func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Refresh fetches once and notifies listeners. On failure the previous data
// is kept and listeners are told the update failed.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.refreshMutex.Lock()
	defer c.refreshMutex.Unlock()

	data, err := c.fetch(ctx)

	c.mutex.Lock()
	wasSuccess := c.lastUpdateSuccess
	c.lastError = err
	if err != nil {
		c.lastUpdateSuccess = false
	} else {
		c.data = data
		c.hasData = true
		c.lastUpdateSuccess = true
		c.lastUpdated = c.timer.Now()
	}
	current := c.data
	ok := c.lastUpdateSuccess
	listeners := make([]listenerEntry[T], len(c.listeners))
	copy(listeners, c.listeners)
	c.mutex.Unlock()

	if err != nil {
		if wasSuccess {
			c.logger.Printf("%s: update failed: %v", c.name, err)
		}
	} else if !wasSuccess {
		c.logger.Printf("%s: fetched data", c.name)
	}

	for _, l := range listeners {
		l.fn(current, ok)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

// Start begins polling in the background. The first poll happens one
// interval from now; call Refresh first for an initial fetch.
func (c *Coordinator[T]) Start(ctx context.Context) error {
	c.mutex.Lock()
	if c.cancel != nil {
		c.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, c.name)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mutex.Unlock()

	ticker := c.timer.NewTicker(c.interval)
	go c.run(ctx, ticker, done)
	c.logger.Printf("%s: polling every %s", c.name, c.interval)
	return nil
}

func (c *Coordinator[T]) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			_ = c.Refresh(ctx) //nolint:errcheck
		}
	}
}

// Stop halts background polling and waits for the poll loop to exit.
func (c *Coordinator[T]) Stop() {
	c.mutex.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
