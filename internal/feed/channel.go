package feed

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrChannelClosed = errors.New("subscription channel closed")

// Channel shares one underlying feed per key between any number of handles.
// The feed is opened by the first handle and torn down when the last handle
// for the key is closed.
type Channel[T any] struct {
	name   string
	source Source[T]
	log    logrus.FieldLogger

	mu     sync.Mutex
	feeds  map[string]*sharedFeed[T]
	nextID uint64
	closed bool

	sfg singleflight.Group // one Subscribe per key in flight
}

type sharedFeed[T any] struct {
	key     string
	stop    Unsubscribe
	handles map[uint64]*Handle[T]
	seq     uint64
	last    T
	hasLast bool
	stopped bool
}

// Handle is one subscriber's interest in a keyed feed.
type Handle[T any] struct {
	ch      *Channel[T]
	feed    *sharedFeed[T]
	id      uint64
	onValue func(T)
	onError func(error)

	deliverMu sync.Mutex
	lastSeq   uint64
	closed    atomic.Bool
}

func NewChannel[T any](name string, source Source[T], log logrus.FieldLogger) *Channel[T] {
	return &Channel[T]{
		name:   name,
		source: source,
		log:    log.WithField("feed", name),
		feeds:  make(map[string]*sharedFeed[T]),
	}
}

// Open registers interest in key. If a feed for key is live the handle joins
// it and receives the latest value right away; otherwise a feed is opened.
func (c *Channel[T]) Open(ctx context.Context, key string, onValue func(T), onError func(error)) (*Handle[T], error) {
	for {
		v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
			return c.ensureFeed(ctx, key)
		})
		if err != nil {
			return nil, err
		}
		f := v.(*sharedFeed[T])

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrChannelClosed
		}
		if f.stopped {
			// the last handle left between open and attach
			c.mu.Unlock()
			continue
		}
		c.nextID++
		h := &Handle[T]{
			ch:      c,
			feed:    f,
			id:      c.nextID,
			onValue: onValue,
			onError: onError,
		}
		f.handles[h.id] = h
		seq, last, hasLast := f.seq, f.last, f.hasLast
		c.mu.Unlock()

		if hasLast {
			h.deliver(seq, last)
		}
		return h, nil
	}
}

func (c *Channel[T]) ensureFeed(ctx context.Context, key string) (*sharedFeed[T], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	if f, ok := c.feeds[key]; ok {
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	f := &sharedFeed[T]{
		key:     key,
		handles: make(map[uint64]*Handle[T]),
	}
	stop, err := c.source.Subscribe(ctx, key, Sink[T]{
		Deliver: func(v T) { c.dispatch(f, v) },
		Fail:    func(err error) { c.fail(f, err) },
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s feed %q", c.name, key)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stop()
		return nil, ErrChannelClosed
	}
	f.stop = stop
	c.feeds[key] = f
	c.mu.Unlock()

	c.log.WithField("key", key).Debug("feed opened")
	return f, nil
}

func (c *Channel[T]) dispatch(f *sharedFeed[T], v T) {
	c.mu.Lock()
	if f.stopped {
		c.mu.Unlock()
		return
	}
	f.seq++
	seq := f.seq
	f.last, f.hasLast = v, true
	handles := f.snapshotHandles()
	c.mu.Unlock()

	for _, h := range handles {
		h.deliver(seq, v)
	}
}

func (c *Channel[T]) fail(f *sharedFeed[T], err error) {
	c.mu.Lock()
	if f.stopped {
		c.mu.Unlock()
		return
	}
	handles := f.snapshotHandles()
	c.mu.Unlock()

	c.log.WithField("key", f.key).WithError(err).Warn("feed error")
	for _, h := range handles {
		h.fail(err)
	}
}

func (f *sharedFeed[T]) snapshotHandles() []*Handle[T] {
	handles := make([]*Handle[T], 0, len(f.handles))
	for _, h := range f.handles {
		handles = append(handles, h)
	}
	return handles
}

func (c *Channel[T]) release(h *Handle[T]) {
	c.mu.Lock()
	f := h.feed
	delete(f.handles, h.id)
	var stop Unsubscribe
	if len(f.handles) == 0 && !f.stopped {
		f.stopped = true
		if c.feeds[f.key] == f {
			delete(c.feeds, f.key)
		}
		stop = f.stop
	}
	c.mu.Unlock()

	if stop != nil {
		stop()
		c.log.WithField("key", f.key).Debug("feed closed")
	}
}

// Refs returns the number of live handles for key.
func (c *Channel[T]) Refs(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.feeds[key]; ok {
		return len(f.handles)
	}
	return 0
}

// Active returns the number of open underlying feeds.
func (c *Channel[T]) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.feeds)
}

// Close tears down every feed. Handles still held become inert.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stops := make([]Unsubscribe, 0, len(c.feeds))
	for key, f := range c.feeds {
		f.stopped = true
		for _, h := range f.handles {
			h.closed.Store(true)
		}
		f.handles = make(map[uint64]*Handle[T])
		if f.stop != nil {
			stops = append(stops, f.stop)
		}
		delete(c.feeds, key)
	}
	c.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

func (h *Handle[T]) Key() string {
	return h.feed.key
}

// Close releases the handle. It is safe to call more than once and from
// inside the handle's own callbacks.
func (h *Handle[T]) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.ch.release(h)
}

func (h *Handle[T]) deliver(seq uint64, v T) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	if h.closed.Load() || seq <= h.lastSeq {
		return
	}
	h.lastSeq = seq
	if h.onValue != nil {
		h.onValue(v)
	}
}

func (h *Handle[T]) fail(err error) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	if h.closed.Load() {
		return
	}
	if h.onError != nil {
		h.onError(err)
	}
}
