package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/seankim-business/accord/internal/logger"
)

// ErrNotStarted is returned when publishing before Start.
var ErrNotStarted = errors.New("event channel not started")

// Handler processes one event. Handlers run on the dispatch goroutine and
// must not block for long; a panicking handler is recovered and logged
// without affecting other handlers.
type Handler func(Event)

// Publisher is the write side of the channel, accepted by services that only
// emit events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Options configures the channel's Redis connections and topic.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Channel is the well-known pub/sub topic all processes share.
	Channel string
}

// Channel is the distributed publish/subscribe bus for coordination events.
// Start opens two dedicated connections: one owned by the subscription, one
// for publishing, so a blocked subscriber can never stall publishes.
type Channel struct {
	opts Options
	log  *logger.Logger

	mu       sync.RWMutex
	started  bool
	pub      *redis.Client
	sub      *redis.Client
	pubsub   *redis.PubSub
	handlers map[Type]map[int]Handler
	nextID   int
	wg       sync.WaitGroup
}

// NewChannel creates an unstarted channel.
func NewChannel(opts Options, log *logger.Logger) *Channel {
	if log == nil {
		log = logger.New()
	}
	return &Channel{
		opts:     opts,
		log:      log.WithField("component", "event-channel"),
		handlers: make(map[Type]map[int]Handler),
	}
}

// Start opens the publish and subscribe connections and begins dispatching.
// Calling Start on a started channel logs a warning and returns nil.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		c.log.Warn("event channel already started")
		return nil
	}

	c.pub = redis.NewClient(&redis.Options{
		Addr:     c.opts.Addr,
		Password: c.opts.Password,
		DB:       c.opts.DB,
	})
	c.sub = redis.NewClient(&redis.Options{
		Addr:     c.opts.Addr,
		Password: c.opts.Password,
		DB:       c.opts.DB,
	})

	c.pubsub = c.sub.Subscribe(ctx, c.opts.Channel)
	if _, err := c.pubsub.Receive(ctx); err != nil {
		_ = c.pubsub.Close()
		_ = c.sub.Close()
		_ = c.pub.Close()
		c.pub, c.sub, c.pubsub = nil, nil, nil
		return fmt.Errorf("subscribe to %s: %w", c.opts.Channel, err)
	}

	c.started = true
	c.wg.Add(1)
	go c.run()

	c.log.Info("event channel started on %s", c.opts.Channel)
	return nil
}

// Stop unsubscribes and releases both connections. Safe to call on a channel
// that was never started.
func (c *Channel) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	pubsub, sub, pub := c.pubsub, c.sub, c.pub
	c.pubsub, c.sub, c.pub = nil, nil, nil
	c.mu.Unlock()

	// Closing the subscription ends the dispatch loop.
	err := pubsub.Close()
	c.wg.Wait()

	if cerr := sub.Close(); err == nil {
		err = cerr
	}
	if cerr := pub.Close(); err == nil {
		err = cerr
	}

	c.log.Info("event channel stopped")
	return err
}

// Publish serializes and broadcasts an event to all subscribed processes.
func (c *Channel) Publish(ctx context.Context, e Event) error {
	c.mu.RLock()
	pub := c.pub
	started := c.started
	c.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}

	payload, err := e.Marshal()
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, c.opts.Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe registers a handler for events of the given type, or for every
// event when t is TypeAll. It returns a subscription id for Unsubscribe.
func (c *Channel) Subscribe(t Type, h Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.handlers[t] == nil {
		c.handlers[t] = make(map[int]Handler)
	}
	c.handlers[t][id] = h
	return id
}

// Unsubscribe removes a previously registered handler.
func (c *Channel) Unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for t, byID := range c.handlers {
		if _, ok := byID[id]; ok {
			delete(byID, id)
			if len(byID) == 0 {
				delete(c.handlers, t)
			}
			return
		}
	}
}

// run drains the subscription until Stop closes it.
func (c *Channel) run() {
	defer c.wg.Done()
	for msg := range c.pubsub.Channel() {
		c.dispatch([]byte(msg.Payload))
	}
}

// dispatch parses one wire message and fans it out to matching handlers.
// Malformed messages are dropped; handler panics are isolated.
func (c *Channel) dispatch(payload []byte) {
	e, err := Unmarshal(payload)
	if err != nil {
		c.log.Warn("dropping malformed message: %v", err)
		return
	}

	c.mu.RLock()
	matched := make([]Handler, 0, 4)
	for _, h := range c.handlers[e.Type] {
		matched = append(matched, h)
	}
	for _, h := range c.handlers[TypeAll] {
		matched = append(matched, h)
	}
	c.mu.RUnlock()

	for _, h := range matched {
		c.invoke(h, e)
	}
}

func (c *Channel) invoke(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler for %s panicked: %v", e.Type, r)
		}
	}()
	h(e)
}
