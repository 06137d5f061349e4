// Package engine assembles the event channel, state machines, negotiation
// protocol and director into one process-level coordination engine.
package engine

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/seankim-business/accord/internal/audit"
	"github.com/seankim-business/accord/internal/config"
	"github.com/seankim-business/accord/internal/director"
	"github.com/seankim-business/accord/internal/event"
	"github.com/seankim-business/accord/internal/kv"
	"github.com/seankim-business/accord/internal/logger"
	"github.com/seankim-business/accord/internal/negotiation"
	"github.com/seankim-business/accord/internal/notify"
	"github.com/seankim-business/accord/internal/state"
)

// Bus is the slice of the event channel the engine drives. *event.Channel
// satisfies it; tests substitute an in-process fake.
type Bus interface {
	Start(ctx context.Context) error
	Stop() error
	Publish(ctx context.Context, e event.Event) error
	Subscribe(t event.Type, h event.Handler) int
	Unsubscribe(id int)
}

// Engine is the coordination façade one process runs. It owns the bus
// lifecycle and exposes the negotiation and director services built over it.
type Engine struct {
	cfg *config.Config
	log *logger.Logger

	rdb     *redis.Client // nil when built over a fake bus
	bus     Bus
	store   kv.Store
	machine *state.Machine

	negotiations *negotiation.Service
	director     *director.Engine
	audit        *audit.Recorder

	mu      sync.Mutex
	started bool
	subIDs  []int
}

// New builds an engine connected to the Redis instance named by cfg.
func New(cfg *config.Config, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.New()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := kv.NewRedisStore(rdb)
	bus := event.NewChannel(event.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Coordination.Channel,
	}, log)
	aud := audit.NewRecorder(rdb, cfg.Audit.Stream, cfg.Audit.MaxLen, log)

	e := build(cfg, log, bus, store, aud)
	e.rdb = rdb
	return e
}

// build wires the services over an arbitrary bus and store.
func build(cfg *config.Config, log *logger.Logger, bus Bus, store kv.Store, aud *audit.Recorder) *Engine {
	machine := state.NewMachine(store, cfg.Coordination.KeyPrefix, cfg.StateTTL(), log)
	sink := notify.NewWebhook(cfg.Webhook.URL, cfg.WebhookTimeout(), log)

	negotiations := negotiation.NewService(store, machine, bus, aud, sink, negotiation.Options{
		Prefix:        cfg.Coordination.KeyPrefix,
		Timeout:       cfg.NegotiationTimeout(),
		PollInterval:  cfg.PollInterval(),
		ResponseTTL:   cfg.ResponseTTL(),
		EscalationTTL: cfg.EscalationTTL(),
	}, log)

	dir := director.NewEngine(store, machine, bus,
		director.NewRedisWorkloads(store, cfg.Coordination.KeyPrefix),
		aud, cfg.Director.ID, cfg.Coordination.KeyPrefix, cfg.DecisionTTL(), log)

	return &Engine{
		cfg:          cfg,
		log:          log.WithField("component", "engine"),
		bus:          bus,
		store:        store,
		machine:      machine,
		negotiations: negotiations,
		director:     dir,
		audit:        aud,
	}
}

// Start opens the event channel and registers the engine's own handlers.
// Starting a started engine logs a warning and returns nil.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		e.log.Warn("engine already started")
		return nil
	}
	if err := e.bus.Start(ctx); err != nil {
		return err
	}

	e.subIDs = append(e.subIDs,
		e.bus.Subscribe(event.TypeAll, func(ev event.Event) {
			e.log.Debug("event %s from %s (id=%s priority=%s)", ev.Type, ev.AgentID, ev.ID, ev.Priority)
		}),
		// Decisions broadcast by any director are applied locally so every
		// process converges on the same agent states.
		e.bus.Subscribe(event.TypeDirectorDecision, func(ev event.Event) {
			dec, err := event.DecodePayload[director.Decision](ev)
			if err != nil {
				e.log.Warn("dropping malformed decision %s: %v", ev.ID, err)
				return
			}
			if err := e.director.Execute(context.Background(), &dec); err != nil {
				e.log.Error("apply decision %s: %v", dec.NegotiationID, err)
			}
		}),
	)

	e.started = true
	e.log.Info("coordination engine started")
	return nil
}

// Stop unregisters handlers and closes the bus and Redis connections. Safe
// to call on an engine that was never started.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}
	e.started = false

	for _, id := range e.subIDs {
		e.bus.Unsubscribe(id)
	}
	e.subIDs = nil

	err := e.bus.Stop()
	if e.rdb != nil {
		if cerr := e.rdb.Close(); err == nil {
			err = cerr
		}
	}
	e.log.Info("coordination engine stopped")
	return err
}

// Bus returns the event channel for callers that subscribe directly.
func (e *Engine) Bus() Bus { return e.bus }

// States returns the agent state machine.
func (e *Engine) States() *state.Machine { return e.machine }

// Negotiations returns the negotiation service.
func (e *Engine) Negotiations() *negotiation.Service { return e.negotiations }

// Director returns the arbitration engine.
func (e *Engine) Director() *director.Engine { return e.director }

// Audit returns the audit recorder. It is nil when the engine was built
// without one.
func (e *Engine) Audit() *audit.Recorder { return e.audit }

// Store returns the shared key-value store.
func (e *Engine) Store() kv.Store { return e.store }
