// Package scheduler orchestrates the sampling-publish loop. A single
// event-loop goroutine serializes everything that can mutate connection
// state: broker (re)connections, hub restarts, period ticks, and shutdown.
// Connection callbacks arriving on library goroutines are converted into
// events and handled one at a time, so a sampling cycle can never overlap
// another cycle or an in-progress discovery burst.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ps2mqtt/agent/internal/config"
	"github.com/ps2mqtt/agent/internal/hass"
	"github.com/ps2mqtt/agent/internal/metrics"
	"github.com/ps2mqtt/agent/internal/mqtt"
)

// cycleTimeout bounds metric collection for one cycle. A stalled collector
// is cut off so the remaining metrics still publish on time.
const cycleTimeout = 10 * time.Second

type event int

const (
	eventConnected event = iota
	eventConnectionLost
	eventHubRestart
)

// Scheduler drives discovery announcements and periodic state publishes.
type Scheduler struct {
	cfg      *config.Config
	registry *metrics.Registry
	encoder  *hass.Encoder
	pub      mqtt.Publisher
	logger   *zap.Logger

	events chan event

	// connected and announced are owned by the Start loop goroutine.
	// announced guards the invariant that no state message is published
	// before the discovery burst of the current connection epoch.
	connected bool
	announced bool
}

// New creates a Scheduler publishing through pub.
func New(cfg *config.Config, registry *metrics.Registry, encoder *hass.Encoder, pub mqtt.Publisher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		encoder:  encoder,
		pub:      pub,
		logger:   logger,
		events:   make(chan event, 8),
	}
}

// Connected notifies the scheduler of a successful broker (re)connection.
// Safe to call from any goroutine.
func (s *Scheduler) Connected() { s.enqueue(eventConnected) }

// ConnectionLost notifies the scheduler of a dropped broker connection.
// Safe to call from any goroutine.
func (s *Scheduler) ConnectionLost(err error) { s.enqueue(eventConnectionLost) }

// HubRestart notifies the scheduler that the hub announced itself on its
// status topic, which means its discovery registry may have been cleared.
// Safe to call from any goroutine.
func (s *Scheduler) HubRestart() { s.enqueue(eventHubRestart) }

func (s *Scheduler) enqueue(ev event) {
	select {
	case s.events <- ev:
	default:
		// The loop is behind; connection events are level-triggered
		// enough that dropping the oldest pending duplicate is safe.
		s.logger.Warn("Event queue full, dropping event", zap.Int("event", int(ev)))
	}
}

// Start runs the event loop. It blocks until the context is cancelled, at
// which point the retained status topic is overwritten with "offline" as a
// graceful replacement of the last-will message.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Period.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		case <-ticker.C:
			if !s.connected || !s.announced {
				s.logger.Debug("Skipping cycle, not connected")
				continue
			}
			s.cycle(ctx)
		}
	}
}

// handle processes one event on the loop goroutine.
func (s *Scheduler) handle(ctx context.Context, ev event) {
	switch ev {
	case eventConnected:
		s.connected = true
		s.announced = false
		s.announce()
		s.announced = true
		// Publish state immediately instead of waiting out the first tick.
		s.cycle(ctx)
	case eventConnectionLost:
		s.connected = false
		s.announced = false
	case eventHubRestart:
		if s.connected {
			s.logger.Info("Hub restart detected, re-announcing discovery")
			s.announce()
		}
	}
}

// announce publishes the retained "online" status followed by the discovery
// payload for every metric in the catalog. Payloads are deterministic, so
// re-announcing on every reconnect is idempotent for the hub.
func (s *Scheduler) announce() {
	if err := s.pub.Publish(s.encoder.StatusTopic(), hass.PayloadOnline, true); err != nil {
		s.logger.Error("Status publish failed", zap.Error(err))
	}

	descriptors := s.registry.Descriptors()
	for _, d := range descriptors {
		payload, err := s.encoder.DiscoveryPayload(d)
		if err != nil {
			s.logger.Error("Discovery encode failed",
				zap.String("metric", d.Key),
				zap.Error(err))
			continue
		}
		topic := s.encoder.DiscoveryTopic(d)
		if err := s.pub.Publish(topic, string(payload), true); err != nil {
			s.logger.Error("Discovery publish failed",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}

	s.logger.Info("Announced discovery", zap.Int("metrics", len(descriptors)))
}

// cycle collects all metrics with a timeout and publishes their state
// topics. Per-metric failures were already skipped by the registry; publish
// failures are logged and do not abort the cycle, since the next cycle
// re-derives every value anyway.
func (s *Scheduler) cycle(ctx context.Context) {
	collectCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	samples := s.registry.CollectAll(collectCtx)
	for _, sample := range samples {
		topic := s.encoder.StateTopic(sample.Descriptor)
		if err := s.pub.Publish(topic, sample.Payload(), false); err != nil {
			s.logger.Error("State publish failed",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}

	// Refresh the retained status so late subscribers see a current value.
	if err := s.pub.Publish(s.encoder.StatusTopic(), hass.PayloadOnline, true); err != nil {
		s.logger.Error("Status publish failed", zap.Error(err))
	}

	s.logger.Debug("Published state cycle", zap.Int("samples", len(samples)))
}

// shutdown gracefully overwrites the last-will with a retained "offline".
func (s *Scheduler) shutdown() {
	if err := s.pub.Publish(s.encoder.StatusTopic(), hass.PayloadOffline, true); err != nil {
		s.logger.Error("Offline status publish failed", zap.Error(err))
	}
	s.logger.Info("Scheduler stopped")
}
