// Package gateway ingests raw hardware messages from the hardware bus,
// normalizes them into Domain Events, and republishes them on the event bus.
// Registration announcements are forwarded synchronously to the external
// registry instead.
//
// The gateway fails closed: a message with an undecodable subject or an
// unparseable payload is logged and dropped, never partially normalized.
// Nothing is retried here; hardware re-sends telemetry and registrations on
// its own schedule.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AaronLay10/snere-rewrite/errors"
	"github.com/AaronLay10/snere-rewrite/event"
	"github.com/AaronLay10/snere-rewrite/metric"
	"github.com/AaronLay10/snere-rewrite/pkg/worker"
	"github.com/AaronLay10/snere-rewrite/service"
	"github.com/AaronLay10/snere-rewrite/topic"
)

const serviceName = "ingestion-gateway"

const poolQueueSize = 1024

// Subscriber is the hardware bus surface the gateway consumes
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, string, []byte)) error
}

// Publisher is the event bus surface the gateway produces on
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// rawMessage is one hardware bus delivery queued for normalization
type rawMessage struct {
	subject    string
	data       []byte
	receivedAt time.Time
}

// Service is the ingestion gateway
type Service struct {
	*service.BaseService

	hardware Subscriber
	domain   Publisher
	registry *RegistryClient

	core *metric.Metrics

	// One single-worker pool per channel keeps per-channel receipt order
	// while channels process independently.
	statePool     *worker.Pool[rawMessage]
	heartbeatPool *worker.Pool[rawMessage]
	statusPool    *worker.Pool[rawMessage]
	registerPool  *worker.Pool[rawMessage]
}

// New creates the gateway service. metrics may be nil in tests.
func New(hardware Subscriber, domain Publisher, registry *RegistryClient, metrics *metric.MetricsRegistry, baseOpts ...service.Option) *Service {
	opts := baseOpts
	if metrics != nil {
		opts = append(opts, service.WithMetrics(metrics))
	}

	s := &Service{
		BaseService: service.NewBaseService(serviceName, opts...),
		hardware:    hardware,
		domain:      domain,
		registry:    registry,
	}
	if metrics != nil {
		s.core = metrics.CoreMetrics()
	}

	pool := func(prefix string, fn func(context.Context, rawMessage) error) *worker.Pool[rawMessage] {
		var poolOpts []worker.Option[rawMessage]
		if metrics != nil {
			poolOpts = append(poolOpts, worker.WithMetricsRegistry[rawMessage](metrics, prefix))
		}
		return worker.NewPool(1, poolQueueSize, fn, poolOpts...)
	}

	s.statePool = pool("gateway_state", s.processState)
	s.heartbeatPool = pool("gateway_heartbeat", s.processHeartbeat)
	s.statusPool = pool("gateway_status", s.processStatus)
	s.registerPool = pool("gateway_register", s.processRegister)

	return s
}

// Start subscribes to the hardware subjects and begins processing
func (s *Service) Start(ctx context.Context) error {
	if err := s.BaseService.Start(ctx); err != nil {
		return err
	}

	for _, p := range s.pools() {
		if err := p.Start(ctx); err != nil {
			return errors.Wrap(err, "Gateway", "Start", "start worker pool")
		}
	}

	subscriptions := []struct {
		pattern string
		channel string
		pool    *worker.Pool[rawMessage]
	}{
		{topic.StatePattern(), "state", s.statePool},
		{topic.HeartbeatPattern(), "heartbeat", s.heartbeatPool},
		{topic.StatusPattern(), "status", s.statusPool},
		{topic.RegisterControllerSubject(), "register", s.registerPool},
		{topic.RegisterDeviceSubject(), "register", s.registerPool},
	}

	for _, sub := range subscriptions {
		channel, p := sub.channel, sub.pool
		err := s.hardware.Subscribe(ctx, sub.pattern, func(_ context.Context, subject string, data []byte) {
			s.enqueue(p, channel, subject, data)
		})
		if err != nil {
			return errors.Wrap(err, "Gateway", "Start", "subscribe "+sub.pattern)
		}
	}

	s.Logger().Info("gateway started")
	return nil
}

// Stop drains the worker pools and stops the service
func (s *Service) Stop(timeout time.Duration) error {
	for _, p := range s.pools() {
		if err := p.Stop(timeout); err != nil {
			s.Logger().Error("worker pool stop failed", "error", err)
		}
	}
	return s.BaseService.Stop(timeout)
}

func (s *Service) pools() []*worker.Pool[rawMessage] {
	return []*worker.Pool[rawMessage]{s.statePool, s.heartbeatPool, s.statusPool, s.registerPool}
}

func (s *Service) enqueue(p *worker.Pool[rawMessage], channel, subject string, data []byte) {
	msg := rawMessage{subject: subject, data: data, receivedAt: time.Now().UTC()}
	if err := p.Submit(msg); err != nil {
		s.Logger().Warn("hardware message dropped", "subject", subject, "error", err)
		s.recordDropped(channel, "queue_full")
	}
}

func (s *Service) processState(ctx context.Context, m rawMessage) error {
	addr, ok := s.decode("state", m.subject)
	if !ok {
		return nil
	}

	evt, err := s.normalizeState(addr, m.subject, m.data, m.receivedAt)
	if err != nil {
		s.Logger().Warn("state payload dropped", "subject", m.subject, "error", err)
		s.recordDropped("state", "bad_payload")
		return nil
	}
	s.publish(ctx, "state", evt)
	return nil
}

func (s *Service) processHeartbeat(ctx context.Context, m rawMessage) error {
	addr, ok := s.decode("heartbeat", m.subject)
	if !ok {
		return nil
	}

	evt, err := s.normalizeHeartbeat(addr, m.subject, m.data, m.receivedAt)
	if err != nil {
		s.Logger().Warn("heartbeat payload dropped", "subject", m.subject, "error", err)
		s.recordDropped("heartbeat", "bad_payload")
		return nil
	}
	s.publish(ctx, "heartbeat", evt)
	return nil
}

func (s *Service) processStatus(ctx context.Context, m rawMessage) error {
	addr, ok := s.decode("status", m.subject)
	if !ok {
		return nil
	}

	evt, err := s.normalizeStatus(addr, m.subject, m.data, m.receivedAt)
	if err != nil {
		s.Logger().Warn("status payload dropped", "subject", m.subject, "error", err)
		s.recordDropped("status", "bad_payload")
		return nil
	}
	s.publish(ctx, "status", evt)
	return nil
}

// processRegister forwards a registration announcement to the external
// registry. Failures are logged and dropped; the hardware re-announces.
func (s *Service) processRegister(ctx context.Context, m rawMessage) error {
	var kind string
	var err error

	switch m.subject {
	case topic.RegisterControllerSubject():
		kind = "controller"
		err = s.registry.RegisterController(ctx, m.data)
	case topic.RegisterDeviceSubject():
		kind = "device"
		err = s.registry.RegisterDevice(ctx, m.data)
	default:
		s.recordDropped("register", "malformed_topic")
		return nil
	}

	if err != nil {
		s.Logger().Warn("registration forward failed", "kind", kind, "error", err)
		s.recordRegistration(kind, "failed")
		return nil
	}

	s.Logger().Debug("registration forwarded", "kind", kind)
	s.recordRegistration(kind, "ok")
	s.RecordActivity()
	return nil
}

// decode resolves a subject to an address, failing closed on malformed input
func (s *Service) decode(channel, subject string) (topic.Address, bool) {
	addr, err := topic.Decode(subject)
	if err != nil {
		s.Logger().Warn("malformed subject dropped", "subject", subject, "error", err)
		s.recordDropped(channel, "malformed_topic")
		return topic.Address{}, false
	}
	return addr, true
}

// publish serializes the event onto the domain subject. Publish failures are
// logged and dropped; retry policy belongs to callers with durable needs,
// and recurring telemetry is not one of them.
func (s *Service) publish(ctx context.Context, channel string, evt *event.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.Logger().Error("event marshal failed", "type", evt.Type, "error", err)
		s.recordDropped(channel, "marshal_failed")
		return
	}

	if err := s.domain.Publish(ctx, event.DomainSubject, data); err != nil {
		s.Logger().Warn("event publish failed", "type", evt.Type, "error", err)
		s.recordDropped(channel, "publish_failed")
		return
	}

	s.RecordActivity()
	if s.core != nil {
		s.core.RecordIngested(channel)
		s.core.RecordEventPublished(serviceName, string(evt.Type))
	}
}

func (s *Service) recordDropped(channel, reason string) {
	if s.core != nil {
		s.core.RecordDropped(channel, reason)
	}
}

func (s *Service) recordRegistration(kind, status string) {
	if s.core != nil {
		s.core.RecordRegistration(kind, status)
	}
}
