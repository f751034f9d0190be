// Package orchestrator consumes normalized Domain Events and drives the
// per-room game session state machine: device state snapshots, puzzle
// evaluation, completion, and emergency halts. It is the only writer of
// session state; a single-worker pool serializes every mutation.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AaronLay10/snere-rewrite/config"
	"github.com/AaronLay10/snere-rewrite/errors"
	"github.com/AaronLay10/snere-rewrite/event"
	"github.com/AaronLay10/snere-rewrite/metric"
	"github.com/AaronLay10/snere-rewrite/pkg/retry"
	"github.com/AaronLay10/snere-rewrite/pkg/worker"
	"github.com/AaronLay10/snere-rewrite/puzzle"
	"github.com/AaronLay10/snere-rewrite/service"
	"github.com/AaronLay10/snere-rewrite/session"
)

const serviceName = "orchestrator"

const (
	poolQueueSize = 4096
	dedupeSize    = 4096
)

// Subscriber is the event bus surface the orchestrator consumes
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, string, []byte)) error
}

// Publisher is the event bus surface the orchestrator emits on
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Service is the orchestrator
type Service struct {
	*service.BaseService

	bus       Subscriber
	publisher Publisher
	sessions  *session.Repository
	rooms     map[string][]puzzle.Definition

	core     *metric.Metrics
	pool     *worker.Pool[*event.Event]
	seen     *dedupeWindow
	liveness *livenessTable
	retryCfg retry.Config
}

// LoadRooms parses puzzle definitions for every configured room
func LoadRooms(roomCfgs []config.RoomConfig) (map[string][]puzzle.Definition, error) {
	rooms := make(map[string][]puzzle.Definition, len(roomCfgs))
	for _, rc := range roomCfgs {
		defs := make([]puzzle.Definition, 0, len(rc.Puzzles))
		for _, pc := range rc.Puzzles {
			cond, err := puzzle.Parse(pc.Condition)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Orchestrator", "LoadRooms",
					fmt.Sprintf("parse condition for puzzle %q in room %q", pc.PuzzleID, rc.RoomID))
			}
			defs = append(defs, puzzle.Definition{
				PuzzleID:  pc.PuzzleID,
				Name:      pc.Name,
				Condition: cond,
			})
		}
		rooms[rc.RoomID] = defs
	}
	return rooms, nil
}

// New creates the orchestrator service. metrics may be nil in tests.
func New(bus Subscriber, publisher Publisher, sessions *session.Repository, rooms map[string][]puzzle.Definition, metrics *metric.MetricsRegistry, baseOpts ...service.Option) *Service {
	opts := baseOpts
	if metrics != nil {
		opts = append(opts, service.WithMetrics(metrics))
	}

	s := &Service{
		BaseService: service.NewBaseService(serviceName, opts...),
		bus:         bus,
		publisher:   publisher,
		sessions:    sessions,
		rooms:       rooms,
		seen:        newDedupeWindow(dedupeSize),
		liveness:    newLivenessTable(),
		retryCfg:    retry.Quick(),
	}
	if metrics != nil {
		s.core = metrics.CoreMetrics()
	}

	var poolOpts []worker.Option[*event.Event]
	if metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[*event.Event](metrics, "orchestrator"))
	}
	// One worker: session mutation is strictly serialized
	s.pool = worker.NewPool(1, poolQueueSize, s.processGameplay, poolOpts...)

	return s
}

// Start subscribes to the domain events subject and begins processing
func (s *Service) Start(ctx context.Context) error {
	if err := s.BaseService.Start(ctx); err != nil {
		return err
	}

	if err := s.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Orchestrator", "Start", "start worker pool")
	}

	if err := s.bus.Subscribe(ctx, event.DomainSubject, s.dispatch); err != nil {
		return errors.Wrap(err, "Orchestrator", "Start", "subscribe "+event.DomainSubject)
	}

	s.Logger().Info("orchestrator started", "rooms", len(s.rooms))
	return nil
}

// Stop drains the worker pool and stops the service
func (s *Service) Stop(timeout time.Duration) error {
	if err := s.pool.Stop(timeout); err != nil {
		s.Logger().Error("worker pool stop failed", "error", err)
	}
	return s.BaseService.Stop(timeout)
}

// ControllerLiveness returns the last known transport state of every
// controller seen on the bus
func (s *Service) ControllerLiveness() []ControllerLiveness {
	return s.liveness.Snapshot()
}

// Sessions exposes the session repository for read access
func (s *Service) Sessions() *session.Repository {
	return s.sessions
}

// StartSession creates a running session for a room and announces it.
// Returns session.ErrActiveSessionExists when the room is already in play.
func (s *Service) StartSession(ctx context.Context, roomID, teamName string, playerCount int) (*session.Session, error) {
	defs, ok := s.rooms[roomID]
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("unknown room %q", roomID), "Orchestrator", "StartSession", "resolve room")
	}

	puzzleIDs := make([]string, 0, len(defs))
	for _, d := range defs {
		puzzleIDs = append(puzzleIDs, d.PuzzleID)
	}

	sess, err := s.sessions.Create(roomID, teamName, playerCount, puzzleIDs)
	if err != nil {
		return nil, err
	}

	s.Logger().Info("session started", "room", roomID, "session", sess.SessionID, "puzzles", len(puzzleIDs))
	s.recordSessionsActive()

	s.emit(ctx, event.TypeSessionStarted, roomID, event.SessionPayload{
		SessionID:   sess.SessionID,
		TeamName:    teamName,
		PlayerCount: playerCount,
	})
	return sess, nil
}

// PauseSession pauses a running session
func (s *Service) PauseSession(ctx context.Context, roomID string) error {
	return s.transition(ctx, roomID, session.StatusRunning, session.StatusPaused, event.TypeSessionPaused, "")
}

// ResumeSession resumes a paused session
func (s *Service) ResumeSession(ctx context.Context, roomID string) error {
	return s.transition(ctx, roomID, session.StatusPaused, session.StatusRunning, event.TypeSessionResumed, "")
}

// HaltSession stops a session before completion. The transition is terminal.
func (s *Service) HaltSession(ctx context.Context, roomID, reason string) error {
	var sessionID string
	err := s.sessions.Mutate(roomID, func(sess *session.Session) error {
		if sess.Status.IsTerminal() {
			return fmt.Errorf("session %q is already %s", sess.SessionID, sess.Status)
		}
		sess.Status = session.StatusHalted
		sessionID = sess.SessionID
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger().Info("session halted", "room", roomID, "session", sessionID, "reason", reason)
	s.recordSessionsActive()
	s.emit(ctx, event.TypeSessionHalted, roomID, event.SessionPayload{SessionID: sessionID, Reason: reason})
	return nil
}

func (s *Service) transition(ctx context.Context, roomID string, from, to session.Status, typ event.Type, reason string) error {
	var sessionID string
	err := s.sessions.Mutate(roomID, func(sess *session.Session) error {
		if sess.Status != from {
			return fmt.Errorf("session %q is %s, not %s", sess.SessionID, sess.Status, from)
		}
		sess.Status = to
		sessionID = sess.SessionID
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger().Info("session transition", "room", roomID, "session", sessionID, "status", to)
	s.emit(ctx, typ, roomID, event.SessionPayload{SessionID: sessionID, Reason: reason})
	return nil
}

// emit publishes an orchestrator-produced event with bounded retry. A final
// failure is logged; session state has already transitioned and stays
// authoritative.
func (s *Service) emit(ctx context.Context, typ event.Type, roomID string, payload any, opts ...event.Option) {
	opts = append(opts, event.WithSource(serviceName))
	evt, err := event.New(typ, roomID, payload, opts...)
	if err != nil {
		s.Logger().Error("event construction failed", "type", typ, "error", err)
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		s.Logger().Error("event marshal failed", "type", typ, "error", err)
		return
	}

	err = retry.Do(ctx, s.retryCfg, func() error {
		return s.publisher.Publish(ctx, event.DomainSubject, data)
	})
	if err != nil {
		s.Logger().Error("event publish failed", "type", typ, "event", evt.EventID, "error", err)
		if s.core != nil {
			s.core.RecordError(serviceName, "publish")
		}
		return
	}

	if s.core != nil {
		s.core.RecordEventPublished(serviceName, string(typ))
	}
}

func (s *Service) recordSessionsActive() {
	if s.core == nil {
		return
	}
	active := 0
	for _, sess := range s.sessions.List() {
		if sess.Status.IsActive() {
			active++
		}
	}
	s.core.RecordSessionsActive(active)
}
