package orchestrator

import (
	"context"
	stderrors "errors"

	"github.com/AaronLay10/snere-rewrite/event"
	"github.com/AaronLay10/snere-rewrite/puzzle"
	"github.com/AaronLay10/snere-rewrite/session"
)

// dispatch is the per-message entry point on the domain events subject. It
// filters by type: liveness bookkeeping is handled inline, gameplay-relevant
// events go to the single worker, everything else is short-circuited before
// any session state is touched.
func (s *Service) dispatch(_ context.Context, _ string, data []byte) {
	evt, err := event.Unmarshal(data)
	if err != nil {
		s.Logger().Warn("invalid event dropped", "error", err)
		if s.core != nil {
			s.core.RecordEventConsumed(serviceName, "invalid", "dropped")
		}
		return
	}

	switch evt.Type {
	case event.TypeControllerHeartbeat, event.TypeControllerOnline:
		s.liveness.Observe(evt.RoomID, evt.ControllerID, true, evt.Timestamp)
		s.recordConsumed(evt.Type, "ok")

	case event.TypeControllerOffline:
		s.liveness.Observe(evt.RoomID, evt.ControllerID, false, evt.Timestamp)
		s.recordConsumed(evt.Type, "ok")

	case event.TypeDeviceStateChanged, event.TypeEmergencyStop:
		if err := s.pool.Submit(evt); err != nil {
			s.Logger().Error("gameplay event dropped", "type", evt.Type, "event", evt.EventID, "error", err)
			s.recordConsumed(evt.Type, "dropped")
		}

	default:
		// Orchestrator-emitted events echo back on the shared subject
		s.recordConsumed(evt.Type, "ignored")
	}
}

// processGameplay runs on the single worker and applies one event to the
// owning session
func (s *Service) processGameplay(ctx context.Context, evt *event.Event) error {
	if s.seen.Observe(evt.EventID) {
		s.recordConsumed(evt.Type, "duplicate")
		return nil
	}

	switch evt.Type {
	case event.TypeDeviceStateChanged:
		s.handleDeviceState(ctx, evt)
	case event.TypeEmergencyStop:
		s.handleEmergencyStop(ctx, evt)
	}

	s.RecordActivity()
	return nil
}

// handleDeviceState applies a device_state_changed event: snapshot update,
// puzzle re-evaluation, and completion check, all atomically on the session.
func (s *Service) handleDeviceState(ctx context.Context, evt *event.Event) {
	var payload event.StateChangedPayload
	if err := evt.DecodePayload(&payload); err != nil {
		s.Logger().Warn("state payload undecodable", "event", evt.EventID, "error", err)
		s.recordConsumed(evt.Type, "dropped")
		return
	}

	var (
		sessionID string
		solved    []puzzle.Definition
		completed bool
	)

	err := s.sessions.Mutate(evt.RoomID, func(sess *session.Session) error {
		sessionID = sess.SessionID

		if sess.Status.IsTerminal() {
			// Halted and completed sessions are frozen
			return nil
		}

		sess.SetDeviceState(evt.ControllerID, evt.DeviceID, payload.NewState, evt.Timestamp)

		if sess.Status != session.StatusRunning {
			return nil
		}

		for _, def := range s.rooms[evt.RoomID] {
			if sess.Solved(def.PuzzleID) {
				continue
			}
			if !def.Condition.References(evt.ControllerID, evt.DeviceID) {
				continue
			}
			if def.Condition.Evaluate(sess) && sess.MarkSolved(def.PuzzleID) {
				solved = append(solved, def)
			}
		}

		if len(solved) > 0 && sess.AllSolved() {
			sess.Status = session.StatusCompleted
			completed = true
		}
		return nil
	})
	if err != nil {
		if stderrors.Is(err, session.ErrNoActiveSession) {
			// Expected steady state when no game is in progress
			s.recordConsumed(evt.Type, "no_session")
			return
		}
		s.Logger().Error("session mutation failed", "room", evt.RoomID, "error", err)
		s.recordConsumed(evt.Type, "error")
		return
	}

	for _, def := range solved {
		s.Logger().Info("puzzle solved", "room", evt.RoomID, "session", sessionID, "puzzle", def.PuzzleID)
		if s.core != nil {
			s.core.RecordPuzzleSolved(evt.RoomID)
		}
		s.emit(ctx, event.TypePuzzleSolved, evt.RoomID, event.PuzzleSolvedPayload{
			SessionID:  sessionID,
			PuzzleID:   def.PuzzleID,
			PuzzleName: def.Name,
		})
	}

	if completed {
		s.Logger().Info("room completed", "room", evt.RoomID, "session", sessionID)
		s.recordSessionsActive()
		s.emit(ctx, event.TypeSceneAdvanced, evt.RoomID, event.SceneAdvancedPayload{
			SessionID: sessionID,
			Scene:     "complete",
		})
		s.emit(ctx, event.TypeSessionCompleted, evt.RoomID, event.SessionPayload{SessionID: sessionID})
	}

	s.recordConsumed(evt.Type, "ok")
}

// handleEmergencyStop halts the room's session regardless of its current
// state. The transition is terminal; no further evaluation happens for the
// session.
func (s *Service) handleEmergencyStop(ctx context.Context, evt *event.Event) {
	var (
		sessionID string
		changed   bool
	)

	err := s.sessions.Mutate(evt.RoomID, func(sess *session.Session) error {
		sessionID = sess.SessionID
		if sess.Status == session.StatusHalted {
			return nil
		}
		sess.Status = session.StatusHalted
		changed = true
		return nil
	})
	if err != nil {
		if stderrors.Is(err, session.ErrNoActiveSession) {
			s.recordConsumed(evt.Type, "no_session")
			return
		}
		s.Logger().Error("emergency halt failed", "room", evt.RoomID, "error", err)
		s.recordConsumed(evt.Type, "error")
		return
	}

	if changed {
		s.Logger().Warn("emergency stop", "room", evt.RoomID, "session", sessionID)
		s.recordSessionsActive()
		s.emit(ctx, event.TypeSessionHalted, evt.RoomID, event.SessionPayload{
			SessionID: sessionID,
			Reason:    "emergency_stop",
		})
	}
	s.recordConsumed(evt.Type, "ok")
}

func (s *Service) recordConsumed(typ event.Type, status string) {
	if s.core != nil {
		s.core.RecordEventConsumed(serviceName, string(typ), status)
	}
}
