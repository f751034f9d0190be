// Package snere is the event backbone for a fleet of physical escape-room
// controllers and devices (buttons, sensors, relays, maglocks) connected over
// NATS.
//
// # Architecture
//
// The system is two services sharing one event vocabulary:
//
//	┌─────────────────────────────────────┐
//	│        Ingestion Gateway            │  hardware subjects in,
//	│  (decode, normalize, register)      │  Domain Events out
//	└─────────────────────────────────────┘
//	           ↓ publishes
//	┌─────────────────────────────────────┐
//	│        Domain Event Bus             │  sentient.events.domain
//	└─────────────────────────────────────┘
//	           ↓ consumed by
//	┌─────────────────────────────────────┐
//	│         Orchestrator                │  per-room game sessions,
//	│  (sessions, puzzles, liveness)      │  puzzle evaluation, emission
//	└─────────────────────────────────────┘
//
// Hardware controllers publish telemetry on a hierarchical subject namespace
// (see package topic). The gateway normalizes every raw message into an
// immutable Domain Event envelope (package event) and republishes it on the
// domain subject. The orchestrator consumes those events, maintains one
// active game session per room (package session), evaluates declarative
// puzzle solve conditions against the latest device state (package puzzle),
// and emits follow-on events such as puzzle_solved and scene_advanced.
//
// Delivery is at-least-once end to end: consumers deduplicate by event_id and
// never assume cross-subject ordering.
//
// Package layout is flat: infrastructure (natsclient, config, metric, health,
// service, errors, pkg/...) below, domain packages (topic, event, gateway,
// session, puzzle, orchestrator, eventfeed) on top, and cmd/snere wiring
// everything together.
package snere
